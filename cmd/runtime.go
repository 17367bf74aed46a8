package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangacrawl/internal/browser"
	"github.com/brogergvhs/mangacrawl/internal/config"
	"github.com/brogergvhs/mangacrawl/internal/providers"
	"github.com/brogergvhs/mangacrawl/internal/providers/asura"
	"github.com/brogergvhs/mangacrawl/internal/providers/batoto"
	"github.com/brogergvhs/mangacrawl/internal/providers/generic"
	"github.com/brogergvhs/mangacrawl/internal/ui"
)

// browserFlags are shared by every command that opens the browser.
type browserFlags struct {
	headful    bool
	chromePath string
	userAgent  string
}

func (f *browserFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.headful, "headful", false, "show the browser window")
	cmd.Flags().StringVar(&f.chromePath, "chrome-path", "", "Chrome/Chromium executable (default: auto-detect)")
	cmd.Flags().StringVar(&f.userAgent, "user-agent", "", "override User-Agent")
}

func (f *browserFlags) apply(o *config.Options) {
	o.Headful = f.headful
	o.ChromePath = f.chromePath
	if f.userAgent != "" {
		o.UserAgent = f.userAgent
	}
}

func loadConfig(opts config.Options) (*config.Config, string, error) {
	opts.IgnoreConfig = flagIgnoreConfig
	opts.Debug = opts.Debug || flagDebug

	return config.LoadMerged(opts)
}

// builtinProfiles are the site profiles shipped with the binary.
func builtinProfiles() []generic.Profile {
	return []generic.Profile{batoto.Profile(), asura.Profile()}
}

// findProfile looks a profile up by name among the built-in and configured
// sites.
func findProfile(cfg *config.Config, name string) (generic.Profile, error) {
	all := append(builtinProfiles(), cfg.Sites...)
	for _, p := range all {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}

	names := make([]string, len(all))
	for i, p := range all {
		names[i] = p.Name
	}
	return generic.Profile{}, fmt.Errorf("unknown site %q (known: %s)", name, strings.Join(names, ", "))
}

// buildRegistry registers the built-in adapters first, then the configured
// sites in file order. sessions may be nil for commands that never scrape.
func buildRegistry(cfg *config.Config, sessions generic.Sessions, log *ui.Logger) (*providers.Registry, error) {
	opts := cfg.EngineOptions()
	reg := providers.NewRegistry()

	builtins := []func(generic.Sessions, generic.Options, generic.Logger) (providers.Adapter, error){
		batoto.New,
		asura.New,
	}
	for _, build := range builtins {
		a, err := build(sessions, opts, log)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(a); err != nil {
			return nil, err
		}
	}

	for _, p := range cfg.Sites {
		a, err := generic.NewAdapter(p, sessions, opts, log.With("site", p.Name))
		if err != nil {
			return nil, err
		}
		if err := reg.Register(a); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

// session is a launched browser plus the registry of adapters bound to it.
type session struct {
	cfg      *config.Config
	log      *ui.Logger
	manager  *browser.Manager
	registry *providers.Registry
}

func openSession(cfg *config.Config) (*session, error) {
	log := ui.NewLogger(cfg.Debug)

	driver, err := browser.NewChromeDriver(cfg.ChromeOptions())
	if err != nil {
		return nil, err
	}

	manager := browser.NewManager(driver, cfg.ManagerOptions(), log.With("component", "browser"))

	reg, err := buildRegistry(cfg, manager, log)
	if err != nil {
		_ = manager.Close()
		return nil, err
	}

	return &session{cfg: cfg, log: log, manager: manager, registry: reg}, nil
}

func (s *session) adapterFor(url string) (providers.Adapter, error) {
	a, err := s.registry.Match(url)
	if err != nil {
		return nil, err
	}
	s.log.Debugf("%s handled by %s", url, a.Name())

	return a, nil
}

// adapterNamed returns the adapter registered as name, or matches url when
// name is empty.
func (s *session) adapterNamed(name, url string) (providers.Adapter, error) {
	if name == "" {
		a, err := s.adapterFor(url)
		if err != nil {
			return nil, fmt.Errorf("%w (pass --site for chapter reader URLs)", err)
		}
		return a, nil
	}

	a, ok := s.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown site %q", name)
	}
	return a, nil
}

func (s *session) Close() {
	if err := s.manager.Close(); err != nil {
		s.log.Warnf("closing browser: %v", err)
	}
}
