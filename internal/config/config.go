package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brogergvhs/mangacrawl/internal/browser"
	"github.com/brogergvhs/mangacrawl/internal/providers/generic"
)

// Duration is a time.Duration written as "45s" in YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*d = 0
		return nil
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", n.Line, s)
	}
	*d = Duration(v)

	return nil
}

type BrowserConfig struct {
	Headless          bool     `yaml:"headless"`
	ChromePath        string   `yaml:"chrome_path"`
	MaxPages          int      `yaml:"max_pages"`
	AcquireTimeout    Duration `yaml:"acquire_timeout"`
	NavigationTimeout Duration `yaml:"navigation_timeout"`
}

type CrawlConfig struct {
	DelayMin        Duration `yaml:"delay_min"`
	DelayMax        Duration `yaml:"delay_max"`
	MaxPages        int      `yaml:"max_pages"`
	Timeout         Duration `yaml:"timeout"`
	IdleTime        Duration `yaml:"idle_time"`
	IdleTimeout     Duration `yaml:"idle_timeout"`
	SelectorTimeout Duration `yaml:"selector_timeout"`
}

type ScrollConfig struct {
	Step         int      `yaml:"step"`
	Interval     Duration `yaml:"interval"`
	StableSteps  int      `yaml:"stable_steps"`
	Timeout      Duration `yaml:"timeout"`
	SettlePause  Duration `yaml:"settle_pause"`
	ReadyTimeout Duration `yaml:"ready_timeout"`
}

type NotifyConfig struct {
	Address string `yaml:"ntfy_address"`
	Topic   string `yaml:"ntfy_topic"`
	Token   string `yaml:"ntfy_token"`
}

// Enabled reports whether both the server and the topic are known.
func (n NotifyConfig) Enabled() bool {
	return n.Address != "" && n.Topic != ""
}

type Config struct {
	Output         string   `yaml:"output"`
	ImageWorkers   int      `yaml:"image_workers"`
	ChapterWorkers int      `yaml:"chapter_workers"`
	KeepFolders    bool     `yaml:"keep_folders"`
	Debug          bool     `yaml:"debug"`
	AllowExt       []string `yaml:"allow_ext"`

	DefaultURL          string `yaml:"default_url"`
	DefaultRange        string `yaml:"default_range"`
	DefaultExcludeRange string `yaml:"default_exclude_range"`
	DefaultList         string `yaml:"default_list"`
	DefaultExcludeList  string `yaml:"default_exclude_list"`

	Cookie     string `yaml:"cookie"`
	CookieFile string `yaml:"cookie_file"`
	UserAgent  string `yaml:"user_agent"`

	SkipBroken bool `yaml:"skip_broken"`

	Browser   BrowserConfig     `yaml:"browser"`
	Crawl     CrawlConfig       `yaml:"crawl"`
	Scroll    ScrollConfig      `yaml:"scroll"`
	Notify    NotifyConfig      `yaml:"notify"`
	StatePath string            `yaml:"state_path"`
	Sites     []generic.Profile `yaml:"sites,omitempty"`
}

type Options struct {
	IgnoreConfig        bool
	Debug               bool
	Output              string
	ImageWorkers        int
	ChapterWorkers      int
	KeepFolders         bool
	DefaultURL          string
	DefaultRange        string
	DefaultExcludeRange string
	DefaultList         string
	DefaultExcludeList  string
	Cookie              string
	CookieFile          string
	UserAgent           string
	SkipBroken          bool

	Headful    bool
	ChromePath string
	StatePath  string
}

func DefaultConfig() *Config {
	engine := generic.DefaultOptions()

	return &Config{
		Output:         ".",
		ImageWorkers:   5,
		ChapterWorkers: 2,
		AllowExt:       []string{"jpg", "jpeg", "png", "webp"},
		Browser: BrowserConfig{
			Headless:          true,
			MaxPages:          4,
			AcquireTimeout:    Duration(time.Minute),
			NavigationTimeout: Duration(engine.NavigationTimeout),
		},
		Crawl: CrawlConfig{
			DelayMin:        Duration(engine.Delay.Min),
			DelayMax:        Duration(engine.Delay.Max),
			MaxPages:        engine.MaxPages,
			Timeout:         Duration(engine.CrawlTimeout),
			IdleTime:        Duration(engine.IdleTime),
			IdleTimeout:     Duration(engine.IdleTimeout),
			SelectorTimeout: Duration(engine.SelectorTimeout),
		},
		Scroll: ScrollConfig{
			Step:         engine.Scroll.Step,
			Interval:     Duration(engine.Scroll.Interval),
			StableSteps:  engine.Scroll.StableSteps,
			Timeout:      Duration(engine.Scroll.Timeout),
			SettlePause:  Duration(engine.SettlePause),
			ReadyTimeout: Duration(engine.ReadyTimeout),
		},
	}
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// loadYAML decodes path over the defaults, so sections missing from older
// profiles keep working values.
func loadYAML(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}

	return c, nil
}

func LoadMerged(opts Options) (*Config, string, error) {
	if opts.IgnoreConfig {
		cfg := DefaultConfig()
		return finish(cfg, opts, "(ignored config)")
	}

	activePath, err := ActiveConfigPath()
	if errors.Is(err, ErrNoConfig) || activePath == "" {
		cfg := DefaultConfig()
		return finish(cfg, opts, "(default config in memory)\nRun `mangacrawl config init` to create an actual config\n")
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := loadYAML(activePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", activePath, err)
	}

	return finish(cfg, opts, activePath)
}

func finish(cfg *Config, opts Options, source string) (*Config, string, error) {
	applyEnv(cfg)
	mergeConfig(cfg, opts)
	normalizeDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("config %s: %w", strings.TrimSpace(strings.Split(source, "\n")[0]), err)
	}

	return cfg, source, nil
}

func mergeConfig(c *Config, o Options) {
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.ImageWorkers != 0 {
		c.ImageWorkers = o.ImageWorkers
	}
	if o.ChapterWorkers != 0 {
		c.ChapterWorkers = o.ChapterWorkers
	}
	if o.KeepFolders {
		c.KeepFolders = true
	}
	if o.Debug {
		c.Debug = true
	}
	if o.DefaultURL != "" {
		c.DefaultURL = o.DefaultURL
	}
	if o.DefaultRange != "" {
		c.DefaultRange = o.DefaultRange
	}
	if o.DefaultExcludeRange != "" {
		c.DefaultExcludeRange = o.DefaultExcludeRange
	}
	if o.DefaultList != "" {
		c.DefaultList = o.DefaultList
	}
	if o.DefaultExcludeList != "" {
		c.DefaultExcludeList = o.DefaultExcludeList
	}
	if o.Cookie != "" {
		c.Cookie = o.Cookie
	}
	if o.CookieFile != "" {
		c.CookieFile = o.CookieFile
	}
	if o.UserAgent != "" {
		c.UserAgent = o.UserAgent
	}
	if o.SkipBroken {
		c.SkipBroken = true
	}
	if o.Headful {
		c.Browser.Headless = false
	}
	if o.ChromePath != "" {
		c.Browser.ChromePath = o.ChromePath
	}
	if o.StatePath != "" {
		c.StatePath = o.StatePath
	}
}

func normalizeDefaults(c *Config) {
	if c.Output == "" {
		c.Output = "."
	}
	if c.ImageWorkers == 0 {
		c.ImageWorkers = 5
	}
	if c.ChapterWorkers == 0 {
		c.ChapterWorkers = 2
	}
	if c.Browser.MaxPages <= 0 {
		c.Browser.MaxPages = 4
	}
	if c.StatePath == "" {
		c.StatePath = DefaultStatePath()
	}
}

// Validate checks the custom site profiles. Names must be unique.
func (c *Config) Validate() error {
	seen := map[string]bool{}
	for i, p := range c.Sites {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("sites[%d]: %w", i, err)
		}

		key := strings.ToLower(p.Name)
		if seen[key] {
			return fmt.Errorf("sites[%d]: duplicate name %q", i, p.Name)
		}
		seen[key] = true
	}

	if c.ImageWorkers < 0 || c.ChapterWorkers < 0 {
		return errors.New("worker counts cannot be negative")
	}

	return nil
}

// EngineOptions maps the crawl and scroll sections onto the scraping engine.
// Zero values fall back to the engine defaults.
func (c *Config) EngineOptions() generic.Options {
	return generic.Options{
		NavigationTimeout: c.Browser.NavigationTimeout.Std(),
		SelectorTimeout:   c.Crawl.SelectorTimeout.Std(),
		IdleTime:          c.Crawl.IdleTime.Std(),
		IdleTimeout:       c.Crawl.IdleTimeout.Std(),
		CrawlTimeout:      c.Crawl.Timeout.Std(),
		MaxPages:          c.Crawl.MaxPages,
		Delay: browser.Delay{
			Min: c.Crawl.DelayMin.Std(),
			Max: c.Crawl.DelayMax.Std(),
		},
		Scroll: generic.ScrollPolicy{
			Step:        c.Scroll.Step,
			Interval:    c.Scroll.Interval.Std(),
			StableSteps: c.Scroll.StableSteps,
			Timeout:     c.Scroll.Timeout.Std(),
		},
		SettlePause:  c.Scroll.SettlePause.Std(),
		ReadyTimeout: c.Scroll.ReadyTimeout.Std(),
	}
}

func (c *Config) ManagerOptions() browser.ManagerOptions {
	return browser.ManagerOptions{
		MaxPages:       c.Browser.MaxPages,
		AcquireTimeout: c.Browser.AcquireTimeout.Std(),
	}
}

func (c *Config) ChromeOptions() browser.ChromeOptions {
	return browser.ChromeOptions{
		Headless:  c.Browser.Headless,
		ExecPath:  c.Browser.ChromePath,
		UserAgent: c.UserAgent,
	}
}

func (c *Config) Print() {
	if c.Output != "" {
		fmt.Printf(" -output: %s\n", c.Output)
	}
	fmt.Printf(" -image_workers: %d\n", c.ImageWorkers)
	fmt.Printf(" -chapter_workers: %d\n", c.ChapterWorkers)
	if c.KeepFolders {
		fmt.Printf(" -keep_folders: %t\n", c.KeepFolders)
	}
	if c.Debug {
		fmt.Printf(" -debug: %t\n", c.Debug)
	}
	if c.DefaultURL != "" {
		fmt.Printf(" -url: %s\n", c.DefaultURL)
	}
	if c.DefaultRange != "" {
		fmt.Printf(" -range: %s\n", c.DefaultRange)
	}
	if c.DefaultExcludeRange != "" {
		fmt.Printf(" -exclude_range: %s\n", c.DefaultExcludeRange)
	}
	if c.DefaultList != "" {
		fmt.Printf(" -list: %s\n", c.DefaultList)
	}
	if c.DefaultExcludeList != "" {
		fmt.Printf(" -exclude_list: %s\n", c.DefaultExcludeList)
	}
	if c.CookieFile != "" {
		fmt.Printf(" -cookie_file: %s\n", c.CookieFile)
	}
	if c.SkipBroken {
		fmt.Printf(" -skip_broken: %t\n", c.SkipBroken)
	}
	if len(c.AllowExt) > 0 {
		fmt.Printf(" -allow_ext: %s\n", strings.Join(c.AllowExt, ", "))
	}

	fmt.Printf(" -browser: headless=%t pages=%d", c.Browser.Headless, c.Browser.MaxPages)
	if c.Browser.ChromePath != "" {
		fmt.Printf(" chrome=%s", c.Browser.ChromePath)
	}
	fmt.Println()
	fmt.Printf(" -crawl: delay=%s..%s max_pages=%d timeout=%s\n",
		c.Crawl.DelayMin.Std(), c.Crawl.DelayMax.Std(), c.Crawl.MaxPages, c.Crawl.Timeout.Std())
	fmt.Printf(" -state_path: %s\n", c.StatePath)
	if c.Notify.Enabled() {
		fmt.Printf(" -notify: %s/%s\n", strings.TrimRight(c.Notify.Address, "/"), c.Notify.Topic)
	}
	for _, s := range c.Sites {
		fmt.Printf(" -site: %s (%d patterns)\n", s.Name, len(s.Patterns))
	}
}
