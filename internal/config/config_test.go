package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/brogergvhs/mangacrawl/internal/providers/generic"
)

// isolate points the config root at a temp dir and clears every variable
// applyEnv reads.
func isolate(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("APPDATA", "")
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, k := range []string{EnvChromePath, EnvHeadless, EnvStatePath, EnvNtfyAddress, EnvNtfyTopic, EnvNtfyToken} {
		t.Setenv(k, "")
	}

	return filepath.Join(dir, appName)
}

func writeProfile(t *testing.T, label, body string) {
	t.Helper()

	if err := os.MkdirAll(ConfigsDir(), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ConfigsDir(), label+".yaml"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	if err := SwitchConfig(label); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMergedDefaults(t *testing.T) {
	root := isolate(t)

	cfg, used, err := LoadMerged(Options{})
	if err != nil {
		t.Fatalf("LoadMerged: %v", err)
	}
	if !strings.HasPrefix(used, "(default config in memory)") {
		t.Fatalf("used = %q", used)
	}
	if cfg.Output != "." || cfg.ImageWorkers != 5 || cfg.ChapterWorkers != 2 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.Browser.Headless || cfg.Browser.MaxPages != 4 {
		t.Fatalf("browser = %+v", cfg.Browser)
	}
	if cfg.StatePath != filepath.Join(root, "state.db") {
		t.Fatalf("StatePath = %q", cfg.StatePath)
	}
	if cfg.EngineOptions() != generic.DefaultOptions() {
		t.Fatalf("engine options differ from the engine defaults:\n got  %+v\n want %+v", cfg.EngineOptions(), generic.DefaultOptions())
	}
}

func TestLoadMergedProfile(t *testing.T) {
	isolate(t)

	writeProfile(t, "Work", `
output: /tmp/manga
image_workers: 8
browser:
  headless: true
  max_pages: 2
  acquire_timeout: 30s
crawl:
  delay_min: 500ms
  delay_max: 2s
  max_pages: 10
  timeout: 5m
scroll:
  step: 1200
  settle_pause: 0s
sites:
  - name: Example
    patterns: ['^https://example\.com/series/']
    chapter_links: ul.chapters a
    images: div.reader img
`)

	cfg, used, err := LoadMerged(Options{ChapterWorkers: 3})
	if err != nil {
		t.Fatalf("LoadMerged: %v", err)
	}
	if filepath.Base(used) != "Work.yaml" {
		t.Fatalf("used = %q", used)
	}
	if cfg.Output != "/tmp/manga" || cfg.ImageWorkers != 8 || cfg.ChapterWorkers != 3 {
		t.Fatalf("unexpected merge: %+v", cfg)
	}

	opts := cfg.EngineOptions()
	if opts.Delay.Min != 500*time.Millisecond || opts.Delay.Max != 2*time.Second {
		t.Fatalf("delay = %+v", opts.Delay)
	}
	if opts.MaxPages != 10 || opts.CrawlTimeout != 5*time.Minute {
		t.Fatalf("crawl = %+v", opts)
	}
	if opts.Scroll.Step != 1200 || opts.SettlePause != 0 {
		t.Fatalf("scroll = %+v settle=%s", opts.Scroll, opts.SettlePause)
	}
	// sections the profile leaves out keep their defaults
	if opts.Scroll.StableSteps != generic.DefaultScrollPolicy().StableSteps {
		t.Fatalf("StableSteps = %d", opts.Scroll.StableSteps)
	}

	m := cfg.ManagerOptions()
	if m.MaxPages != 2 || m.AcquireTimeout != 30*time.Second {
		t.Fatalf("manager = %+v", m)
	}
	if len(cfg.Sites) != 1 || cfg.Sites[0].Name != "Example" {
		t.Fatalf("sites = %+v", cfg.Sites)
	}
}

func TestLoadMergedRejectsBadSites(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing images", `
sites:
  - name: Broken
    patterns: ['example\.com']
    chapter_links: a
`},
		{"duplicate names", `
sites:
  - {name: A, patterns: [a\.com], chapter_links: a, images: img}
  - {name: a, patterns: [b\.com], chapter_links: a, images: img}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			writeProfile(t, "Bad", tt.body)

			if _, _, err := LoadMerged(Options{}); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestLoadMergedBadDuration(t *testing.T) {
	isolate(t)
	writeProfile(t, "Bad", "crawl:\n  timeout: soon\n")

	_, _, err := LoadMerged(Options{})
	if err == nil || !strings.Contains(err.Error(), `invalid duration "soon"`) {
		t.Fatalf("err = %v", err)
	}
}

func TestEnvAndFlagPrecedence(t *testing.T) {
	isolate(t)
	writeProfile(t, "Default", "browser:\n  chrome_path: /from/yaml\n")

	t.Setenv(EnvChromePath, "/from/env")
	t.Setenv(EnvHeadless, "false")
	t.Setenv(EnvNtfyAddress, "https://ntfy.example.com")
	t.Setenv(EnvNtfyTopic, "manga")

	cfg, _, err := LoadMerged(Options{})
	if err != nil {
		t.Fatalf("LoadMerged: %v", err)
	}
	if cfg.Browser.ChromePath != "/from/env" || cfg.Browser.Headless {
		t.Fatalf("env not applied: %+v", cfg.Browser)
	}
	if !cfg.Notify.Enabled() {
		t.Fatalf("notify should be enabled: %+v", cfg.Notify)
	}

	cfg, _, err = LoadMerged(Options{ChromePath: "/from/flag", StatePath: "/tmp/s.db"})
	if err != nil {
		t.Fatalf("LoadMerged: %v", err)
	}
	if cfg.Browser.ChromePath != "/from/flag" || cfg.StatePath != "/tmp/s.db" {
		t.Fatalf("flags not applied: %+v", cfg)
	}

	cfg, used, err := LoadMerged(Options{IgnoreConfig: true})
	if err != nil {
		t.Fatalf("LoadMerged: %v", err)
	}
	if used != "(ignored config)" || cfg.Browser.ChromePath != "/from/env" {
		t.Fatalf("ignored config: used=%q chrome=%q", used, cfg.Browser.ChromePath)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Chdir(t.TempDir())

	if err := LoadEnv(""); err != nil {
		t.Fatalf("missing default .env should be ignored: %v", err)
	}
	if err := LoadEnv("nope.env"); err == nil {
		t.Fatalf("missing explicit file should fail")
	}

	t.Setenv(EnvNtfyTopic, "")
	os.Unsetenv(EnvNtfyTopic)
	t.Setenv(EnvNtfyToken, "kept")

	if err := os.WriteFile(DefaultEnvFile, []byte("NTFY_TOPIC=from-file\nNTFY_TOKEN=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := LoadEnv(""); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv(EnvNtfyTopic); got != "from-file" {
		t.Fatalf("NTFY_TOPIC = %q", got)
	}
	if got := os.Getenv(EnvNtfyToken); got != "kept" {
		t.Fatalf("existing variables must win, NTFY_TOKEN = %q", got)
	}
}

func TestProfileLifecycle(t *testing.T) {
	isolate(t)

	def, err := InitDefaultConfig()
	if err != nil {
		t.Fatalf("InitDefaultConfig: %v", err)
	}
	if _, err := InitDefaultConfig(); !errors.Is(err, os.ErrExist) {
		t.Fatalf("second init: %v", err)
	}

	if err := AddConfig("Fast", def); err != nil {
		t.Fatalf("AddConfig: %v", err)
	}
	if err := AddConfig("Fast", def); err == nil {
		t.Fatalf("AddConfig should refuse an existing label")
	}
	if err := SwitchConfig("Fast"); err != nil {
		t.Fatalf("SwitchConfig: %v", err)
	}
	if err := RenameConfig("Fast", "Quick"); err != nil {
		t.Fatalf("RenameConfig: %v", err)
	}
	if label, _ := CurrentLabel(); label != "Quick" {
		t.Fatalf("active label = %q", label)
	}
	if _, err := ConfigPathByLabel("Fast"); err == nil {
		t.Fatalf("old label should be gone")
	}

	list, err := ListConfigs()
	if err != nil {
		t.Fatalf("ListConfigs: %v", err)
	}
	if len(list) != 2 || list[0].Label != "Default" || !list[1].Active {
		t.Fatalf("list = %+v", list)
	}

	if err := RemoveConfig("Default"); err == nil {
		t.Fatalf("Default must not be removable")
	}
	if err := RemoveConfig("Quick"); err != nil {
		t.Fatalf("RemoveConfig: %v", err)
	}
	if label, _ := CurrentLabel(); label != "Default" {
		t.Fatalf("active label after remove = %q", label)
	}
}

func TestProfileLabels(t *testing.T) {
	isolate(t)

	for _, label := range []string{"", "  ", "../escape", `a\b`, ".."} {
		if _, err := CreateEmptyConfig(label); err == nil {
			t.Errorf("CreateEmptyConfig(%q) should fail", label)
		}
	}

	path, err := CreateEmptyConfig(" Spaced ")
	if err != nil {
		t.Fatalf("CreateEmptyConfig: %v", err)
	}
	if filepath.Base(path) != "Spaced.yaml" {
		t.Fatalf("path = %q", path)
	}

	if _, err := CurrentLabel(); !errors.Is(err, ErrNoConfig) {
		t.Fatalf("no profile is active yet, got %v", err)
	}
	if err := SwitchConfig("Spaced"); err != nil {
		t.Fatalf("SwitchConfig: %v", err)
	}
	if err := RenameConfig("Spaced", "Default"); err != nil {
		t.Fatalf("RenameConfig: %v", err)
	}
	if err := RenameConfig("Default", "Other"); err == nil {
		t.Fatalf("Default must not be renamable")
	}
}
