package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const DefaultEnvFile = ".env"

const (
	EnvChromePath  = "MANGACRAWL_CHROME_PATH"
	EnvHeadless    = "MANGACRAWL_HEADLESS"
	EnvStatePath   = "MANGACRAWL_STATE_PATH"
	EnvNtfyAddress = "NTFY_ADDRESS"
	EnvNtfyTopic   = "NTFY_TOPIC"
	EnvNtfyToken   = "NTFY_TOKEN"
)

// LoadEnv loads a .env file into the process environment. Variables that are
// already set win. A missing file is only an error when it was asked for by
// name; the default .env is optional.
func LoadEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}

	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return fmt.Errorf("error loading env file '%s': %w", path, err)
}

// applyEnv overrides config values with the environment. It runs before CLI
// flags are merged, so flags still take precedence.
func applyEnv(c *Config) {
	if v := os.Getenv(EnvChromePath); v != "" {
		c.Browser.ChromePath = v
	}
	if v := os.Getenv(EnvHeadless); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			c.Browser.Headless = b
		}
	}
	if v := os.Getenv(EnvStatePath); v != "" {
		c.StatePath = v
	}
	if v := os.Getenv(EnvNtfyAddress); v != "" {
		c.Notify.Address = v
	}
	if v := os.Getenv(EnvNtfyTopic); v != "" {
		c.Notify.Topic = v
	}
	if v := os.Getenv(EnvNtfyToken); v != "" {
		c.Notify.Token = v
	}
}

// DefaultStatePath is the bbolt file used by `check --state` when no path is
// configured.
func DefaultStatePath() string {
	return filepath.Join(ConfigRoot(), "state.db")
}
