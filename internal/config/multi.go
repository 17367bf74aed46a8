package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrNoConfig = errors.New("no config selected")

const (
	appName = "mangacrawl"

	// DefaultLabel is the profile created by `config init`. It cannot be
	// removed.
	DefaultLabel = "Default"

	profileExt = ".yaml"
)

// ConfigRoot is %APPDATA%/mangacrawl on Windows and the XDG config dir
// elsewhere.
func ConfigRoot() string {
	if appdata := os.Getenv("APPDATA"); appdata != "" {
		return filepath.Join(appdata, appName)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName)
}

func ConfigsDir() string {
	return filepath.Join(ConfigRoot(), "configs")
}

// CurrentLabelFile holds the label of the active profile.
func CurrentLabelFile() string {
	return filepath.Join(ConfigRoot(), "current_config")
}

func ensureDirs() error {
	return os.MkdirAll(ConfigsDir(), 0755)
}

// checkLabel rejects labels that would escape the configs dir.
func checkLabel(label string) (string, error) {
	label = strings.TrimSpace(label)
	switch {
	case label == "":
		return "", errors.New("label cannot be empty")
	case strings.ContainsAny(label, `/\`), label == ".", label == "..":
		return "", fmt.Errorf("invalid label %q", label)
	}

	return label, nil
}

func profilePath(label string) string {
	return filepath.Join(ConfigsDir(), label+profileExt)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeActive(label string) error {
	return os.WriteFile(CurrentLabelFile(), []byte(label), 0644)
}

func CurrentLabel() (string, error) {
	b, err := os.ReadFile(CurrentLabelFile())
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoConfig
	}
	if err != nil {
		return "", err
	}

	label := strings.TrimSpace(string(b))
	if label == "" {
		return "", ErrNoConfig
	}

	return label, nil
}

// ActiveConfigPath is the file of the active profile. The file itself may
// have been deleted by hand.
func ActiveConfigPath() (string, error) {
	label, err := CurrentLabel()
	if err != nil {
		return "", ErrNoConfig
	}

	return profilePath(label), nil
}

// ConfigPathByLabel returns the file of an existing profile.
func ConfigPathByLabel(label string) (string, error) {
	label, err := checkLabel(label)
	if err != nil {
		return "", err
	}

	path := profilePath(label)
	if !exists(path) {
		return "", fmt.Errorf("config %q does not exist", label)
	}

	return path, nil
}

type ConfigInfo struct {
	Label  string
	Path   string
	Active bool
}

// ListConfigs returns every profile sorted by label.
func ListConfigs() ([]ConfigInfo, error) {
	if err := ensureDirs(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(ConfigsDir())
	if err != nil {
		return nil, err
	}

	active, _ := CurrentLabel()

	var out []ConfigInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != profileExt {
			continue
		}

		label := strings.TrimSuffix(name, profileExt)
		out = append(out, ConfigInfo{
			Label:  label,
			Path:   filepath.Join(ConfigsDir(), name),
			Active: label == active,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })

	return out, nil
}

func SwitchConfig(label string) error {
	path, err := ConfigPathByLabel(label)
	if err != nil {
		return err
	}

	return writeActive(strings.TrimSuffix(filepath.Base(path), profileExt))
}

// newProfile returns the path for a profile that does not exist yet.
func newProfile(label string) (string, error) {
	label, err := checkLabel(label)
	if err != nil {
		return "", err
	}
	if err := ensureDirs(); err != nil {
		return "", err
	}

	path := profilePath(label)
	if exists(path) {
		return "", fmt.Errorf("config %q already exists", label)
	}

	return path, nil
}

// AddConfig copies srcPath into a new profile. The file must load as a
// config.
func AddConfig(label, srcPath string) error {
	dst, err := newProfile(label)
	if err != nil {
		return err
	}

	if _, err := loadYAML(srcPath); err != nil {
		return err
	}

	raw, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}

	return os.WriteFile(dst, raw, 0644)
}

// CreateEmptyConfig writes a new profile holding the defaults.
func CreateEmptyConfig(label string) (string, error) {
	path, err := newProfile(label)
	if err != nil {
		return "", err
	}

	if err := SaveYAML(DefaultConfig(), path); err != nil {
		return "", err
	}

	return path, nil
}

// RenameConfig keeps the active profile active under its new label.
func RenameConfig(oldLabel, newLabel string) error {
	oldPath, err := ConfigPathByLabel(oldLabel)
	if err != nil {
		return err
	}
	if strings.TrimSpace(oldLabel) == DefaultLabel {
		return fmt.Errorf("cannot rename the %s config", DefaultLabel)
	}

	newPath, err := newProfile(newLabel)
	if err != nil {
		return err
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		return err
	}

	if active, _ := CurrentLabel(); active == strings.TrimSpace(oldLabel) {
		return writeActive(strings.TrimSpace(newLabel))
	}

	return nil
}

// RemoveConfig deletes a profile. Removing the active one switches back to
// Default.
func RemoveConfig(label string) error {
	path, err := ConfigPathByLabel(label)
	if err != nil {
		return err
	}

	label = strings.TrimSpace(label)
	if label == DefaultLabel {
		return fmt.Errorf("cannot remove the %s config", DefaultLabel)
	}

	if active, _ := CurrentLabel(); active == label {
		if err := SwitchConfig(DefaultLabel); err != nil {
			return fmt.Errorf("failed switching to %s: %w", DefaultLabel, err)
		}
	}

	return os.Remove(path)
}

// InitDefaultConfig writes the Default profile and activates it. When the
// profile exists it is only activated and os.ErrExist is returned.
func InitDefaultConfig() (string, error) {
	if err := ensureDirs(); err != nil {
		return "", err
	}

	path := profilePath(DefaultLabel)
	if exists(path) {
		return path, errors.Join(writeActive(DefaultLabel), os.ErrExist)
	}

	if err := SaveYAML(DefaultConfig(), path); err != nil {
		return "", err
	}

	return path, writeActive(DefaultLabel)
}
