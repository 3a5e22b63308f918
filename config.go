package fimfic2cover

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings is the optional YAML settings file. It supplies defaults for the
// CLI flags; flags given on the command line always win.
type Settings struct {
	ImageDir            string  `yaml:"image_dir"`
	TitleFont           string  `yaml:"title_font"`
	TitleFontSize       float64 `yaml:"title_font_size"`
	AuthorFont          string  `yaml:"author_font"`
	AuthorFontSize      float64 `yaml:"author_font_size"`
	Wait                int     `yaml:"wait"`
	ConverterExecutable string  `yaml:"converter_executable"`
	ConverterDir        string  `yaml:"converter_dir"`
	ConverterExtraFlags string  `yaml:"converter_extra_flags"`
}

// DefaultSettings mirrors the CLI flag defaults.
func DefaultSettings() *Settings {
	return &Settings{
		TitleFontSize:  100,
		AuthorFontSize: 50,
		Wait:           5,
	}
}

// DefaultSettingsPath is ~/.fimfic2cover.yaml.
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".fimfic2cover.yaml")
}

// LoadSettings reads the settings file at path. A missing file yields the
// defaults; a malformed one is an error.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return s, nil
}
