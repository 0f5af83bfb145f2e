package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromPath reads a settings file (YAML or JSON) on top of Default.
// Format is detected by extension (.yaml/.yml → YAML, .json → JSON) or by content (first non-whitespace char).
func LoadFromPath(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses settings from bytes. ext is the file extension (e.g. ".json", ".yaml") for format hint; empty = detect from content.
func Load(data []byte, ext string) (*Settings, error) {
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	if ext == "" && strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		ext = ".json"
	}
	s := Default()
	if ext == ".json" {
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parse settings json: %w", err)
		}
		return &s, nil
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings yaml: %w", err)
	}
	return &s, nil
}

// Resolve loads path when it is set, falls back to Default otherwise, then
// applies the environment and validates.
func Resolve(path string, getenv func(string) string) (*Settings, error) {
	s := Default()
	sp := &s
	if path != "" {
		var err error
		if sp, err = LoadFromPath(path); err != nil {
			return nil, err
		}
	}
	if err := sp.ApplyEnv(getenv); err != nil {
		return nil, err
	}
	if err := sp.Validate(); err != nil {
		return nil, err
	}
	return sp, nil
}
