// Package config loads btrun's configuration file.
//
// The file uses a dnsmasq-style format: one "optionName value" per line, "#"
// comments, and "[name]" headers opening a section whose options apply only to
// the tree of that name.
package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config is a parsed configuration file.
type Config struct {
	// Global options apply to every tree.
	Global map[string]string
	// Trees holds per-tree overrides, keyed by tree name.
	Trees map[string]map[string]string
	// Warnings lists the problems found while loading (unknown options, bad
	// values). They are not fatal.
	Warnings []string
}

// NewConfig creates an empty configuration.
func NewConfig() *Config {
	return &Config{
		Global:   make(map[string]string),
		Trees:    make(map[string]map[string]string),
		Warnings: make([]string, 0),
	}
}

// Load loads the configuration from GetConfigPath.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFromPath(configPath)
}

// LoadFromPath loads the configuration at path. A missing file is an empty
// configuration. Symlinks are rejected.
func LoadFromPath(path string) (*Config, error) {
	// Lstat checks the final path component only.
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewConfig(), nil
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("symlink not allowed in config path: %s", path)
	}

	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return LoadFromReader(file)
}

// LoadFromReader parses a configuration and validates it against
// DefaultSchema, recording issues as warnings.
func LoadFromReader(r io.Reader) (*Config, error) {
	config := NewConfig()
	scanner := bufio.NewScanner(r)

	var currentTree string
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentTree = strings.TrimSpace(strings.Trim(line, "[]"))
			if currentTree == "" {
				return nil, fmt.Errorf("line %d: empty section name", lineNo)
			}
			if config.Trees[currentTree] == nil {
				config.Trees[currentTree] = make(map[string]string)
			}
			continue
		}

		optionName, value, _ := strings.Cut(line, " ")
		value = strings.TrimSpace(value)
		if currentTree == "" {
			config.Global[optionName] = value
		} else {
			config.Trees[currentTree][optionName] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	for _, issue := range ValidateConfig(config, DefaultSchema()) {
		config.addWarning("%s", issue)
	}
	return config, nil
}

func (c *Config) addWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.Warnings = append(c.Warnings, msg)
	slog.Warn("[Config] " + msg)
}

// parseBool accepts true, false, 1, 0, yes, no, on, off (case-insensitive).
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
}

// GetGlobalOption returns a global option.
func (c *Config) GetGlobalOption(name string) (string, bool) {
	value, exists := c.Global[name]
	return value, exists
}

// GetTreeOption returns a tree's option, falling back to the global one.
func (c *Config) GetTreeOption(tree, name string) (string, bool) {
	if opts, exists := c.Trees[tree]; exists {
		if value, exists := opts[name]; exists {
			return value, true
		}
	}
	return c.GetGlobalOption(name)
}

// SetGlobalOption sets a global option.
func (c *Config) SetGlobalOption(name, value string) {
	c.Global[name] = value
}

// SetTreeOption sets a tree's option.
func (c *Config) SetTreeOption(tree, name, value string) {
	if c.Trees[tree] == nil {
		c.Trees[tree] = make(map[string]string)
	}
	c.Trees[tree][name] = value
}

// HasWarnings reports whether loading produced warnings.
func (c *Config) HasWarnings() bool {
	return len(c.Warnings) > 0
}
