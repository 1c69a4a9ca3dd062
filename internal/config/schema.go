package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OptionType is the expected type of an option value.
type OptionType string

const (
	TypeString OptionType = "string"
	// TypeBool accepts true/false/yes/no/1/0/on/off.
	TypeBool OptionType = "bool"
	TypeInt  OptionType = "int"
	// TypeDuration is a time.Duration, e.g. "100ms".
	TypeDuration OptionType = "duration"
)

// Scope says where an option may appear.
type Scope int

const (
	// ScopeGlobal options are only valid outside sections.
	ScopeGlobal Scope = iota
	// ScopeTree options may also be overridden in a tree's section.
	ScopeTree
)

// ConfigOption declares one option.
type ConfigOption struct {
	// Key is the option name as written in the file.
	Key         string
	Type        OptionType
	Default     string
	Description string
	Scope       Scope
	// EnvVar overrides the file, when set in the environment.
	EnvVar string
}

// ConfigSchema is the set of known options, used for validation, typed
// resolution, and help text.
type ConfigSchema struct {
	options []*ConfigOption
	byKey   map[string]*ConfigOption
}

// NewSchema creates an empty schema.
func NewSchema() *ConfigSchema {
	return &ConfigSchema{byKey: make(map[string]*ConfigOption)}
}

// Register adds an option; a later registration of the same key wins.
func (s *ConfigSchema) Register(opt ConfigOption) {
	ref := new(ConfigOption)
	*ref = opt
	if prev, ok := s.byKey[opt.Key]; ok {
		*prev = opt
		return
	}
	s.options = append(s.options, ref)
	s.byKey[opt.Key] = ref
}

// RegisterAll adds several options.
func (s *ConfigSchema) RegisterAll(opts []ConfigOption) {
	for _, opt := range opts {
		s.Register(opt)
	}
}

// Lookup returns the option for key, or nil.
func (s *ConfigSchema) Lookup(key string) *ConfigOption {
	return s.byKey[key]
}

// Options returns the options in registration order.
func (s *ConfigSchema) Options() []ConfigOption {
	out := make([]ConfigOption, 0, len(s.options))
	for _, o := range s.options {
		out = append(out, *o)
	}
	return out
}

// Resolve returns the effective value of key for tree ("" for the global
// value): the environment variable, then the tree's section, then the global
// option, then the default.
func (s *ConfigSchema) Resolve(c *Config, tree, key string) string {
	opt := s.Lookup(key)
	if opt != nil && opt.EnvVar != "" {
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	if c != nil {
		if tree != "" && opt != nil && opt.Scope == ScopeTree {
			if v, ok := c.GetTreeOption(tree, key); ok {
				return v
			}
		} else if v, ok := c.GetGlobalOption(key); ok {
			return v
		}
	}
	if opt != nil {
		return opt.Default
	}
	return ""
}

// ValidateConfig returns the problems in c, sorted: unknown options, global
// options set in a tree section, and values of the wrong type.
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string

	for key, value := range c.Global {
		opt := s.Lookup(key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
			continue
		}
		if err := validateType(opt.Type, value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}

	for tree, opts := range c.Trees {
		for key, value := range opts {
			opt := s.Lookup(key)
			switch {
			case opt == nil:
				issues = append(issues, fmt.Sprintf("unknown option for tree %q: %q (value: %q)", tree, key, value))
			case opt.Scope != ScopeTree:
				issues = append(issues, fmt.Sprintf("option %q in [%s]: only valid as a global option", key, tree))
			default:
				if err := validateType(opt.Type, value); err != nil {
					issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, tree, err))
				}
			}
		}
	}

	sort.Strings(issues)
	return issues
}

func validateType(t OptionType, value string) error {
	switch t {
	case TypeString, "":
		return nil
	case TypeBool:
		if _, err := parseBool(value); err != nil {
			return fmt.Errorf("expected bool, got %q", value)
		}
	case TypeInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("expected int, got %q", value)
		}
	case TypeDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("expected duration, got %q", value)
		}
	default:
		return fmt.Errorf("unknown option type %q", t)
	}
	return nil
}

// FormatHelp returns a reference of every option.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder
	b.WriteString("Options:\n")
	for _, o := range s.options {
		fmt.Fprintf(&b, "  %-22s %s", o.Key, o.Description)
		parts := make([]string, 0, 4)
		if o.Type != "" && o.Type != TypeString {
			parts = append(parts, fmt.Sprintf("type: %s", o.Type))
		}
		if o.Default != "" {
			parts = append(parts, fmt.Sprintf("default: %s", o.Default))
		}
		if o.EnvVar != "" {
			parts = append(parts, fmt.Sprintf("env: %s", o.EnvVar))
		}
		if o.Scope == ScopeTree {
			parts = append(parts, "per-tree")
		}
		if len(parts) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Option keys.
const (
	KeyTickInterval  = "tick-interval"
	KeyMaxTicks      = "max-ticks"
	KeyRepeat        = "repeat"
	KeyStopOnFailure = "stop-on-failure"
	KeyLogLevel      = "log.level"
	KeyLogFormat     = "log.format"
	KeyLogFile       = "log.file"
	KeyLogMaxSizeMB  = "log.max-size-mb"
	KeyLogMaxFiles   = "log.max-files"
	KeyMetricsAddr   = "metrics.addr"
	KeyExprCacheSize = "expr.cache-size"
)

// DefaultSchema declares every btrun option.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	s.RegisterAll([]ConfigOption{
		{Key: KeyTickInterval, Type: TypeDuration, Default: "100ms", Scope: ScopeTree, EnvVar: "BTRUN_TICK_INTERVAL", Description: "Period between ticks"},
		{Key: KeyMaxTicks, Type: TypeInt, Default: "0", Scope: ScopeTree, Description: "Stop after this many ticks, 0 for no limit"},
		{Key: KeyRepeat, Type: TypeBool, Default: "false", Scope: ScopeTree, Description: "Start a new episode when the tree completes"},
		{Key: KeyStopOnFailure, Type: TypeBool, Default: "false", Scope: ScopeTree, Description: "With repeat, stop at the first failed episode"},
		{Key: KeyLogLevel, Type: TypeString, Default: "info", EnvVar: "BTRUN_LOG_LEVEL", Description: "Log level: debug, info, warn, error"},
		{Key: KeyLogFormat, Type: TypeString, Default: "text", EnvVar: "BTRUN_LOG_FORMAT", Description: "Log format: text, json"},
		{Key: KeyLogFile, Type: TypeString, EnvVar: "BTRUN_LOG_FILE", Description: "Log to this file instead of stderr"},
		{Key: KeyLogMaxSizeMB, Type: TypeInt, Default: "10", Description: "Max log file size in MB before rotation"},
		{Key: KeyLogMaxFiles, Type: TypeInt, Default: "5", Description: "Max number of rotated log files"},
		{Key: KeyMetricsAddr, Type: TypeString, EnvVar: "BTRUN_METRICS_ADDR", Description: "Serve Prometheus metrics on this address"},
		{Key: KeyExprCacheSize, Type: TypeInt, Default: "1000", Description: "Compiled expressions kept in the shared cache"},
	})
	return s
}

// Settings are the resolved global options.
type Settings struct {
	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxFiles   int
	MetricsAddr   string
	ExprCacheSize int
}

// TreeSettings are the resolved options of one tree.
type TreeSettings struct {
	TickInterval  time.Duration
	MaxTicks      int
	Repeat        bool
	StopOnFailure bool
}

// Settings resolves the global options. Invalid values are errors here, even
// though loading only warned about them.
func (s *ConfigSchema) Settings(c *Config) (Settings, error) {
	r := resolver{schema: s, config: c}
	out := Settings{
		LogLevel:      r.getString(KeyLogLevel),
		LogFormat:     r.getString(KeyLogFormat),
		LogFile:       r.getString(KeyLogFile),
		LogMaxSizeMB:  r.getInt(KeyLogMaxSizeMB),
		LogMaxFiles:   r.getInt(KeyLogMaxFiles),
		MetricsAddr:   r.getString(KeyMetricsAddr),
		ExprCacheSize: r.getInt(KeyExprCacheSize),
	}
	if out.ExprCacheSize < 1 {
		r.errs = append(r.errs, fmt.Errorf("%s must be positive", KeyExprCacheSize))
	}
	return out, r.err()
}

// TreeSettings resolves the options of tree.
func (s *ConfigSchema) TreeSettings(c *Config, tree string) (TreeSettings, error) {
	r := resolver{schema: s, config: c, tree: tree}
	out := TreeSettings{
		TickInterval:  r.getDuration(KeyTickInterval),
		MaxTicks:      r.getInt(KeyMaxTicks),
		Repeat:        r.getBool(KeyRepeat),
		StopOnFailure: r.getBool(KeyStopOnFailure),
	}
	if out.TickInterval <= 0 {
		r.errs = append(r.errs, fmt.Errorf("%s must be positive", KeyTickInterval))
	}
	if out.MaxTicks < 0 {
		r.errs = append(r.errs, fmt.Errorf("%s cannot be negative", KeyMaxTicks))
	}
	return out, r.err()
}

type resolver struct {
	schema *ConfigSchema
	config *Config
	tree   string
	errs   []error
}

func (r *resolver) getString(key string) string {
	return r.schema.Resolve(r.config, r.tree, key)
}

func (r *resolver) getInt(key string) int {
	v := r.getString(key)
	if v == "" {
		return 0
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: expected int, got %q", key, v))
	}
	return i
}

func (r *resolver) getBool(key string) bool {
	v := r.getString(key)
	if v == "" {
		return false
	}
	b, err := parseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
	}
	return b
}

func (r *resolver) getDuration(key string) time.Duration {
	v := r.getString(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: expected duration, got %q", key, v))
	}
	return d
}

func (r *resolver) err() error { return errors.Join(r.errs...) }
