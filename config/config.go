// Package config implements the addon option tree of spec.md §6: a set of
// named, independently typed option structs ("addons"), populated from a
// config file plus environment variables and checked with struct-tag
// validators the way the original's Validator classes checked theirs.
//
// The two addons the core recognizes are Htsql (the `htsql` addon: the
// connection URI, optional password override, and query cache size) and
// TweakOverride (the `tweak.override` addon consumed by tweak/override).
//
// Grounded on github.com/spf13/viper's defaulting/env/unmarshal sequence
// as used by wayli-app-fluxbase's internal/config/config.go (SetDefault
// calls, AutomaticEnv with an underscore key replacer, then Unmarshal into
// a mapstructure-tagged struct), and validated with
// github.com/go-playground/validator/v10's struct-tag validator, the
// dependency SPEC_FULL.md §A attributes to the config-addon surface.
package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	htsqlerrors "github.com/prometheusresearch/htsql-go/core/errors"
)

// Htsql is the `htsql` addon of spec.md §6: `{db, password?, query_cache_size}`.
type Htsql struct {
	DB             string `mapstructure:"db" validate:"required"`
	Password       string `mapstructure:"password"`
	QueryCacheSize int    `mapstructure:"query_cache_size" validate:"min=0"`
}

// TweakOverride is the `tweak.override` addon of spec.md §6: pattern-based
// label overrides, each a list of raw pattern strings parsed by
// tweak/override into the pattern types named in the original's pattern.py
// (TablePattern, ColumnPattern, ArcPattern, ...).
type TweakOverride struct {
	UnlabeledTables []string `mapstructure:"unlabeled_tables"`
	UnlabeledColumns []string `mapstructure:"unlabeled_columns"`
	IncludedTables  []string `mapstructure:"included_tables"`
	ExcludedTables  []string `mapstructure:"excluded_tables"`

	// ClassLabels maps a synthetic label name (optionally "name(param,...)"
	// for a parameterized global) to a class pattern string.
	ClassLabels map[string]string `mapstructure:"class_labels"`
	// FieldLabels maps "table.label" to a field pattern string.
	FieldLabels map[string]string `mapstructure:"field_labels"`
	// FieldOrders maps a table name to the field name order to present it in.
	FieldOrders map[string][]string `mapstructure:"field_orders"`
	// Globals maps a global name to an HTSQL syntax body substituted for it.
	Globals map[string]string `mapstructure:"globals"`
	// Commands maps a command name to an HTSQL syntax body.
	Commands map[string]string `mapstructure:"commands"`
}

// Config is the full addon tree: every addon this core recognizes,
// keyed by its addon name (spec.md §6).
type Config struct {
	Htsql         Htsql         `mapstructure:"htsql" validate:"required"`
	TweakOverride TweakOverride `mapstructure:"tweak.override"`
}

// Load reads configuration from an optional file at path (empty to skip),
// environment variables prefixed HTSQL_, and built-in defaults, then
// validates it. A malformed or missing-required-field Config is reported as
// an EngineError carrying the validator's field-level messages, the same
// way the original's Validator classes rejected a bad addon option.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HTSQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, htsqlerrors.Engine.New("reading configuration file: " + err.Error())
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, htsqlerrors.Engine.New("decoding configuration: " + err.Error())
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("htsql.query_cache_size", 1024)
}

// Validate runs struct-tag validation over cfg, collecting every failing
// field into a single EngineError (spec.md §7 wraps validation the same way
// as any other pipeline-boundary error).
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return htsqlerrors.Engine.New("validating configuration: " + err.Error())
		}
		var msgs []string
		for _, fe := range verrs {
			msgs = append(msgs, fe.Namespace()+": failed "+fe.Tag())
		}
		return htsqlerrors.Engine.New("invalid configuration: " + strings.Join(msgs, "; "))
	}
	return nil
}
