// Package config loads the settings used to build entity metadata from struct tags.
//
// Settings are read from a TOML or YAML file (type deduced from the file extension) and may be
// overridden by CRYO_ prefixed environment variables, e.g. CRYO_TAG_NAME=db.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const envPrefix = "CRYO"

// Config holds the metadata building settings
type Config struct {
	// TagName is the struct field tag holding column mappings
	TagName string `mapstructure:"tag_name" toml:"tag_name"`
	// Naming is how column names are derived from field names - "snake", "camel" or "field"
	Naming string `mapstructure:"naming" toml:"naming"`
	// RequireTags skips fields without a tag
	RequireTags bool `mapstructure:"require_tags" toml:"require_tags"`
	// TimeLayout, if set, stores time.Time fields as strings in this layout
	TimeLayout string `mapstructure:"time_layout" toml:"time_layout"`
	// BoolAsInt stores bool fields as 1/0
	BoolAsInt bool `mapstructure:"bool_as_int" toml:"bool_as_int"`
	// EnumOrdinal stores enum fields by ordinal rather than name
	EnumOrdinal bool `mapstructure:"enum_ordinal" toml:"enum_ordinal"`
}

// Default returns the default settings
func Default() Config {
	return Config{
		TagName: "sql",
		Naming:  "snake",
	}
}

// SetDefaults configures default values for all settings
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("tag_name", d.TagName)
	v.SetDefault("naming", d.Naming)
	v.SetDefault("require_tags", d.RequireTags)
	v.SetDefault("time_layout", d.TimeLayout)
	v.SetDefault("bool_as_int", d.BoolAsInt)
	v.SetDefault("enum_ordinal", d.EnumOrdinal)
}

// New creates a viper instance with defaults and environment binding
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads settings from the file at path (which may be empty for defaults + environment only)
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}
	return LoadWithViper(v)
}

// LoadWithViper loads settings using a provided viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	switch cfg.Naming {
	case "snake", "camel", "field":
	default:
		return nil, errors.Newf("invalid naming %q", cfg.Naming)
	}
	return &cfg, nil
}

// Write saves settings as TOML to the file at path
func Write(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.Wrap(err, "failed to create config directory")
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write config file %s", path)
	}
	return nil
}
