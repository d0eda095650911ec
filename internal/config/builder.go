package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Profile is a named preset applied on top of the loaded configuration.
type Profile string

const (
	// ProfileDefault leaves the loaded configuration untouched.
	ProfileDefault Profile = ""
	// ProfileDevelopment keeps comments and source maps for debugging.
	ProfileDevelopment Profile = "development"
	// ProfileProduction minifies and strips comments.
	ProfileProduction Profile = "production"
)

// ParseProfile resolves a profile name.
func ParseProfile(name string) (Profile, error) {
	switch p := Profile(name); p {
	case ProfileDefault, ProfileDevelopment, ProfileProduction:
		return p, nil
	}
	return ProfileDefault, fmt.Errorf("unknown profile %q (want development or production)", name)
}

// ValidatorFunc represents a configuration validation function
type ValidatorFunc func(*Config) error

// Builder assembles a Config from viper, a profile and CLI targets.
//
// Usage:
//
//	cfg, err := config.NewBuilder(viper.GetViper()).
//	    WithProfile(config.ProfileProduction).
//	    WithTargets(args).
//	    Build()
type Builder struct {
	v          *viper.Viper
	profile    Profile
	targets    []string
	validators []ValidatorFunc
}

// NewBuilder creates a builder reading from v.
func NewBuilder(v *viper.Viper) *Builder {
	if v == nil {
		v = viper.GetViper()
	}
	return &Builder{v: v}
}

// WithProfile selects a preset applied after loading.
func (b *Builder) WithProfile(p Profile) *Builder {
	b.profile = p
	return b
}

// WithTargets records files named on the command line.
func (b *Builder) WithTargets(targets []string) *Builder {
	b.targets = append([]string(nil), targets...)
	return b
}

// AddValidator adds a custom validation function
func (b *Builder) AddValidator(validator ValidatorFunc) *Builder {
	b.validators = append(b.validators, validator)
	return b
}

// Build loads, applies the profile and runs every validator. Profile
// values are registered as defaults, so anything set in the file, the
// environment or a flag still wins.
func (b *Builder) Build() (*Config, error) {
	SetDefaults(b.v)
	profileDefaults(b.v, b.profile)

	cfg, err := decode(b.v)
	if err != nil {
		return nil, err
	}
	cfg.TargetFiles = b.targets

	for _, validator := range b.validators {
		if err := validator(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return cfg, nil
}

// Decode loads the configuration with the profile applied but without
// validating it, for reporting every problem with ValidateConfigWithDetails.
func (b *Builder) Decode() (*Config, error) {
	SetDefaults(b.v)
	profileDefaults(b.v, b.profile)
	cfg, err := unmarshal(b.v)
	if err != nil {
		return nil, err
	}
	cfg.TargetFiles = b.targets
	return cfg, nil
}

func profileDefaults(v *viper.Viper, p Profile) {
	switch p {
	case ProfileDevelopment:
		v.SetDefault("merger.minify", false)
		v.SetDefault("merger.preserve_comments", true)
		v.SetDefault("merger.source_maps", true)
	case ProfileProduction:
		v.SetDefault("merger.minify", true)
		v.SetDefault("merger.preserve_comments", false)
		v.SetDefault("merger.source_maps", false)
		v.SetDefault("compiler.parallel", true)
	}
}
