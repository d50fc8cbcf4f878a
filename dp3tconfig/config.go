// SPDX-FileCopyrightText: (C) 2020 EPFL
// SPDX-License-Identifier: Apache-2.0

// Package dp3tconfig centralizes the handful of tunables the protocol
// constants deliberately do not cover: retention override, filter sizing,
// and so on. Loaded once per process via viper.
package dp3tconfig

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/DP-3T/reference-implementation/dp3tconst"
)

// Config holds the tunables a deployment may override. The protocol
// constants in dp3tconst (epoch length, EphID size, broadcast key) are
// wire-format invariants and are not configurable here.
type Config struct {
	RetentionDays  int                    `mapstructure:"retention_days"`
	FilterHeadroom float64                `mapstructure:"filter_headroom"`
	FilterFPR      float64                `mapstructure:"filter_fpr"`
	FilterOptions  map[string]interface{} `mapstructure:"filter_options"`
}

// FilterOptions is the typed shape of a MembershipFilter implementation's
// backend-specific settings. A deployment that swaps in its own filter
// supplies whatever keys that implementation understands under
// Config.FilterOptions; DecodeFilterOptions turns the raw map into this
// struct.
type FilterOptions struct {
	// CapacityOverride is decoded from the capacity_override key. No code
	// in this module reads it: batch.NewUnlinkableBatch always sizes the
	// filter from the item count and headroom.
	CapacityOverride int `mapstructure:"capacity_override"`
}

// DecodeFilterOptions decodes raw (as loaded from Config.FilterOptions)
// into a FilterOptions value, the same free-form-map-to-typed-struct
// pattern used to decode a service plugin's parameters.
func DecodeFilterOptions(raw map[string]interface{}) (FilterOptions, error) {
	var opts FilterOptions
	if raw == nil {
		return opts, nil
	}
	if err := mapstructure.Decode(raw, &opts); err != nil {
		return FilterOptions{}, fmt.Errorf("decoding filter options: %w", err)
	}
	return opts, nil
}

// Default returns the module's built-in defaults.
func Default() Config {
	return Config{
		RetentionDays:  dp3tconst.RetentionPeriod,
		FilterHeadroom: dp3tconst.DefaultFilterHeadroom,
		FilterFPR:      dp3tconst.CuckooFPR,
	}
}

// Load reads configuration from path (if non-empty) and environment
// variables prefixed DP3T_, falling back to Default for anything unset.
// A zero Config value from an empty or partial file is filled in with
// defaults field by field, not wholesale, so a deployment can override
// just one tunable.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DP3T")
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("retention_days", def.RetentionDays)
	v.SetDefault("filter_headroom", def.FilterHeadroom)
	v.SetDefault("filter_fpr", def.FilterFPR)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.RetentionDays <= 0 {
		return fmt.Errorf("retention_days must be positive, got %d", c.RetentionDays)
	}
	if c.FilterHeadroom < 1.0 {
		return fmt.Errorf("filter_headroom must be at least 1.0, got %v", c.FilterHeadroom)
	}
	if c.FilterFPR <= 0 || c.FilterFPR >= 1 {
		return fmt.Errorf("filter_fpr must be in (0, 1), got %v", c.FilterFPR)
	}
	return nil
}
