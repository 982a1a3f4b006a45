// Package config provides configuration loading and validation for
// goresolv.
//
// Configuration is loaded with the following priority (highest to
// lowest):
//  1. Command-line flags (not handled here, see cmd/resolve/main.go)
//  2. Environment variables (GORESOLV_* prefix)
//  3. YAML config file (if specified with --config)
//  4. Hardcoded defaults
//
// All configuration is validated during Load() to ensure correctness
// early.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/jroosing/goresolv/internal/helpers"
)

// initConfig sets up the config loader with defaults, env binding, and
// config file.
func initConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("GORESOLV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("upstreams", []string{})

	v.SetDefault("worker_threads", 32)
	v.SetDefault("udp_buffer_bytes", 8192)
	v.SetDefault("positive_cache_cap_s", 4096)
	v.SetDefault("negative_cache_cap_s", 4096)
	v.SetDefault("max_cname_chain", 16)
	v.SetDefault("use_ipv4", true)
	v.SetDefault("use_ipv6", false)
	v.SetDefault("root_hints_path", "")
	v.SetDefault("dns_port", "53")
	v.SetDefault("query_timeout_ms", 5000)

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.structured", false)
	v.SetDefault("logging.structured_format", "json")
	v.SetDefault("logging.include_pid", false)
	v.SetDefault("logging.extra_fields", map[string]string{})

	v.SetDefault("statusapi.enabled", false)
	v.SetDefault("statusapi.host", "127.0.0.1")
	v.SetDefault("statusapi.port", 8080)
	v.SetDefault("statusapi.api_key", "")
}

func loadFromSource(configPath string) (*Config, error) {
	v, err := initConfig(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	loadResolverConfig(v, cfg)
	loadLoggingConfig(v, cfg)
	loadStatusAPIConfig(v, cfg)

	if err := normalizeConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadResolverConfig(v *viper.Viper, cfg *Config) {
	cfg.Upstreams = getStringSliceOrSplit(v, "upstreams")
	cfg.WorkerThreads = v.GetInt("worker_threads")
	cfg.UDPBufferBytes = v.GetInt("udp_buffer_bytes")
	cfg.PositiveCacheCapS = v.GetInt("positive_cache_cap_s")
	cfg.NegativeCacheCapS = v.GetInt("negative_cache_cap_s")
	cfg.MaxCNAMEChain = v.GetInt("max_cname_chain")
	cfg.UseIPv4 = v.GetBool("use_ipv4")
	cfg.UseIPv6 = v.GetBool("use_ipv6")
	cfg.RootHintsPath = v.GetString("root_hints_path")
	cfg.DNSPort = v.GetString("dns_port")
	cfg.QueryTimeoutMS = v.GetInt("query_timeout_ms")
}

func loadLoggingConfig(v *viper.Viper, cfg *Config) {
	cfg.Logging.Level = strings.ToUpper(v.GetString("logging.level"))
	cfg.Logging.Structured = v.GetBool("logging.structured")
	cfg.Logging.StructuredFormat = v.GetString("logging.structured_format")
	cfg.Logging.IncludePID = v.GetBool("logging.include_pid")
	cfg.Logging.ExtraFields = v.GetStringMapString("logging.extra_fields")
}

func loadStatusAPIConfig(v *viper.Viper, cfg *Config) {
	cfg.StatusAPI.Enabled = v.GetBool("statusapi.enabled")
	cfg.StatusAPI.Host = v.GetString("statusapi.host")
	cfg.StatusAPI.Port = v.GetInt("statusapi.port")
	cfg.StatusAPI.APIKey = v.GetString("statusapi.api_key")
}

// getStringSliceOrSplit handles both slice and comma-separated string
// values, the same way the env var binding for a slice key needs to for
// Viper's automatic env support.
func getStringSliceOrSplit(v *viper.Viper, key string) []string {
	// A plain string value (as an env var arrives) is split on commas
	// below; GetStringSlice would split it on whitespace instead.
	_, isString := v.Get(key).(string)
	if slice := v.GetStringSlice(key); !isString && len(slice) > 0 {
		result := make([]string, 0, len(slice))
		for _, s := range slice {
			s = strings.TrimSpace(s)
			if s != "" {
				result = append(result, s)
			}
		}
		return result
	}
	if s := v.GetString(key); s != "" {
		parts := strings.Split(s, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return nil
}

// normalizeConfig validates and normalizes the configuration.
func normalizeConfig(cfg *Config) error {
	if cfg.WorkerThreads <= 0 {
		cfg.WorkerThreads = 32
	}
	if cfg.MaxCNAMEChain <= 0 {
		cfg.MaxCNAMEChain = 16
	}
	if cfg.UDPBufferBytes <= 0 {
		cfg.UDPBufferBytes = 8192
	}
	cfg.UDPBufferBytes = helpers.ClampInt(cfg.UDPBufferBytes, 512, 65535)
	if !cfg.UseIPv4 && !cfg.UseIPv6 {
		cfg.UseIPv4 = true
	}
	if cfg.DNSPort == "" {
		cfg.DNSPort = "53"
	}
	if cfg.QueryTimeoutMS <= 0 {
		cfg.QueryTimeoutMS = 5000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.StructuredFormat == "" {
		cfg.Logging.StructuredFormat = "json"
	}
	if cfg.Logging.ExtraFields == nil {
		cfg.Logging.ExtraFields = map[string]string{}
	}

	if cfg.StatusAPI.Host == "" {
		cfg.StatusAPI.Host = "127.0.0.1"
	}
	if cfg.StatusAPI.Enabled {
		if cfg.StatusAPI.Port <= 0 || cfg.StatusAPI.Port > 65535 {
			return errors.New("statusapi.port must be 1..65535")
		}
	}

	return nil
}
