// Package config provides configuration loading for goresolv using Viper.
// Configuration is loaded from YAML files with automatic environment
// variable binding.
//
// Environment variables use the GORESOLV_ prefix and underscore-separated
// keys:
//   - GORESOLV_UPSTREAMS -> upstreams (comma-separated)
//   - GORESOLV_WORKER_THREADS -> worker_threads
//   - GORESOLV_USE_IPV6 -> use_ipv6
package config

import (
	"os"
	"strings"
)

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level            string            `yaml:"level"             mapstructure:"level"             json:"level"`
	Structured       bool              `yaml:"structured"        mapstructure:"structured"        json:"structured"`
	StructuredFormat string            `yaml:"structured_format" mapstructure:"structured_format" json:"structured_format"`
	IncludePID       bool              `yaml:"include_pid"       mapstructure:"include_pid"       json:"include_pid"`
	ExtraFields      map[string]string `yaml:"extra_fields"      mapstructure:"extra_fields"      json:"extra_fields,omitempty"`
}

// StatusAPIConfig controls the optional HTTP introspection surface.
type StatusAPIConfig struct {
	Enabled bool   `yaml:"enabled"  mapstructure:"enabled"  json:"enabled"`
	Host    string `yaml:"host"     mapstructure:"host"     json:"host"`
	Port    int    `yaml:"port"     mapstructure:"port"     json:"port"`
	APIKey  string `yaml:"api_key"  mapstructure:"api_key"  json:"-"`
}

// Config is the root configuration structure.
type Config struct {
	// Upstreams are forwarding-mode servers, tried in listed order. An
	// empty list starts the resolver in recursive mode.
	Upstreams []string `yaml:"upstreams" mapstructure:"upstreams" json:"upstreams"`

	WorkerThreads     int    `yaml:"worker_threads"        mapstructure:"worker_threads"        json:"worker_threads"`
	UDPBufferBytes    int    `yaml:"udp_buffer_bytes"      mapstructure:"udp_buffer_bytes"      json:"udp_buffer_bytes"`
	PositiveCacheCapS int    `yaml:"positive_cache_cap_s"  mapstructure:"positive_cache_cap_s"  json:"positive_cache_cap_s"`
	NegativeCacheCapS int    `yaml:"negative_cache_cap_s"  mapstructure:"negative_cache_cap_s"  json:"negative_cache_cap_s"`
	MaxCNAMEChain     int    `yaml:"max_cname_chain"       mapstructure:"max_cname_chain"       json:"max_cname_chain"`
	UseIPv4           bool   `yaml:"use_ipv4"              mapstructure:"use_ipv4"              json:"use_ipv4"`
	UseIPv6           bool   `yaml:"use_ipv6"              mapstructure:"use_ipv6"              json:"use_ipv6"`
	RootHintsPath     string `yaml:"root_hints_path"       mapstructure:"root_hints_path"       json:"root_hints_path"`
	DNSPort           string `yaml:"dns_port"              mapstructure:"dns_port"              json:"dns_port"`
	QueryTimeoutMS    int    `yaml:"query_timeout_ms"      mapstructure:"query_timeout_ms"      json:"query_timeout_ms"`

	Logging   LoggingConfig   `yaml:"logging"   mapstructure:"logging"`
	StatusAPI StatusAPIConfig `yaml:"statusapi" mapstructure:"statusapi"`
}

// ResolveConfigPath determines the config file path from flag or
// environment.
func ResolveConfigPath(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if v := strings.TrimSpace(os.Getenv("GORESOLV_CONFIG")); v != "" {
		return v
	}
	return ""
}

// Load loads configuration from a YAML file with environment variable
// overrides. This is the main entry point for loading configuration.
//
// Configuration priority (highest to lowest):
//  1. Environment variables (GORESOLV_*)
//  2. Config file values
//  3. Default values
func Load(path string) (*Config, error) {
	return loadFromSource(path)
}
