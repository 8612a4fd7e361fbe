// Package config handles YAML configuration file parsing and
// validation. It defines the bridged interface set, filter policies,
// and metrics and logging options.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joshuafuller/mdns-bridge/internal/errors"
	"github.com/joshuafuller/mdns-bridge/internal/filter"
)

type Config struct {
	Options    OptionsConfig     `yaml:"options"`
	Interfaces []InterfaceConfig `yaml:"interfaces"`
	Filter     FilterConfig      `yaml:"filter"`
	Metrics    MetricsConfig     `yaml:"metrics"`
	Logging    LoggingConfig     `yaml:"logging"`
}

type OptionsConfig struct {
	Filtering       bool `yaml:"filtering"`        // disable for blind forwarding
	WarnUnsupported bool `yaml:"warn-unsupported"` // log unsupported record types
}

type InterfaceConfig struct {
	Name      string       `yaml:"name"`
	IPv4      *bool        `yaml:"ipv4"` // default true
	IPv6      *bool        `yaml:"ipv6"` // default true
	FilterIn  FilterConfig `yaml:"filter-in"`
	FilterOut FilterConfig `yaml:"filter-out"`
}

// IPv4Enabled reports whether the interface bridges IPv4 (the default).
func (ic *InterfaceConfig) IPv4Enabled() bool {
	return ic.IPv4 == nil || *ic.IPv4
}

// IPv6Enabled reports whether the interface bridges IPv6 (the default).
func (ic *InterfaceConfig) IPv6Enabled() bool {
	return ic.IPv6 == nil || *ic.IPv6
}

// FilterConfig is one filter policy: a list of domain-name fragments
// with allow or deny semantics. Allow and deny are exclusive.
type FilterConfig struct {
	Allow []string `yaml:"allow"`
	Deny  []string `yaml:"deny"`
}

// Empty reports whether no policy is configured.
func (fc *FilterConfig) Empty() bool {
	return len(fc.Allow) == 0 && len(fc.Deny) == 0
}

// Build compiles the policy into a filter list, or nil when empty.
func (fc *FilterConfig) Build() (*filter.List, error) {
	switch {
	case fc.Empty():
		return nil, nil
	case len(fc.Allow) > 0 && len(fc.Deny) > 0:
		return nil, &errors.ConfigError{
			Section: "filter",
			Message: "allow and deny are exclusive within one filter",
		}
	case len(fc.Allow) > 0:
		return filter.NewList(filter.ModeAllow, fc.Allow)
	default:
		return filter.NewList(filter.ModeDeny, fc.Deny)
	}
}

type MetricsConfig struct {
	PrometheusEndpoint string `yaml:"prometheus_endpoint"`
	OTELEndpoint       string `yaml:"otel_endpoint"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LoadConfig loads, parses, and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{
		Options: OptionsConfig{
			Filtering: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate enforces the startup invariants. Violations are fatal: the
// bridge never starts with a partially usable configuration.
func (c *Config) Validate() error {
	if len(c.Interfaces) == 0 {
		return &errors.ConfigError{
			Section: "interfaces",
			Message: "no interfaces configured",
		}
	}
	if len(c.Interfaces) < 2 {
		return &errors.ConfigError{
			Section: "interfaces",
			Message: "bridging requires at least two interfaces",
		}
	}

	seen := make(map[string]bool, len(c.Interfaces))
	for i := range c.Interfaces {
		ic := &c.Interfaces[i]
		if ic.Name == "" {
			return &errors.ConfigError{
				Section: "interfaces",
				Message: "interface with no name",
			}
		}
		if seen[ic.Name] {
			return &errors.ConfigError{
				Section: "interfaces",
				Message: fmt.Sprintf("duplicate interface %q", ic.Name),
			}
		}
		seen[ic.Name] = true

		if !c.Options.Filtering && (!ic.FilterIn.Empty() || !ic.FilterOut.Empty()) {
			return &errors.ConfigError{
				Section: "interfaces",
				Message: fmt.Sprintf("interface %q has filters but filtering is disabled", ic.Name),
			}
		}

		if _, err := ic.FilterIn.Build(); err != nil {
			return &errors.ConfigError{
				Section: "interfaces",
				Message: fmt.Sprintf("interface %q filter-in", ic.Name),
				Err:     err,
			}
		}
		if _, err := ic.FilterOut.Build(); err != nil {
			return &errors.ConfigError{
				Section: "interfaces",
				Message: fmt.Sprintf("interface %q filter-out", ic.Name),
				Err:     err,
			}
		}
	}

	if !c.Options.Filtering && !c.Filter.Empty() {
		return &errors.ConfigError{
			Section: "filter",
			Message: "global filter configured but filtering is disabled",
		}
	}
	if _, err := c.Filter.Build(); err != nil {
		return &errors.ConfigError{
			Section: "filter",
			Message: "global filter",
			Err:     err,
		}
	}

	return nil
}

// Example returns a YAML example config.
func Example() string {
	return `# mdns-bridge configuration

options:
  filtering: true          # decode and filter packets (disable for blind forwarding)
  warn-unsupported: false  # log a line for unsupported record types

interfaces:
  - name: eth0
  - name: eth1
    ipv6: false
    # Keep SSH advertisements off this segment
    filter-out:
      deny: [_ssh, _sftp-ssh]
  - name: eth2
    # Only accept printer advertisements from this segment
    filter-in:
      allow: [_ipp, _ipps]

# Global inbound filter applied on every interface (allow XOR deny)
filter:
  deny: [_companion-link]

metrics:
  prometheus_endpoint: "0.0.0.0:9153"
  otel_endpoint: ""

logging:
  level: info
`
}
