package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mdns-bridge.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
interfaces:
  - name: eth0
  - name: eth1
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.Options.Filtering {
		t.Error("filtering should default to true")
	}
	if cfg.Options.WarnUnsupported {
		t.Error("warn-unsupported should default to false")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("logging level = %q, want info", cfg.Logging.Level)
	}
	for i := range cfg.Interfaces {
		if !cfg.Interfaces[i].IPv4Enabled() || !cfg.Interfaces[i].IPv6Enabled() {
			t.Errorf("interface %d families should default to enabled", i)
		}
	}
}

func TestLoadConfig_FullExample(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, Example()))
	if err != nil {
		t.Fatalf("the shipped example must validate: %v", err)
	}
	if len(cfg.Interfaces) != 3 {
		t.Errorf("interfaces = %d, want 3", len(cfg.Interfaces))
	}
	if cfg.Interfaces[1].IPv6Enabled() {
		t.Error("eth1 should have IPv6 disabled")
	}
	if cfg.Interfaces[1].FilterOut.Empty() {
		t.Error("eth1 should carry an outbound filter")
	}
	if l, err := cfg.Filter.Build(); err != nil || l == nil {
		t.Errorf("global filter should build: %v", err)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "no interfaces",
			content: `options: {filtering: true}`,
		},
		{
			name: "single interface",
			content: `
interfaces:
  - name: eth0
`,
		},
		{
			name: "duplicate interface",
			content: `
interfaces:
  - name: eth0
  - name: eth0
`,
		},
		{
			name: "unnamed interface",
			content: `
interfaces:
  - name: eth0
  - ipv6: false
`,
		},
		{
			name: "allow and deny in one filter",
			content: `
interfaces:
  - name: eth0
  - name: eth1
filter:
  allow: [_ipp]
  deny: [_ssh]
`,
		},
		{
			name: "filters with filtering disabled",
			content: `
options:
  filtering: false
interfaces:
  - name: eth0
  - name: eth1
    filter-out:
      deny: [_ssh]
`,
		},
		{
			name: "global filter with filtering disabled",
			content: `
options:
  filtering: false
interfaces:
  - name: eth0
  - name: eth1
filter:
  deny: [_ssh]
`,
		},
		{
			name: "invalid filter name",
			content: `
interfaces:
  - name: eth0
  - name: eth1
filter:
  allow: ["_ipp..local"]
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.content)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
