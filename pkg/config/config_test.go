package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func TestLoad_UsesDefaults_WhenNoFile(t *testing.T) {
	// Reset viper to avoid cross-test pollution
	viper.Reset()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.FP.EMC != 0x08ae {
		t.Errorf("expected FP.EMC default 0x08ae, got %#x", cfg.FP.EMC)
	}
	if cfg.LCE.PageTimeout != 3*time.Second {
		t.Errorf("expected LCE.PageTimeout default 3s, got %s", cfg.LCE.PageTimeout)
	}
	if cfg.LCE.PartialReleaseTimeout != 2*time.Second {
		t.Errorf("expected LCE.PartialReleaseTimeout default 2s, got %s", cfg.LCE.PartialReleaseTimeout)
	}
	if cfg.CC.ReleaseTimeout != 20*time.Second {
		t.Errorf("expected CC.ReleaseTimeout default 20s, got %s", cfg.CC.ReleaseTimeout)
	}
	if !cfg.Registration.Enabled || cfg.Registration.ACL != "PERMIT:ALL" {
		t.Errorf("unexpected registration defaults %+v", cfg.Registration)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected Web.Port default 8080, got %d", cfg.Web.Port)
	}
	if cfg.Logging.Level == "" {
		t.Errorf("expected Logging.Level to be set (default info)")
	}
	if cfg.Metrics.Prometheus.Port != 9090 {
		t.Errorf("expected Prometheus.Port default 9090, got %d", cfg.Metrics.Prometheus.Port)
	}
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	viper.Reset()

	path := filepath.Join(t.TempDir(), "dect.yaml")
	data := []byte(`
fp:
  emc: 0x0123
  fpn: 42
lce:
  page_timeout: 500ms
registration:
  acl: "DENY:0123*"
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DECT_WEB_PORT", "8181")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.FP.EMC != 0x0123 || cfg.FP.FPN != 42 {
		t.Errorf("unexpected fp section %+v", cfg.FP)
	}
	if cfg.LCE.PageTimeout != 500*time.Millisecond {
		t.Errorf("expected page timeout 500ms, got %s", cfg.LCE.PageTimeout)
	}
	if cfg.Registration.ACL != "DENY:0123*" {
		t.Errorf("unexpected acl %q", cfg.Registration.ACL)
	}
	if cfg.Web.Port != 8181 {
		t.Errorf("expected environment web port 8181, got %d", cfg.Web.Port)
	}
}

func TestBindFlags(t *testing.T) {
	viper.Reset()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("log-level", "info", "")
	if err := fs.Parse([]string{"--log-level=debug"}); err != nil {
		t.Fatal(err)
	}
	if err := BindFlags(fs, map[string]string{"log-level": "logging.level"}); err != nil {
		t.Fatalf("BindFlags returned error: %v", err)
	}
	if err := BindFlags(fs, map[string]string{"missing": "x"}); err == nil {
		t.Error("expected error for unknown flag")
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected flag level debug, got %s", cfg.Logging.Level)
	}
}

func validConfig() *Config {
	return &Config{
		LCE: LCEConfig{
			MaxQueue:              16,
			ReleaseTimeout:        5 * time.Second,
			PartialReleaseTimeout: 2 * time.Second,
			PageTimeout:           3 * time.Second,
		},
		Registration: RegistrationConfig{Enabled: true, ACL: "PERMIT:ALL", ExtensionStart: 11},
	}
}

func TestValidate_Errors(t *testing.T) {
	if err := validate(validConfig()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"fpn too wide", func(c *Config) { c.FP.FPN = 1 << 17 }},
		{"psn too wide", func(c *Config) { c.PP.PSN = 1 << 20 }},
		{"empty queue", func(c *Config) { c.LCE.MaxQueue = 0 }},
		{"zero page timeout", func(c *Config) { c.LCE.PageTimeout = 0 }},
		{"bad acl", func(c *Config) { c.Registration.ACL = "ALLOW:1" }},
		{"bad listen address", func(c *Config) { c.Network.Listen = "6810" }},
		{"web port out of range", func(c *Config) { c.Web = WebConfig{Enabled: true, Port: 70000} }},
		{"web auth without password", func(c *Config) {
			c.Web = WebConfig{Enabled: true, Port: 8080, AuthRequired: true, Username: "admin"}
		}},
		{"mqtt without broker", func(c *Config) { c.MQTT = MQTTConfig{Enabled: true} }},
		{"mqtt bad qos", func(c *Config) { c.MQTT = MQTTConfig{Enabled: true, Broker: "tcp://x:1883", QoS: 3} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := validate(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
