package config

import (
	"fmt"
	"net"

	"github.com/dbehnke/dect-nwk/pkg/access"
)

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.FP.FPN >= 1<<17 {
		return fmt.Errorf("fp.fpn must fit in 17 bits")
	}
	if cfg.FP.PLI > 36 {
		return fmt.Errorf("fp.pli must be at most 36")
	}
	if cfg.PP.PSN >= 1<<20 {
		return fmt.Errorf("pp.psn must fit in 20 bits")
	}

	if cfg.LCE.MaxQueue <= 0 {
		return fmt.Errorf("lce.max_queue must be positive")
	}
	if cfg.LCE.ReleaseTimeout <= 0 || cfg.LCE.PartialReleaseTimeout <= 0 || cfg.LCE.PageTimeout <= 0 {
		return fmt.Errorf("lce timeouts must be positive")
	}
	if cfg.LCE.PageRetries < 0 {
		return fmt.Errorf("lce.page_retries must not be negative")
	}
	if cfg.MM.TimeoutScale < 0 {
		return fmt.Errorf("mm.timeout_scale must not be negative")
	}
	if cfg.CC.ReleaseTimeout < 0 {
		return fmt.Errorf("cc.release_timeout must not be negative")
	}

	if cfg.Registration.Enabled {
		if _, err := access.ParseACL(cfg.Registration.ACL); err != nil {
			return fmt.Errorf("registration.acl: %w", err)
		}
		if cfg.Registration.ExtensionStart <= 0 {
			return fmt.Errorf("registration.extension_start must be positive")
		}
	}

	for key, addr := range map[string]string{
		"network.listen":       cfg.Network.Listen,
		"network.page_address": cfg.Network.PageAddress,
		"network.page_listen":  cfg.Network.PageListen,
		"pp.fp_address":        cfg.PP.FPAddress,
	} {
		if addr == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	if cfg.Web.Enabled {
		if cfg.Web.Port <= 0 || cfg.Web.Port > 65535 {
			return fmt.Errorf("web.port must be between 1 and 65535")
		}
		if cfg.Web.AuthRequired && (cfg.Web.Username == "" || cfg.Web.Password == "") {
			return fmt.Errorf("web.username and web.password are required when auth is enabled")
		}
	}

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	}

	if cfg.Metrics.Prometheus.Enabled {
		if cfg.Metrics.Prometheus.Port <= 0 || cfg.Metrics.Prometheus.Port > 65535 {
			return fmt.Errorf("metrics.prometheus.port must be between 1 and 65535")
		}
	}

	return nil
}
