package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	FP           FPConfig           `mapstructure:"fp"`
	PP           PPConfig           `mapstructure:"pp"`
	LCE          LCEConfig          `mapstructure:"lce"`
	MM           MMConfig           `mapstructure:"mm"`
	CC           CCConfig           `mapstructure:"cc"`
	Registration RegistrationConfig `mapstructure:"registration"`
	Network      NetworkConfig      `mapstructure:"network"`
	Web          WebConfig          `mapstructure:"web"`
	MQTT         MQTTConfig         `mapstructure:"mqtt"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Database     DatabaseConfig     `mapstructure:"database"`
}

// ServerConfig holds server identification
type ServerConfig struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

// FPConfig identifies the fixed part. The ARI is class A.
type FPConfig struct {
	EMC uint16 `mapstructure:"emc"` // equipment manufacturer code
	FPN uint32 `mapstructure:"fpn"` // fixed part number, 17 bits
	// PLI is the PARK length indicator handed out with access rights
	PLI          uint8 `mapstructure:"pli"`
	LocationArea uint8 `mapstructure:"location_area"`
}

// PPConfig identifies a portable and the fixed part it talks to
type PPConfig struct {
	EMC       uint16 `mapstructure:"emc"`
	PSN       uint32 `mapstructure:"psn"`
	FPAddress string `mapstructure:"fp_address"`
	// Extension is dialled by the outgoing call test of the PP tool
	Extension string `mapstructure:"extension"`
}

// LCEConfig holds data link parameters
type LCEConfig struct {
	MaxQueue              int           `mapstructure:"max_queue"`
	ReleaseTimeout        time.Duration `mapstructure:"release_timeout"`
	PartialReleaseTimeout time.Duration `mapstructure:"partial_release_timeout"`
	PageTimeout           time.Duration `mapstructure:"page_timeout"`
	PageRetries           int           `mapstructure:"page_retries"`
}

// MMConfig holds mobility management parameters
type MMConfig struct {
	TimeoutScale float64 `mapstructure:"timeout_scale"`
}

// CCConfig holds call control parameters
type CCConfig struct {
	ReleaseTimeout time.Duration `mapstructure:"release_timeout"`
}

// RegistrationConfig controls which portables may subscribe
type RegistrationConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ACL            string        `mapstructure:"acl"`
	ExtensionStart int           `mapstructure:"extension_start"`
	AssignTPUI     bool          `mapstructure:"assign_tpui"`
	DetachTimeout  time.Duration `mapstructure:"detach_timeout"`
}

// NetworkConfig holds the bearer transport addresses
type NetworkConfig struct {
	// Listen is the TCP address data links are accepted on
	Listen string `mapstructure:"listen"`
	// PageAddress is the UDP address pages are sent to
	PageAddress string `mapstructure:"page_address"`
	// PageListen is the UDP address a PP receives pages on
	PageListen string `mapstructure:"page_listen"`
}

// WebConfig holds web dashboard configuration
type WebConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	AuthRequired bool   `mapstructure:"auth_required"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
}

// MQTTConfig holds MQTT client configuration
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	QoS         byte   `mapstructure:"qos"`
	Retained    bool   `mapstructure:"retained"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig holds Prometheus metrics configuration
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// DatabaseConfig holds the portable registry location
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
	// CallRetention is how long call log entries are kept, zero keeps
	// them forever
	CallRetention time.Duration `mapstructure:"call_retention"`
}

// BindFlags binds command line flags to configuration keys. A flag named
// "log-level" overrides "logging.level".
func BindFlags(fs *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		f := fs.Lookup(flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q", flag)
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %q: %w", flag, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("/etc/dect-nwk")
	}

	// DECT_LCE_PAGE_TIMEOUT overrides lce.page_timeout
	viper.SetEnvPrefix("DECT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is OK, use defaults
		} else if os.IsNotExist(err) {
			// File explicitly specified but doesn't exist - that's also OK
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.name", "DECT-NWK")
	viper.SetDefault("server.description", "Go DECT fixed part")

	viper.SetDefault("fp.emc", 0x08ae)
	viper.SetDefault("fp.fpn", 0x1d2e3)
	viper.SetDefault("fp.pli", 31)
	viper.SetDefault("fp.location_area", 0)

	viper.SetDefault("pp.emc", 0x08ae)
	viper.SetDefault("pp.psn", 0x83d1e)
	viper.SetDefault("pp.fp_address", "127.0.0.1:6810")

	viper.SetDefault("lce.max_queue", 16)
	viper.SetDefault("lce.release_timeout", "5s")
	viper.SetDefault("lce.partial_release_timeout", "2s")
	viper.SetDefault("lce.page_timeout", "3s")
	viper.SetDefault("lce.page_retries", 3)

	viper.SetDefault("mm.timeout_scale", 1.0)
	viper.SetDefault("cc.release_timeout", "20s")

	viper.SetDefault("registration.enabled", true)
	viper.SetDefault("registration.acl", "PERMIT:ALL")
	viper.SetDefault("registration.extension_start", 11)
	viper.SetDefault("registration.assign_tpui", true)
	viper.SetDefault("registration.detach_timeout", "1h")

	viper.SetDefault("network.listen", "0.0.0.0:6810")
	viper.SetDefault("network.page_address", "255.255.255.255:6811")
	viper.SetDefault("network.page_listen", "0.0.0.0:6811")

	viper.SetDefault("web.enabled", true)
	viper.SetDefault("web.host", "0.0.0.0")
	viper.SetDefault("web.port", 8080)
	viper.SetDefault("web.auth_required", false)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.topic_prefix", "dect/nwk")
	viper.SetDefault("mqtt.client_id", "dect-nwk")
	viper.SetDefault("mqtt.qos", 1)
	viper.SetDefault("mqtt.retained", false)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 7)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.prometheus.enabled", true)
	viper.SetDefault("metrics.prometheus.port", 9090)
	viper.SetDefault("metrics.prometheus.path", "/metrics")

	viper.SetDefault("database.path", "dect-nwk.db")
	viper.SetDefault("database.call_retention", "720h")
}
