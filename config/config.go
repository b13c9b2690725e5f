package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pegswap-experiment/pegswap/internal/journal"
	"github.com/pegswap-experiment/pegswap/internal/network"
)

// Config holds all configurable parameters for the application
type Config struct {
	Node    NodeConfig    `mapstructure:"node"`
	Genesis GenesisConfig `mapstructure:"genesis"`
	Journal JournalConfig `mapstructure:"journal"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
	Client  ClientConfig  `mapstructure:"client"`
}

type NodeConfig struct {
	Listen string `mapstructure:"listen"`
	// DataDir holds the leveldb world state. Empty keeps state in memory.
	DataDir        string        `mapstructure:"data_dir"`
	CommitInterval time.Duration `mapstructure:"commit_interval"`
	ChainID        uint64        `mapstructure:"chain_id"`
	// Dev enables the faucet.
	Dev bool `mapstructure:"dev"`
}

type GenesisConfig struct {
	Path string `mapstructure:"path"`
}

type JournalConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ClientConfig struct {
	URL            string `mapstructure:"url"`
	Caller         string `mapstructure:"caller"`
	network.Config `mapstructure:",squash"`
}

// EnvPrefix prefixes every environment override, e.g. PEGSWAP_NODE_LISTEN.
const EnvPrefix = "PEGSWAP"

var defaults = map[string]any{
	"node.listen":          ":8545",
	"node.data_dir":        "",
	"node.commit_interval": 3 * time.Second,
	"node.chain_id":        1337,
	"node.dev":             false,
	"genesis.path":         "genesis.yaml",
	"journal.backend":      journal.BackendMemory,
	"journal.dsn":          "",
	"metrics.enabled":      true,
	"log.level":            "info",
	"log.format":           "text",
	"client.url":           "http://localhost:8545",
	"client.caller":        "",
	"client.timeout":       10 * time.Second,
	"client.delay_enabled": false,
	"client.min_delay_ms":  0,
	"client.max_delay_ms":  0,
}

// FlagKeys maps command line flag names to config keys. Load binds every flag
// of this table that the given flag set defines.
var FlagKeys = map[string]string{
	"listen":          "node.listen",
	"data-dir":        "node.data_dir",
	"commit-interval": "node.commit_interval",
	"chain-id":        "node.chain_id",
	"dev":             "node.dev",
	"genesis":         "genesis.path",
	"journal-backend": "journal.backend",
	"journal-dsn":     "journal.dsn",
	"metrics":         "metrics.enabled",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"url":             "client.url",
	"caller":          "client.caller",
	"timeout":         "client.timeout",
}

// Load layers defaults, the config file, PEGSWAP_* environment variables and
// flags, in increasing precedence. With an empty path, pegswap.yaml is looked
// up in the working directory and may be absent.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pegswap")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads configuration without flags.
func LoadDefault() (*Config, error) {
	return Load("", nil)
}

// Validate rejects settings the node cannot run with.
func (c *Config) Validate() error {
	if c.Node.CommitInterval <= 0 {
		return fmt.Errorf("node.commit_interval must be positive, got %s", c.Node.CommitInterval)
	}
	switch strings.ToLower(c.Journal.Backend) {
	case journal.BackendMemory, journal.BackendSQLite:
	case journal.BackendPostgres:
		if c.Journal.DSN == "" {
			return errors.New("journal.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown journal.backend %q", c.Journal.Backend)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json", "logfmt":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}
