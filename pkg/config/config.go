// Package config loads runtime configuration from environment
// variables (GCU_ prefix) and an optional YAML file, with update-safe
// defaults: a bad value falls back to its default with a warning
// rather than failing startup.
package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Defaults.
const (
	DefaultCapability   = "np_document_triage"
	DefaultThreshold    = 0.75
	DefaultManifestPath = "manifests/doc_triage/manifest.json"
	DefaultOutputsDir   = "outputs"
	DefaultListen       = ":8000"
	DefaultDBType       = "sqlite"
	DefaultDBDSN        = "gcu.db"
)

// Config is the effective runtime configuration.
type Config struct {
	CapabilityName      string  `json:"capability_name"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	ManifestPath        string  `json:"manifest_path"`
	KillSwitch          bool    `json:"kill_switch"`
	OutputsDir          string  `json:"outputs_dir"`
	PreapprovedCreate   bool    `json:"preapproved_create"`
	Listen              string  `json:"listen"`
	DBType              string  `json:"db_type"`
	DBDSN               string  `json:"db_dsn"`
	StateDir            string  `json:"state_dir"`

	// JournalRetentionDays prunes run output directories older than
	// this many days. 0 keeps everything.
	JournalRetentionDays int `json:"journal_retention_days"`

	// ConfigFile is the file the values were read from, empty when
	// env-only. The kill-switch watcher re-reads it on change.
	ConfigFile string `json:"config_file,omitempty"`
}

var knownKeys = map[string]bool{
	"capability_name":        true,
	"confidence_threshold":   true,
	"manifest_path":          true,
	"kill_switch":            true,
	"outputs_dir":            true,
	"preapproved_create":     true,
	"listen":                 true,
	"db_type":                true,
	"db_dsn":                 true,
	"state_dir":              true,
	"journal_retention_days": true,
}

func newViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("capability_name", DefaultCapability)
	v.SetDefault("confidence_threshold", DefaultThreshold)
	v.SetDefault("manifest_path", DefaultManifestPath)
	v.SetDefault("kill_switch", false)
	v.SetDefault("outputs_dir", DefaultOutputsDir)
	v.SetDefault("preapproved_create", false)
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("db_type", DefaultDBType)
	v.SetDefault("db_dsn", DefaultDBDSN)
	v.SetDefault("state_dir", "")
	v.SetDefault("journal_retention_days", 0)

	v.SetEnvPrefix("GCU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	return v, nil
}

// Load builds the configuration. configFile may be empty. Unknown keys
// in the file are ignored with a warning; an unparseable
// confidence_threshold falls back to the default with a warning.
func Load(configFile string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	v, err := newViper(configFile)
	if err != nil {
		return nil, err
	}

	for _, key := range v.AllKeys() {
		if !knownKeys[key] {
			logger.Warn("ignoring unrecognized config key", "key", key)
		}
	}

	cfg := &Config{
		CapabilityName:       strings.TrimSpace(v.GetString("capability_name")),
		ManifestPath:         strings.TrimSpace(v.GetString("manifest_path")),
		KillSwitch:           v.GetBool("kill_switch"),
		OutputsDir:           v.GetString("outputs_dir"),
		PreapprovedCreate:    v.GetBool("preapproved_create"),
		Listen:               v.GetString("listen"),
		DBType:               v.GetString("db_type"),
		DBDSN:                v.GetString("db_dsn"),
		StateDir:             v.GetString("state_dir"),
		JournalRetentionDays: v.GetInt("journal_retention_days"),
		ConfigFile:           configFile,
	}
	cfg.ConfidenceThreshold = parseThreshold(v.GetString("confidence_threshold"), logger)

	switch cfg.DBType {
	case "sqlite", "postgres", "mysql":
	default:
		return nil, fmt.Errorf("unsupported db_type %q (sqlite, postgres, mysql)", cfg.DBType)
	}
	return cfg, nil
}

func parseThreshold(raw string, logger *slog.Logger) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		logger.Warn("invalid confidence_threshold, using default",
			"value", raw, "default", DefaultThreshold)
		return DefaultThreshold
	}
	return f
}
