// Package config loads runtime settings from an optional YAML file and the
// process environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigFile names the environment variable pointing at a YAML overlay.
const EnvConfigFile = "ALTCREDIT_CONFIG"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Knot      KnotConfig      `yaml:"knot"`
	Nessie    NessieConfig    `yaml:"nessie"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port         string        `yaml:"port"`
	BridgePort   string        `yaml:"bridge_port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type KnotConfig struct {
	APIKey            string         `yaml:"-"`
	ClientID          string         `yaml:"client_id"`
	BaseURL           string         `yaml:"base_url"`
	SyncURL           string         `yaml:"sync_url"`
	ExternalUserID    string         `yaml:"external_user_id"`
	SyncLimit         int            `yaml:"sync_limit"`
	RequestsPerSecond float64        `yaml:"requests_per_second"`
	Merchants         map[string]int `yaml:"merchants"`
}

// Configured reports whether credentials for the session API are present.
func (k KnotConfig) Configured() bool {
	return k.APIKey != "" && k.ClientID != ""
}

type NessieConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"-"`
	AccountID string `yaml:"account_id"`
}

type WarehouseConfig struct {
	ProjectID       string `yaml:"project_id"`
	DatasetID       string `yaml:"dataset_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

type ArchiveConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

type BridgeConfig struct {
	DefaultModel  string `yaml:"default_model"`
	SQLModel      string `yaml:"sql_model"`
	ShoppingModel string `yaml:"shopping_model"`
}

type JobsConfig struct {
	QueueSize  int `yaml:"queue_size"`
	Workers    int `yaml:"workers"`
	MaxRetries int `yaml:"max_retries"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultMerchants is the merchant name to Knot merchant id map pulled by
// the warehouse loader when no override is configured.
func DefaultMerchants() map[string]int {
	return map[string]int{
		"Amazon":    44,
		"Costco":    165,
		"Doordash":  19,
		"Instacart": 40,
		"Target":    12,
		"Ubereats":  36,
		"Walmart":   45,
	}
}

// Default returns the configuration used before any file or env is applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "3000",
			BridgePort:   "8000",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Knot: KnotConfig{
			BaseURL:           "https://api.knotapi.com/v1",
			SyncURL:           "https://knot.tunnel.tel/transactions/sync",
			ExternalUserID:    "abc",
			SyncLimit:         5,
			RequestsPerSecond: 2,
			Merchants:         DefaultMerchants(),
		},
		Nessie: NessieConfig{
			BaseURL: "http://api.nessieisreal.com",
		},
		Warehouse: WarehouseConfig{
			DatasetID: "altcredit",
		},
		Archive: ArchiveConfig{
			Prefix: "raw",
		},
		Bridge: BridgeConfig{
			DefaultModel:  "gemini-2.5-flash",
			SQLModel:      "gemini-2.5-pro",
			ShoppingModel: "gemini-2.5-pro",
		},
		Jobs: JobsConfig{
			QueueSize:  100,
			Workers:    2,
			MaxRetries: 3,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (or
// $ALTCREDIT_CONFIG when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	// Unmarshal onto the defaults so absent keys keep their values.
	merchants := c.Knot.Merchants
	c.Knot.Merchants = nil
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if len(c.Knot.Merchants) == 0 {
		c.Knot.Merchants = merchants
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.BridgePort = getEnv("BRIDGE_PORT", c.Server.BridgePort)

	c.Knot.APIKey = getEnv("KNOT_API_KEY", c.Knot.APIKey)
	c.Knot.ClientID = getEnv("KNOT_CLIENT_ID", c.Knot.ClientID)
	c.Knot.BaseURL = getEnv("KNOT_API_BASE_URL", c.Knot.BaseURL)
	c.Knot.SyncURL = getEnv("KNOT_SYNC_URL", c.Knot.SyncURL)
	c.Knot.ExternalUserID = getEnv("KNOT_EXTERNAL_USER_ID", c.Knot.ExternalUserID)
	limit, err := getIntEnv("KNOT_SYNC_LIMIT", c.Knot.SyncLimit)
	if err != nil {
		return err
	}
	c.Knot.SyncLimit = limit

	c.Nessie.BaseURL = getEnv("NESSIE_BASE_URL", c.Nessie.BaseURL)
	c.Nessie.APIKey = getEnv("NESSIE_API_KEY", c.Nessie.APIKey)
	c.Nessie.AccountID = getEnv("NESSIE_ACCOUNT_ID", c.Nessie.AccountID)

	c.Warehouse.ProjectID = getEnv("BIGQUERY_PROJECT", c.Warehouse.ProjectID)
	c.Warehouse.DatasetID = getEnv("BIGQUERY_DATASET", c.Warehouse.DatasetID)
	c.Warehouse.CredentialsFile = getEnv("GOOGLE_APPLICATION_CREDENTIALS", c.Warehouse.CredentialsFile)

	c.Archive.Bucket = getEnv("GCS_BUCKET", c.Archive.Bucket)
	c.Archive.Prefix = getEnv("GCS_PREFIX", c.Archive.Prefix)

	c.Bridge.DefaultModel = getEnv("DEDALUS_BRIDGE_MODEL", c.Bridge.DefaultModel)
	c.Bridge.SQLModel = getEnv("DEDALUS_SQL_MODEL", c.Bridge.SQLModel)
	c.Bridge.ShoppingModel = getEnv("DEDALUS_SHOPPING_MODEL", c.Bridge.ShoppingModel)

	workers, err := getIntEnv("JOB_WORKERS", c.Jobs.Workers)
	if err != nil {
		return err
	}
	c.Jobs.Workers = workers

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	return nil
}

// ValidateWarehouse reports the settings missing for BigQuery access.
func (c *Config) ValidateWarehouse() error {
	var errs []error
	if c.Warehouse.ProjectID == "" {
		errs = append(errs, errors.New("BIGQUERY_PROJECT is required"))
	}
	if c.Warehouse.DatasetID == "" {
		errs = append(errs, errors.New("BIGQUERY_DATASET is required"))
	}
	return errors.Join(errs...)
}

// ValidateNessie reports the settings missing for the Nessie pull.
func (c *Config) ValidateNessie() error {
	var errs []error
	if c.Nessie.APIKey == "" {
		errs = append(errs, errors.New("NESSIE_API_KEY is required"))
	}
	if c.Nessie.AccountID == "" {
		errs = append(errs, errors.New("NESSIE_ACCOUNT_ID is required"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
