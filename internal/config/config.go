package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kozaktomas/pose-guard/internal/constants"
	"gopkg.in/yaml.v3"
)

// Distance metrics supported for embedding comparison.
const (
	MetricEuclidean = "euclidean"
	MetricCosine    = "cosine"
)

// Config is the complete guard configuration.
type Config struct {
	Guard     GuardConfig     `yaml:"guard"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Log       LogConfig       `yaml:"log"`
}

// GuardConfig holds the session-immutable engine settings.
type GuardConfig struct {
	Tolerance        float64 `yaml:"tolerance"`         // max embedding distance for a match (strict <)
	AlertInterval    int     `yaml:"alert_interval"`    // seconds of absence before an alert
	RedetectInterval int     `yaml:"redetect_interval"` // frames between full re-detection cycles
	DistanceMetric   string  `yaml:"distance_metric"`   // euclidean or cosine
	MaxPersons       int     `yaml:"max_persons"`       // pro-mode record cap, 0 = unbounded
}

// AlertIntervalDuration returns the absence interval as a time.Duration.
func (g GuardConfig) AlertIntervalDuration() time.Duration {
	return time.Duration(g.AlertInterval) * time.Second
}

// StorageConfig locates profiles, snapshots and the event log on disk.
type StorageConfig struct {
	ProfilesDir           string `yaml:"profiles_dir"`
	SnapshotsDir          string `yaml:"snapshots_dir"`
	LogDir                string `yaml:"log_dir"`
	SnapshotRetentionDays int    `yaml:"snapshot_retention_days"`
}

// EmbeddingConfig points at the face detection and embedding service.
type EmbeddingConfig struct {
	URL string `yaml:"url"` // defaults to http://localhost:8000
}

// DatabaseConfig configures the optional Postgres event store and embedding cache.
type DatabaseConfig struct {
	URL          string `yaml:"url"`            // PostgreSQL connection URL, empty disables the event store
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections (default 10)
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections (default 2)
}

// MQTTConfig configures the optional MQTT event publisher.
type MQTTConfig struct {
	Broker   string `yaml:"broker"` // e.g. tcp://localhost:1883, empty disables publishing
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"` // topic prefix, defaults to pose-guard
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// Default returns the configuration used when neither a file nor env vars override it.
func Default() *Config {
	return &Config{
		Guard: GuardConfig{
			Tolerance:        constants.DefaultTolerance,
			AlertInterval:    int(constants.DefaultAlertInterval / time.Second),
			RedetectInterval: constants.DefaultRedetectInterval,
			DistanceMetric:   MetricEuclidean,
		},
		Storage: StorageConfig{
			ProfilesDir:           "guard_profiles",
			SnapshotsDir:          "alert_snapshots",
			LogDir:                "logs",
			SnapshotRetentionDays: constants.DefaultSnapshotRetentionDays,
		},
		Embedding: EmbeddingConfig{
			URL: "http://localhost:8000",
		},
		Database: DatabaseConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 2,
		},
		MQTT: MQTTConfig{
			Topic: "pose-guard",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Load builds the configuration from defaults, an optional YAML file and the environment,
// in that order of precedence. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Guard.Tolerance = envFloat("FACE_TOLERANCE", c.Guard.Tolerance)
	c.Guard.AlertInterval = envInt("ALERT_INTERVAL", c.Guard.AlertInterval)
	c.Guard.RedetectInterval = envInt("REDETECT_INTERVAL", c.Guard.RedetectInterval)
	c.Guard.DistanceMetric = envString("FACE_DISTANCE_METRIC", c.Guard.DistanceMetric)
	c.Guard.MaxPersons = envInt("PRO_MAX_PERSONS", c.Guard.MaxPersons)

	c.Storage.ProfilesDir = envString("GUARD_PROFILES_DIR", c.Storage.ProfilesDir)
	c.Storage.SnapshotsDir = envString("ALERT_SNAPSHOTS_DIR", c.Storage.SnapshotsDir)
	c.Storage.LogDir = envString("LOG_DIR", c.Storage.LogDir)
	c.Storage.SnapshotRetentionDays = envInt("SNAPSHOT_RETENTION_DAYS", c.Storage.SnapshotRetentionDays)

	c.Embedding.URL = envString("EMBEDDING_URL", c.Embedding.URL)

	c.Database.URL = envString("DATABASE_URL", c.Database.URL)
	c.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", c.Database.MaxIdleConns)

	c.MQTT.Broker = envString("MQTT_BROKER", c.MQTT.Broker)
	c.MQTT.ClientID = envString("MQTT_CLIENT_ID", c.MQTT.ClientID)
	c.MQTT.Username = envString("MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = envString("MQTT_PASSWORD", c.MQTT.Password)
	c.MQTT.Topic = envString("MQTT_TOPIC", c.MQTT.Topic)

	c.Log.Level = envString("LOG_LEVEL", c.Log.Level)
	c.Log.Format = envString("LOG_FORMAT", c.Log.Format)
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Guard.Tolerance <= 0 {
		errs = append(errs, errors.New("guard.tolerance must be positive"))
	}
	if c.Guard.AlertInterval <= 0 {
		errs = append(errs, errors.New("guard.alert_interval must be positive"))
	}
	if c.Guard.RedetectInterval <= 0 {
		errs = append(errs, errors.New("guard.redetect_interval must be positive"))
	}
	if c.Guard.MaxPersons < 0 {
		errs = append(errs, errors.New("guard.max_persons must not be negative"))
	}
	switch c.Guard.DistanceMetric {
	case MetricEuclidean, MetricCosine:
	default:
		errs = append(errs, fmt.Errorf("guard.distance_metric %q is not supported", c.Guard.DistanceMetric))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
