package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the server and the CLI.
type Config struct {
	// ServerAddress is the gRPC address of the panel server.
	ServerAddress string `yaml:"server_addr"`
	// Timeout is the duration for network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum zap level, e.g. "info" or "debug".
	LogLevel string `yaml:"log_level"`
	// Storage selects and configures the state repository.
	Storage Storage `yaml:"storage"`
	// Classifier selects and configures the image classifier.
	Classifier Classifier `yaml:"classifier"`
	// MQTT configures the optional broker connection.
	MQTT MQTT `yaml:"mqtt"`
	// Metrics configures the optional Prometheus endpoint.
	Metrics Metrics `yaml:"metrics"`
}

// Storage configures where arming, alarm and sensor state is kept.
type Storage struct {
	// Backend is one of the Backend* constants.
	Backend string `yaml:"backend"`
	// StateFile is the JSON file used by the file backend.
	StateFile string `yaml:"state_file"`
	// RedisAddress is the host:port of the Redis server.
	RedisAddress string `yaml:"redis_addr"`
	// RedisPassword authenticates against Redis.
	RedisPassword string `yaml:"redis_password"`
	// RedisDB selects the Redis logical database.
	RedisDB int `yaml:"redis_db"`
	// RedisKeyPrefix is prepended to every Redis key.
	RedisKeyPrefix string `yaml:"redis_key_prefix"`
	// SQLitePath is the database file used by the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`
}

// Classifier configures the image classifier used for cat detection.
type Classifier struct {
	// Kind is one of the Classifier* constants.
	Kind string `yaml:"kind"`
	// URL is the base URL of the remote labeling service.
	URL string `yaml:"url"`
	// Timeout bounds a single remote call.
	Timeout time.Duration `yaml:"timeout"`
	// MaxRetries is the number of retries after a failed remote call.
	MaxRetries int `yaml:"max_retries"`
}

// MQTT configures the broker used for sensor ingress and status fan-out.
type MQTT struct {
	// Broker is the broker URL, e.g. tcp://127.0.0.1:1883. Empty disables MQTT.
	Broker string `yaml:"broker"`
	// ClientID is the MQTT client identifier prefix.
	ClientID string `yaml:"client_id"`
	// Username authenticates against the broker.
	Username string `yaml:"username"`
	// Password authenticates against the broker.
	Password string `yaml:"password"`
	// TopicPrefix is the root of every topic the panel uses.
	TopicPrefix string `yaml:"topic_prefix"`
}

// Enabled reports whether a broker is configured.
func (m *MQTT) Enabled() bool {
	return m.Broker != ""
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	// ListenAddress is where /metrics is served. Empty disables the endpoint.
	ListenAddress string `yaml:"listen_addr"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "catpoint-settings.yaml"

	// DefaultStateFilename is the default filename for the file backend.
	DefaultStateFilename = "catpoint-state.json"

	// DefaultSQLiteFilename is the default filename for the sqlite backend.
	DefaultSQLiteFilename = "catpoint.db"

	// DefaultRedisKeyPrefix is the default prefix for Redis keys.
	DefaultRedisKeyPrefix = "catpoint:"

	// DefaultTopicPrefix is the default root for MQTT topics.
	DefaultTopicPrefix = "catpoint"

	// DefaultMQTTClientID is the default MQTT client identifier prefix.
	DefaultMQTTClientID = "catpoint"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultClassifierTimeout is the default duration of a remote classification.
	DefaultClassifierTimeout = 10 * time.Second

	// DefaultClassifierRetries is the default number of remote classification retries.
	DefaultClassifierRetries = 3

	// DefaultFilePermissions is the default file permission for config and state files.
	DefaultFilePermissions = 0o600
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Classifier kinds.
const (
	ClassifierFake   = "fake"
	ClassifierRemote = "remote"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerSocketRequired is returned when server address is missing.
	errServerSocketRequired = errors.New("server address must be provided")
	// errUnknownBackend is returned for unsupported storage backends.
	errUnknownBackend = errors.New("unknown storage backend")
	// errUnknownClassifier is returned for unsupported classifier kinds.
	errUnknownClassifier = errors.New("unknown classifier kind")
	// errClassifierURLRequired is returned when the remote classifier has no URL.
	errClassifierURLRequired = errors.New("remote classifier requires url")
	// errRedisAddressRequired is returned when the redis backend has no address.
	errRedisAddressRequired = errors.New("redis backend requires redis_addr")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold broker and Redis passwords.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults for optional ones.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ServerAddress == "" {
		return errServerSocketRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if err := validateStorage(&settings.Storage); err != nil {
		return err
	}

	if err := validateClassifier(&settings.Classifier); err != nil {
		return err
	}

	if err := validateMQTT(&settings.MQTT); err != nil {
		return err
	}

	if settings.Metrics.ListenAddress != "" {
		if _, _, err := net.SplitHostPort(settings.Metrics.ListenAddress); err != nil {
			return fmt.Errorf("invalid metrics address: %w", err)
		}
	}

	return nil
}

func validateStorage(s *Storage) error {
	if s.Backend == "" {
		s.Backend = BackendFile
	}

	if !slices.Contains([]string{BackendMemory, BackendFile, BackendRedis, BackendSQLite}, s.Backend) {
		return fmt.Errorf("%w: %q", errUnknownBackend, s.Backend)
	}

	if s.StateFile == "" {
		s.StateFile = DefaultStateFilename
	}

	if s.SQLitePath == "" {
		s.SQLitePath = DefaultSQLiteFilename
	}

	if s.RedisKeyPrefix == "" {
		s.RedisKeyPrefix = DefaultRedisKeyPrefix
	}

	if s.Backend == BackendRedis && s.RedisAddress == "" {
		return errRedisAddressRequired
	}

	return nil
}

func validateClassifier(c *Classifier) error {
	if c.Kind == "" {
		c.Kind = ClassifierFake
	}

	if c.Timeout <= 0 {
		c.Timeout = DefaultClassifierTimeout
	}

	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}

	switch c.Kind {
	case ClassifierFake:
		return nil
	case ClassifierRemote:
		if c.URL == "" {
			return errClassifierURLRequired
		}

		if _, err := url.ParseRequestURI(c.URL); err != nil {
			return fmt.Errorf("invalid classifier url: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownClassifier, c.Kind)
	}
}

func validateMQTT(m *MQTT) error {
	if m.TopicPrefix == "" {
		m.TopicPrefix = DefaultTopicPrefix
	}

	if m.ClientID == "" {
		m.ClientID = DefaultMQTTClientID
	}

	if !m.Enabled() {
		return nil
	}

	if _, err := url.ParseRequestURI(m.Broker); err != nil {
		return fmt.Errorf("invalid mqtt broker: %w", err)
	}

	return nil
}
