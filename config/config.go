package config

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	TripWatch TripWatchConfig `yaml:"tripwatch"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	StatusChangedTopicName string `yaml:"status_changed_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TripWatchConfig struct {
	// trip-api
	GRPCAddr                string `yaml:"grpc_addr"`
	HTTPAddr                string `yaml:"http_addr"`
	KafkaConsumerGroup      string `yaml:"kafka_consumer_group"`
	CurrentStatusTTLSeconds int    `yaml:"current_status_ttl_seconds"`

	// trip-monitor
	MonitorHTTPAddr        string `yaml:"monitor_http_addr"`
	StatusMirrorTTLSeconds int    `yaml:"status_mirror_ttl_seconds"`
	ReclassifyTickSeconds  int    `yaml:"reclassify_tick_seconds"`
	ActiveIntervalSeconds  int    `yaml:"active_interval_seconds"`
	IdleIntervalSeconds    int    `yaml:"idle_interval_seconds"`
	FailureBackoffSeconds  int    `yaml:"failure_backoff_seconds"`
	LeadTimeMinutes        int    `yaml:"lead_time_minutes"`
	LateStartMinutes       int    `yaml:"late_start_minutes"`
	ExpiryMinutes          int    `yaml:"expiry_minutes"`
	MaxDecodeFailures      int    `yaml:"max_decode_failures"` // 0 = default, <0 = unlimited
	RetryUnauthorized      bool   `yaml:"retry_unauthorized"`

	StatusSourceMode               string `yaml:"status_source_mode"` // "http" | "fake"
	StatusSourceBaseURL            string `yaml:"status_source_base_url"`
	StatusSourceAPIKey             string `yaml:"status_source_api_key"`
	StatusSourceRateLimitPerMinute int    `yaml:"status_source_rate_limit_per_minute"`

	LiveActivityMode            string `yaml:"live_activity_mode"` // "fcm" | "ws" | "log"
	LiveActivityCredentialsFile string `yaml:"live_activity_credentials_file"`
	LiveActivityDeviceToken     string `yaml:"live_activity_device_token"`
	LiveActivityBundleID        string `yaml:"live_activity_bundle_id"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}

func (c *Config) PostgresConnString() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.Username, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.DBName, sslMode)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c *Config) KafkaBrokers() []string {
	return []string{fmt.Sprintf("%s:%d", c.Kafka.Host, c.Kafka.Port)}
}

func (c *Config) StatusChangedTopic() string {
	if c.Kafka.StatusChangedTopicName == "" {
		return "trip.status.changed"
	}
	return c.Kafka.StatusChangedTopicName
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
func minutes(n int) time.Duration { return time.Duration(n) * time.Minute }

// Monitor tuning; zero values are filled with defaults by monitor.NewPlanner.
func (t TripWatchConfig) ActiveInterval() time.Duration { return seconds(t.ActiveIntervalSeconds) }
func (t TripWatchConfig) IdleInterval() time.Duration   { return seconds(t.IdleIntervalSeconds) }
func (t TripWatchConfig) FailureBackoff() time.Duration { return seconds(t.FailureBackoffSeconds) }
func (t TripWatchConfig) LeadTime() time.Duration       { return minutes(t.LeadTimeMinutes) }
func (t TripWatchConfig) LateStart() time.Duration      { return minutes(t.LateStartMinutes) }
func (t TripWatchConfig) Expiry() time.Duration         { return minutes(t.ExpiryMinutes) }

func (t TripWatchConfig) CurrentStatusTTL() time.Duration {
	if t.CurrentStatusTTLSeconds <= 0 {
		return 10 * time.Minute
	}
	return seconds(t.CurrentStatusTTLSeconds)
}

func (t TripWatchConfig) StatusMirrorTTL() time.Duration {
	if t.StatusMirrorTTLSeconds <= 0 {
		return 3 * time.Hour
	}
	return seconds(t.StatusMirrorTTLSeconds)
}
