package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Session     SessionConfig     `mapstructure:"session"`
	Message     MessageConfig     `mapstructure:"message"`
	Profile     ProfileConfig     `mapstructure:"profile"`
	Certificate CertificateConfig `mapstructure:"certificate"`
	Feed        FeedConfig        `mapstructure:"feed"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topics  Topics   `mapstructure:"topics"`
}

type Topics struct {
	UserEvents string `mapstructure:"user_events"`
	SiteEvents string `mapstructure:"site_events"`
}

type SessionConfig struct {
	// TTL 会话过期时间，每次请求滑动续期
	TTL        time.Duration `mapstructure:"ttl"`
	CookieName string        `mapstructure:"cookie_name"`
}

type MessageConfig struct {
	MaxLength int `mapstructure:"max_length"`
}

type ProfileConfig struct {
	DefaultImageURL       string `mapstructure:"default_image_url"`
	DefaultHeaderImageURL string `mapstructure:"default_header_image_url"`
}

type CertificateConfig struct {
	Secret   string        `mapstructure:"secret"`
	Validity time.Duration `mapstructure:"validity"`
	Issuer   string        `mapstructure:"issuer"`
}

type FeedConfig struct {
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	MaxFeedSize int           `mapstructure:"max_feed_size"`
	HomeLimit   int           `mapstructure:"home_limit"`
}

func LoadConfig() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
