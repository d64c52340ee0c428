package config

import "time"

// Chat definition chat_service YAML structure
type Chat struct {
	Port       string          `mapstructure:"port"`
	GRPCPort   string          `mapstructure:"grpc_port"`
	Store      string          `mapstructure:"store"`
	JWTSecret  string          `mapstructure:"jwt_secret"`
	PostgreSQL DatabaseConfig  `mapstructure:"pg"`
	MongoSQL   DatabaseConfig  `mapstructure:"mongo"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Kafka      KafkaConfig     `mapstructure:"kafka"`
	RabbitMQ   RabbitMQConfig  `mapstructure:"rabbitmq"`
	Transport  TransportConfig `mapstructure:"transport"`
	Delivery   DeliveryConfig  `mapstructure:"delivery"`

	// SeedUsers active users of the in-memory directory, used when pg is not configured
	SeedUsers []string `mapstructure:"seed_users"`
}

// ChatClient definition chat_client YAML structure
type ChatClient struct {
	ServerURL string          `mapstructure:"server_url"`
	WSURL     string          `mapstructure:"ws_url"`
	Token     string          `mapstructure:"token"`
	UserID    string          `mapstructure:"user_id"`
	JWTSecret string          `mapstructure:"jwt_secret"`
	Transport TransportConfig `mapstructure:"transport"`
}

// Store backends
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

// RedisConfig definition redis setting
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	RedisDB      int           `mapstructure:"redis_db"`
	UserCacheTTL time.Duration `mapstructure:"user_cache_ttl"`
	// Relay publish chat events through redis so every node can deliver
	Relay bool `mapstructure:"relay"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// KafkaConfig definition kafka event sink, disabled when Brokers is empty
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	RetryCount    int      `mapstructure:"retry_count"`
	RetryInterval int      `mapstructure:"retry_interval"`
}

// RabbitMQConfig definition offline notification queue, disabled when Host is empty
type RabbitMQConfig struct {
	Host          string `mapstructure:"host"`
	Port          string `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Queue         string `mapstructure:"queue"`
	RetryCount    int    `mapstructure:"retry_count"`
	RetryInterval int    `mapstructure:"retry_interval"`
}

// TransportConfig definition websocket keepalive / reconnect setting
type TransportConfig struct {
	HeartbeatInterval    time.Duration `mapstructure:"heartbeat_interval"`
	PongWait             time.Duration `mapstructure:"pong_wait"`
	WriteTimeout         time.Duration `mapstructure:"write_timeout"`
	SendBuffer           int           `mapstructure:"send_buffer"`
	ReconnectDelay       time.Duration `mapstructure:"reconnect_delay"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	ConnectTimeout       time.Duration `mapstructure:"connect_timeout"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
}

// DeliveryConfig definition dispatcher worker pool
type DeliveryConfig struct {
	Workers   int           `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queue_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// TransportDefaults default keepalive / reconnect values
func TransportDefaults() TransportConfig {
	return TransportConfig{
		HeartbeatInterval:    30 * time.Second,
		PongWait:             75 * time.Second,
		WriteTimeout:         10 * time.Second,
		SendBuffer:           64,
		ReconnectDelay:       3 * time.Second,
		MaxReconnectAttempts: 5,
		ConnectTimeout:       10 * time.Second,
		RequestTimeout:       10 * time.Second,
	}
}

// WithDefaults fill zero values from TransportDefaults
func (t TransportConfig) WithDefaults() TransportConfig {
	d := TransportDefaults()
	if t.HeartbeatInterval <= 0 {
		t.HeartbeatInterval = d.HeartbeatInterval
	}
	if t.PongWait <= 0 {
		t.PongWait = d.PongWait
	}
	if t.WriteTimeout <= 0 {
		t.WriteTimeout = d.WriteTimeout
	}
	if t.SendBuffer <= 0 {
		t.SendBuffer = d.SendBuffer
	}
	if t.ReconnectDelay <= 0 {
		t.ReconnectDelay = d.ReconnectDelay
	}
	if t.MaxReconnectAttempts <= 0 {
		t.MaxReconnectAttempts = d.MaxReconnectAttempts
	}
	if t.ConnectTimeout <= 0 {
		t.ConnectTimeout = d.ConnectTimeout
	}
	if t.RequestTimeout <= 0 {
		t.RequestTimeout = d.RequestTimeout
	}
	return t
}

// WithDefaults fill zero values of the worker pool
func (d DeliveryConfig) WithDefaults() DeliveryConfig {
	if d.Workers <= 0 {
		d.Workers = 8
	}
	if d.QueueSize <= 0 {
		d.QueueSize = 1024
	}
	if d.Timeout <= 0 {
		d.Timeout = 200 * time.Millisecond
	}
	return d
}
