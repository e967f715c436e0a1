package config

import (
	"time"

	pkgconfig "github.com/Sirojiddin1dev/carinfopro/pkg/config"
	"github.com/Sirojiddin1dev/carinfopro/pkg/pubsub"
	"github.com/Sirojiddin1dev/carinfopro/pkg/storage"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Relay     RelayConfig
	Presence  PresenceConfig
	Events    EventsConfig
	Storage   storage.Config
	Chat      ChatConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	InstanceID      string        `mapstructure:"instance_id"`
	PublicWSBase    string        `mapstructure:"public_ws_base"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// frameOverhead covers the JSON object around the message text and a few
// small extra members.
const frameOverhead = 1024

// ReadLimitFor returns the smallest read limit that admits a frame carrying
// maxRunes runes with every rune written as an escaped surrogate pair.
func ReadLimitFor(maxRunes int) int64 {
	return int64(maxRunes)*12 + frameOverhead
}

// ForMessageLength returns a copy of c whose read limit is at least
// ReadLimitFor(maxRunes). Messages the chat accepts must never trip the
// transport limit.
func (c WebSocketConfig) ForMessageLength(maxRunes int) WebSocketConfig {
	if maxRunes <= 0 {
		return c
	}
	if floor := ReadLimitFor(maxRunes); c.MaxMessageSize < floor {
		c.MaxMessageSize = floor
	}
	return c
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	Leeway    time.Duration `mapstructure:"leeway"`
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// RelayConfig selects how broadcasts reach sessions on other instances.
// "memory" keeps fan-out inside this process.
type RelayConfig struct {
	Driver string             `mapstructure:"driver"` // memory, redis, kafka
	Kafka  pubsub.KafkaConfig `mapstructure:"kafka"`
}

type PresenceConfig struct {
	Enabled           bool
	Prefix            string
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	KeyTTL            time.Duration `mapstructure:"key_ttl"`
}

type EventsConfig struct {
	Enabled    bool
	Brokers    string
	Topic      string
	Partitions int
	// UserDeletedTopic is consumed to clear removed accounts from message
	// senders. Empty disables the consumer.
	UserDeletedTopic string `mapstructure:"user_deleted_topic"`
	ConsumerGroup    string `mapstructure:"consumer_group"`
}

type ChatConfig struct {
	HistoryPageSize    int     `mapstructure:"history_page_size"`
	HistoryMaxPageSize int     `mapstructure:"history_max_page_size"`
	VisitorSecretKind  string  `mapstructure:"visitor_secret_kind"` // nanoid, cuid2
	VisitorSecretSize  int     `mapstructure:"visitor_secret_size"`
	MessageIDKind      string  `mapstructure:"message_id_kind"` // ulid, ksuid, uuid
	MaxMessageLength   int     `mapstructure:"max_message_length"`
	RateLimit          float64 `mapstructure:"rate_limit"` // messages per second, 0 disables
	RateBurst          int     `mapstructure:"rate_burst"`
	ArchivePrefix      string  `mapstructure:"archive_prefix"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8088)
	v.SetDefault("server.instance_id", "")
	v.SetDefault("server.public_ws_base", "")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.allowed_origins", []string{})
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "carinfopro")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/chat.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.leeway", "0s")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("relay.driver", "memory")
	v.SetDefault("relay.kafka.brokers", "localhost:9092")
	v.SetDefault("relay.kafka.group_id", "chat-relay")
	v.SetDefault("relay.kafka.partitions", 8)
	v.SetDefault("presence.enabled", false)
	v.SetDefault("presence.prefix", "chat:presence")
	v.SetDefault("presence.heartbeat_interval", "10s")
	v.SetDefault("presence.key_ttl", "30s")
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.brokers", "localhost:9092")
	v.SetDefault("events.topic", "chat-messages-persisted")
	v.SetDefault("events.partitions", 8)
	v.SetDefault("events.user_deleted_topic", "user-deleted")
	v.SetDefault("events.consumer_group", "chat-service")
	v.SetDefault("storage.driver", "none")
	v.SetDefault("storage.local.base_path", "./data/archive")
	v.SetDefault("chat.history_page_size", 50)
	v.SetDefault("chat.history_max_page_size", 200)
	v.SetDefault("chat.visitor_secret_kind", "nanoid")
	v.SetDefault("chat.visitor_secret_size", 32)
	v.SetDefault("chat.message_id_kind", "ulid")
	v.SetDefault("chat.max_message_length", 4000)
	v.SetDefault("chat.rate_limit", 5)
	v.SetDefault("chat.rate_burst", 10)
	v.SetDefault("chat.archive_prefix", "transcripts")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if err := pkgconfig.BindEnvs(v, map[string]string{
		"server.port":                  "PORT",
		"server.instance_id":           "INSTANCE_ID",
		"server.public_ws_base":        "PUBLIC_WS_BASE",
		"database.driver":              "DB_DRIVER",
		"database.host":                "DB_HOST",
		"database.port":                "DB_PORT",
		"database.user":                "DB_USER",
		"database.password":            "DB_PASSWORD",
		"database.dbname":              "DB_NAME",
		"database.sslmode":             "DB_SSLMODE",
		"database.file_path":           "DB_FILE_PATH",
		"auth.jwt_secret":              "JWT_SECRET",
		"auth.issuer":                  "JWT_ISSUER",
		"redis.address":                "REDIS_ADDRESS",
		"redis.password":               "REDIS_PASSWORD",
		"relay.driver":                 "RELAY_DRIVER",
		"relay.kafka.brokers":          "KAFKA_BROKERS",
		"presence.enabled":             "PRESENCE_ENABLED",
		"events.enabled":               "EVENTS_ENABLED",
		"events.brokers":               "KAFKA_BROKERS",
		"events.topic":                 "EVENTS_TOPIC",
		"events.user_deleted_topic":    "USER_DELETED_TOPIC",
		"storage.driver":               "STORAGE_DRIVER",
		"storage.local.base_path":      "STORAGE_LOCAL_PATH",
		"storage.s3.endpoint":          "S3_ENDPOINT",
		"storage.s3.region":            "S3_REGION",
		"storage.s3.bucket":            "S3_BUCKET",
		"storage.s3.access_key_id":     "S3_ACCESS_KEY_ID",
		"storage.s3.secret_access_key": "S3_SECRET_ACCESS_KEY",
		"log.level":                    "LOG_LEVEL",
	}); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Server.ShutdownTimeout = pkgconfig.Duration(v, "server.shutdown_timeout", 30*time.Second)
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.Auth.Leeway = pkgconfig.Duration(v, "auth.leeway", 0)
	cfg.Presence.HeartbeatInterval = pkgconfig.Duration(v, "presence.heartbeat_interval", 10*time.Second)
	cfg.Presence.KeyTTL = pkgconfig.Duration(v, "presence.key_ttl", 30*time.Second)
	cfg.WebSocket = cfg.WebSocket.ForMessageLength(cfg.Chat.MaxMessageLength)

	return &cfg, nil
}
