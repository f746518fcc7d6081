// Package config assembles the process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/OFFIS-RIT/graphrag/internal/storage"
	"github.com/OFFIS-RIT/graphrag/internal/util"
	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/segment"
	"github.com/OFFIS-RIT/graphrag/pkg/store"
)

const (
	StoreNeo4j  = "neo4j"
	StoreMemory = "memory"
)

type Neo4jConfig struct {
	URI       string
	User      string
	Password  string
	Database  string
	IndexName string
	BatchSize int
}

// AIConfig configures the chat model used for extraction, answers and
// Cypher generation. Embedders are selected separately through the
// embedder config file.
type AIConfig struct {
	Adapter    string
	ChatModel  string
	ChatURL    string
	ChatKey    string
	APIType    string
	APIVersion string
	Timeout    time.Duration
	MaxConns   int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type RabbitMQConfig struct {
	User     string
	Password string
	Host     string
	Port     string
}

func (r RabbitMQConfig) Enabled() bool { return r.Host != "" }

func (r RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", r.User, r.Password, r.Host, r.Port)
}

type ServerConfig struct {
	Port         string
	RateLimit    float64
	RateBurst    int
	BodyLimit    string
	AllowOrigins []string
}

type SegmentConfig struct {
	ChunkSize    int
	ChunkOverlap int
	MaxTokens    int
	TokenEncoder string
}

type Config struct {
	Debug     bool
	LogFormat string

	Store        string
	Similarity   store.Similarity
	EmbedderFile string
	DataDir      string

	Neo4j    Neo4jConfig
	AI       AIConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	S3       storage.S3Params
	Server   ServerConfig
	Segment  SegmentConfig
}

// Load reads the configuration from the environment. Call util.LoadEnv
// first to pick up a .env file.
func Load() (Config, error) {
	cfg := Config{
		Debug:        util.GetEnvBool("DEBUG", false),
		LogFormat:    util.GetEnvString("LOG_FORMAT", "text"),
		Store:        util.GetEnvString("GRAPH_STORE", StoreNeo4j),
		EmbedderFile: util.GetEnvString("EMBEDDER_CONFIG", "embedder_config.json"),
		DataDir:      util.GetEnvString("DATA_DIR", "data"),
		Neo4j: Neo4jConfig{
			URI:       util.GetEnvString("NEO4J_URI", "neo4j://localhost:7687"),
			User:      util.GetEnvString("NEO4J_USER", "neo4j"),
			Password:  util.GetEnv("NEO4J_PASSWORD"),
			Database:  util.GetEnv("NEO4J_DATABASE"),
			IndexName: util.GetEnvString("VECTOR_INDEX", store.DefaultIndexName),
			BatchSize: util.GetEnvInt("NEO4J_BATCH_SIZE", 500),
		},
		AI: AIConfig{
			Adapter:    util.GetEnvString("AI_ADAPTER", "openai"),
			ChatModel:  util.GetEnv("AI_CHAT_MODEL"),
			ChatURL:    util.GetEnv("AI_CHAT_URL"),
			ChatKey:    util.GetEnv("AI_CHAT_KEY"),
			APIType:    util.GetEnv("AI_CHAT_API_TYPE"),
			APIVersion: util.GetEnv("AI_CHAT_API_VERSION"),
			Timeout:    util.GetEnvDuration("AI_TIMEOUT", 2*time.Minute),
			MaxConns:   util.GetEnvInt("AI_PARALLEL_REQ", 4),
		},
		Redis: RedisConfig{
			Addr:     util.GetEnv("REDIS_ADDR"),
			Password: util.GetEnv("REDIS_PASSWORD"),
			DB:       util.GetEnvInt("REDIS_DB", 0),
			TTL:      util.GetEnvDuration("EMBED_CACHE_TTL", 7*24*time.Hour),
		},
		RabbitMQ: RabbitMQConfig{
			User:     util.GetEnvString("RABBITMQ_USER", "guest"),
			Password: util.GetEnvString("RABBITMQ_PASSWORD", "guest"),
			Host:     util.GetEnv("RABBITMQ_HOST"),
			Port:     util.GetEnvString("RABBITMQ_PORT", "5672"),
		},
		S3: storage.S3Params{
			Region:    util.GetEnvString("AWS_REGION", "us-east-1"),
			Endpoint:  util.GetEnv("AWS_ENDPOINT_URL"),
			AccessKey: util.GetEnv("AWS_ACCESS_KEY"),
			SecretKey: util.GetEnv("AWS_SECRET_KEY"),
			Bucket:    util.GetEnv("AWS_BUCKET"),
			Prefix:    util.GetEnv("AWS_PREFIX"),
		},
		Server: ServerConfig{
			Port:         util.GetEnvString("PORT", "8080"),
			RateLimit:    util.GetEnvFloat("RATE_LIMIT_RPS", 5),
			RateBurst:    util.GetEnvInt("RATE_LIMIT_BURST", 10),
			BodyLimit:    util.GetEnvString("BODY_LIMIT", "32M"),
			AllowOrigins: util.GetEnvList("CORS_ORIGINS", nil),
		},
		Segment: SegmentConfig{
			ChunkSize:    util.GetEnvInt("CHUNK_SIZE", segment.DefaultChunkSize),
			ChunkOverlap: util.GetEnvInt("CHUNK_OVERLAP", segment.DefaultChunkOverlap),
			MaxTokens:    util.GetEnvInt("CHUNK_MAX_TOKENS", segment.DefaultMaxTokens),
			TokenEncoder: util.GetEnvString("TOKEN_ENCODER", segment.DefaultTokenEncoder),
		},
	}

	sim, err := store.ParseSimilarity(util.GetEnv("VECTOR_SIMILARITY"))
	if err != nil {
		return Config{}, err
	}
	cfg.Similarity = sim

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise only fail deep inside
// a request.
func (c Config) Validate() error {
	switch c.Store {
	case StoreNeo4j, StoreMemory:
	default:
		return common.NewConfigurationError("config", "unknown GRAPH_STORE %q", c.Store)
	}
	if c.Store == StoreNeo4j && c.Neo4j.URI == "" {
		return common.NewConfigurationError("config", "NEO4J_URI is required")
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return common.NewConfigurationError("config", "rate limit settings must not be negative")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return common.NewConfigurationError("config", "LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// SegmenterParams converts the segment settings.
func (c Config) SegmenterParams() segment.NewSegmenterParams {
	p := segment.DefaultParams()
	p.ChunkSize = c.Segment.ChunkSize
	p.ChunkOverlap = c.Segment.ChunkOverlap
	p.MaxTokens = c.Segment.MaxTokens
	p.TokenEncoder = c.Segment.TokenEncoder
	return p
}
