package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates settings for both the API server and the analysis worker.
type Config struct {
	Server ServerConfig `envPrefix:""`
	DB     DBConfig     `envPrefix:""`
	Queue  QueueConfig  `envPrefix:""`
	AI     AIConfig     `envPrefix:""`
	Chat   ChatConfig   `envPrefix:""`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port int `env:"PORT" envDefault:"8080"`
}

// Addr returns the listen address for http.Server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// DBConfig describes the Postgres connection.
type DBConfig struct {
	URL string `env:"DATABASE_URL,required"`
}

// QueueConfig describes the Redis-backed task queue shared by the API
// (producer) and the worker (consumer).
type QueueConfig struct {
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	Concurrency   int    `env:"WORKER_CONCURRENCY" envDefault:"4"`
}

// AIConfig describes the completion provider.
type AIConfig struct {
	APIKey      string        `env:"ARK_API_KEY"`
	AccessKey   string        `env:"ARK_ACCESS_KEY"`
	SecretKey   string        `env:"ARK_SECRET_KEY"`
	Model       string        `env:"ARK_MODEL"`
	BaseURL     string        `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region      string        `env:"ARK_REGION" envDefault:"cn-beijing"`
	Temperature *float64      `env:"ARK_TEMPERATURE"`
	MaxTokens   *int          `env:"ARK_MAX_TOKENS"`
	Timeout     time.Duration `env:"AI_TIMEOUT" envDefault:"60s"`
}

// ChatConfig tunes the live conversation path.
type ChatConfig struct {
	// ContextMaxTurns caps the in-memory model context to the last K turns;
	// the persona preamble is always retained on top of that.
	ContextMaxTurns int `env:"CONTEXT_MAX_TURNS" envDefault:"50"`
	// HistoryLimit bounds how many persisted messages a join replays.
	HistoryLimit int `env:"HISTORY_LIMIT" envDefault:"1000"`
	// AnalysisMessageLimit is how many recent messages the background
	// analysis job reads from a chat.
	AnalysisMessageLimit int `env:"ANALYSIS_MESSAGE_LIMIT" envDefault:"30"`
}

// Load parses the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Enabled reports whether the required model credentials were provided.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds the provider-backed chat model from this configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("missing model credentials: provide ARK_MODEL plus ARK_API_KEY or the AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
	})
}
