// Package config loads the environment configuration recognized by the
// service (spec §6) into a typed struct, failing fast on missing required
// secrets so the binary can exit(1) before opening any connection.
package config

import (
	"fmt"
	"time"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/envutil"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
)

type Config struct {
	ModelAPIKey    string
	EmbeddingDim   int
	DailyLimitUser int
	DailyLimitIP   int
	Timezone       string
	CorpusURL      string
	VectorIndex    string
	RateLimitFailOpenAuthed bool
	TurnDeadline   time.Duration

	RedisAddr    string
	JWTPublicKey string

	TokensPerRune    float64
	ChunkTokenBudget int

	Port         string
	ModelBaseURL string
	ChatModel    string
	EmbedModel   string
}

// Load reads and validates the recognized environment options. It returns
// an error for every missing required var so the caller can exit(1) per
// spec §7 ("configuration error at startup").
func Load(log *logger.Logger) (Config, error) {
	cfg := Config{}

	apiKey, ok := envutil.RequireEnv("MODEL_API_KEY")
	if !ok {
		return Config{}, fmt.Errorf("missing required env MODEL_API_KEY")
	}
	cfg.ModelAPIKey = apiKey

	corpusURL, ok := envutil.RequireEnv("CORPUS_URL")
	if !ok {
		return Config{}, fmt.Errorf("missing required env CORPUS_URL")
	}
	cfg.CorpusURL = corpusURL

	cfg.EmbeddingDim = envutil.GetEnvAsInt("EMBEDDING_DIM", 768, log)
	cfg.DailyLimitUser = envutil.GetEnvAsInt("DAILY_LIMIT_USER", 50, log)
	cfg.DailyLimitIP = envutil.GetEnvAsInt("DAILY_LIMIT_IP", 10, log)
	cfg.Timezone = envutil.GetEnv("TIMEZONE", "Asia/Seoul", log)
	cfg.VectorIndex = envutil.GetEnv("VECTOR_INDEX_NAME", "document_chunks_embedding_idx", log)
	cfg.RateLimitFailOpenAuthed = envutil.GetEnvAsBool("RATE_LIMIT_FAIL_OPEN_AUTHED", true, log)
	cfg.TurnDeadline = time.Duration(envutil.GetEnvAsInt("TURN_DEADLINE_MS", 90000, log)) * time.Millisecond
	cfg.RedisAddr = envutil.GetEnv("REDIS_ADDR", "", log)
	cfg.JWTPublicKey = envutil.GetEnv("JWT_PUBLIC_KEY", "", log)
	cfg.TokensPerRune = 0.3846
	cfg.ChunkTokenBudget = envutil.GetEnvAsInt("CHUNK_TOKEN_BUDGET", 6000, log)

	cfg.Port = envutil.GetEnv("PORT", "8080", log)
	cfg.ModelBaseURL = envutil.GetEnv("MODEL_BASE_URL", "", log)
	cfg.ChatModel = envutil.GetEnv("MODEL_CHAT_MODEL", "", log)
	cfg.EmbedModel = envutil.GetEnv("MODEL_EMBED_MODEL", "", log)

	if cfg.EmbeddingDim <= 0 {
		return Config{}, fmt.Errorf("EMBEDDING_DIM must be positive, got %d", cfg.EmbeddingDim)
	}
	return cfg, nil
}
