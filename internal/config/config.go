package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"rag-chat-be/internal/constant"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
	Rag      RAGConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	UploadDir          string
	NatsURL            string
	OtelEnabled        bool
	OtelEndpoint       string
}

type RedisConfig struct {
	URL           string
	SessionTTL    time.Duration
	SweepInterval time.Duration
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	GoogleGemini string
	HuggingFace  string
}

type AIConfig struct {
	EmbeddingProvider   string // "gemini" or "ollama"
	EmbeddingDimensions int
	OllamaBaseURL       string
	OllamaModel         string
	LLMProvider         string // "gemini", "ollama", "huggingface"
	LLMModel            string
	HuggingFaceBaseURL  string
}

type RAGConfig struct {
	VectorStore         string // "pgvector" or "memory"
	IndexName           string
	SearchType          string
	StreamPartialPolicy string // "discard" or "truncate"
	EnsureIndexOnStart  bool
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			UploadDir:          getEnv("UPLOAD_DIR", "uploaded_files"),
			NatsURL:            getEnv("NATS_URL", ""),
			OtelEnabled:        getEnv("OTEL_ENABLED", "false") == "true",
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Redis: RedisConfig{
			URL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
			SessionTTL:    getEnvAsDuration("SESSION_TTL", time.Hour),
			SweepInterval: getEnvAsDuration("SWEEP_INTERVAL", 10*time.Minute),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			HuggingFace:  getEnv("HUGGINGFACE_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider:   getEnv("EMBEDDING_PROVIDER", "gemini"),
			EmbeddingDimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 768),
			OllamaBaseURL:       getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:         getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:         getEnv("LLM_PROVIDER", "gemini"),
			LLMModel:            getEnv("LLM_MODEL", "gemini-1.5-flash"),
			HuggingFaceBaseURL:  getEnv("HUGGINGFACE_BASE_URL", ""),
		},
		Rag: RAGConfig{
			VectorStore:         getEnv("VECTOR_STORE", "pgvector"),
			IndexName:           getEnv("VECTOR_INDEX_NAME", constant.DefaultVectorIndexName),
			SearchType:          getEnv("SEARCH_TYPE", "similarity_score_threshold"),
			StreamPartialPolicy: getEnv("STREAM_PARTIAL_POLICY", "discard"),
			EnsureIndexOnStart:  getEnv("ENSURE_INDEX_ON_START", "true") == "true",
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90m") or plain seconds ("3600").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if d, err := time.ParseDuration(strValue); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
