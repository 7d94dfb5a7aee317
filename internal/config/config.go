package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Graph      GraphConfig
	Keys       APIKeys
	Ai         AIConfig
	Refinement RefinementConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	SocketLogFilePath  string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JWTSecret          string
	OtelEnabled        bool
	OtelEndpoint       string
}

type DatabaseConfig struct {
	Connection string
}

type GraphConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

type APIKeys struct {
	HuggingFace string
	Jina        string
}

type AIConfig struct {
	EmbeddingProvider string // "ollama" or "jina"
	EmbeddingModel    string
	OllamaBaseURL     string
	LLMProvider       string // "ollama" or "huggingface"
	LLMModel          string // e.g. "llama3", "qwen2.5"
	PromptsFile       string
}

type RefinementConfig struct {
	Backend               string // "neo4j" or "postgres"
	MaxIterations         int
	MaxRows               int
	CandidateLimit        int
	SimilarityFloor       float64
	DisambiguationTimeout time.Duration
	ExecutionTimeout      time.Duration
	CacheTTL              time.Duration
	LocalCacheTTL         time.Duration
	DurableCache          string // "redis" or "postgres"
	IndexFile             string
	TextSearchConfig      string

	// prioritizer
	RankSource     string
	RankKeyColumn  string
	RankThreshold  float64
	IndexRowsTopic string
}

// Language is the query language generated for the configured backend
func (r RefinementConfig) Language() string {
	if r.Backend == "postgres" {
		return "sql"
	}
	return "cypher"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			SocketLogFilePath:  getEnv("SOCKET_LOG_FILE_PATH", "socket.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
			OtelEnabled:        getEnv("OTEL_ENABLED", "false") == "true",
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Graph: GraphConfig{
			URI:      getEnv("NEO4J_URI", "neo4j://localhost:7687"),
			Username: getEnv("NEO4J_USERNAME", "neo4j"),
			Password: getEnv("NEO4J_PASSWORD", ""),
			Database: getEnv("NEO4J_DATABASE", "neo4j"),
		},
		Keys: APIKeys{
			HuggingFace: getEnv("HUGGINGFACE_API_KEY", ""),
			Jina:        getEnv("JINA_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			PromptsFile:       getEnv("PROMPTS_FILE", ""),
		},
		Refinement: RefinementConfig{
			Backend:               getEnv("REFINEMENT_BACKEND", "neo4j"),
			MaxIterations:         getEnvAsInt("REFINEMENT_MAX_ITERATIONS", 12),
			MaxRows:               getEnvAsInt("REFINEMENT_MAX_ROWS", 100),
			CandidateLimit:        getEnvAsInt("RESOLUTION_CANDIDATE_LIMIT", 4),
			SimilarityFloor:       getEnvAsFloat("RESOLUTION_SIMILARITY_FLOOR", 0.3),
			DisambiguationTimeout: getEnvAsDuration("DISAMBIGUATION_TIMEOUT", 120*time.Second),
			ExecutionTimeout:      getEnvAsDuration("EXECUTION_TIMEOUT", 300*time.Second),
			CacheTTL:              getEnvAsDuration("RESOLUTION_CACHE_TTL", 30*24*time.Hour),
			LocalCacheTTL:         getEnvAsDuration("RESOLUTION_LOCAL_CACHE_TTL", time.Hour),
			DurableCache:          getEnv("RESOLUTION_CACHE", "redis"),
			IndexFile:             getEnv("FULLTEXT_INDEX_FILE", ""),
			TextSearchConfig:      getEnv("TEXT_SEARCH_CONFIG", "simple"),
			RankSource:            getEnv("RANK_SOURCE", ""),
			RankKeyColumn:         getEnv("RANK_KEY_COLUMN", "id"),
			RankThreshold:         getEnvAsFloat("RANK_THRESHOLD", 0.35),
			IndexRowsTopic:        getEnv("INDEX_ROWS_TOPIC_NAME", "INDEX_ROWS"),
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

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90")
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
