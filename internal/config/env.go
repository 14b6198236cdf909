package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	UploadDir string

	// Vector store
	VectorBackend    string // qdrant | pgvector | memory
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string
	DatabaseURL      string

	// AI provider
	AIProvider    string // gemini | ollama
	GeminiAPIKey  string
	EmbedModel    string
	GenModel      string
	EmbedDim      int
	OllamaBaseURL string
	OllamaModel   string

	// Retrieval / ingestion tuning
	TopK         int
	BatchBytes   int
	ChunkWindow  int
	ChunkOverlap int
	QATemplate   string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		UploadDir: getEnv("UPLOAD_DIR", "./data/uploads"),

		VectorBackend:    getEnv("VECTOR_BACKEND", "qdrant"),
		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "company_docs"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),

		AIProvider:    getEnv("AI_PROVIDER", "gemini"),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		EmbedModel:    getEnv("EMBED_MODEL", "text-embedding-004"),
		GenModel:      getEnv("GEN_MODEL", "gemini-1.5-flash"),
		EmbedDim:      getEnvInt("EMBED_DIM", 768),
		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llama3.2"),

		TopK:         getEnvInt("TOP_K", 3),
		BatchBytes:   getEnvInt("BATCH_BYTES", 8<<20),
		ChunkWindow:  getEnvInt("CHUNK_WINDOW", 1024),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),
		QATemplate:   getEnv("QA_TEMPLATE", ""),
	}

	if cfg.VectorBackend == "pgvector" && cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set for pgvector backend")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}
