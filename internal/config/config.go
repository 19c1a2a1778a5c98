package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Database    DatabaseConfig   `json:"database"`
	AI          AIConfig         `json:"ai"`
	Search      SearchConfig     `json:"search"`
	Scraper     ScraperConfig    `json:"scraper"`
	Answer      AnswerConfig     `json:"answer"`
	Cache       CacheConfig      `json:"cache"`
	RateLimitMS int              `json:"rate_limit_ms"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
	DSN      string `json:"dsn"`
}

type AIConfig struct {
	Provider   string      `json:"provider"`
	Model      string      `json:"model"`
	EmbedModel string      `json:"embed_model"`
	Timeout    int         `json:"timeout"`
	Data       interface{} `json:"data"`
}

type SearchConfig struct {
	BraveAPIKey string `json:"brave_api_key"`
	SerpAPIKey  string `json:"serpapi_key"`
	Timeout     int    `json:"timeout"`
}

type ScraperConfig struct {
	MaxConcurrent    int `json:"max_concurrent"`
	MinContentLength int `json:"min_content_length"`
	Timeout          int `json:"timeout"`
}

type AnswerConfig struct {
	TargetDomain string `json:"target_domain"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
	MaxResults   int    `json:"max_results"`
	MaxChunks    int    `json:"max_chunks"`
}

type CacheConfig struct {
	Store              string              `json:"store"`
	MemorySize         int                 `json:"memory_size"`
	ResponseTTLSeconds int                 `json:"response_ttl_seconds"`
	SearchTTLSeconds   int                 `json:"search_ttl_seconds"`
	ContentTTLSeconds  int                 `json:"content_ttl_seconds"`
	Semantic           SemanticCacheConfig `json:"semantic"`
	Embedding          EmbedCacheConfig    `json:"embedding"`
}

type SemanticCacheConfig struct {
	Enable     bool    `json:"enable"`
	Strategy   string  `json:"strategy"`
	Threshold  float64 `json:"threshold"`
	ScanLimit  int     `json:"scan_limit"`
	TTLSeconds int     `json:"ttl_seconds"`
}

type EmbedCacheConfig struct {
	LRUSize       int `json:"lru_size"`
	LRUTTLSeconds int `json:"lru_ttl_seconds"`
	DBMaxAgeDays  int `json:"db_max_age_days"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.Model == "" {
		return nil, fmt.Errorf("ai.model is required")
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 30
	}
	if cfg.Search.Timeout <= 0 {
		cfg.Search.Timeout = 5
	}
	if cfg.Scraper.MaxConcurrent <= 0 {
		cfg.Scraper.MaxConcurrent = 3
	}
	if cfg.Scraper.MinContentLength <= 0 {
		cfg.Scraper.MinContentLength = 100
	}
	if cfg.Scraper.Timeout <= 0 {
		cfg.Scraper.Timeout = 10
	}
	if cfg.Answer.TargetDomain == "" {
		return nil, fmt.Errorf("answer.target_domain is required")
	}
	if cfg.Answer.ChunkSize <= 0 {
		cfg.Answer.ChunkSize = 1000
	}
	if cfg.Answer.ChunkOverlap < 0 || cfg.Answer.ChunkOverlap >= cfg.Answer.ChunkSize {
		cfg.Answer.ChunkOverlap = 200
	}
	if cfg.Answer.MaxResults <= 0 {
		cfg.Answer.MaxResults = 5
	}
	if cfg.Answer.MaxChunks <= 0 {
		cfg.Answer.MaxChunks = 10
	}
	if cfg.Cache.Store == "" {
		cfg.Cache.Store = "postgres"
	}
	if cfg.Cache.Store != "postgres" && cfg.Cache.Store != "memory" {
		return nil, fmt.Errorf("cache.store must be postgres or memory")
	}
	if cfg.Cache.Store == "postgres" && cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.host or database.dsn is required when cache.store is postgres")
	}
	if cfg.Cache.MemorySize <= 0 {
		cfg.Cache.MemorySize = 4096
	}
	if cfg.Cache.ResponseTTLSeconds <= 0 {
		cfg.Cache.ResponseTTLSeconds = 3600
	}
	if cfg.Cache.SearchTTLSeconds <= 0 {
		cfg.Cache.SearchTTLSeconds = 900
	}
	if cfg.Cache.ContentTTLSeconds <= 0 {
		cfg.Cache.ContentTTLSeconds = 3600
	}
	if cfg.Cache.Semantic.Strategy == "" {
		cfg.Cache.Semantic.Strategy = "linear"
	}
	if cfg.Cache.Semantic.Strategy != "linear" && cfg.Cache.Semantic.Strategy != "pgvector" {
		return nil, fmt.Errorf("cache.semantic.strategy must be linear or pgvector")
	}
	if cfg.Cache.Semantic.Threshold <= 0 {
		cfg.Cache.Semantic.Threshold = 0.85
	}
	if cfg.Cache.Semantic.Threshold >= 1 {
		return nil, fmt.Errorf("cache.semantic.threshold must be below 1.0")
	}
	if cfg.Cache.Semantic.ScanLimit <= 0 {
		cfg.Cache.Semantic.ScanLimit = 100
	}
	if cfg.Cache.Semantic.TTLSeconds <= 0 {
		cfg.Cache.Semantic.TTLSeconds = 86400
	}
	if cfg.Cache.Embedding.LRUSize <= 0 {
		cfg.Cache.Embedding.LRUSize = 10000
	}
	if cfg.Cache.Embedding.LRUTTLSeconds <= 0 {
		cfg.Cache.Embedding.LRUTTLSeconds = 7200
	}
	if cfg.Cache.Embedding.DBMaxAgeDays <= 0 {
		cfg.Cache.Embedding.DBMaxAgeDays = 30
	}
	return &cfg, nil
}
