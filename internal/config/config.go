package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	OpenAI struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`

	Ingestion struct {
		ChunkSize    int `yaml:"chunkSize"`
		ChunkOverlap int `yaml:"chunkOverlap"`
		EmbeddingDim int `yaml:"embeddingDim"`
	} `yaml:"ingestion"`

	Analysis struct {
		BatchSize            int     `yaml:"batchSize"`
		TopK                 int     `yaml:"topK"`
		InteractiveChunks    int     `yaml:"interactiveChunks"`
		BatchThreshold       float64 `yaml:"batchThreshold"`
		InteractiveThreshold float64 `yaml:"interactiveThreshold"`
		MaxImages            int     `yaml:"maxImages"`
		MaxTokens            int     `yaml:"maxTokens"`
		PacingMS             int     `yaml:"pacingMs"`
	} `yaml:"analysis"`
}

// Load baca file config.yaml
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Tunables default to the values the pipeline was calibrated with; they are
// configuration, not business rules.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Ingestion.ChunkSize <= 0 {
		c.Ingestion.ChunkSize = 1500
	}
	if c.Ingestion.ChunkOverlap <= 0 {
		c.Ingestion.ChunkOverlap = 200
	}
	if c.Ingestion.EmbeddingDim <= 0 {
		c.Ingestion.EmbeddingDim = 256
	}
	if c.Analysis.BatchSize <= 0 {
		c.Analysis.BatchSize = 5
	}
	if c.Analysis.TopK <= 0 {
		c.Analysis.TopK = 5
	}
	if c.Analysis.InteractiveChunks <= 0 {
		c.Analysis.InteractiveChunks = 30
	}
	if c.Analysis.BatchThreshold <= 0 {
		c.Analysis.BatchThreshold = 0.05
	}
	if c.Analysis.InteractiveThreshold <= 0 {
		c.Analysis.InteractiveThreshold = 0.1
	}
	if c.Analysis.MaxImages <= 0 {
		c.Analysis.MaxImages = 5
	}
	if c.Analysis.MaxTokens <= 0 {
		c.Analysis.MaxTokens = 2048
	}
	if c.Analysis.PacingMS <= 0 {
		c.Analysis.PacingMS = 300
	}
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	ssl := c.Database.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		ssl,
	)
}
