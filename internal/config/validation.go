package config

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for configuration validation, checked with errors.Is().
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidModelName indicates the generation model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbeddingDimension indicates the embedding dimension is out of range.
	ErrInvalidEmbeddingDimension = errors.New("invalid embedding dimension")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidSitemapURL indicates the sitemap URL is invalid.
	ErrInvalidSitemapURL = errors.New("invalid sitemap URL")

	// ErrInvalidSourceTag indicates the source tag is empty.
	ErrInvalidSourceTag = errors.New("invalid source tag")

	// ErrInvalidChunkSize indicates the chunk size is out of range.
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrInvalidMaxConcurrent indicates the concurrency cap is out of range.
	ErrInvalidMaxConcurrent = errors.New("invalid max concurrent")
)

// Validation bounds.
const (
	minChunkSize = 100
	maxChunkSize = 100_000

	maxConcurrentLimit = 64

	// maxEmbeddingDimension is pgvector's index limit for ivfflat.
	maxEmbeddingDimension = 2000
)

var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate checks the configuration for out-of-range or missing values.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model must not be empty", ErrInvalidEmbedderModel)
	}
	if c.EmbeddingDimension <= 0 || c.EmbeddingDimension > maxEmbeddingDimension {
		return fmt.Errorf("%w: %d (must be in 1..%d)", ErrInvalidEmbeddingDimension, c.EmbeddingDimension, maxEmbeddingDimension)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	if !strings.HasPrefix(c.SitemapURL, "http://") && !strings.HasPrefix(c.SitemapURL, "https://") {
		return fmt.Errorf("%w: %q", ErrInvalidSitemapURL, c.SitemapURL)
	}
	if strings.TrimSpace(c.SourceTag) == "" {
		return fmt.Errorf("%w: source tag must not be empty", ErrInvalidSourceTag)
	}
	if c.ChunkSize < minChunkSize || c.ChunkSize > maxChunkSize {
		return fmt.Errorf("%w: %d (must be in %d..%d)", ErrInvalidChunkSize, c.ChunkSize, minChunkSize, maxChunkSize)
	}
	if c.MaxConcurrent < 1 || c.MaxConcurrent > maxConcurrentLimit {
		return fmt.Errorf("%w: %d (must be in 1..%d)", ErrInvalidMaxConcurrent, c.MaxConcurrent, maxConcurrentLimit)
	}

	return nil
}
