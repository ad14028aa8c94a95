package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override file configuration.
const (
	EnvDebug        = "DOCRAG_DEBUG"
	EnvHost         = "DOCRAG_HOST"
	EnvPort         = "DOCRAG_PORT"
	EnvDriver       = "DOCRAG_STORAGE_DRIVER"
	EnvDatabasePath = "DOCRAG_DATABASE_PATH"
	EnvChunkSize    = "DOCRAG_CHUNK_SIZE"
	EnvChunkOverlap = "DOCRAG_CHUNK_OVERLAP"
	EnvTopK         = "DOCRAG_TOP_K"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored; existing variables win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays DOCRAG_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv(EnvDebug); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDebug, err)
		}
		cfg.Debug = b
	}
	if v := os.Getenv(EnvHost); v != "" {
		cfg.Server.Host = v
	}
	if err := envInt(EnvPort, &cfg.Server.Port); err != nil {
		return err
	}
	if v := os.Getenv(EnvDriver); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv(EnvDatabasePath); v != "" {
		cfg.Storage.DatabasePath = v
	}
	if err := envInt(EnvChunkSize, &cfg.RAG.ChunkSize); err != nil {
		return err
	}
	if err := envInt(EnvChunkOverlap, &cfg.RAG.ChunkOverlap); err != nil {
		return err
	}
	if err := envInt(EnvTopK, &cfg.RAG.TopK); err != nil {
		return err
	}
	cfg.RAG = cfg.RAG.Normalize()
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
