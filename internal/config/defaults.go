package config

const (
	DefaultChunkSize           = 200
	DefaultChunkOverlap        = 30
	DefaultTopK                = 5
	DefaultLengthNormalization = 0.75
	DefaultContextSeparator    = "\n\n---\n\n"

	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Default returns a fully populated configuration.
func Default() *Config {
	cfg := &Config{RAG: DefaultRAGConfig()}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverSQLite
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".docrag/documents.db"
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".pdf", ".docx", ".xlsx", ".pptx", ".odt", ".rtf"}
	}
	cfg.RAG = cfg.RAG.Normalize()
}
