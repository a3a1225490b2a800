// Package config loads server configuration from a .env file and
// environment variables. Environment variables always win over .env values
// (godotenv does not override variables that are already set).
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Retrieval RetrievalConfig
	Provider  ProviderConfig
	Storage   StorageConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
}

type RetrievalConfig struct {
	BaseURL string
	Rerank  bool
}

type ProviderConfig struct {
	HuggingFaceAPIKey string
}

type StorageConfig struct {
	DataDir   string
	CorpusDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 5000,
		},
		Retrieval: RetrievalConfig{
			BaseURL: "http://localhost:8000",
		},
		Storage: StorageConfig{
			DataDir:   "./data",
			CorpusDir: "./corpus",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		env: "RAGD_SERVER_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		env: "RAGD_RETRIEVAL_BASE_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Retrieval.BaseURL = v.(string) },
	},
	{
		env: "RAGD_RETRIEVAL_RERANK", typ: kBool,
		apply: func(cfg *Config, v any) { cfg.Retrieval.Rerank = v.(bool) },
	},
	{
		env: "HUGGINGFACE_API_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Provider.HuggingFaceAPIKey = v.(string) },
	},
	{
		env: "RAGD_STORAGE_DATA_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		env: "RAGD_STORAGE_CORPUS_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.CorpusDir = v.(string) },
	},
	{
		env: "RAGD_LOG_LEVEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

// Load reads configuration from ./.env (if present) and the environment.
// A missing provider API key is not an error here: the server starts and
// reports the provider as unavailable; requests against it fail per-turn.
func Load() (Config, error) {
	godotenv.Load()
	return loadFromEnv()
}

func loadFromEnv() (Config, error) {
	cfg := defaults()
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			i, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("parsing %s=%q: %w", s.env, raw, err)
			}
			s.apply(cfg, i)
		case kBool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return fmt.Errorf("parsing %s=%q: %w", s.env, raw, err)
			}
			s.apply(cfg, b)
		}
	}
	return nil
}
