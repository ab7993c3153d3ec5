package main

import (
	"fmt"
	"time"

	"memchat/internal/completion/anthropic"
	"memchat/internal/completion/echo"
	"memchat/internal/completion/openai"
	"memchat/internal/config"
	"memchat/internal/domain"
	"memchat/internal/embedding/cache"
	"memchat/internal/embedding/hash"
	"memchat/internal/embedding/mock"
	embopenai "memchat/internal/embedding/openai"
	"memchat/internal/vector"
	"memchat/internal/vectorstore"
	"memchat/internal/vectorstore/chromem"
	"memchat/internal/vectorstore/memory"
)

func buildEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	var emb domain.Embedder
	switch cfg.Type {
	case "hash":
		emb = hash.NewEmbedder(cfg.Dimension)
	case "mock":
		emb = mock.New(cfg.Dimension)
	case "openai":
		oc := cfg.OpenAI
		if oc == nil {
			oc = &config.OpenAIEmbedderConfig{}
		}
		client, err := embopenai.New(embopenai.Config{
			BaseURL:   oc.BaseURL,
			APIKeyEnv: oc.APIKeyEnv,
			Model:     oc.Model,
			Dimension: cfg.Dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder: %w", err)
		}
		emb = client
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
	if cfg.Cache.Enabled {
		cached, err := cache.New(emb, cfg.Cache.MaxEntries)
		if err != nil {
			return nil, fmt.Errorf("embedding cache: %w", err)
		}
		emb = cached
	}
	return emb, nil
}

func buildIndex(cfg config.VectorStoreConfig, dimension int) (vectorstore.Index, error) {
	metric, err := vector.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}
	switch cfg.Type {
	case "memory":
		return memory.NewStorage(dimension, metric)
	case "chromem":
		if metric != vector.MetricCosine {
			return nil, fmt.Errorf("chromem index only supports cosine, got %s", metric)
		}
		return chromem.NewStorage(dimension)
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

func buildCompleter(cfg config.CompleterConfig) (domain.Completer, error) {
	switch cfg.Type {
	case "echo":
		return echo.New(), nil
	case "openai":
		return openai.New(openai.Config{
			BaseURL:     cfg.BaseURL,
			APIKeyEnv:   cfg.APIKeyEnv,
			Model:       cfg.Model,
			Temperature: float32(cfg.Temperature),
			MaxTokens:   cfg.MaxTokens,
		})
	case "anthropic":
		return anthropic.New(anthropic.Config{
			BaseURL:     cfg.BaseURL,
			APIKeyEnv:   cfg.APIKeyEnv,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   int64(cfg.MaxTokens),
		})
	default:
		return nil, fmt.Errorf("unknown completer: %s", cfg.Type)
	}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
