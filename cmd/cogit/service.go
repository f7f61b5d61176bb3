package main

import (
	"os"
	"time"

	"github.com/cogitvcs/cogit/pkg/embedding"
	"github.com/cogitvcs/cogit/pkg/repo"
)

// newServiceClient builds the embedding/completion client from the
// repository config and the OPENAI_API_KEY environment variable. A
// missing key surfaces as a ServiceError of kind FailureUnconfigured.
func newServiceClient(cfg *repo.Config) (*embedding.Client, error) {
	return embedding.NewClient(embedding.ClientConfig{
		APIKey:            os.Getenv("OPENAI_API_KEY"),
		Model:             cfg.Embedding.Model,
		CompletionModel:   cfg.Embedding.CompletionModel,
		RequestTimeout:    time.Duration(cfg.Embedding.RequestTimeoutSec) * time.Second,
		MaxRetries:        cfg.Embedding.MaxRetries,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
	})
}
