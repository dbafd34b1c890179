// Package search mirrors products into an Elasticsearch index and answers
// keyword queries with ids that the catalog resolves into views.
package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/elastic/go-elasticsearch/v9"
)

type ClientConfig struct {
	Addresses []string
	Username  string
	Password  string
}

// Connect builds a client and checks the cluster answers.
func Connect(ctx context.Context, cfg ClientConfig, log *slog.Logger) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch info: %s: %s", res.Status(), body)
	}

	if log != nil {
		log.Info("elasticsearch_connected", "addresses", cfg.Addresses)
	}
	return client, nil
}
