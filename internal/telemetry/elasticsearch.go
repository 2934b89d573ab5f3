package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/magicapi/ai-gateway/internal/config"
)

// ElasticsearchExporter indexes one document per record. Each document is
// keyed by request id, so a retried export overwrites rather than
// duplicates.
type ElasticsearchExporter struct {
	client *elasticsearch.Client
	index  string
}

// NewElasticsearchExporter builds the exporter from configuration.
func NewElasticsearchExporter(cfg config.ElasticsearchConfig) (*ElasticsearchExporter, error) {
	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.URL},
	}
	if auth, ok := cfg.BasicAuth().Get(); ok {
		esCfg.Username = auth[0]
		esCfg.Password = auth[1]
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	return &ElasticsearchExporter{client: client, index: cfg.Index}, nil
}

func (e *ElasticsearchExporter) Name() string { return "elasticsearch" }

func (e *ElasticsearchExporter) Export(ctx context.Context, rec *Record) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: rec.RequestID,
		Body:       bytes.NewReader(doc),
	}

	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("index record: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index record: %s", res.Status())
	}
	return nil
}
