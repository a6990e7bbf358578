// Package search indexes users, polls and grids in Elasticsearch and
// answers search queries, falling back to the database when no cluster is
// configured.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/zfogg/paddock/internal/metrics"
)

// Index names
const (
	IndexUsers = "paddock-users"
	IndexPolls = "paddock-polls"
	IndexGrids = "paddock-grids"
)

// Client wraps the Elasticsearch client
type Client struct {
	es *elasticsearch.Client
}

// NewClient creates a client for url. transport may be nil; the server
// passes an otelhttp transport so queries show up in traces.
func NewClient(url string, transport http.RoundTripper) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{url},
		Transport: transport,
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	return &Client{es: es}, nil
}

// Ping checks the cluster answers
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Info(c.es.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch returned error status: %s", res.Status())
	}
	return nil
}

// InitializeIndices creates the indices with their mappings if missing
func (c *Client) InitializeIndices(ctx context.Context) error {
	for index, mapping := range indexMappings() {
		if err := c.createIndex(ctx, index, mapping); err != nil {
			return fmt.Errorf("failed to create %s index: %w", index, err)
		}
	}
	return nil
}

func indexMappings() map[string]map[string]interface{} {
	text := map[string]interface{}{"type": "text", "analyzer": "standard"}
	keyword := map[string]interface{}{"type": "keyword"}
	integer := map[string]interface{}{"type": "integer"}
	date := map[string]interface{}{"type": "date"}

	props := func(p map[string]interface{}) map[string]interface{} {
		return map[string]interface{}{
			"mappings": map[string]interface{}{"properties": p},
		}
	}

	return map[string]map[string]interface{}{
		IndexUsers: props(map[string]interface{}{
			"id": keyword,
			"username": map[string]interface{}{
				"type":     "text",
				"analyzer": "standard",
				"fields": map[string]interface{}{
					"keyword": keyword,
				},
			},
			"display_name":   text,
			"bio":            text,
			"country":        keyword,
			"follower_count": integer,
			"created_at":     date,
		}),
		IndexPolls: props(map[string]interface{}{
			"id":          keyword,
			"user_id":     keyword,
			"question":    text,
			"description": text,
			"options":     text,
			"tags":        keyword,
			"vote_count":  integer,
			"closed":      map[string]interface{}{"type": "boolean"},
			"created_at":  date,
		}),
		IndexGrids: props(map[string]interface{}{
			"id":         keyword,
			"user_id":    keyword,
			"title":      text,
			"kind":       keyword,
			"season":     integer,
			"like_count": integer,
			"created_at": date,
		}),
	}
}

func (c *Client) createIndex(ctx context.Context, indexName string, mapping map[string]interface{}) error {
	res, err := c.es.Indices.Exists([]string{indexName}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}

	mappingJSON, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	res, err = c.es.Indices.Create(indexName,
		c.es.Indices.Create.WithBody(bytes.NewReader(mappingJSON)),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("creating index", res.Status(), res.Body)
	}
	return nil
}

// Index upserts doc under id
func (c *Client) Index(ctx context.Context, index, id string, doc interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	res, err := c.es.Index(index, bytes.NewReader(body),
		c.es.Index.WithDocumentID(id),
		c.es.Index.WithContext(ctx),
	)
	if err != nil {
		metrics.ElasticsearchIndexOperationsTotal.WithLabelValues(index, "index", "error").Inc()
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		metrics.ElasticsearchIndexOperationsTotal.WithLabelValues(index, "index", "error").Inc()
		return responseError("indexing document", res.Status(), res.Body)
	}
	metrics.ElasticsearchIndexOperationsTotal.WithLabelValues(index, "index", "success").Inc()
	return nil
}

// Delete removes id; a missing document is not an error
func (c *Client) Delete(ctx context.Context, index, id string) error {
	res, err := c.es.Delete(index, id, c.es.Delete.WithContext(ctx))
	if err != nil {
		metrics.ElasticsearchIndexOperationsTotal.WithLabelValues(index, "delete", "error").Inc()
		return fmt.Errorf("failed to delete document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		metrics.ElasticsearchIndexOperationsTotal.WithLabelValues(index, "delete", "error").Inc()
		return responseError("deleting document", res.Status(), res.Body)
	}
	metrics.ElasticsearchIndexOperationsTotal.WithLabelValues(index, "delete", "success").Inc()
	return nil
}

// Hit is one search result
type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Query runs a multi_match over fields and returns hit IDs in score order
func (c *Client) Query(ctx context.Context, index, text string, fields []string, filters []map[string]interface{}, limit, offset int) ([]Hit, int, error) {
	boolQuery := map[string]interface{}{
		"must": []map[string]interface{}{
			{
				"multi_match": map[string]interface{}{
					"query":     text,
					"fields":    fields,
					"fuzziness": "AUTO",
					"type":      "best_fields",
				},
			},
		},
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	query := map[string]interface{}{
		"query":   map[string]interface{}{"bool": boolQuery},
		"from":    offset,
		"size":    limit,
		"_source": false,
	}

	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(queryJSON)),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, 0, responseError("searching", res.Status(), res.Body)
	}

	var searchResp struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID    string  `json:"_id"`
				Score float64 `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResp); err != nil {
		return nil, 0, fmt.Errorf("failed to decode search response: %w", err)
	}

	hits := make([]Hit, 0, len(searchResp.Hits.Hits))
	for _, h := range searchResp.Hits.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score})
	}
	return hits, searchResp.Hits.Total.Value, nil
}

func responseError(action, status string, body io.Reader) error {
	var errResp map[string]interface{}
	if err := json.NewDecoder(body).Decode(&errResp); err != nil {
		return fmt.Errorf("error %s [%s]", action, status)
	}
	return fmt.Errorf("error %s: [%s] %v", action, status, errResp["error"])
}
