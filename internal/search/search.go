// Package search maintains an Elasticsearch index of stock items for fuzzy lookup.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/partsdesk/internal/models"
)

const DefaultIndex = "stock"

var ErrDisabled = errors.New("full-text search is not configured")

type Config struct {
	URL      string
	Username string
	Password string
	// Transport replaces the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

func NewClient(ctx context.Context, cfg Config) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
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
	return client, nil
}

// Document is the indexed form of a stock item.
type Document struct {
	ID             uint   `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	OEMNumber      string `json:"OEM_number"`
	Manufacturer   string `json:"manufacturer"`
	VIN            string `json:"VIN"`
	EngineNumber   string `json:"engine_number"`
	ModelRange     string `json:"model_range"`
	SellingPrice   string `json:"selling_price"`
	QuantityOnHand int    `json:"quantity_on_hand"`
}

type Results struct {
	Total int64      `json:"total"`
	Items []Document `json:"items"`
}

var searchFields = []string{"name^3", "OEM_number^3", "engine_number^2", "VIN^2", "manufacturer", "description"}

type StockIndex struct {
	es    *elasticsearch.Client
	index string
}

func NewStockIndex(es *elasticsearch.Client, index string) *StockIndex {
	if index == "" {
		index = DefaultIndex
	}
	return &StockIndex{es: es, index: index}
}

// Index writes docs in one bulk request, replacing documents with the same id.
func (s *StockIndex) Index(ctx context.Context, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, d := range docs {
		meta := map[string]any{"index": map[string]any{"_index": s.index, "_id": strconv.FormatUint(uint64(d.ID), 10)}}
		if err := enc.Encode(meta); err != nil {
			return 0, err
		}
		if err := enc.Encode(d); err != nil {
			return 0, err
		}
	}

	res, err := s.es.Bulk(&buf,
		s.es.Bulk.WithContext(ctx),
		s.es.Bulk.WithIndex(s.index),
		s.es.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return 0, fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("bulk index: %s", res.Status())
	}

	var r struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, fmt.Errorf("decode bulk response: %w", err)
	}

	indexed := 0
	for _, item := range r.Items {
		for _, op := range item {
			if op.Status < 300 {
				indexed++
			}
		}
	}
	if r.Errors {
		return indexed, fmt.Errorf("bulk index: %d of %d documents failed", len(docs)-indexed, len(docs))
	}
	return indexed, nil
}

// Delete drops the document for id. A document that is already gone is not an error.
func (s *StockIndex) Delete(ctx context.Context, id uint) error {
	res, err := s.es.Delete(s.index, strconv.FormatUint(uint64(id), 10),
		s.es.Delete.WithContext(ctx),
		s.es.Delete.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete document: %s", res.Status())
	}
	return nil
}

func (s *StockIndex) Search(ctx context.Context, query string, from, size int) (Results, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    searchFields,
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return Results{}, err
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(&buf),
	)
	if err != nil {
		return Results{}, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return Results{}, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct{ Value int64 } `json:"total"`
			Hits  []struct {
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return Results{}, fmt.Errorf("decode search response: %w", err)
	}

	out := Results{Total: r.Hits.Total.Value, Items: make([]Document, len(r.Hits.Hits))}
	for i, h := range r.Hits.Hits {
		out.Items[i] = h.Source
	}
	return out, nil
}

func FromStock(items []models.StockItem) []Document {
	docs := make([]Document, len(items))
	for i, it := range items {
		docs[i] = Document{
			ID:             it.ID,
			Name:           it.Name,
			Description:    it.Description,
			OEMNumber:      it.OEMNumber,
			Manufacturer:   it.Manufacturer,
			VIN:            it.VIN,
			EngineNumber:   it.EngineNumber,
			ModelRange:     it.ModelRange,
			SellingPrice:   it.SellingPrice.StringFixed(2),
			QuantityOnHand: it.QuantityOnHand,
		}
	}
	return docs
}
