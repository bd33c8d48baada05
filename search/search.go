// Package search maintains an optional Elasticsearch product index.
// Indexing is fire-and-forget; searching falls back to the database when
// the index is unavailable.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"grocery-delivery-api/models"

	"github.com/elastic/go-elasticsearch/v9"
)

type Index struct {
	es    *elasticsearch.Client
	index string
}

// New connects to Elasticsearch and verifies the cluster answers.
func New(url, user, password, index string) (*Index, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("create es client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("es info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("es info: %s", res.Status())
	}
	return &Index{es: client, index: index}, nil
}

// IndexProduct upserts one product document.
func (i *Index) IndexProduct(ctx context.Context, p *models.Product) error {
	doc, err := json.Marshal(map[string]any{
		"id":          p.ID,
		"store_id":    p.StoreID,
		"name":        p.Name,
		"description": p.Description,
		"category":    p.Category,
		"price":       p.Price,
		"is_active":   p.IsActive,
	})
	if err != nil {
		return err
	}
	res, err := i.es.Index(i.index, bytes.NewReader(doc),
		i.es.Index.WithDocumentID(strconv.FormatUint(uint64(p.ID), 10)),
		i.es.Index.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index product %d: %s", p.ID, res.Status())
	}
	return nil
}

// RemoveProduct drops the document; missing documents are fine.
func (i *Index) RemoveProduct(ctx context.Context, id uint) error {
	res, err := i.es.Delete(i.index, strconv.FormatUint(uint64(id), 10),
		i.es.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	res.Body.Close()
	return nil
}

// Search runs a fuzzy multi-match over name and description and returns
// the matching product IDs in relevance order.
func (i *Index) Search(ctx context.Context, query string, from, size int) ([]uint, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"name^2", "description", "category"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(i.index),
		i.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source struct {
					ID uint `json:"id"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, err
	}

	ids := make([]uint, len(r.Hits.Hits))
	for n, hit := range r.Hits.Hits {
		ids[n] = hit.Source.ID
	}
	return ids, nil
}

// Healthy reports cluster reachability for the status endpoint.
func (i *Index) Healthy(ctx context.Context) bool {
	res, err := i.es.Ping(i.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	res.Body.Close()
	return !res.IsError()
}
