package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/marketfeed/internal/catalog"
)

type document struct {
	ID           uint            `json:"id"`
	Slug         string          `json:"slug"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	CategoryName string          `json:"category_name"`
	SellerName   string          `json:"seller_name"`
	Price        decimal.Decimal `json:"price"`
	Status       string          `json:"status"`
}

const mapping = `{
  "mappings": {
    "properties": {
      "id":            {"type": "long"},
      "slug":          {"type": "keyword"},
      "title":         {"type": "text"},
      "description":   {"type": "text"},
      "category_name": {"type": "text"},
      "seller_name":   {"type": "text"},
      "price":         {"type": "scaled_float", "scaling_factor": 100},
      "status":        {"type": "keyword"}
    }
  }
}`

// Index implements catalog.Indexer on one Elasticsearch index.
type Index struct {
	Client *elasticsearch.Client
	Name   string
}

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(res.Body)
	return fmt.Errorf("%s: %s: %s", op, res.Status(), bytes.TrimSpace(body))
}

// Ensure creates the index with its mapping when it does not exist.
func (ix *Index) Ensure(ctx context.Context) error {
	res, err := ix.Client.Indices.Exists([]string{ix.Name}, ix.Client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("index exists: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = ix.Client.Indices.Create(ix.Name,
		ix.Client.Indices.Create.WithContext(ctx),
		ix.Client.Indices.Create.WithBody(bytes.NewReader([]byte(mapping))),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("create index", res)
	}
	return nil
}

func (ix *Index) IndexProduct(ctx context.Context, p catalog.ProductView) error {
	body, err := json.Marshal(document{
		ID:           p.ID,
		Slug:         p.Slug,
		Title:        p.Title,
		Description:  p.Description,
		CategoryName: p.CategoryName,
		SellerName:   p.SellerName,
		Price:        p.Price,
		Status:       p.Status,
	})
	if err != nil {
		return err
	}
	res, err := ix.Client.Index(ix.Name, bytes.NewReader(body),
		ix.Client.Index.WithContext(ctx),
		ix.Client.Index.WithDocumentID(strconv.FormatUint(uint64(p.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("index product %d: %w", p.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index product", res)
	}
	return nil
}

// DeleteProduct treats a missing document as already deleted.
func (ix *Index) DeleteProduct(ctx context.Context, id uint) error {
	res, err := ix.Client.Delete(ix.Name, strconv.FormatUint(uint64(id), 10),
		ix.Client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete product", res)
	}
	return nil
}

// Query returns the total hit count and the ids of one page of hits in
// relevance order.
func (ix *Index) Query(ctx context.Context, q string, from, size int) (int64, []uint, error) {
	body := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"multi_match": map[string]any{
						"query":     q,
						"fields":    []string{"title^2", "description", "category_name", "seller_name"},
						"fuzziness": "AUTO",
					},
				},
				"filter": map[string]any{"term": map[string]any{"status": "active"}},
			},
		},
		"_source": []string{"id"},
		"from":    from,
		"size":    size,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, err
	}

	res, err := ix.Client.Search(
		ix.Client.Search.WithContext(ctx),
		ix.Client.Search.WithIndex(ix.Name),
		ix.Client.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, responseError("search", res)
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source struct {
					ID uint `json:"id"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("decode search response: %w", err)
	}
	ids := make([]uint, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		ids = append(ids, h.Source.ID)
	}
	return r.Hits.Total.Value, ids, nil
}
