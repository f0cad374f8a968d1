// Package catalog serves the lender product list with graceful degradation:
// a Redis TTL cache in front of the staff API, and an Elasticsearch snapshot
// of the last good list behind it.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/metrics"
	"loan-intake/internal/common/observability"
	"loan-intake/internal/lending"
)

// Source names where a product list came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceStaffAPI Source = "staff_api"
	SourceSnapshot Source = "snapshot"
	SourceEmpty    Source = "empty"
)

const snapshotDocumentID = "current"

// SnapshotMapping is the index mapping for the snapshot document. Products
// are kept in _source only.
const SnapshotMapping = `{
  "mappings": {
    "dynamic": false,
    "properties": {
      "count":       {"type": "integer"},
      "refreshedAt": {"type": "date"}
    }
  }
}`

// ProductLister is the upstream product source, normally the staff API.
type ProductLister interface {
	ListLenderProducts(ctx context.Context) ([]lending.LenderProduct, error)
}

type Config struct {
	CacheKey      string
	CacheTTL      time.Duration
	SnapshotIndex string
}

// Result is a product list with its provenance. Degraded is set when the
// staff API could not be reached and the list may be stale or empty.
type Result struct {
	Products []lending.LenderProduct `json:"products"`
	Source   Source                  `json:"source"`
	Degraded bool                    `json:"degraded"`
}

type snapshot struct {
	Products    []lending.LenderProduct `json:"products"`
	Count       int                     `json:"count"`
	RefreshedAt time.Time               `json:"refreshedAt"`
}

// Service reads the catalog. The Redis and Elasticsearch clients are
// optional; a nil client skips that tier.
type Service struct {
	config Config
	staff  ProductLister
	redis  *redis.Client
	es     *elasticsearch.Client
	obs    *observability.Observability
	logger logger.Logger
}

func New(config Config, staff ProductLister, rdb *redis.Client, es *elasticsearch.Client, log logger.Logger) *Service {
	return &Service{
		config: config,
		staff:  staff,
		redis:  rdb,
		es:     es,
		logger: log.WithFields(map[string]interface{}{"component": "catalog"}),
	}
}

// WithObservability records catalog sources through o.
func (s *Service) WithObservability(o *observability.Observability) *Service {
	s.obs = o
	return s
}

// Products returns the catalog from the first tier that has it. Only a
// cancelled or expired ctx is an error; every other failure degrades.
func (s *Service) Products(ctx context.Context) (*Result, error) {
	if products, ok := s.readCache(ctx); ok {
		return s.result(ctx, products, SourceCache, false), nil
	}

	products, err := s.staff.ListLenderProducts(ctx)
	if err == nil {
		s.store(ctx, products)
		return s.result(ctx, products, SourceStaffAPI, false), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("catalog lookup interrupted: %w", ctxErr)
	}

	s.logger.Warn("staff api unavailable, falling back to snapshot", map[string]interface{}{
		"error": err.Error(),
	})

	if snap, ok := s.readSnapshot(ctx); ok {
		return s.result(ctx, snap, SourceSnapshot, true), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("catalog lookup interrupted: %w", ctxErr)
	}

	s.logger.Error("no lender catalog available", map[string]interface{}{
		"error": err.Error(),
	})
	return s.result(ctx, []lending.LenderProduct{}, SourceEmpty, true), nil
}

// Refresh bypasses the cache, fetches from the staff API and rewrites the
// cache and snapshot. Unlike Products it reports the upstream error.
func (s *Service) Refresh(ctx context.Context) (*Result, error) {
	products, err := s.staff.ListLenderProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh lender catalog: %w", err)
	}
	s.store(ctx, products)
	return s.result(ctx, products, SourceStaffAPI, false), nil
}

// Invalidate drops the cached list.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	if err := s.redis.Del(ctx, s.config.CacheKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate catalog cache: %w", err)
	}
	return nil
}

func (s *Service) result(ctx context.Context, products []lending.LenderProduct, source Source, degraded bool) *Result {
	metrics.CatalogLookups.WithLabelValues(string(source)).Inc()
	s.obs.RecordCatalogSource(ctx, string(source), degraded)
	return &Result{Products: products, Source: source, Degraded: degraded}
}

func (s *Service) readCache(ctx context.Context) ([]lending.LenderProduct, bool) {
	if s.redis == nil {
		return nil, false
	}

	val, err := s.redis.Get(ctx, s.config.CacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("catalog cache read failed", map[string]interface{}{"error": err.Error()})
		}
		return nil, false
	}

	var products []lending.LenderProduct
	if err := json.Unmarshal(val, &products); err != nil {
		s.logger.Warn("discarding unreadable catalog cache entry", map[string]interface{}{"error": err.Error()})
		return nil, false
	}
	return products, true
}

// store writes the cache and the snapshot concurrently. Failures are logged;
// the caller already has the fresh list.
func (s *Service) store(ctx context.Context, products []lending.LenderProduct) {
	data, err := json.Marshal(products)
	if err != nil {
		s.logger.Error("failed to encode catalog", map[string]interface{}{"error": err.Error()})
		return
	}

	var g errgroup.Group
	if s.redis != nil {
		g.Go(func() error {
			if err := s.redis.Set(ctx, s.config.CacheKey, data, s.config.CacheTTL).Err(); err != nil {
				return fmt.Errorf("cache write: %w", err)
			}
			return nil
		})
	}
	if s.es != nil {
		g.Go(func() error {
			return s.writeSnapshot(ctx, products)
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Warn("catalog store incomplete", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Service) writeSnapshot(ctx context.Context, products []lending.LenderProduct) error {
	body, err := json.Marshal(snapshot{
		Products:    products,
		Count:       len(products),
		RefreshedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("snapshot encode: %w", err)
	}

	res, err := esapi.IndexRequest{
		Index:      s.config.SnapshotIndex,
		DocumentID: snapshotDocumentID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, s.es)
	if err != nil {
		return fmt.Errorf("snapshot write: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("snapshot write: %s", res.Status())
	}
	return nil
}

func (s *Service) readSnapshot(ctx context.Context) ([]lending.LenderProduct, bool) {
	if s.es == nil {
		return nil, false
	}

	res, err := esapi.GetRequest{
		Index:      s.config.SnapshotIndex,
		DocumentID: snapshotDocumentID,
	}.Do(ctx, s.es)
	if err != nil {
		s.logger.Warn("snapshot read failed", map[string]interface{}{"error": err.Error()})
		return nil, false
	}
	defer res.Body.Close()

	if res.IsError() {
		if res.StatusCode != 404 {
			s.logger.Warn("snapshot read failed", map[string]interface{}{"status": res.Status()})
		}
		return nil, false
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, false
	}

	var doc struct {
		Found  bool     `json:"found"`
		Source snapshot `json:"_source"`
	}
	if err := json.Unmarshal(data, &doc); err != nil || !doc.Found || len(doc.Source.Products) == 0 {
		return nil, false
	}

	s.logger.Info("serving catalog snapshot", map[string]interface{}{
		"count":       len(doc.Source.Products),
		"refreshedAt": doc.Source.RefreshedAt,
	})
	return doc.Source.Products, true
}
