package database

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"loan-intake/internal/common/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Postgres
// ==========================

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	for range schemaStatements {
		mock.ExpectExec(`CREATE (TABLE|INDEX) IF NOT EXISTS`).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()

	require.NoError(t, EnsureSchema(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS applications`).WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err = EnsureSchema(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteAudit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs("app-1", "application_submitted", []byte(`{"duplicate":false}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = WriteAudit(context.Background(), db, AuditEntry{
		EntityID: "app-1",
		Action:   "application_submitted",
		Details:  []byte(`{"duplicate":false}`),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Redis
// ==========================

func TestNewRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))

	_, err = NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

// ==========================
// Elasticsearch
// ==========================

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func esResponse(status int, body string) *http.Response {
	h := http.Header{}
	h.Set("X-Elastic-Product", "Elasticsearch")
	h.Set("Content-Type", "application/json")
	return &http.Response{StatusCode: status, Header: h, Body: io.NopCloser(strings.NewReader(body))}
}

func newFakeES(t *testing.T, fn roundTripFunc) *ElasticsearchClient {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://es.test:9200"},
		Transport: fn,
	})
	require.NoError(t, err)
	return &ElasticsearchClient{Client: es}
}

func TestEnsureIndex(t *testing.T) {
	t.Run("existing index is left alone", func(t *testing.T) {
		var calls []string
		es := newFakeES(t, func(r *http.Request) (*http.Response, error) {
			calls = append(calls, r.Method+" "+r.URL.Path)
			return esResponse(200, ``), nil
		})

		require.NoError(t, es.EnsureIndex(context.Background(), "lender-products", `{}`))
		assert.Equal(t, []string{"HEAD /lender-products"}, calls)
	})

	t.Run("missing index is created", func(t *testing.T) {
		var calls []string
		es := newFakeES(t, func(r *http.Request) (*http.Response, error) {
			calls = append(calls, r.Method+" "+r.URL.Path)
			if r.Method == http.MethodHead {
				return esResponse(404, ``), nil
			}
			return esResponse(200, `{"acknowledged":true}`), nil
		})

		require.NoError(t, es.EnsureIndex(context.Background(), "lender-products", `{"mappings":{}}`))
		assert.Equal(t, []string{"HEAD /lender-products", "PUT /lender-products"}, calls)
	})

	t.Run("server error surfaces", func(t *testing.T) {
		es := newFakeES(t, func(r *http.Request) (*http.Response, error) {
			if r.Method == http.MethodHead {
				return esResponse(404, ``), nil
			}
			return esResponse(500, `{"error":"boom"}`), nil
		})

		assert.Error(t, es.EnsureIndex(context.Background(), "lender-products", `{}`))
	})
}
