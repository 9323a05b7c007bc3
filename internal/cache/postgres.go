package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/maltedev/retailsearch/internal/database"
	"github.com/maltedev/retailsearch/internal/models"
)

// PostgresStore persists entries in the search_cache table, one row per
// entry with an upsert on (fingerprint_hash, identity).
type PostgresStore struct {
	db *database.DB
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// queryRecord is the query_json column payload.
type queryRecord struct {
	Query   string           `json:"query"`
	Country models.Country   `json:"country"`
	Kind    Kind             `json:"kind"`
	Filter  FilterSpec       `json:"filter"`
	BaseFP  string           `json:"base_fingerprint,omitempty"`
}

// resultsRecord is the results_json column payload.
type resultsRecord struct {
	Items           []models.Product `json:"items"`
	RawItemCount    int              `json:"raw_item_count"`
	PaginationLinks map[int]string   `json:"pagination_links,omitempty"`
}

func (s *PostgresStore) Get(ctx context.Context, fingerprint, identity string) (*Entry, error) {
	const query = `
		SELECT query_json, results_json, created_at, expires_at
		FROM search_cache
		WHERE fingerprint_hash = $1 AND identity = $2`

	var (
		queryJSON   []byte
		resultsJSON []byte
		createdAt   time.Time
		expiresAt   *time.Time
	)
	err := s.db.QueryRow(ctx, query, fingerprint, identity).
		Scan(&queryJSON, &resultsJSON, &createdAt, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cache entry: %w", err)
	}

	var qr queryRecord
	if err := json.Unmarshal(queryJSON, &qr); err != nil {
		return nil, fmt.Errorf("failed to decode query json: %w", err)
	}
	var rr resultsRecord
	if err := json.Unmarshal(resultsJSON, &rr); err != nil {
		return nil, fmt.Errorf("failed to decode results json: %w", err)
	}

	entry := &Entry{
		Fingerprint:     fingerprint,
		Kind:            qr.Kind,
		Query:           qr.Query,
		Country:         qr.Country,
		Identity:        identity,
		Items:           rr.Items,
		RawItemCount:    rr.RawItemCount,
		PaginationLinks: rr.PaginationLinks,
		CreatedAt:       createdAt,
		BaseFingerprint: qr.BaseFP,
		Filter:          qr.Filter,
	}
	if expiresAt != nil {
		entry.ExpiresAt = *expiresAt
	}
	return entry, nil
}

func (s *PostgresStore) Put(ctx context.Context, entry *Entry) error {
	queryJSON, err := json.Marshal(queryRecord{
		Query:   entry.Query,
		Country: entry.Country,
		Kind:    entry.Kind,
		Filter:  entry.Filter,
		BaseFP:  entry.BaseFingerprint,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal query json: %w", err)
	}
	resultsJSON, err := json.Marshal(resultsRecord{
		Items:           entry.Items,
		RawItemCount:    entry.RawItemCount,
		PaginationLinks: entry.PaginationLinks,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal results json: %w", err)
	}

	const query = `
		INSERT INTO search_cache (fingerprint_hash, identity, query_json, results_json, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (fingerprint_hash, identity) DO UPDATE SET
			query_json = EXCLUDED.query_json,
			results_json = EXCLUDED.results_json,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`

	var expiresAt *time.Time
	if !entry.ExpiresAt.IsZero() {
		expiresAt = &entry.ExpiresAt
	}
	if _, err := s.db.Exec(ctx, query,
		entry.Fingerprint, entry.Identity, queryJSON, resultsJSON, entry.CreatedAt, expiresAt,
	); err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	const query = `DELETE FROM search_cache WHERE created_at < $1`

	tag, err := s.db.Exec(ctx, query, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
