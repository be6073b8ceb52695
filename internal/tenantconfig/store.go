// Package tenantconfig owns the durable per-tenant model credential and
// model choice. It is the only writer of the backing object store.
package tenantconfig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shawn/slack-gpt-tenancy/internal/metrics"
	"github.com/shawn/slack-gpt-tenancy/internal/objstore"
)

// Store maps a tenant identity to its Record.
type Store struct {
	backend objstore.Store
}

func New(backend objstore.Store) *Store {
	return &Store{backend: backend}
}

// Get returns the tenant's record. Any failure (not found, malformed
// payload, backend error) is reported as absent so callers fall back to
// static defaults.
func (s *Store) Get(ctx context.Context, tenantID string) (Record, bool) {
	if tenantID == "" {
		return Record{}, false
	}
	payload, err := s.backend.Get(ctx, tenantID)
	if err != nil {
		if !errors.Is(err, objstore.ErrNotFound) {
			slog.Warn("tenant config: get failed", "tenant", tenantID, "err", err)
			metrics.StoreErrors.WithLabelValues("get").Inc()
		}
		return Record{}, false
	}
	rec, err := Decode(payload)
	if err != nil {
		slog.Warn("tenant config: undecodable record", "tenant", tenantID, "err", err)
		metrics.StoreErrors.WithLabelValues("decode").Inc()
		return Record{}, false
	}
	if rec.Credential == "" {
		return Record{}, false
	}
	return rec, true
}

// Put overwrites the tenant's record.
func (s *Store) Put(ctx context.Context, tenantID string, rec Record) error {
	if tenantID == "" {
		return fmt.Errorf("tenant config: empty tenant id")
	}
	payload, err := Encode(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := s.backend.Put(ctx, tenantID, payload); err != nil {
		metrics.StoreErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("put tenant config: %w", err)
	}
	return nil
}

// Delete removes the tenant's record. Deleting an absent record succeeds.
func (s *Store) Delete(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return nil
	}
	if err := s.backend.Delete(ctx, tenantID); err != nil {
		metrics.StoreErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("delete tenant config: %w", err)
	}
	return nil
}
