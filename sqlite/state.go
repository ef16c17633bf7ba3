package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bkuiper/adwatch"
)

// Compile-time interface verification.
var _ adwatch.StateService = (*StateService)(nil)

// StateService implements adwatch.StateService using SQLite.
type StateService struct {
	db *DB
}

// NewStateService creates a new StateService.
func NewStateService(db *DB) *StateService {
	return &StateService{db: db}
}

// LastSeen retrieves the most recent observation.
func (s *StateService) LastSeen(ctx context.Context) (*adwatch.Seen, error) {
	var seen adwatch.Seen
	var signature int64
	var observedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT ad_id, signature, observed_at
		FROM last_seen
		WHERE id = 1
	`).Scan(&seen.AdID, &signature, &observedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, adwatch.Errorf(adwatch.ENOTFOUND, "no listing observed yet")
	}
	if err != nil {
		return nil, err
	}

	// SQLite integers are signed 64-bit; the signature round-trips through
	// a cast.
	seen.Signature = uint64(signature)

	seen.ObservedAt, err = time.Parse(time.RFC3339, observedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse observed_at: %w", err)
	}

	return &seen, nil
}

// SetLastSeen replaces the stored observation.
func (s *StateService) SetLastSeen(ctx context.Context, seen *adwatch.Seen) error {
	if seen == nil {
		return adwatch.Errorf(adwatch.EINVALID, "observation required")
	}

	observedAt := seen.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO last_seen (id, ad_id, signature, observed_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			ad_id = excluded.ad_id,
			signature = excluded.signature,
			observed_at = excluded.observed_at
	`, seen.AdID, int64(seen.Signature), observedAt.Format(time.RFC3339))

	return err
}

// Cookies retrieves the persisted cookie jar.
func (s *StateService) Cookies(ctx context.Context) ([]byte, error) {
	var jar []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT cookies FROM browser_state WHERE id = 1
	`).Scan(&jar)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, adwatch.Errorf(adwatch.ENOTFOUND, "no cookies persisted yet")
	}
	if err != nil {
		return nil, err
	}

	return jar, nil
}

// SetCookies replaces the persisted cookie jar.
func (s *StateService) SetCookies(ctx context.Context, jar []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO browser_state (id, cookies, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			cookies = excluded.cookies,
			updated_at = excluded.updated_at
	`, jar, time.Now().UTC().Format(time.RFC3339))

	return err
}
