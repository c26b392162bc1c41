package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/linkmint/linkmint/internal/app/model"
)

// AccessRecorder persists one redirect hit: the counter bump and the stat
// row commit together or not at all, so access_count never drifts from the
// stat history by partial failure.
type AccessRecorder interface {
	Record(ctx context.Context, ev model.AccessEvent) error
}

type pgAccessRecorder struct {
	pool *pgxpool.Pool
}

// NewAccessRecorder returns a pgx-backed AccessRecorder. The redirect hot
// path writes raw SQL through the pool instead of going through the ORM.
func NewAccessRecorder(pool *pgxpool.Pool) AccessRecorder {
	return &pgAccessRecorder{pool: pool}
}

func (r *pgAccessRecorder) Record(ctx context.Context, ev model.AccessEvent) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("record access: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// Relative increment inside the transaction, not read-modify-write in
	// the app, so concurrent redirects of one code never lose counts.
	tag, err := tx.Exec(ctx,
		`UPDATE links SET access_count = access_count + 1, last_accessed = $1 WHERE id = $2`,
		ev.AccessedAt, ev.LinkID,
	)
	if err != nil {
		return fmt.Errorf("record access: update counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Link deleted since the event was captured; drop the hit.
		return ErrLinkNotFound
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO link_stats (link_id, accessed_at, ip_address, user_agent, referer)
		 VALUES ($1, $2, $3, $4, $5)`,
		ev.LinkID, ev.AccessedAt, nullable(ev.IP), nullable(ev.UserAgent), nullable(ev.Referer),
	)
	if err != nil {
		return fmt.Errorf("record access: insert stat: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("record access: commit: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
