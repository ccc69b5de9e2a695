package repository

import (
	"context"
	"time"

	"github.com/atinyakov/linkcore/internal/models"
	"github.com/atinyakov/linkcore/internal/storage"
)

type activityRepo struct{ *Repository }

// Append inserts the whole batch in one transaction.
func (r *activityRepo) Append(ctx context.Context, entries []models.LinkActivity) error {
	if len(entries) == 0 {
		return nil
	}

	return r.WithinTx(ctx, func(tx storage.Store) error {
		q := tx.(*Repository).q
		for i := range entries {
			e := &entries[i]
			if e.Timestamp.IsZero() {
				e.Timestamp = time.Now().UTC()
			}
			details, err := encodeDetails(e.Details)
			if err != nil {
				return err
			}

			row := q.QueryRowContext(ctx,
				`INSERT INTO link_activities (kind, action, ts, actor_id, company_id, item_id, item_name, details)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id;`,
				string(e.Kind), e.Action, e.Timestamp, e.ActorID, e.CompanyID, e.ItemID, e.ItemName, details,
			)
			if err := row.Scan(&e.ID); err != nil {
				return mapError(err)
			}
		}
		return nil
	})
}

func (r *activityRepo) Recent(ctx context.Context, companyID string, limit int) ([]models.LinkActivity, error) {
	if limit < 1 {
		limit = 5
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT id, kind, action, ts, actor_id, company_id, item_id, item_name, details
		FROM link_activities WHERE company_id = $1 ORDER BY ts DESC, id LIMIT $2;`,
		companyID, limit,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	items := make([]models.LinkActivity, 0)
	for rows.Next() {
		var (
			a   models.LinkActivity
			raw []byte
		)
		if err := rows.Scan(&a.ID, &a.Kind, &a.Action, &a.Timestamp, &a.ActorID, &a.CompanyID,
			&a.ItemID, &a.ItemName, &raw); err != nil {
			return nil, err
		}
		if a.Details, err = decodeDetails(raw); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
