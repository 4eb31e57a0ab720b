package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"histosaga-service/internal/domain"
)

// ActivityLoader loads activity JSONB documents from Postgres.
type ActivityLoader struct {
	pool *pgxpool.Pool
}

func NewActivityLoader(pool *pgxpool.Pool) *ActivityLoader {
	return &ActivityLoader{pool: pool}
}

func (l *ActivityLoader) LoadActivity(ctx context.Context, activityID string) (domain.Activity, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM activities WHERE id=$1`, activityID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Activity{}, domain.ErrActivityNotFound
	}
	if err != nil {
		return domain.Activity{}, fmt.Errorf("load activity: %w: %w", domain.ErrRemoteUnavailable, err)
	}
	return decodeActivity(activityID, raw)
}

func (l *ActivityLoader) ListActivities(ctx context.Context, subject string) ([]domain.Activity, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, data FROM activities WHERE subject=$1 ORDER BY position, id`, subject)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w: %w", domain.ErrRemoteUnavailable, err)
	}
	defer rows.Close()

	activities := make([]domain.Activity, 0)
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activity, err := decodeActivity(id, raw)
		if err != nil {
			return nil, err
		}
		activities = append(activities, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list activities: %w: %w", domain.ErrRemoteUnavailable, err)
	}
	return activities, nil
}

// decodeActivity trusts the row id over the id stored in the document.
func decodeActivity(id string, raw []byte) (domain.Activity, error) {
	var activity domain.Activity
	if err := json.Unmarshal(raw, &activity); err != nil {
		return domain.Activity{}, fmt.Errorf("unmarshal activity %s: %w", id, err)
	}
	activity.ID = id
	return activity, nil
}
