package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/facewatch/facewatch/internal/database"
)

// MatchRepository provides append and query access to the match log.
type MatchRepository struct {
	pool *Pool
}

// NewMatchRepository creates a new PostgreSQL match repository.
func NewMatchRepository(pool *Pool) *MatchRepository {
	return &MatchRepository{pool: pool}
}

// Append writes one match event.
func (r *MatchRepository) Append(ctx context.Context, event database.MatchEvent) error {
	var vec *pgvector.Vector
	if len(event.Embedding) > 0 {
		v := pgvector.NewVector(event.Embedding)
		vec = &v
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	if _, err := r.pool.Exec(ctx, `
		INSERT INTO match_events (capture_time, frame, camera_id, subject_id, subject_name, distance, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, event.CaptureTime, event.Frame, event.CameraID, event.SubjectID,
		event.SubjectName, event.Distance, vec, createdAt,
	); err != nil {
		return fmt.Errorf("insert match event: %w", err)
	}
	return nil
}

// DistinctSubjectsSince returns the distinct subject IDs that matched at or
// after the cutoff time.
func (r *MatchRepository) DistinctSubjectsSince(ctx context.Context, cutoff time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT subject_id
		FROM match_events
		WHERE subject_id IS NOT NULL AND capture_time >= $1
		ORDER BY subject_id
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query distinct subjects: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subject id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distinct subjects: %w", err)
	}
	return ids, nil
}

// LatestForSubject returns the most recent match event for a subject, or nil
// if the subject never matched.
func (r *MatchRepository) LatestForSubject(ctx context.Context, subjectID int64) (*database.MatchEvent, error) {
	var ev database.MatchEvent
	var vec *pgvector.Vector

	err := r.pool.QueryRow(ctx, `
		SELECT id, capture_time, frame, camera_id, subject_id, subject_name, distance, embedding, created_at
		FROM match_events
		WHERE subject_id = $1
		ORDER BY capture_time DESC
		LIMIT 1
	`, subjectID).Scan(
		&ev.ID, &ev.CaptureTime, &ev.Frame, &ev.CameraID, &ev.SubjectID,
		&ev.SubjectName, &ev.Distance, &vec, &ev.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest match: %w", err)
	}
	if vec != nil {
		ev.Embedding = vec.Slice()
	}
	return &ev, nil
}
