package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/facewatch/facewatch/internal/database"
)

// SubjectRepository provides PostgreSQL-backed access to the subject gallery.
type SubjectRepository struct {
	pool *Pool
}

// NewSubjectRepository creates a new PostgreSQL subject repository.
func NewSubjectRepository(pool *Pool) *SubjectRepository {
	return &SubjectRepository{pool: pool}
}

// GetAllWithImagery returns every subject that has a reference photo.
func (r *SubjectRepository) GetAllWithImagery(ctx context.Context) ([]database.Subject, error) {
	query := `
		SELECT id, full_name, image, ref_embedding, created_at
		FROM subjects
		WHERE image IS NOT NULL AND length(image) > 0
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	defer rows.Close()

	var subjects []database.Subject
	for rows.Next() {
		var s database.Subject
		var vec *pgvector.Vector
		if err := rows.Scan(&s.ID, &s.FullName, &s.Image, &vec, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		if vec != nil {
			s.RefEmbedding = vec.Slice()
		}
		subjects = append(subjects, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}
	return subjects, nil
}

// SaveRefEmbedding stores the cached reference embedding for a subject.
func (r *SubjectRepository) SaveRefEmbedding(ctx context.Context, subjectID int64, embedding []float32) error {
	vec := pgvector.NewVector(embedding)
	if _, err := r.pool.Exec(ctx,
		"UPDATE subjects SET ref_embedding = $1 WHERE id = $2", vec, subjectID,
	); err != nil {
		return fmt.Errorf("save reference embedding: %w", err)
	}
	return nil
}
