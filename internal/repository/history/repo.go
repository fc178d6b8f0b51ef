package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/imgpress/imgpress/internal/model"
)

// Repository persists per-item conversion reports in PostgreSQL.
type Repository struct {
	db *dbpg.DB
}

func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// SaveBatch records every per-item report of a finished batch under one
// batch ID.
func (r *Repository) SaveBatch(ctx context.Context, batchID uuid.UUID, results []model.Result) error {
	query := `
		INSERT INTO conversions (batch_id, filename, output_name, original_size, output_size, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
    `

	for _, res := range results {
		_, err := r.db.ExecContext(
			ctx, query, batchID, res.Name, res.OutputName, res.OriginalSize, res.OutputSize, string(res.Status), res.Error,
		)
		if err != nil {
			return fmt.Errorf("save: failed to record conversion: %w", err)
		}
	}

	return nil
}
