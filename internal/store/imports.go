package store

import (
	"context"
	"fmt"
	"time"

	"growth-dashboard/internal/models"
)

type importRow struct {
	ID          int64  `db:"id"`
	Filename    string `db:"filename"`
	Status      string `db:"status"`
	RecordCount int    `db:"record_count"`
	ErrorMsg    string `db:"error_msg"`
	ImportedAt  int64  `db:"imported_at"`
}

// RecordImport opens an import history entry in the processing state.
func (s *Store) RecordImport(ctx context.Context, filename string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO data_imports (filename, status, imported_at) VALUES (?, ?, ?)",
		filename, models.ImportProcessing, time.Now().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("record import: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) FinishImport(ctx context.Context, id int64, status string, recordCount int, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE data_imports SET status = ?, record_count = ?, error_msg = ? WHERE id = ?",
		status, recordCount, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("finish import %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish import %d: %w", id, ErrNotFound)
	}
	return nil
}

// ImportHistory returns the most recent imports first.
func (s *Store) ImportHistory(ctx context.Context, limit int) ([]models.DataImport, error) {
	var rows []importRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM data_imports ORDER BY imported_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("import history: %w", err)
	}

	history := make([]models.DataImport, 0, len(rows))
	for _, r := range rows {
		history = append(history, models.DataImport{
			ID:          r.ID,
			Filename:    r.Filename,
			Status:      r.Status,
			RecordCount: r.RecordCount,
			ErrorMsg:    r.ErrorMsg,
			ImportedAt:  time.UnixMilli(r.ImportedAt).UTC(),
		})
	}
	return history, nil
}
