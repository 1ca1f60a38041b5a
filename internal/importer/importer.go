package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"growth-dashboard/internal/models"
	"growth-dashboard/internal/observability"
	"growth-dashboard/internal/store"
)

const (
	batchSize  = 1000
	maxWorkers = 10
)

var ErrImportRunning = errors.New("an import is already running")

// Store is the write side of the metric store used by the importer.
type Store interface {
	ReplaceSnapshot(ctx context.Context, snap store.Snapshot) error
	RecordImport(ctx context.Context, filename string) (int64, error)
	FinishImport(ctx context.Context, id int64, status string, recordCount int, errMsg string) error
}

type Breakdown struct {
	Keywords int `json:"keywords"`
	Regional int `json:"regional"`
	Monthly  int `json:"monthly"`
	Channels int `json:"channels"`
}

type Result struct {
	RecordCount int       `json:"recordCount"`
	Breakdown   Breakdown `json:"breakdown"`
}

type Importer struct {
	store     Store
	logger    *slog.Logger
	batchSize int
	workers   int
	mu        sync.Mutex
}

func New(store Store, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		store:     store,
		logger:    logger,
		batchSize: batchSize,
		workers:   maxWorkers,
	}
}

// ImportDir loads keywords.csv, regional.csv, monthly.csv and channels.csv
// from dir and replaces the four collections in one transaction. Every file
// is parsed before anything is written. The run is recorded in the import
// history.
func (im *Importer) ImportDir(ctx context.Context, dir string) (*Result, error) {
	if !im.mu.TryLock() {
		return nil, ErrImportRunning
	}
	defer im.mu.Unlock()

	id, err := im.store.RecordImport(ctx, dir)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	im.logger.Info("starting import", "dir", dir, "import_id", id)

	result, err := im.importDir(ctx, dir)
	if err != nil {
		// Record the failure even when ctx was cancelled mid-import.
		finishCtx := context.WithoutCancel(ctx)
		if ferr := im.store.FinishImport(finishCtx, id, models.ImportFailed, 0, err.Error()); ferr != nil {
			im.logger.Error("failed to record import failure", "import_id", id, "error", ferr)
		}
		im.logger.Error("import failed", "dir", dir, "import_id", id, "error", err)
		return nil, err
	}

	if err := im.store.FinishImport(ctx, id, models.ImportSuccess, result.RecordCount, ""); err != nil {
		return nil, err
	}

	observability.ImportRecords.WithLabelValues(keywordsCSV.name).Add(float64(result.Breakdown.Keywords))
	observability.ImportRecords.WithLabelValues(regionalCSV.name).Add(float64(result.Breakdown.Regional))
	observability.ImportRecords.WithLabelValues(monthlyCSV.name).Add(float64(result.Breakdown.Monthly))
	observability.ImportRecords.WithLabelValues(channelsCSV.name).Add(float64(result.Breakdown.Channels))

	im.logger.Info("import complete",
		"import_id", id,
		"records", result.RecordCount,
		"keywords", result.Breakdown.Keywords,
		"regional", result.Breakdown.Regional,
		"monthly", result.Breakdown.Monthly,
		"channels", result.Breakdown.Channels,
		"duration", time.Since(start),
	)
	return result, nil
}

func (im *Importer) importDir(ctx context.Context, dir string) (*Result, error) {
	keywords, err := load(ctx, im, dir, keywordsCSV)
	if err != nil {
		return nil, err
	}
	regional, err := load(ctx, im, dir, regionalCSV)
	if err != nil {
		return nil, err
	}
	monthly, err := load(ctx, im, dir, monthlyCSV)
	if err != nil {
		return nil, err
	}
	channels, err := load(ctx, im, dir, channelsCSV)
	if err != nil {
		return nil, err
	}

	if err := uniqueKeys(monthlyCSV.file, monthly, func(m models.MonthlyMetric) string { return m.Month }); err != nil {
		return nil, err
	}
	if err := uniqueKeys(channelsCSV.file, channels, func(c models.ChannelMetric) string { return c.Month + " / " + c.Channel }); err != nil {
		return nil, err
	}

	snap := store.Snapshot{Keywords: keywords, Regional: regional, Monthly: monthly, Channels: channels}
	if err := im.store.ReplaceSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}

	b := Breakdown{
		Keywords: len(keywords),
		Regional: len(regional),
		Monthly:  len(monthly),
		Channels: len(channels),
	}
	return &Result{
		RecordCount: b.Keywords + b.Regional + b.Monthly + b.Channels,
		Breakdown:   b,
	}, nil
}

// uniqueKeys rejects rows that would collide on a unique index, naming the
// CSV line of the second occurrence.
func uniqueKeys[T any](file string, rows []T, key func(T) string) error {
	seen := make(map[string]int, len(rows))
	for i, row := range rows {
		k := key(row)
		if first, ok := seen[k]; ok {
			return fmt.Errorf("%s: line %d: duplicate %q (first seen on line %d)", file, i+2, k, first+2)
		}
		seen[k] = i
	}
	return nil
}

func load[T any](ctx context.Context, im *Importer, dir string, c collection[T]) ([]T, error) {
	path := filepath.Join(dir, c.file)
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.file, err)
	}
	defer file.Close()

	rows, err := parseCSV(ctx, file, c, im.batchSize, im.workers)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.file, err)
	}

	im.logger.Debug("parsed collection", "file", c.file, "rows", len(rows))
	return rows, nil
}

// parseCSV reads the header, then converts records in batches on a bounded
// worker pool. Output order matches input order.
func parseCSV[T any](ctx context.Context, r io.Reader, c collection[T], size, workers int) ([]T, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		cols[name] = i
	}
	for _, name := range c.required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}

	out := make([]T, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				// Line 1 is the header.
				f := &fields{line: i + 2, values: records[i], cols: cols}
				row := c.parse(f)
				if f.err != nil {
					return f.err
				}
				out[i] = row
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
