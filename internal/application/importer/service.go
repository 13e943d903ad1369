package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/catalogd/backend/internal/domain/catalog"
	"github.com/catalogd/backend/internal/domain/shared"
	"github.com/catalogd/backend/internal/domain/upload"
	"github.com/catalogd/backend/internal/infrastructure/csvimport"
)

// Config holds import engine settings
type Config struct {
	ChunkSize   int
	ProgressTTL time.Duration
}

// Service runs CSV imports against the catalog. Rows are processed in
// chunks; per-row failures are recorded on the job ledger and never
// abort the run.
type Service struct {
	products catalog.ProductRepository
	jobs     upload.JobRepository
	progress upload.ProgressStore
	logger   *zap.Logger
	cfg      Config
}

// NewService creates a new import service
func NewService(
	products catalog.ProductRepository,
	jobs upload.JobRepository,
	progress upload.ProgressStore,
	logger *zap.Logger,
	cfg Config,
) *Service {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ProgressTTL <= 0 {
		cfg.ProgressTTL = time.Hour
	}
	return &Service{
		products: products,
		jobs:     jobs,
		progress: progress,
		logger:   logger.Named("importer"),
		cfg:      cfg,
	}
}

// Run executes the import for a job already marked processing. The
// file is read twice: a counting pass to size the progress bar, then
// the processing pass. Returns an error only for job-level failures;
// a run where every row fails still completes.
func (s *Service) Run(ctx context.Context, job *upload.Job) error {
	opts, err := job.Options()
	if err != nil {
		return err
	}

	totalRows, err := s.countRows(job.FilePath)
	if err != nil {
		return err
	}
	job.TotalRows = totalRows
	if err := s.jobs.SaveTotalRows(ctx, job.ID, totalRows); err != nil {
		return fmt.Errorf("failed to save total rows: %w", err)
	}
	s.publishProgress(ctx, job)

	file, err := os.Open(job.FilePath)
	if err != nil {
		return fmt.Errorf("failed to open upload file: %w", err)
	}
	defer file.Close()

	parser, err := csvimport.NewParser(file)
	if err != nil {
		return err
	}

	chunk := make([]rowRecord, 0, s.cfg.ChunkSize)
	for {
		row, rowNum, err := parser.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.recordRowError(job, rowNum, err.Error())
			job.ProcessedRows++
			continue
		}

		record, err := csvimport.NormalizeRow(row, rowNum)
		if err != nil {
			s.recordRowError(job, rowNum, err.Error())
			job.ProcessedRows++
			continue
		}

		chunk = append(chunk, rowRecord{record: record, rowNum: rowNum})
		if len(chunk) >= s.cfg.ChunkSize {
			s.processChunk(ctx, job, chunk, opts)
			chunk = chunk[:0]
			s.flush(ctx, job)
		}
	}
	if len(chunk) > 0 {
		s.processChunk(ctx, job, chunk, opts)
	}
	s.flush(ctx, job)

	return nil
}

type rowRecord struct {
	record csvimport.ProductRecord
	rowNum int
}

// processChunk upserts one chunk inside a transaction. Rows whose SKU
// already exists are updated; new SKUs are inserted in one statement.
// The first occurrence of a SKU within the file wins for insertion;
// later occurrences update it or are skipped per the job options.
func (s *Service) processChunk(ctx context.Context, job *upload.Job, chunk []rowRecord, opts upload.Options) {
	var result chunkResult
	err := s.products.Transact(ctx, func(repo catalog.ProductRepository) error {
		var err error
		result, err = s.upsertChunk(ctx, repo, chunk, opts)
		return err
	})
	if err != nil {
		s.logger.Warn("Chunk upsert failed, falling back to row-by-row",
			zap.String("upload_id", job.ID.String()),
			zap.Error(err),
		)
		s.processRowByRow(ctx, job, chunk, opts)
		return
	}

	job.ProcessedRows += len(chunk)
	job.CreatedCount += result.created
	job.UpdatedCount += result.updated
	job.SkippedCount += result.skipped
	job.SuccessCount += result.created + result.updated
}

// chunkResult is the accounting outcome of one committed chunk
type chunkResult struct {
	created int
	updated int
	skipped int
}

func (s *Service) upsertChunk(ctx context.Context, repo catalog.ProductRepository, chunk []rowRecord, opts upload.Options) (chunkResult, error) {
	skuLowers := make([]string, 0, len(chunk))
	for _, r := range chunk {
		skuLowers = append(skuLowers, catalog.NormalizeSKU(r.record.SKU))
	}
	existing, err := repo.FindBySKULowerIn(ctx, skuLowers)
	if err != nil {
		return chunkResult{}, err
	}

	var (
		creates  []*catalog.Product
		updates  []*catalog.Product
		inserted = make(map[string]*catalog.Product)
		updated  int
		skipped  int
	)

	for _, r := range chunk {
		key := catalog.NormalizeSKU(r.record.SKU)

		if product, ok := existing[key]; ok {
			if opts.SkipDuplicates {
				skipped++
			} else {
				if err := product.Update(r.record.Name, r.record.Description); err != nil {
					return chunkResult{}, err
				}
				updates = append(updates, product)
				updated++
			}
			continue
		}

		if prior, ok := inserted[key]; ok {
			// Same SKU appeared earlier in this file; the first row
			// inserts it, later rows refine or skip
			if opts.SkipDuplicates {
				skipped++
			} else {
				if err := prior.Update(r.record.Name, r.record.Description); err != nil {
					return chunkResult{}, err
				}
				updated++
			}
			continue
		}

		product, err := catalog.NewProduct(r.record.SKU, r.record.Name, r.record.Description)
		if err != nil {
			return chunkResult{}, err
		}
		creates = append(creates, product)
		inserted[key] = product
	}

	rowsInserted, err := repo.BulkCreate(ctx, creates, opts.SkipDuplicates)
	if err != nil {
		return chunkResult{}, err
	}
	created := int(rowsInserted)
	// Conflicts with rows inserted concurrently since the lookup count
	// as skipped
	skipped += len(creates) - created

	if err := repo.BulkUpdate(ctx, updates); err != nil {
		return chunkResult{}, err
	}

	return chunkResult{created: created, updated: updated, skipped: skipped}, nil
}

// processRowByRow retries a failed chunk one row at a time so a single
// bad row cannot sink its neighbours
func (s *Service) processRowByRow(ctx context.Context, job *upload.Job, chunk []rowRecord, opts upload.Options) {
	for _, r := range chunk {
		job.ProcessedRows++
		if err := s.upsertOne(ctx, r.record, job, opts); err != nil {
			s.recordRowError(job, r.rowNum, err.Error())
		}
	}
}

func (s *Service) upsertOne(ctx context.Context, record csvimport.ProductRecord, job *upload.Job, opts upload.Options) error {
	existing, err := s.products.FindBySKULower(ctx, catalog.NormalizeSKU(record.SKU))
	if err != nil && err != shared.ErrNotFound {
		return err
	}

	if existing != nil {
		if opts.SkipDuplicates {
			job.SkippedCount++
			return nil
		}
		if err := existing.Update(record.Name, record.Description); err != nil {
			return err
		}
		if err := s.products.Save(ctx, existing); err != nil {
			return err
		}
		job.UpdatedCount++
		job.SuccessCount++
		return nil
	}

	product, err := catalog.NewProduct(record.SKU, record.Name, record.Description)
	if err != nil {
		return err
	}
	if err := s.products.Create(ctx, product); err != nil {
		if err == shared.ErrAlreadyExists && opts.SkipDuplicates {
			job.SkippedCount++
			return nil
		}
		return err
	}
	job.CreatedCount++
	job.SuccessCount++
	return nil
}

func (s *Service) countRows(filePath string) (int, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open upload file: %w", err)
	}
	defer file.Close()
	return csvimport.CountRows(file)
}

// recordRowError appends a row failure to the ledger. A failed row is
// also a skipped row: it never reaches the product table.
func (s *Service) recordRowError(job *upload.Job, rowNum int, message string) {
	job.SkippedCount++
	if err := job.AddError(rowNum, message); err != nil {
		s.logger.Error("Failed to record row error",
			zap.String("upload_id", job.ID.String()),
			zap.Int("row", rowNum),
			zap.Error(err),
		)
	}
}

// flush persists the running counters and errors and refreshes the
// cached progress snapshot
func (s *Service) flush(ctx context.Context, job *upload.Job) {
	if err := s.jobs.SaveCounters(ctx, job); err != nil {
		s.logger.Error("Failed to save counters", zap.String("upload_id", job.ID.String()), zap.Error(err))
	}
	if err := s.jobs.SaveErrors(ctx, job); err != nil {
		s.logger.Error("Failed to save errors", zap.String("upload_id", job.ID.String()), zap.Error(err))
	}
	s.publishProgress(ctx, job)
}

// publishProgress writes the job snapshot to the progress cache. Cache
// failures are logged and ignored; status polls fall back to the
// database.
func (s *Service) publishProgress(ctx context.Context, job *upload.Job) {
	if err := s.progress.Set(ctx, job.ID.String(), job.Snapshot(), s.cfg.ProgressTTL); err != nil {
		s.logger.Warn("Failed to cache progress snapshot",
			zap.String("upload_id", job.ID.String()),
			zap.Error(err),
		)
	}
}
