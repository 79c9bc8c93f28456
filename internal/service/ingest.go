package service

import (
	"MediaVault/config"
	"MediaVault/internal/apperr"
	"MediaVault/internal/dto"
	"MediaVault/internal/logger"
	"MediaVault/internal/metrics"
	"MediaVault/internal/storage"
	"MediaVault/model"
	"MediaVault/utils"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// preparedFile is a validated file waiting to be written.
type preparedFile struct {
	index      int
	name       string
	kind       model.AssetKind
	mime       string
	size       uint64
	storedName string
	key        string
	reader     io.ReadSeekCloser
}

// Ingest validates a batch, reserves quota for the accepted files, writes them and
// commits their rows in one transaction. Any failure after the reservation removes
// the written files and returns the reservation before reporting a PartialFailureError.
func Ingest(ctx context.Context, userID uint64, files []*dto.UploadFile, opts dto.IngestOptions) (*dto.IngestResult, error) {
	if storage.Default == nil {
		return nil, fmt.Errorf("%w: storage not initialized", apperr.ErrStorageIO)
	}
	log := logger.L().With("component", "ingest", "user_id", userID)
	policy := mediaPolicy()

	prepared, rejected := validateBatch(userID, files, policy)
	defer closePrepared(prepared)
	for _, r := range rejected {
		metrics.RecordIngestFile("unknown", "rejected", 0)
		log.Info("file rejected", "index", r.Index, "name", r.Name, "reason", r.Reason)
	}
	if len(rejected) > 0 && opts.AllOrNothing {
		metrics.RecordIngestBatch("rejected")
		return nil, &apperr.ValidationError{Rejected: rejected}
	}
	if len(prepared) == 0 {
		metrics.RecordIngestBatch("rejected")
		return nil, &apperr.ValidationError{Rejected: rejected, Cause: apperr.ErrEmptyBatch}
	}

	var total uint64
	for _, p := range prepared {
		total += p.size
	}
	if err := Reserve(ctx, nil, userID, total); err != nil {
		metrics.RecordIngestBatch("quota")
		return nil, err
	}

	// The reservation is held from here on; finish with a commit or a full rollback
	// even if the caller goes away.
	commitCtx := context.WithoutCancel(ctx)

	stored, err := writeBlobs(commitCtx, prepared, policy.UploadConcurrency)
	if err != nil {
		rollbackIngest(commitCtx, log, userID, total, prepared)
		metrics.RecordIngestBatch("rolled_back")
		return nil, &apperr.PartialFailureError{
			Stored:   stored,
			Rejected: rejected,
			Err:      fmt.Errorf("%w: %v", apperr.ErrStorageIO, err),
		}
	}

	assets := make([]*model.Asset, 0, len(prepared))
	for _, p := range prepared {
		key := p.key
		assets = append(assets, &model.Asset{
			UserID:       userID,
			Kind:         p.kind,
			OriginalName: p.name,
			StoredName:   p.storedName,
			StoragePath:  &key,
			Size:         p.size,
			MimeType:     p.mime,
			State:        model.StateActive,
		})
	}
	if err := dbFor(commitCtx, nil).Transaction(func(tx *gorm.DB) error {
		if err := CreateAssets(commitCtx, tx, assets); err != nil {
			return err
		}
		if opts.OnCommit != nil {
			return opts.OnCommit(tx, assets)
		}
		return nil
	}); err != nil {
		rollbackIngest(commitCtx, log, userID, total, prepared)
		metrics.RecordIngestBatch("rolled_back")
		return nil, &apperr.PartialFailureError{
			Stored:   stored,
			Rejected: rejected,
			Err:      fmt.Errorf("commit assets: %w", err),
		}
	}

	invalidateAssetListCache(userID)
	result := &dto.IngestResult{Rejected: rejected, Bytes: total}
	for _, a := range assets {
		metrics.RecordIngestFile(string(a.Kind), "success", a.Size)
		result.Assets = append(result.Assets, *a)
	}
	metrics.RecordIngestBatch("success")
	log.Info("batch ingested", "files", len(assets), "bytes", total, "rejected", len(rejected))
	return result, nil
}

// validateBatch opens and checks each file. Accepted files keep their readers open.
func validateBatch(userID uint64, files []*dto.UploadFile, policy config.MediaPolicy) ([]*preparedFile, []apperr.FileError) {
	var (
		prepared []*preparedFile
		rejected []apperr.FileError
	)
	for i, f := range files {
		p, err := validateFile(userID, i, f, policy)
		if err != nil {
			name := ""
			if f != nil {
				name = utils.SanitizeFilename(f.Name)
			}
			rejected = append(rejected, apperr.FileError{Index: i, Name: name, Reason: err.Error()})
			continue
		}
		prepared = append(prepared, p)
	}
	return prepared, rejected
}

func validateFile(userID uint64, index int, f *dto.UploadFile, policy config.MediaPolicy) (*preparedFile, error) {
	if f == nil || f.Open == nil {
		return nil, errors.New("no content")
	}
	name := utils.SanitizeFilename(f.Name)
	declared := normalizeMIME(f.ContentType)
	kind, ok := kindOf(declared)
	if !ok {
		return nil, fmt.Errorf("unsupported media type %q", declared)
	}
	allowed := allowedTypes(policy, kind)
	if !containsMIME(allowed, declared) {
		return nil, fmt.Errorf("%s type %q is not allowed", kind, declared)
	}
	if f.DeclaredSize <= 0 {
		return nil, errors.New("empty file")
	}
	limit := maxBytes(policy, kind)
	if uint64(f.DeclaredSize) > limit {
		return nil, fmt.Errorf("size %d exceeds %d byte limit for %s", f.DeclaredSize, limit, kind)
	}

	reader, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open: %v", err)
	}
	keep := false
	defer func() {
		if !keep {
			_ = reader.Close()
		}
	}()

	actual, err := reader.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("measure: %v", err)
	}
	if actual != f.DeclaredSize {
		return nil, fmt.Errorf("declared size %d does not match received %d bytes", f.DeclaredSize, actual)
	}
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind: %v", err)
	}
	mime, err := sniffMIME(reader, declared, kind, allowed)
	if err != nil {
		return nil, err
	}
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind: %v", err)
	}

	storedName := utils.StoredName(name)
	keep = true
	return &preparedFile{
		index:      index,
		name:       name,
		kind:       kind,
		mime:       mime,
		size:       uint64(actual),
		storedName: storedName,
		key:        AssetKey(userID, kind, storedName),
		reader:     reader,
	}, nil
}

func closePrepared(prepared []*preparedFile) {
	for _, p := range prepared {
		if p.reader != nil {
			_ = p.reader.Close()
		}
	}
}

// writeBlobs writes all files concurrently and returns the keys that were written.
func writeBlobs(ctx context.Context, prepared []*preparedFile, concurrency int) ([]string, error) {
	var (
		mu     sync.Mutex
		stored []string
	)
	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for _, p := range prepared {
		p := p
		g.Go(func() error {
			if err := storage.Default.WriteAtomic(gctx, p.key, p.reader, int64(p.size), p.mime); err != nil {
				return fmt.Errorf("write %s: %w", p.name, err)
			}
			mu.Lock()
			stored = append(stored, p.key)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return stored, err
}

// rollbackIngest deletes every key of the batch and returns the reservation.
// Keys are deleted whether or not their write reported success.
func rollbackIngest(ctx context.Context, log *logger.Logger, userID, total uint64, prepared []*preparedFile) {
	for _, p := range prepared {
		err := storage.Default.Delete(ctx, p.key)
		if err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			log.Error("orphaned blob after rollback", "key", p.key, "error", err)
		}
	}
	if err := Release(ctx, nil, userID, total); err != nil {
		log.Error("release reservation after rollback failed", "bytes", total, "error", err)
	}
	log.Warn("batch rolled back", "files", len(prepared), "bytes", total)
}
