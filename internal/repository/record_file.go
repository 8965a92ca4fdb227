package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/StimpyDev/EconomyCraft/internal/model"

	"github.com/klauspost/compress/zstd"
)

const recordFileExt = ".json.zst"

// FileRecordStore implements RecordStore with one zstd-compressed JSON file
// per concern. Writes go to a temp file that is renamed into place, so a
// crash leaves either the old or the new document.
type FileRecordStore struct {
	dir string
	mu  sync.RWMutex
	enc *zstd.Encoder
	dec *zstd.Decoder
	log *slog.Logger
}

// NewFileRecordStore creates the directory if needed and returns a store rooted there.
func NewFileRecordStore(dir string, logger *slog.Logger) (*FileRecordStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("file record store initialized", "dir", dir)
	return &FileRecordStore{dir: dir, enc: enc, dec: dec, log: logger}, nil
}

func (s *FileRecordStore) path(concern string) string {
	return filepath.Join(s.dir, concern+recordFileExt)
}

// LoadRecord reads and decompresses the document for concern.
func (s *FileRecordStore) LoadRecord(ctx context.Context, concern string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := os.ReadFile(s.path(concern))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", concern, err)
	}

	data, err := s.dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s: %w", concern, err)
	}
	return data, nil
}

// SaveRecord compresses data and atomically replaces the concern file.
func (s *FileRecordStore) SaveRecord(ctx context.Context, concern string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(concern, data)
}

// BatchSaveRecords writes every record, stopping at the first failure.
func (s *FileRecordStore) BatchSaveRecords(ctx context.Context, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.writeLocked(rec.Concern, rec.Data); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileRecordStore) writeLocked(concern string, data []byte) error {
	compressed := s.enc.EncodeAll(data, nil)

	tmp, err := os.CreateTemp(s.dir, concern+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", concern, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", concern, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync %s: %w", concern, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", concern, err)
	}
	if err := os.Rename(tmpName, s.path(concern)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", concern, err)
	}
	return nil
}

// GetStats returns per-concern file sizes.
func (s *FileRecordStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]interface{})
	var total int64
	var lastSave time.Time
	files := make(map[string]int64)

	for _, concern := range model.Concerns {
		info, err := os.Stat(s.path(concern))
		if err != nil {
			continue
		}
		files[concern] = info.Size()
		total += info.Size()
		if info.ModTime().After(lastSave) {
			lastSave = info.ModTime()
		}
	}

	stats["dir"] = s.dir
	stats["records"] = files
	stats["db_size_bytes"] = total
	if !lastSave.IsZero() {
		stats["last_save"] = lastSave
	}
	return stats, nil
}

// Close releases the codec resources.
func (s *FileRecordStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dec.Close()
	return s.enc.Close()
}

var _ RecordStore = (*FileRecordStore)(nil)
