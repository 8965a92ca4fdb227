package repository

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/StimpyDev/EconomyCraft/internal/model"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// ZstdTransactionLog appends transactions as JSON lines to hourly zstd files.
// Every append is its own zstd frame so files are readable while open.
type ZstdTransactionLog struct {
	dir    string
	prefix string

	mu  sync.Mutex
	enc *zstd.Encoder
	now func() time.Time
}

// NewZstdTransactionLog creates a log writing under dir.
func NewZstdTransactionLog(dir string) (*ZstdTransactionLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transaction log directory: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	return &ZstdTransactionLog{dir: dir, prefix: "transactions", enc: enc, now: time.Now}, nil
}

func (l *ZstdTransactionLog) pathForHour(hour string) string {
	return filepath.Join(l.dir, fmt.Sprintf("%s-%s.jsonl.zst", l.prefix, hour))
}

// AppendTransaction writes one line to the current hour's file.
func (l *ZstdTransactionLog) AppendTransaction(ctx context.Context, tx model.Transaction) error {
	line, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	hour := l.now().UTC().Format("2006-01-02-15")
	f, err := os.OpenFile(l.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open transaction log: %w", err)
	}
	if _, err := f.Write(l.enc.EncodeAll(line, nil)); err != nil {
		f.Close()
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return f.Close()
}

// ListTransactions scans the log files newest first until limit entries
// involving player are found.
func (l *ZstdTransactionLog) ListTransactions(ctx context.Context, player uuid.UUID, limit int) ([]model.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(l.dir, l.prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))

	result := []model.Transaction{}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := readTransactions(path, player)
		if err != nil {
			return nil, err
		}
		result = append(result, found...)
		if limit > 0 && len(result) >= limit {
			break
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func readTransactions(path string, player uuid.UUID) ([]model.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []model.Transaction
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var tx model.Transaction
		if err := json.Unmarshal(scanner.Bytes(), &tx); err != nil {
			continue
		}
		if tx.Involves(player) {
			out = append(out, tx)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// Close releases the encoder.
func (l *ZstdTransactionLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Close()
}

var _ TransactionLog = (*ZstdTransactionLog)(nil)
