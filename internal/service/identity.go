package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/StimpyDev/EconomyCraft/internal/cache"
	"github.com/StimpyDev/EconomyCraft/internal/repository"

	"github.com/google/uuid"
)

// Directory resolves player names and ids.
type Directory interface {
	ResolveName(ctx context.Context, id uuid.UUID) (string, error)
	ResolveID(ctx context.Context, name string) (uuid.UUID, error)
	Register(ctx context.Context, id uuid.UUID, name string) error
}

const (
	nameKeyPrefix = "player:name:"
	idKeyPrefix   = "player:id:"
)

// CachedDirectory reads through a cache in front of a PlayerRepository.
type CachedDirectory struct {
	repo  repository.PlayerRepository
	cache cache.Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewCachedDirectory creates a directory backed by repo.
func NewCachedDirectory(repo repository.PlayerRepository, c cache.Cache, ttl time.Duration, logger *slog.Logger) *CachedDirectory {
	return &CachedDirectory{repo: repo, cache: c, ttl: ttl, log: logger}
}

// ResolveName returns the last known name of id.
func (d *CachedDirectory) ResolveName(ctx context.Context, id uuid.UUID) (string, error) {
	data, err := d.cache.GetOrSet(ctx, nameKeyPrefix+id.String(), d.ttl, func() ([]byte, error) {
		name, err := d.repo.GetPlayerName(ctx, id)
		if err != nil {
			return nil, err
		}
		return []byte(name), nil
	})
	if err != nil {
		return "", lookupError("resolve name", err)
	}
	return string(data), nil
}

// ResolveID returns the id of name, case-insensitively.
func (d *CachedDirectory) ResolveID(ctx context.Context, name string) (uuid.UUID, error) {
	data, err := d.cache.GetOrSet(ctx, idKeyPrefix+strings.ToLower(name), d.ttl, func() ([]byte, error) {
		id, err := d.repo.GetPlayerID(ctx, name)
		if err != nil {
			return nil, err
		}
		return []byte(id.String()), nil
	})
	if err != nil {
		return uuid.Nil, lookupError("resolve id", err)
	}
	id, err := uuid.ParseBytes(data)
	if err != nil {
		return uuid.Nil, &Error{Kind: KindNotFound, Op: "resolve id", Err: err}
	}
	return id, nil
}

// Register stores name for id and refreshes the cached entries.
func (d *CachedDirectory) Register(ctx context.Context, id uuid.UUID, name string) error {
	const op = "register player"
	if strings.TrimSpace(name) == "" {
		return newError(KindInvalidAmount, op, "name is empty")
	}

	old, oldErr := d.repo.GetPlayerName(ctx, id)
	if err := d.repo.UpsertPlayer(ctx, id, name); err != nil {
		return &Error{Kind: KindPersistenceFailure, Op: op, Err: err}
	}

	if oldErr == nil && !strings.EqualFold(old, name) {
		if err := d.cache.Delete(ctx, idKeyPrefix+strings.ToLower(old)); err != nil {
			d.log.Warn("failed to evict stale name", "player", id, "error", err)
		}
	}
	if err := d.cache.Set(ctx, nameKeyPrefix+id.String(), []byte(name), d.ttl); err != nil {
		d.log.Warn("failed to cache player name", "player", id, "error", err)
	}
	if err := d.cache.Set(ctx, idKeyPrefix+strings.ToLower(name), []byte(id.String()), d.ttl); err != nil {
		d.log.Warn("failed to cache player id", "player", id, "error", err)
	}
	return nil
}

func lookupError(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &Error{Kind: KindNotFound, Op: op, Msg: "unknown player"}
	}
	return &Error{Kind: KindUnavailable, Op: op, Err: err}
}

// MemoryDirectory keeps the directory in process memory.
type MemoryDirectory struct {
	mu     sync.RWMutex
	names  map[uuid.UUID]string
	byName map[string]uuid.UUID
}

// NewMemoryDirectory creates an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		names:  make(map[uuid.UUID]string),
		byName: make(map[string]uuid.UUID),
	}
}

func (d *MemoryDirectory) ResolveName(_ context.Context, id uuid.UUID) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	name, ok := d.names[id]
	if !ok {
		return "", newError(KindNotFound, "resolve name", "unknown player")
	}
	return name, nil
}

func (d *MemoryDirectory) ResolveID(_ context.Context, name string) (uuid.UUID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byName[strings.ToLower(name)]
	if !ok {
		return uuid.Nil, newError(KindNotFound, "resolve id", "unknown player")
	}
	return id, nil
}

func (d *MemoryDirectory) Register(_ context.Context, id uuid.UUID, name string) error {
	if strings.TrimSpace(name) == "" {
		return newError(KindInvalidAmount, "register player", "name is empty")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.names[id]; ok {
		delete(d.byName, strings.ToLower(old))
	}
	d.names[id] = name
	d.byName[strings.ToLower(name)] = id
	return nil
}
