// Package artifacts hands out short-lived download ids for generated files.
// The web form links to /descargas/<id> instead of exposing filesystem paths.
package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"

	"escritos/internal/output"
	u "escritos/internal/utils"
)

const keyPrefix = "escritos:artifact:"

// DefaultTTL applies when a Store is built with a non-positive ttl.
const DefaultTTL = time.Hour

// ErrNotFound is returned for unknown or expired ids.
var ErrNotFound = errors.New("artifact not found")

// Record points at one file written by the output writer.
type Record struct {
	Path     string      `json:"path"`
	Filename string      `json:"filename"`
	Kind     output.Kind `json:"kind"`
}

// ContentType returns the MIME type to serve the record with.
func (r Record) ContentType() string {
	return r.Kind.ContentType()
}

// FromArtifact converts an output artifact into a Record.
func FromArtifact(a output.Artifact) Record {
	return Record{Path: a.Path, Filename: a.Filename, Kind: a.Kind}
}

type backend interface {
	set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	get(ctx context.Context, key string) ([]byte, error)
	close() error
}

// Store maps ids to Records with a fixed time to live.
type Store struct {
	be  backend
	ttl time.Duration
}

func newStore(be backend, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{be: be, ttl: ttl}
}

// NewRedis keeps records in Redis under the "escritos:artifact:" prefix.
func NewRedis(rdb *redis.Client, ttl time.Duration) *Store {
	return newStore(redisBackend{rdb: rdb}, ttl)
}

// NewWithStorage keeps records in any fiber storage.
func NewWithStorage(s fiber.Storage, ttl time.Duration) *Store {
	return newStore(storageBackend{s: s}, ttl)
}

// NewMemory keeps records in process memory.
func NewMemory(ttl time.Duration) *Store {
	return NewWithStorage(memoryStorage.New(), ttl)
}

// Connect returns a Redis backed store when rdb answers a ping and falls
// back to memory otherwise.
func Connect(ctx context.Context, rdb *redis.Client, ttl time.Duration) *Store {
	if rdb == nil {
		return NewMemory(ttl)
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		u.Warn("Redis unavailable for download links, falling back to memory", "addr", rdb.Options().Addr, "error", err)
		return NewMemory(ttl)
	}
	u.Info("Using Redis for download links", "addr", rdb.Options().Addr, "db", rdb.Options().DB)
	return NewRedis(rdb, ttl)
}

// Register stores rec and returns its id.
func (s *Store) Register(ctx context.Context, rec Record) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode artifact: %w", err)
	}
	id := xid.New().String()
	if err := s.be.set(ctx, keyPrefix+id, data, s.ttl); err != nil {
		return "", fmt.Errorf("store artifact: %w", err)
	}
	return id, nil
}

// Lookup returns the record registered under id.
func (s *Store) Lookup(ctx context.Context, id string) (Record, error) {
	if _, err := xid.FromString(id); err != nil {
		return Record{}, ErrNotFound
	}
	data, err := s.be.get(ctx, keyPrefix+id)
	if err != nil {
		return Record{}, fmt.Errorf("load artifact: %w", err)
	}
	if data == nil {
		return Record{}, ErrNotFound
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode artifact: %w", err)
	}
	return rec, nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.be.close()
}

type redisBackend struct {
	rdb *redis.Client
}

func (b redisBackend) set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return b.rdb.Set(ctx, key, val, ttl).Err()
}

func (b redisBackend) get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

func (b redisBackend) close() error {
	return b.rdb.Close()
}

type storageBackend struct {
	s fiber.Storage
}

func (b storageBackend) set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	return b.s.Set(key, val, ttl)
}

func (b storageBackend) get(_ context.Context, key string) ([]byte, error) {
	data, err := b.s.Get(key)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

func (b storageBackend) close() error {
	return b.s.Close()
}
