// Package archive keeps the strokes a relay has seen, grouped by room and
// frame, so late joiners can be brought up to date.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"latksync/internal/stroke"
)

var ErrClosed = errors.New("archive is closed")

// Store is a frame archive. Strokes of a frame are returned in append order.
type Store interface {
	Append(ctx context.Context, room string, s stroke.Stroke) error
	Frame(ctx context.Context, room string, index int) ([]stroke.Stroke, error)
	// Indices returns the frame indices of a room that hold strokes, ascending.
	Indices(ctx context.Context, room string) ([]int, error)
	Close() error
}

// Entry is one archived stroke and the room it was drawn in.
type Entry struct {
	Room   string
	Stroke stroke.Stroke
}

// BatchStore is a Store that can also take many entries in one write.
type BatchStore interface {
	Store
	AppendBatch(ctx context.Context, entries []Entry) error
}

// Archive modes.
const (
	ModeMemory   = "memory"
	ModeRedis    = "redis"
	ModePostgres = "postgres"
	ModeHybrid   = "hybrid"
)

type Options struct {
	Mode        string
	RedisURL    string
	DatabaseURL string
	TTL         time.Duration // Redis key lifetime
	Logger      *slog.Logger
}

// Open builds the store selected by opts.Mode.
func Open(ctx context.Context, opts Options) (Store, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	switch opts.Mode {
	case ModeMemory, "":
		return NewMemoryStore(), nil
	case ModeRedis:
		return NewRedisStore(ctx, opts.RedisURL, opts.TTL)
	case ModePostgres:
		return NewPostgresStore(opts.DatabaseURL)
	case ModeHybrid:
		hot, err := NewRedisStore(ctx, opts.RedisURL, opts.TTL)
		if err != nil {
			return nil, err
		}
		cold, err := NewPostgresStore(opts.DatabaseURL)
		if err != nil {
			hot.Close()
			return nil, err
		}
		return NewHybridStore(hot, cold, DefaultHybridOptions(), opts.Logger), nil
	default:
		return nil, fmt.Errorf("unknown archive mode %q", opts.Mode)
	}
}

func mergeIndices(a, b []int) []int {
	seen := make(map[int]struct{}, len(a)+len(b))
	out := make([]int, 0, len(a)+len(b))
	for _, list := range [][]int{a, b} {
		for _, idx := range list {
			if _, ok := seen[idx]; ok {
				continue
			}
			seen[idx] = struct{}{}
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}
