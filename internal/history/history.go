// Package history keeps a local record of past runs in BadgerDB so a new
// report can be compared with the previous one for the same profile.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/dshills/synthcheck/internal/schema"
)

// Config holds configuration for a history store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string
	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	// Logger receives BadgerDB's internal log lines. Nil disables them.
	Logger *slog.Logger
}

// DefaultConfig returns the configuration for a persistent store at path.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for a throwaway store.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Snapshot is what is kept of one run.
type Snapshot struct {
	RunID      string    `json:"run_id"`
	RecordedAt time.Time `json:"recorded_at"`
	Profile    string    `json:"profile"`
	// Scopes maps a module name, or schema.ScopeTotal, to its metrics.
	Scopes      map[string]schema.MetricRecord `json:"scopes"`
	Transistors int                            `json:"transistors"`
	Overall     schema.Status                  `json:"overall"`
}

// SnapshotOf extracts the recorded fields of report. Modules without a
// summary are left out.
func SnapshotOf(report *schema.Report) Snapshot {
	s := Snapshot{
		RecordedAt:  report.GeneratedAt.UTC(),
		Profile:     report.Input.Profile,
		Scopes:      make(map[string]schema.MetricRecord, len(report.Modules)+1),
		Transistors: report.Estimate.Transistors,
		Overall:     report.Summary.Overall,
	}
	for _, m := range report.Modules {
		if m.Stats.Present && len(m.Stats.Metrics) > 0 {
			s.Scopes[m.Name] = m.Stats.Metrics
		}
	}
	if len(report.Totals) > 0 {
		s.Scopes[schema.ScopeTotal] = report.Totals
	}
	return s
}

// Store is a BadgerDB-backed run history. It is safe for concurrent use.
type Store struct {
	db    *badger.DB
	newID func() string
}

// Open opens the store described by cfg, creating the directory if needed.
// The caller must Close it.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("history: path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("history: create %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	return &Store{db: db, newID: uuid.NewString}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("history: close: %w", err)
	}
	return nil
}

func profilePrefix(profile string) []byte {
	return []byte("run/" + profile + "/")
}

// runKey orders runs of one profile by time; the id breaks ties.
func runKey(s Snapshot) []byte {
	return fmt.Appendf(profilePrefix(s.Profile), "%020d/%s", s.RecordedAt.UnixNano(), s.RunID)
}

// Record stores a snapshot of report under a fresh run id and returns it.
func (s *Store) Record(ctx context.Context, report *schema.Report) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	snap := SnapshotOf(report)
	snap.RunID = s.newID()

	val, err := json.Marshal(snap)
	if err != nil {
		return Snapshot{}, fmt.Errorf("history: encode: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(runKey(snap), val)
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("history: record %s: %w", snap.RunID, err)
	}
	return snap, nil
}

// Latest returns the most recent snapshot for profile. ok is false when no
// run has been recorded.
func (s *Store) Latest(ctx context.Context, profile string) (Snapshot, bool, error) {
	list, err := s.List(ctx, profile, 1)
	if err != nil || len(list) == 0 {
		return Snapshot{}, false, err
	}
	return list[0], true, nil
}

// List returns up to limit snapshots for profile, newest first. A limit of
// zero or less returns all of them.
func (s *Store) List(ctx context.Context, profile string, limit int) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := profilePrefix(profile)
	var out []Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(slices.Clone(prefix), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var snap Snapshot
			err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &snap)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, snap)
			if limit > 0 && len(out) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("history: list %s: %w", profile, err)
	}
	return out, nil
}

// Compare lists, per scope and metric, the values present in both prev and
// the current report. Scopes follow the report's module order with the total
// last; metrics follow schema.AllMetrics.
func Compare(prev Snapshot, report *schema.Report) *schema.Baseline {
	cur := SnapshotOf(report)
	b := &schema.Baseline{RunID: prev.RunID, RecordedAt: prev.RecordedAt, Deltas: []schema.Delta{}}

	scopes := make([]string, 0, len(report.Modules)+1)
	for _, m := range report.Modules {
		scopes = append(scopes, m.Name)
	}
	scopes = append(scopes, schema.ScopeTotal)

	for _, scope := range scopes {
		before, ok := prev.Scopes[scope]
		if !ok {
			continue
		}
		after, ok := cur.Scopes[scope]
		if !ok {
			continue
		}
		for _, m := range schema.AllMetrics {
			p, okP := before.Get(m)
			c, okC := after.Get(m)
			if okP && okC {
				b.Deltas = append(b.Deltas, schema.Delta{Scope: scope, Metric: m, Previous: p, Current: c})
			}
		}
	}
	return b
}
