// Package timeline keeps the append-only list of saved visits for a history
// section and persists it to durable storage.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/domain/records"
	"github.com/ehr/intake/internal/platform/clock"
	"github.com/ehr/intake/internal/platform/storage"
	"github.com/ehr/intake/internal/platform/telemetry"
)

const DefaultSavedDisplay = 2 * time.Second

var ErrSnapshotNotFound = errors.New("visit snapshot not found")

// Status is the transient save indicator.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
)

type Config struct {
	Section      string // label for logs and metrics
	Key          string // storage key
	ItemsField   string
	SavedDisplay time.Duration
	Storage      storage.Store
	Scheduler    clock.Scheduler
	Logger       zerolog.Logger
	Metrics      *telemetry.Metrics

	// OnStorageError is called for every failed read or write. Failures are
	// never returned to the caller of Save or Load.
	OnStorageError func(error)
	// OnStatus is called after every status change, including the delayed
	// Saved -> Idle transition, which runs on the scheduler's goroutine.
	OnStatus func(Status)
}

// Timeline is the visit history of one section. The in-memory history is
// authoritative; storage is best effort.
type Timeline[T records.Entity[T]] struct {
	cfg   Config
	codec Codec[T]

	mu       sync.Mutex
	history  []Snapshot[T]
	status   Status
	timer    clock.Timer
	timerGen uint64
	viewing  string
	entropy  *ulid.MonotonicEntropy
}

func New[T records.Entity[T]](cfg Config) *Timeline[T] {
	if cfg.Scheduler == nil {
		cfg.Scheduler = clock.Real{}
	}
	if cfg.SavedDisplay <= 0 {
		cfg.SavedDisplay = DefaultSavedDisplay
	}
	if cfg.ItemsField == "" {
		cfg.ItemsField = "items"
	}
	return &Timeline[T]{
		cfg:     cfg,
		codec:   Codec[T]{ItemsField: cfg.ItemsField},
		status:  StatusIdle,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// Save appends a snapshot of items and persists the whole history. It is
// refused, leaving the history unchanged, while answer is unanswered.
func (tl *Timeline[T]) Save(ctx context.Context, items []T, answer Answer) (Snapshot[T], bool) {
	if answer == Unanswered {
		tl.cfg.Metrics.SaveRefused(tl.cfg.Section)
		return Snapshot[T]{}, false
	}

	tl.setStatus(StatusSaving)

	tl.mu.Lock()
	now := tl.cfg.Scheduler.Now()
	snap := Snapshot[T]{
		ID:     ulid.MustNew(ulid.Timestamp(now), tl.entropy).String(),
		Date:   now.Format(time.DateOnly),
		Answer: answer,
		Items:  make([]T, len(items)),
	}
	for i, it := range items {
		snap.Items[i] = it.Clone()
	}
	tl.history = append(tl.history, snap)
	payload, err := tl.codec.Marshal(tl.history)
	tl.mu.Unlock()

	if err == nil {
		err = tl.put(ctx, payload)
	}
	if err != nil {
		tl.storageFailed("put", err)
	}
	tl.cfg.Metrics.VisitSaved(tl.cfg.Section)
	tl.cfg.Logger.Info().
		Str("section", tl.cfg.Section).
		Str("visit_id", snap.ID).
		Int("items", len(snap.Items)).
		Msg("visit saved")

	tl.mu.Lock()
	tl.status = StatusSaved
	if tl.timer != nil {
		tl.timer.Stop()
	}
	tl.timerGen++
	gen := tl.timerGen
	tl.timer = tl.cfg.Scheduler.AfterFunc(tl.cfg.SavedDisplay, func() { tl.expireSaved(gen) })
	tl.mu.Unlock()
	tl.notifyStatus(StatusSaved)

	return snap.clone(), true
}

func (tl *Timeline[T]) put(ctx context.Context, payload []byte) error {
	if tl.cfg.Storage == nil {
		return nil
	}
	return tl.cfg.Storage.Put(ctx, tl.cfg.Key, payload)
}

// expireSaved ends the Saved display armed as generation gen. A timer that
// fires after a later save or reset has replaced it does nothing.
func (tl *Timeline[T]) expireSaved(gen uint64) {
	tl.mu.Lock()
	if gen != tl.timerGen || tl.status != StatusSaved {
		tl.mu.Unlock()
		return
	}
	tl.status = StatusIdle
	tl.timer = nil
	tl.mu.Unlock()
	tl.notifyStatus(StatusIdle)
}

// Load replaces the in-memory history with the persisted one. A missing key,
// unreadable storage, invalid JSON or a non-array payload leave the history
// as it is.
func (tl *Timeline[T]) Load(ctx context.Context) {
	if tl.cfg.Storage == nil {
		return
	}
	data, ok, err := tl.cfg.Storage.Get(ctx, tl.cfg.Key)
	if err != nil {
		tl.storageFailed("get", err)
		return
	}
	if !ok {
		return
	}
	snaps, err := tl.codec.Unmarshal(data)
	if err != nil {
		tl.cfg.Logger.Warn().Err(err).
			Str("section", tl.cfg.Section).
			Str("key", tl.cfg.Key).
			Msg("ignoring unreadable visit history")
		return
	}
	tl.mu.Lock()
	tl.history = snaps
	tl.mu.Unlock()
}

func (tl *Timeline[T]) storageFailed(op string, err error) {
	err = fmt.Errorf("%s %s: %w", op, tl.cfg.Key, err)
	tl.cfg.Metrics.StorageError(op)
	tl.cfg.Logger.Error().Err(err).Str("section", tl.cfg.Section).Msg("visit history storage failed")
	if tl.cfg.OnStorageError != nil {
		tl.cfg.OnStorageError(err)
	}
}

// History returns copies of all snapshots, oldest first.
func (tl *Timeline[T]) History() []Snapshot[T] {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	out := make([]Snapshot[T], len(tl.history))
	for i, s := range tl.history {
		out[i] = s.clone()
	}
	return out
}

func (tl *Timeline[T]) Len() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return len(tl.history)
}

// Latest returns the most recent snapshot.
func (tl *Timeline[T]) Latest() (Snapshot[T], bool) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if len(tl.history) == 0 {
		return Snapshot[T]{}, false
	}
	return tl.history[len(tl.history)-1].clone(), true
}

func (tl *Timeline[T]) Get(id string) (Snapshot[T], error) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	for _, s := range tl.history {
		if s.ID == id {
			return s.clone(), nil
		}
	}
	return Snapshot[T]{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
}

// View opens the read-only projection of a saved visit.
func (tl *Timeline[T]) View(id string) (Snapshot[T], error) {
	s, err := tl.Get(id)
	if err != nil {
		return s, err
	}
	tl.mu.Lock()
	tl.viewing = id
	tl.mu.Unlock()
	return s, nil
}

func (tl *Timeline[T]) CloseView() {
	tl.mu.Lock()
	tl.viewing = ""
	tl.mu.Unlock()
}

// Viewing returns the snapshot currently opened with View.
func (tl *Timeline[T]) Viewing() (Snapshot[T], bool) {
	tl.mu.Lock()
	id := tl.viewing
	tl.mu.Unlock()
	if id == "" {
		return Snapshot[T]{}, false
	}
	s, err := tl.Get(id)
	return s, err == nil
}

func (tl *Timeline[T]) Status() Status {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.status
}

// ResetStatus cancels a pending Saved -> Idle transition and returns to Idle.
func (tl *Timeline[T]) ResetStatus() {
	tl.mu.Lock()
	if tl.timer != nil {
		tl.timer.Stop()
		tl.timer = nil
	}
	tl.timerGen++
	changed := tl.status != StatusIdle
	tl.status = StatusIdle
	tl.viewing = ""
	tl.mu.Unlock()
	if changed {
		tl.notifyStatus(StatusIdle)
	}
}

func (tl *Timeline[T]) setStatus(s Status) {
	tl.mu.Lock()
	tl.status = s
	tl.mu.Unlock()
	tl.notifyStatus(s)
}

func (tl *Timeline[T]) notifyStatus(s Status) {
	if tl.cfg.OnStatus != nil {
		tl.cfg.OnStatus(s)
	}
}

// Codec exposes the persisted format (CLI dumps, loaders).
func (tl *Timeline[T]) Codec() Codec[T] { return tl.codec }
