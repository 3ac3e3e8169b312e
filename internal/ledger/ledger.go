// Package ledger is the typed view over the local key-value store: the full
// sale collection, the pending sync queue, the per-sale attempt counters and
// the table names. Every read-modify-write runs under one mutex so the
// recording path and the sync engine never overwrite each other's changes.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"mesapos/backend/internal/domain"
	"mesapos/backend/internal/localstore"
)

const (
	KeyRecords    = "sales:records"
	KeyPending    = "sales:pending"
	KeyAttempts   = "sales:attempts"
	KeyTableNames = "tables:names"
)

var ErrCorrupt = errors.New("corrupt local data")

type Ledger struct {
	mu sync.Mutex
	kv localstore.KV
}

func New(kv localstore.KV) *Ledger {
	return &Ledger{kv: kv}
}

// State is a consistent read of the three sync keys.
type State struct {
	Records  []domain.SaleRecord
	Pending  []string
	Attempts map[string]int
}

// Outcome is what one sync pass wants applied. Synced IDs get synced=true
// and leave the queue; Dropped IDs leave the queue with synced untouched;
// Attempts holds the new counter for IDs that stay queued.
type Outcome struct {
	Synced   []string
	Dropped  []string
	Attempts map[string]int
}

func (o Outcome) Empty() bool {
	return len(o.Synced) == 0 && len(o.Dropped) == 0 && len(o.Attempts) == 0
}

func (l *Ledger) Records(ctx context.Context) ([]domain.SaleRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readRecords(ctx)
}

func (l *Ledger) Pending(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readPending(ctx)
}

func (l *Ledger) Attempts(ctx context.Context) (map[string]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readAttempts(ctx)
}

func (l *Ledger) Snapshot(ctx context.Context) (State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.readRecords(ctx)
	if err != nil {
		return State{}, err
	}
	pending, err := l.readPending(ctx)
	if err != nil {
		return State{}, err
	}
	attempts, err := l.readAttempts(ctx)
	if err != nil {
		return State{}, err
	}
	return State{Records: records, Pending: pending, Attempts: attempts}, nil
}

// AppendRecord adds rec to the collection and rewrites it whole.
func (l *Ledger) AppendRecord(ctx context.Context, rec domain.SaleRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.readRecords(ctx)
	if err != nil {
		return err
	}
	for _, existing := range records {
		if existing.ID == rec.ID {
			return fmt.Errorf("sale %s already recorded", rec.ID)
		}
	}
	return l.write(ctx, KeyRecords, append(records, rec))
}

func (l *Ledger) MarkSynced(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.readRecords(ctx)
	if err != nil {
		return err
	}
	if !markSynced(records, map[string]struct{}{id: {}}) {
		return nil
	}
	return l.write(ctx, KeyRecords, records)
}

// Enqueue puts id on the pending queue once and resets its attempt counter.
func (l *Ledger) Enqueue(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	pending, err := l.readPending(ctx)
	if err != nil {
		return err
	}
	attempts, err := l.readAttempts(ctx)
	if err != nil {
		return err
	}

	queued := false
	for _, existing := range pending {
		if existing == id {
			queued = true
			break
		}
	}
	if !queued {
		pending = append(pending, id)
	}
	attempts[id] = 0

	if err := l.write(ctx, KeyPending, pending); err != nil {
		return err
	}
	return l.write(ctx, KeyAttempts, attempts)
}

// ApplySyncOutcome re-reads all keys under the lock and applies out on top,
// so sales recorded while a sync pass was running are kept. Each key is
// written at most once.
func (l *Ledger) ApplySyncOutcome(ctx context.Context, out Outcome) error {
	if out.Empty() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	leaving := make(map[string]struct{}, len(out.Synced)+len(out.Dropped))
	synced := make(map[string]struct{}, len(out.Synced))
	for _, id := range out.Synced {
		leaving[id] = struct{}{}
		synced[id] = struct{}{}
	}
	for _, id := range out.Dropped {
		leaving[id] = struct{}{}
	}

	if len(synced) > 0 {
		records, err := l.readRecords(ctx)
		if err != nil {
			return err
		}
		if markSynced(records, synced) {
			if err := l.write(ctx, KeyRecords, records); err != nil {
				return err
			}
		}
	}

	pending, err := l.readPending(ctx)
	if err != nil {
		return err
	}
	attempts, err := l.readAttempts(ctx)
	if err != nil {
		return err
	}

	kept := pending[:0]
	for _, id := range pending {
		if _, ok := leaving[id]; !ok {
			kept = append(kept, id)
		}
	}
	for id := range leaving {
		delete(attempts, id)
	}
	for id, count := range out.Attempts {
		if _, ok := leaving[id]; !ok {
			attempts[id] = count
		}
	}

	if err := l.write(ctx, KeyPending, kept); err != nil {
		return err
	}
	return l.write(ctx, KeyAttempts, attempts)
}

// Clear drops every sale and both sync queues. Table names are kept.
func (l *Ledger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, key := range []string{KeyRecords, KeyPending, KeyAttempts} {
		if err := l.kv.Remove(ctx, key); err != nil {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	return nil
}

func (l *Ledger) TableName(ctx context.Context, number int) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	names, err := l.readTableNames(ctx)
	if err != nil {
		return "", false, err
	}
	name, ok := names[strconv.Itoa(number)]
	return name, ok, nil
}

// SetTableName stores a display name for a table; an empty name clears it.
func (l *Ledger) SetTableName(ctx context.Context, number int, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	names, err := l.readTableNames(ctx)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		delete(names, strconv.Itoa(number))
	} else {
		names[strconv.Itoa(number)] = name
	}
	return l.write(ctx, KeyTableNames, names)
}

func (l *Ledger) TableNames(ctx context.Context) ([]domain.TableName, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	names, err := l.readTableNames(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TableName, 0, len(names))
	for key, name := range names {
		number, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		out = append(out, domain.TableName{Number: number, Name: name})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Number < out[j].Number
	})
	return out, nil
}

func markSynced(records []domain.SaleRecord, ids map[string]struct{}) bool {
	changed := false
	for i := range records {
		if _, ok := ids[records[i].ID]; ok && !records[i].Synced {
			records[i].Synced = true
			changed = true
		}
	}
	return changed
}

func (l *Ledger) readRecords(ctx context.Context) ([]domain.SaleRecord, error) {
	records := []domain.SaleRecord{}
	if err := l.read(ctx, KeyRecords, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []domain.SaleRecord{}
	}
	return records, nil
}

func (l *Ledger) readPending(ctx context.Context) ([]string, error) {
	pending := []string{}
	if err := l.read(ctx, KeyPending, &pending); err != nil {
		return nil, err
	}
	if pending == nil {
		pending = []string{}
	}
	return pending, nil
}

func (l *Ledger) readAttempts(ctx context.Context) (map[string]int, error) {
	attempts := map[string]int{}
	if err := l.read(ctx, KeyAttempts, &attempts); err != nil {
		return nil, err
	}
	if attempts == nil {
		attempts = map[string]int{}
	}
	return attempts, nil
}

func (l *Ledger) readTableNames(ctx context.Context) (map[string]string, error) {
	names := map[string]string{}
	if err := l.read(ctx, KeyTableNames, &names); err != nil {
		return nil, err
	}
	if names == nil {
		names = map[string]string{}
	}
	return names, nil
}

func (l *Ledger) read(ctx context.Context, key string, dest any) error {
	raw, ok, err := l.kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return nil
}

func (l *Ledger) write(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := l.kv.Set(ctx, key, string(payload)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
