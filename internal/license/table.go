package license

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DefaultReclaimInterval is how often the background reclaimer scans
// for expired leases when no interval is configured.
const DefaultReclaimInterval = 10 * time.Second

// Table is the authoritative in-memory lease registry. All mutation
// goes through TryIssue and ReclaimExpired under a single lock, so
// check-and-set is atomic per request. Snapshot takes the read side
// only.
type Table struct {
	mu      sync.RWMutex
	records map[string]Record

	auth   KeyAuthenticator
	logger *slog.Logger

	// now is swapped out by tests to control expiry.
	now func() time.Time

	reclaimInterval time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once
	reclaimerDone   chan struct{}
}

// HolderStatus is one row of a read-only table snapshot.
type HolderStatus struct {
	Holder    string        `json:"holder"`
	Leased    bool          `json:"leased"`
	Remaining time.Duration `json:"remaining"`
}

// NewTable builds a table from the roster and starts the background
// reclaimer. Call Stop to release it. A non-positive reclaimInterval
// falls back to DefaultReclaimInterval.
func NewTable(roster map[string]time.Duration, auth KeyAuthenticator, reclaimInterval time.Duration, logger *slog.Logger) *Table {
	if reclaimInterval <= 0 {
		reclaimInterval = DefaultReclaimInterval
	}
	t := &Table{
		records:         make(map[string]Record, len(roster)),
		auth:            auth,
		logger:          logger.With(slog.String("component", "lease_table")),
		now:             time.Now,
		reclaimInterval: reclaimInterval,
		stopCh:          make(chan struct{}),
		reclaimerDone:   make(chan struct{}),
	}
	for holder, validity := range roster {
		t.records[holder] = Record{Holder: holder, Validity: validity}
	}

	go t.reclaimLoop()

	return t
}

// TryIssue attempts to check out a lease for holder. The whole
// check-and-set runs under the table lock; callers must never hold the
// returned outcome's expiry as anything but a point-in-time fact.
func (t *Table) TryIssue(ctx context.Context, holder, key string) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, known := t.records[holder]
	if !known {
		t.logger.InfoContext(ctx, "lease request for unknown holder",
			slog.String("holder", holder))
		return Outcome{Kind: OutcomeNotFound, Holder: holder}
	}

	if !t.auth.Matches(holder, key) {
		t.logger.WarnContext(ctx, "lease request with invalid key",
			slog.String("holder", holder))
		return Outcome{Kind: OutcomeInvalidKey, Holder: holder}
	}

	now := t.now()
	if record.availableAt(now) {
		issued := record.issue(now)
		t.records[holder] = issued
		t.logger.InfoContext(ctx, "lease issued",
			slog.String("holder", holder),
			slog.Time("expiry", issued.Expiry),
			slog.Duration("validity", issued.Validity))
		return Outcome{Kind: OutcomeIssued, Holder: holder, Expiry: issued.Expiry}
	}

	t.logger.InfoContext(ctx, "lease already in use",
		slog.String("holder", holder),
		slog.Time("expiry", record.Expiry))
	return Outcome{Kind: OutcomeAlreadyInUse, Holder: holder, Expiry: record.Expiry}
}

// ReclaimExpired releases every lease whose expiry has passed and
// returns how many were released. It is idempotent and safe to call
// concurrently with TryIssue.
func (t *Table) ReclaimExpired() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	reclaimed := 0
	for holder, record := range t.records {
		if record.expiredAt(now) {
			t.records[holder] = record.reclaim()
			reclaimed++
		}
	}
	if reclaimed > 0 {
		t.logger.Info("reclaimed expired leases", slog.Int("count", reclaimed))
	}
	return reclaimed
}

// Snapshot returns a read-only listing of every holder's lease state,
// sorted by holder name. Remaining is zero for free or expired leases.
func (t *Table) Snapshot() []HolderStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	out := make([]HolderStatus, 0, len(t.records))
	for _, record := range t.records {
		status := HolderStatus{Holder: record.Holder, Leased: record.Leased}
		if record.Leased && record.Expiry.After(now) {
			status.Remaining = record.Expiry.Sub(now)
		}
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Holder < out[j].Holder })
	return out
}

// Len returns the roster size.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// Stop halts the background reclaimer. Safe to call more than once.
func (t *Table) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
	})
	<-t.reclaimerDone
}

func (t *Table) reclaimLoop() {
	defer close(t.reclaimerDone)

	ticker := time.NewTicker(t.reclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.ReclaimExpired()
		case <-t.stopCh:
			return
		}
	}
}
