package invoice

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/coreb-invoice/internal/cache"
	"github.com/noah-isme/coreb-invoice/internal/obs"
)

// SnapshotKey is the cache key of the last computed invoice list.
const SnapshotKey = "invoices:cached_data"

// DefaultSnapshotTTL is how long a listed snapshot stays exportable.
const DefaultSnapshotTTL = time.Hour

// ErrNothingToExport is returned when no snapshot is available.
var ErrNothingToExport = errors.New("invoice: no invoice list to export")

// Source names the store that answered a snapshot read.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
	SourceMiss     Source = "miss"
)

// Snapshots keeps the last listed rows so they can be exported later. Each
// write is stamped so a read returns whichever store holds the newer listing.
type Snapshots struct {
	primary  cache.Store
	fallback cache.Store
	ttl      time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

type snapshot struct {
	StoredAt time.Time `json:"stored_at"`
	Rows     []Row     `json:"rows"`
}

// NewSnapshots constructs Snapshots. fallback may be nil.
func NewSnapshots(primary, fallback cache.Store, ttl time.Duration, log zerolog.Logger) *Snapshots {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &Snapshots{primary: primary, fallback: fallback, ttl: ttl, log: log, now: time.Now}
}

// Invalidate drops the primary snapshot. The fallback keeps the previous
// rows until the next Put.
func (s *Snapshots) Invalidate(ctx context.Context) error {
	return s.primary.Delete(ctx, SnapshotKey)
}

// Put stores rows in both stores. It fails only when no store accepted them.
func (s *Snapshots) Put(ctx context.Context, rows []Row) error {
	snap := snapshot{StoredAt: s.now().UTC(), Rows: rows}
	primaryErr := s.primary.Set(ctx, SnapshotKey, snap, s.ttl)
	if primaryErr != nil {
		s.log.Warn().Err(primaryErr).Msg("store primary invoice snapshot")
	}
	if s.fallback == nil {
		return primaryErr
	}
	fallbackErr := s.fallback.Set(ctx, SnapshotKey, snap, s.ttl)
	if fallbackErr != nil {
		s.log.Warn().Err(fallbackErr).Msg("store fallback invoice snapshot")
	}
	if primaryErr != nil && fallbackErr != nil {
		return errors.Join(primaryErr, fallbackErr)
	}
	return nil
}

// Latest returns the most recently stored non-empty snapshot. The primary
// wins ties; a primary that missed the last Put never shadows the fallback.
func (s *Snapshots) Latest(ctx context.Context) ([]Row, Source, error) {
	best, src := s.read(ctx, s.primary, SourcePrimary), SourcePrimary
	if s.fallback != nil {
		if fb := s.read(ctx, s.fallback, SourceFallback); fb != nil && (best == nil || fb.StoredAt.After(best.StoredAt)) {
			best, src = fb, SourceFallback
		}
	}
	if best == nil {
		obs.SnapshotReadsTotal.WithLabelValues(string(SourceMiss)).Inc()
		return nil, SourceMiss, ErrNothingToExport
	}
	obs.SnapshotReadsTotal.WithLabelValues(string(src)).Inc()
	return best.Rows, src, nil
}

func (s *Snapshots) read(ctx context.Context, store cache.Store, src Source) *snapshot {
	var snap snapshot
	ok, err := store.Get(ctx, SnapshotKey, &snap)
	if err != nil {
		s.log.Warn().Err(err).Str("source", string(src)).Msg("read invoice snapshot")
		return nil
	}
	if !ok || len(snap.Rows) == 0 {
		return nil
	}
	return &snap
}
