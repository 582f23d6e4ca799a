package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/beaconwatch/beacon/internal/storage"
)

const (
	snapshotKey = "status"

	// maxAgeSec bounds snapshot staleness; refreshAgeSec is the age at
	// which a hit triggers a background rebuild while still serving.
	defaultMaxAgeSec     = 60
	defaultRefreshAgeSec = 30
)

// Service serves the public status payload through the snapshot cache.
// Reads fall back to live computation on a miss; rebuilds happen in
// the background so requests never block on a recompute they can
// avoid.
type Service struct {
	store      storage.Store
	builder    *Builder
	log        *slog.Logger
	maxAge     int64
	refreshAge int64
	now        func() time.Time
	refreshing atomic.Bool
}

func NewService(store storage.Store, builder *Builder, log *slog.Logger, maxAgeSec, refreshAgeSec int64) *Service {
	if maxAgeSec <= 0 {
		maxAgeSec = defaultMaxAgeSec
	}
	if refreshAgeSec <= 0 || refreshAgeSec >= maxAgeSec {
		refreshAgeSec = defaultRefreshAgeSec
	}
	return &Service{
		store:      store,
		builder:    builder,
		log:        log,
		maxAge:     maxAgeSec,
		refreshAge: refreshAgeSec,
		now:        time.Now,
	}
}

// Result is one served payload plus its cache metadata.
type Result struct {
	Body         []byte
	Age          int64
	CacheControl string
}

// Get returns the snapshot when fresh enough, otherwise builds live.
// A hit past the refresh age kicks off a background rebuild.
func (s *Service) Get(ctx context.Context) (*Result, error) {
	now := s.now().Unix()

	snap, err := s.store.GetSnapshot(ctx, snapshotKey)
	if err == nil {
		age := now - snap.GeneratedAt
		if age < 0 {
			age = 0
		}
		if age <= s.maxAge {
			if age >= s.refreshAge {
				go s.backgroundRefresh()
			}
			return &Result{Body: snap.Body, Age: age, CacheControl: s.cacheControl(age)}, nil
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		s.log.Warn("snapshot: read", "error", err)
	}

	// Miss or expired: compute live, persist in the background.
	body, _, err := s.build(ctx)
	if err != nil {
		// Serving an expired snapshot beats a 5xx.
		if snap != nil {
			s.log.Warn("snapshot: serving stale after build failure", "error", err)
			return &Result{Body: snap.Body, Age: now - snap.GeneratedAt, CacheControl: "no-cache"}, nil
		}
		return nil, err
	}
	go s.backgroundRefresh()

	return &Result{Body: body, Age: 0, CacheControl: s.cacheControl(0)}, nil
}

// Refresh rebuilds and persists the snapshot. The scheduler calls this
// after every tick.
func (s *Service) Refresh(ctx context.Context) error {
	body, generatedAt, err := s.build(ctx)
	if err != nil {
		return err
	}
	return s.store.PutSnapshot(ctx, &storage.Snapshot{
		Key:         snapshotKey,
		GeneratedAt: generatedAt,
		Body:        body,
		UpdatedAt:   s.now().Unix(),
	})
}

// backgroundRefresh rebuilds at most once at a time; a burst of hits
// past the refresh age collapses into a single rebuild.
func (s *Service) backgroundRefresh() {
	if !s.refreshing.CompareAndSwap(false, true) {
		return
	}
	defer s.refreshing.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Refresh(ctx); err != nil {
		s.log.Warn("snapshot: background refresh", "error", err)
	}
}

func (s *Service) build(ctx context.Context) ([]byte, int64, error) {
	resp, err := s.builder.Build(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("build status: %w", err)
	}
	body, err := json.Marshal(resp)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal status: %w", err)
	}
	return body, resp.GeneratedAt, nil
}

// cacheControl derives the client caching directives so the combined
// client-side freshness never exceeds maxAge.
func (s *Service) cacheControl(age int64) string {
	maxAge := s.maxAge - age
	if maxAge > s.refreshAge {
		maxAge = s.refreshAge
	}
	if maxAge < 0 {
		maxAge = 0
	}
	rest := s.maxAge - age - maxAge
	if rest < 0 {
		rest = 0
	}
	return fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d, stale-if-error=%d", maxAge, rest, rest)
}
