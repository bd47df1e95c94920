package profile

import (
	"context"
	"log"
	"sync"
	"time"

	"murmur/arbiter/internal/audiofeat"
)

// Store owns every live profile. Profiles load lazily on first reference and
// persist on a fixed interaction cadence; the actual write runs on a
// background goroutine so storage latency never reaches the decision path.
type Store struct {
	mu       sync.Mutex
	profiles map[string]*Profile

	backend      Persistence
	persistEvery int

	saveCh chan *Profile
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewStore(backend Persistence, persistEvery int) *Store {
	if backend == nil {
		backend = NewMemory()
	}
	if persistEvery <= 0 {
		persistEvery = 10
	}
	s := &Store{
		profiles:     make(map[string]*Profile),
		backend:      backend,
		persistEvery: persistEvery,
		saveCh:       make(chan *Profile, 16),
		done:         make(chan struct{}),
	}
	s.wg.Add(1)
	go s.saver()
	return s
}

func (s *Store) saver() {
	defer s.wg.Done()
	for {
		select {
		case p := <-s.saveCh:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.backend.Save(ctx, p); err != nil {
				log.Printf("[profile] save %s failed: %v", p.UserID, err)
			}
			cancel()
		case <-s.done:
			// drain what is queued, then stop
			for {
				select {
				case p := <-s.saveCh:
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					if err := s.backend.Save(ctx, p); err != nil {
						log.Printf("[profile] save %s failed: %v", p.UserID, err)
					}
					cancel()
				default:
					return
				}
			}
		}
	}
}

// Get returns the user's profile, loading it on first reference. A missing or
// corrupt persisted profile falls back to a fresh one.
func (s *Store) Get(userID string) *Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(userID)
}

func (s *Store) getLocked(userID string) *Profile {
	if p, ok := s.profiles[userID]; ok {
		return p
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p, err := s.backend.Load(ctx, userID)
	if err != nil {
		if err != ErrNotFound {
			log.Printf("[profile] load %s failed, starting fresh: %v", userID, err)
		}
		p = NewProfile(userID)
	}
	p.normalize()
	s.profiles[userID] = p
	return p
}

// PhraseConfidence is the user-history signal for the fusion scorer. A nil
// receiver or empty user id yields no signal.
func (s *Store) PhraseConfidence(userID, phrase string) (float64, bool) {
	if s == nil || userID == "" {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(userID).PhraseConfidence(phrase), true
}

// BaselineFor returns the user's learned audio baselines.
func (s *Store) BaselineFor(userID string) audiofeat.Baseline {
	if s == nil || userID == "" {
		return audiofeat.DefaultBaseline()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(userID).Baseline
}

// Confirm folds a confirmed classification into the user's profile and
// schedules persistence every persistEvery interactions. The enqueue is
// non-blocking: under backpressure a snapshot is dropped, not the caller.
func (s *Store) Confirm(userID, phrase string, backchannel bool, dur time.Duration, feats *audiofeat.Features) {
	if s == nil || userID == "" {
		return
	}
	s.mu.Lock()
	p := s.getLocked(userID)
	p.RecordInteraction(phrase, backchannel, dur, feats)
	var snapshot *Profile
	if p.Interactions%s.persistEvery == 0 {
		snapshot = p.clone()
	}
	s.mu.Unlock()

	if snapshot != nil {
		select {
		case s.saveCh <- snapshot:
		default:
			log.Printf("[profile] save queue full, dropping snapshot for %s", userID)
		}
	}
}

// RecordAccuracy feeds threshold-adaptation data for one user.
func (s *Store) RecordAccuracy(userID string, threshold, accuracy float64) {
	if s == nil || userID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getLocked(userID).RecordAccuracy(threshold, accuracy)
}

// ThresholdFor returns the user's adapted threshold, or the given default
// when the user has no adaptation history.
func (s *Store) ThresholdFor(userID string, def float64) float64 {
	if s == nil || userID == "" {
		return def
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.getLocked(userID)
	if len(p.History) == 0 {
		return def
	}
	return p.Threshold
}

// Flush persists every live profile synchronously. Used on shutdown.
func (s *Store) Flush(ctx context.Context) {
	s.mu.Lock()
	snapshots := make([]*Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		snapshots = append(snapshots, p.clone())
	}
	s.mu.Unlock()
	for _, p := range snapshots {
		if err := s.backend.Save(ctx, p); err != nil {
			log.Printf("[profile] flush %s failed: %v", p.UserID, err)
		}
	}
}

// Close stops the background saver and flushes remaining state.
func (s *Store) Close() error {
	close(s.done)
	s.wg.Wait()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Flush(ctx)
	return s.backend.Close()
}
