package similarity

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/shibest/mycelius/internal/models"
	"github.com/shibest/mycelius/internal/shared"
)

// DefaultTTL is how long a scored batch stays fresh.
const DefaultTTL = time.Hour

// Service scores candidate batches through a [Scorer], memoizing results in a [Cache].
type Service struct {
	cache        Cache
	scorer       Scorer
	ttl          time.Duration
	candidateKey bool
	logger       *log.Logger
	now          func() time.Time
}

// Option configures a [Service].
type Option func(*Service)

// WithTTL sets the freshness window. Non-positive values keep [DefaultTTL].
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithCandidateKey includes candidate usernames in the cache key.
func WithCandidateKey() Option {
	return func(s *Service) { s.candidateKey = true }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a scoring service.
func NewService(cache Cache, scorer Scorer, opts ...Option) *Service {
	s := &Service{
		cache:  cache,
		scorer: scorer,
		ttl:    DefaultTTL,
		logger: shared.NewSilentLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the cache key the service uses for this batch.
func (s *Service) Key(profile models.Profile, candidates []models.CandidateProfile) string {
	if s.candidateKey {
		return CandidateKey(profile, candidates)
	}
	return CanonicalKey(profile)
}

// CalculateBatchSimilarity returns a 0-100 score per candidate username. It never fails:
// cache problems degrade to a miss and a scorer failure yields [DefaultScore] for everyone.
//
// A fresh cache hit is returned as stored, without calling the scorer. Only scorer-produced
// batches are cached.
func (s *Service) CalculateBatchSimilarity(ctx context.Context, profile models.Profile, candidates []models.CandidateProfile) map[string]int {
	if len(candidates) == 0 {
		return map[string]int{}
	}

	key := s.Key(profile, candidates)
	logger := s.logger.With("key", key[len(KeyPrefix):len(KeyPrefix)+12], "candidates", len(candidates))

	if scores, ok := s.lookup(ctx, key, logger); ok {
		logger.Debug("similarity cache hit")
		return scores
	}

	reply, err := s.scorer.Score(ctx, BuildPrompt(profile, candidates))
	if err != nil {
		logger.Warn("scoring failed, using neutral scores", "err", err)
		return neutralScores(candidates)
	}

	scores := ParseScores(reply, candidates)
	if err := s.cache.Put(ctx, models.NewSimilarityCacheEntry(key, scores, s.now())); err != nil {
		logger.Warn("failed to cache scores", "err", err)
	}
	return scores
}

func (s *Service) lookup(ctx context.Context, key string, logger *log.Logger) (map[string]int, bool) {
	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("failed to read similarity cache", "err", err)
		return nil, false
	}
	if entry == nil {
		return nil, false
	}

	if entry.Expired(s.now(), s.ttl) {
		logger.Debug("similarity cache entry expired", "cached_at", entry.CachedAt())
		if err := s.cache.Delete(ctx, key); err != nil {
			logger.Warn("failed to delete expired entry", "err", err)
		}
		return nil, false
	}
	return entry.Scores, true
}

// ClearSimilarityCache removes every cached batch.
func (s *Service) ClearSimilarityCache(ctx context.Context) (int, error) {
	n, err := s.cache.Clear(ctx)
	if err != nil {
		return n, err
	}
	s.logger.Info("cleared similarity cache", "entries", n)
	return n, nil
}

// ProfileStore persists the local profile.
type ProfileStore interface {
	Profile() (*models.Profile, error)
	// SetProfile stores p and reports whether it differs from what was stored.
	SetProfile(p models.Profile) (bool, error)
}

// UpdateProfile saves p and clears the cache when the stored profile changed.
func (s *Service) UpdateProfile(ctx context.Context, store ProfileStore, p models.Profile) (bool, error) {
	changed, err := store.SetProfile(p)
	if err != nil {
		return false, fmt.Errorf("failed to save profile: %w", err)
	}
	if !changed {
		return false, nil
	}
	if _, err := s.ClearSimilarityCache(ctx); err != nil {
		return true, fmt.Errorf("profile saved but cache not cleared: %w", err)
	}
	return true, nil
}

// Ranking is one candidate's position in a scored batch.
type Ranking struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// Rank orders candidates by score, highest first, breaking ties by username.
// Candidates missing from scores get [DefaultScore].
func Rank(scores map[string]int, candidates []models.CandidateProfile) []Ranking {
	out := make([]Ranking, 0, len(candidates))
	for _, c := range candidates {
		score, ok := scores[c.Username]
		if !ok {
			score = DefaultScore
		}
		out = append(out, Ranking{Username: c.Username, Score: score})
	}

	slices.SortFunc(out, func(a, b Ranking) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Username, b.Username)
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func neutralScores(candidates []models.CandidateProfile) map[string]int {
	scores := make(map[string]int, len(candidates))
	for _, c := range candidates {
		scores[c.Username] = DefaultScore
	}
	return scores
}
