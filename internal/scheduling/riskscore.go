package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clinova/scheduling-engine/pkg/logging"
)

// RiskScorer resolves a patient's no-show propensity. It is a ranking signal
// only; callers never use it to exclude slots.
type RiskScorer interface {
	ScoreFor(ctx context.Context, orgID, patientID uuid.UUID) (int, error)
}

// RepoRiskScorer reads scores from the repository, defaulting to the neutral
// score when no record exists.
type RepoRiskScorer struct {
	repo Repository
}

func NewRepoRiskScorer(repo Repository) *RepoRiskScorer {
	return &RepoRiskScorer{repo: repo}
}

func (s *RepoRiskScorer) ScoreFor(ctx context.Context, orgID, patientID uuid.UUID) (int, error) {
	score, err := s.repo.GetNoShowScore(ctx, orgID, patientID)
	if err != nil {
		if errors.Is(err, ErrNoShowScoreNotFound) {
			return DefaultNoShowScore, nil
		}
		return 0, fmt.Errorf("get no-show score: %w", err)
	}
	return score.Score, nil
}

// CachedRiskScorer is a read-through Redis cache in front of another scorer.
// Scores change rarely (batch recomputation out of band), so a short TTL is
// enough to keep the hot suggestion path off postgres. Cache errors fall
// back to the inner scorer.
type CachedRiskScorer struct {
	inner  RiskScorer
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewCachedRiskScorer(inner RiskScorer, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedRiskScorer {
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedRiskScorer{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (s *CachedRiskScorer) ScoreFor(ctx context.Context, orgID, patientID uuid.UUID) (int, error) {
	key := fmt.Sprintf("noshow:%s:%s", orgID, patientID)

	val, err := s.client.Get(ctx, key).Result()
	if err == nil {
		if score, convErr := strconv.Atoi(val); convErr == nil {
			return score, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Warn("risk score cache read failed", "error", err, "patient_id", patientID)
	}

	score, err := s.inner.ScoreFor(ctx, orgID, patientID)
	if err != nil {
		return 0, err
	}

	if setErr := s.client.Set(ctx, key, strconv.Itoa(score), s.ttl).Err(); setErr != nil {
		s.logger.Warn("risk score cache write failed", "error", setErr, "patient_id", patientID)
	}

	return score, nil
}
