package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/thyroid-risk-assessor/internal/domain"
)

// CachedAssessor memoizes reports of an inner assessor. A hit returns the stored report with a
// fresh ID and timestamp. Cache failures are logged and bypassed.
type CachedAssessor struct {
	next    domain.Assessor
	cache   domain.ReportCache
	version string
	logger  *logrus.Logger
	clock   func() time.Time
	newID   func() string
}

var _ domain.Assessor = (*CachedAssessor)(nil)

// NewCachedAssessor wraps next. version must change whenever the artifacts change.
func NewCachedAssessor(next domain.Assessor, cache domain.ReportCache, version string, logger *logrus.Logger) *CachedAssessor {
	if logger == nil {
		logger = logrus.New()
	}
	return &CachedAssessor{
		next:    next,
		cache:   cache,
		version: version,
		logger:  logger,
		clock:   time.Now,
		newID:   uuid.NewString,
	}
}

// CacheKey derives the cache key of a patient under a model version.
func CacheKey(version string, patient domain.PatientRecord) (string, error) {
	data, err := json.Marshal(patient)
	if err != nil {
		return "", fmt.Errorf("failed to encode patient: %w", err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("assessment:%s:%s", version, hex.EncodeToString(sum[:])), nil
}

// Assess serves from the cache when possible.
func (c *CachedAssessor) Assess(ctx context.Context, patient domain.PatientRecord) (*domain.AssessmentReport, error) {
	key, err := CacheKey(c.version, patient)
	if err != nil {
		return nil, err
	}

	cached, found, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.WithError(err).WithField("cache_key", key).Warn("Report cache lookup failed")
	} else if found {
		report := cached.Clone()
		report.ID = c.newID()
		report.AssessedAt = c.clock().UTC()
		c.logger.WithFields(logrus.Fields{
			"assessment_id": report.ID,
			"cache_key":     key,
		}).Debug("Serving assessment from cache")
		return report, nil
	}

	report, err := c.next.Assess(ctx, patient)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, report.Clone()); err != nil {
		c.logger.WithError(err).WithField("cache_key", key).Warn("Report cache store failed")
	}
	return report, nil
}
