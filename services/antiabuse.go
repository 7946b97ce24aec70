package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

type AntiAbuseConfig struct {
	VelocityMaxEvents int
	VelocityWindow    time.Duration
	DedupTTL          time.Duration
}

var DefaultAntiAbuseConfig = AntiAbuseConfig{
	VelocityMaxEvents: 30,
	VelocityWindow:    10 * time.Minute,
	DedupTTL:          time.Hour,
}

func dedupStoreKey(userID, dedupKey string) string {
	sum := sha256.Sum256([]byte(userID + "|" + dedupKey))
	return "dedup:" + hex.EncodeToString(sum[:])
}

func velocityStoreKey(userID, eventType string) string {
	return "vel:" + userID + ":" + eventType
}

// CheckDedup reports whether dedupKey was already seen for this user, and
// marks it seen if not. An empty key is never a duplicate.
func (s *GamificationService) CheckDedup(ctx context.Context, userID, dedupKey string) (bool, error) {
	if dedupKey == "" {
		return false, nil
	}
	fresh, err := s.Store.SetIfAbsent(ctx, dedupStoreKey(userID, dedupKey), s.Limits.DedupTTL)
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	return !fresh, nil
}

// ReleaseDedup forgets a key marked by CheckDedup, for events that were
// rejected later in the pipeline and may be retried.
func (s *GamificationService) ReleaseDedup(ctx context.Context, userID, dedupKey string) {
	if dedupKey == "" {
		return
	}
	if err := s.Store.Delete(ctx, dedupStoreKey(userID, dedupKey)); err != nil {
		s.Log.Warn("Failed to release dedup key", "user_id", userID, "error", err)
	}
}

// ExceedsVelocityLimit counts this event against the (user, type) window and
// reports whether the count is now over the limit.
func (s *GamificationService) ExceedsVelocityLimit(ctx context.Context, userID, eventType string) (bool, error) {
	n, err := s.Store.Incr(ctx, velocityStoreKey(userID, eventType), s.Limits.VelocityWindow)
	if err != nil {
		return false, fmt.Errorf("velocity check failed: %w", err)
	}
	return n > int64(s.Limits.VelocityMaxEvents), nil
}
