package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"learnhub-engine/apperrors"
	"learnhub-engine/logger"
	"learnhub-engine/metrics"
	"learnhub-engine/models"
	"learnhub-engine/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type HackathonService struct {
	DB      *gorm.DB
	Log     *logger.Logger
	Metrics *metrics.Metrics
	now     func() time.Time
}

func NewHackathonService(db *gorm.DB, log *logger.Logger, m *metrics.Metrics) *HackathonService {
	return &HackathonService{
		DB:      db,
		Log:     log.With("component", "hackathon"),
		Metrics: m,
		now:     time.Now,
	}
}

type HackathonStatus struct {
	HackathonID    string                `json:"hackathon_id"`
	PersistedPhase models.HackathonPhase `json:"persisted_phase"`
	PhaseResult
}

type ReconcileResult struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// ComputeHackathonPhase loads a hackathon, derives its phase at the current
// instant and writes the phase back if the stored value has drifted.
func (s *HackathonService) ComputeHackathonPhase(ctx context.Context, id string) (*HackathonStatus, error) {
	var h models.Hackathon
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&h).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("hackathon", id)
		}
		return nil, fmt.Errorf("failed to load hackathon %s: %w", id, err)
	}

	res := ComputePhase(TimelineOf(&h), s.now())
	status := &HackathonStatus{HackathonID: h.ID, PersistedPhase: h.Phase, PhaseResult: res}

	if h.Phase != res.Phase {
		updated, err := s.SynchronizeHackathonPhase(ctx, h.ID, h.Phase, res.Phase)
		if err != nil {
			return nil, err
		}
		if updated {
			status.PersistedPhase = res.Phase
		}
	}
	return status, nil
}

// SynchronizeHackathonPhase moves the stored phase from -> to in one
// conditional update. It reports false, without error, when the row is no
// longer in the from phase (someone else already moved it).
func (s *HackathonService) SynchronizeHackathonPhase(ctx context.Context, id string, from, to models.HackathonPhase) (bool, error) {
	res := s.DB.WithContext(ctx).
		Model(&models.Hackathon{}).
		Where("id = ? AND phase = ?", id, from).
		Update("phase", to)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update phase of hackathon %s: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.Hackathon{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check hackathon %s: %w", id, err)
	}
	if count == 0 {
		return false, apperrors.NotFound("hackathon", id)
	}
	return false, nil
}

// Reconcile brings every stored phase in line with its timeline. A failed row
// is logged and counted; it never stops the rest of the sweep.
func (s *HackathonService) Reconcile(ctx context.Context) ReconcileResult {
	var result ReconcileResult

	var hackathons []models.Hackathon
	if err := s.DB.WithContext(ctx).Order("id").Find(&hackathons).Error; err != nil {
		s.Log.Error("Failed to list hackathons for reconcile", "error", err)
		return result
	}

	now := s.now()
	result.Total = len(hackathons)
	for i := range hackathons {
		h := &hackathons[i]
		derived := ComputePhase(TimelineOf(h), now).Phase
		if derived == h.Phase {
			continue
		}
		updated, err := s.SynchronizeHackathonPhase(ctx, h.ID, h.Phase, derived)
		if err != nil {
			result.Failed++
			s.Log.Error("Failed to reconcile hackathon phase",
				"hackathon_id", h.ID, "from", h.Phase, "to", derived, "error", err)
			continue
		}
		if updated {
			result.Updated++
			s.Log.Info("Hackathon phase changed", "hackathon_id", h.ID, "from", h.Phase, "to", derived)
		}
	}

	s.Metrics.Reconciled(result.Updated, result.Failed)
	return result
}

type CreateHackathonInput struct {
	Title               string     `json:"title"`
	Slug                string     `json:"slug"`
	ApplicationOpensAt  *time.Time `json:"application_opens_at"`
	ApplicationClosesAt *time.Time `json:"application_closes_at"`
	SubmissionOpensAt   *time.Time `json:"submission_opens_at"`
	SubmissionClosesAt  *time.Time `json:"submission_closes_at"`
	JudgingOpensAt      *time.Time `json:"judging_opens_at"`
	JudgingClosesAt     *time.Time `json:"judging_closes_at"`
}

func (s *HackathonService) CreateHackathon(ctx context.Context, in CreateHackathonInput) (*models.Hackathon, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperrors.Validation("title", "is required")
	}
	slugValue := utils.NormalizeKey(in.Slug)
	if slugValue == "" {
		slugValue = utils.NormalizeKey(title)
	}

	windows := []struct {
		name          string
		opens, closes *time.Time
	}{
		{"application", in.ApplicationOpensAt, in.ApplicationClosesAt},
		{"submission", in.SubmissionOpensAt, in.SubmissionClosesAt},
		{"judging", in.JudgingOpensAt, in.JudgingClosesAt},
	}
	var prevClose *time.Time
	for _, w := range windows {
		if w.opens != nil && w.closes != nil && !w.opens.Before(*w.closes) {
			return nil, apperrors.Validation(w.name+"_closes_at", "must be after opens_at")
		}
		if prevClose != nil && w.opens != nil && w.opens.Before(*prevClose) {
			return nil, apperrors.Validation(w.name+"_opens_at", "must not precede the previous window's close")
		}
		if w.closes != nil {
			prevClose = w.closes
		}
	}

	h := models.Hackathon{
		ID:                  uuid.NewString(),
		Slug:                slugValue,
		Title:               title,
		ApplicationOpensAt:  in.ApplicationOpensAt,
		ApplicationClosesAt: in.ApplicationClosesAt,
		SubmissionOpensAt:   in.SubmissionOpensAt,
		SubmissionClosesAt:  in.SubmissionClosesAt,
		JudgingOpensAt:      in.JudgingOpensAt,
		JudgingClosesAt:     in.JudgingClosesAt,
	}
	h.Phase = ComputePhase(TimelineOf(&h), s.now()).Phase

	if err := s.DB.WithContext(ctx).Create(&h).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.New(apperrors.ErrConflict, fmt.Sprintf("hackathon slug %q already exists", slugValue), err)
		}
		return nil, fmt.Errorf("failed to create hackathon: %w", err)
	}
	return &h, nil
}

// ArchiveHackathon stamps archivedAt; the phase follows on the next sync.
func (s *HackathonService) ArchiveHackathon(ctx context.Context, id string) (*HackathonStatus, error) {
	now := s.now()
	res := s.DB.WithContext(ctx).
		Model(&models.Hackathon{}).
		Where("id = ? AND archived_at IS NULL", id).
		Update("archived_at", now)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to archive hackathon %s: %w", id, res.Error)
	}
	return s.ComputeHackathonPhase(ctx, id)
}
