package services

import (
	"time"

	"learnhub-engine/models"
)

// Timeline is the set of gates that decide a hackathon's phase.
type Timeline struct {
	ApplicationOpensAt  *time.Time
	ApplicationClosesAt *time.Time
	SubmissionOpensAt   *time.Time
	SubmissionClosesAt  *time.Time
	JudgingOpensAt      *time.Time
	JudgingClosesAt     *time.Time
	ArchivedAt          *time.Time
}

type PhaseResult struct {
	Phase                   models.HackathonPhase `json:"derived_phase"`
	IsApplicationWindowOpen bool                  `json:"is_application_window_open"`
	IsSubmissionWindowOpen  bool                  `json:"is_submission_window_open"`
}

func TimelineOf(h *models.Hackathon) Timeline {
	return Timeline{
		ApplicationOpensAt:  h.ApplicationOpensAt,
		ApplicationClosesAt: h.ApplicationClosesAt,
		SubmissionOpensAt:   h.SubmissionOpensAt,
		SubmissionClosesAt:  h.SubmissionClosesAt,
		JudgingOpensAt:      h.JudgingOpensAt,
		JudgingClosesAt:     h.JudgingClosesAt,
		ArchivedAt:          h.ArchivedAt,
	}
}

// ComputePhase derives the phase from the timeline alone; whatever phase is
// persisted is ignored. Rules are checked top-down and the first match wins.
func ComputePhase(t Timeline, now time.Time) PhaseResult {
	switch {
	case t.ArchivedAt != nil:
		return PhaseResult{Phase: models.PhaseArchived}
	case isUpcoming(t, now):
		return PhaseResult{Phase: models.PhaseUpcoming}
	case within(t.ApplicationOpensAt, t.ApplicationClosesAt, now):
		return PhaseResult{Phase: models.PhaseApplications, IsApplicationWindowOpen: true}
	case within(t.SubmissionOpensAt, t.SubmissionClosesAt, now):
		return PhaseResult{Phase: models.PhaseSubmission, IsSubmissionWindowOpen: true}
	case within(t.JudgingOpensAt, t.JudgingClosesAt, now):
		return PhaseResult{Phase: models.PhaseJudging}
	default:
		return PhaseResult{Phase: models.PhaseCompleted}
	}
}

// isUpcoming: before applications open, or, with no application gate, before
// any other gate has opened. A timeline with no gates at all is not upcoming.
func isUpcoming(t Timeline, now time.Time) bool {
	if t.ApplicationOpensAt != nil {
		return now.Before(*t.ApplicationOpensAt)
	}
	anyGate := false
	for _, opens := range []*time.Time{t.SubmissionOpensAt, t.JudgingOpensAt} {
		if opens == nil {
			continue
		}
		anyGate = true
		if !now.Before(*opens) {
			return false
		}
	}
	return anyGate
}

// within is opens <= now < closes; a window missing either bound never matches.
func within(opens, closes *time.Time, now time.Time) bool {
	if opens == nil || closes == nil {
		return false
	}
	return !now.Before(*opens) && now.Before(*closes)
}
