package models

import "time"

type HackathonPhase string

const (
	PhaseUpcoming     HackathonPhase = "upcoming"
	PhaseApplications HackathonPhase = "applications"
	PhaseSubmission   HackathonPhase = "submission"
	PhaseJudging      HackathonPhase = "judging"
	PhaseCompleted    HackathonPhase = "completed"
	PhaseArchived     HackathonPhase = "archived"
)

// Hackathon stores the timeline; Phase is the last persisted derivation of it.
type Hackathon struct {
	ID    string `gorm:"primaryKey;type:uuid" json:"id"`
	Slug  string `gorm:"uniqueIndex;not null" json:"slug"`
	Title string `gorm:"not null" json:"title"`

	ApplicationOpensAt  *time.Time `json:"application_opens_at,omitempty"`
	ApplicationClosesAt *time.Time `json:"application_closes_at,omitempty"`
	SubmissionOpensAt   *time.Time `json:"submission_opens_at,omitempty"`
	SubmissionClosesAt  *time.Time `json:"submission_closes_at,omitempty"`
	JudgingOpensAt      *time.Time `json:"judging_opens_at,omitempty"`
	JudgingClosesAt     *time.Time `json:"judging_closes_at,omitempty"`
	ArchivedAt          *time.Time `json:"archived_at,omitempty"`

	Phase HackathonPhase `gorm:"type:varchar(16);not null;default:'upcoming';index" json:"phase"`

	Timestamps
}
