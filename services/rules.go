package services

import (
	"encoding/json"
	"math"
	"strings"
)

// Payload is the free-form body a client attaches to an event. Known event
// kinds decode it into a typed struct before a rule reads it.
type Payload map[string]interface{}

type AwardResult struct {
	PointsDelta int64    `json:"points_delta"`
	XPDelta     int64    `json:"xp_delta"`
	BadgeKeys   []string `json:"awarded_badge_keys,omitempty"`
	LevelUp     bool     `json:"level_up"`
}

func (a AwardResult) IsZero() bool {
	return a.PointsDelta == 0 && a.XPDelta == 0 && len(a.BadgeKeys) == 0
}

// Rule turns one event into an award. Rules are pure.
type Rule func(p Payload) AwardResult

type RuleSet map[string]Rule

// Event types
const (
	EventLessonCompleted    = "lesson_completed"
	EventCourseCompleted    = "course_completed"
	EventQuizPassed         = "quiz_passed"
	EventChallengeSolved    = "challenge_solved"
	EventDailyLogin         = "daily_login"
	EventPostCreated        = "post_created"
	EventHackathonSubmitted = "hackathon_submitted"
	EventHackathonWon       = "hackathon_won"
)

type QuizPassedPayload struct {
	QuizID   string  `json:"quizId"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"maxScore"`
}

type ChallengeSolvedPayload struct {
	ChallengeID string `json:"challengeId"`
	Difficulty  string `json:"difficulty"`
}

var challengePoints = map[string]int64{
	"easy":   20,
	"medium": 40,
	"hard":   80,
}

func fixed(points, xp int64, badges ...string) Rule {
	return func(Payload) AwardResult {
		return AwardResult{PointsDelta: points, XPDelta: xp, BadgeKeys: badges}
	}
}

func DefaultRules() RuleSet {
	return RuleSet{
		EventLessonCompleted:    fixed(10, 20),
		EventCourseCompleted:    fixed(100, 200, "course-finisher"),
		EventDailyLogin:         fixed(2, 5),
		EventPostCreated:        fixed(3, 5),
		EventHackathonSubmitted: fixed(50, 100, "hackathon-participant"),
		EventHackathonWon:       fixed(500, 1000, "hackathon-champion"),
		EventQuizPassed:         quizPassedRule,
		EventChallengeSolved:    challengeSolvedRule,
	}
}

// quizPassedRule pays 5 points plus one per full 10% of the quiz. A score
// outside [0, maxScore] earns only the base award.
func quizPassedRule(p Payload) AwardResult {
	award := AwardResult{PointsDelta: 5, XPDelta: 15}
	q, ok := decodePayload[QuizPassedPayload](p)
	if !ok || q.MaxScore <= 0 || q.Score < 0 || q.Score > q.MaxScore {
		return award
	}
	percent := int64(math.Floor(100*(q.Score/q.MaxScore) + 1e-9))
	award.PointsDelta += percent / 10
	if q.Score == q.MaxScore {
		award.BadgeKeys = []string{"perfect-score"}
	}
	return award
}

func challengeSolvedRule(p Payload) AwardResult {
	c, _ := decodePayload[ChallengeSolvedPayload](p)
	points, ok := challengePoints[strings.ToLower(c.Difficulty)]
	if !ok {
		points = challengePoints["easy"]
	}
	return AwardResult{PointsDelta: points, XPDelta: 2 * points, BadgeKeys: []string{"problem-solver"}}
}

// Evaluate looks up the rule for eventType. Unknown types earn nothing.
func (r RuleSet) Evaluate(eventType string, p Payload) AwardResult {
	rule, ok := r[eventType]
	if !ok {
		return AwardResult{}
	}
	return rule(p)
}

// decodePayload reshapes the loose map into T. Fields that do not fit are
// left zero and reported through ok=false.
func decodePayload[T any](p Payload) (T, bool) {
	var out T
	if len(p) == 0 {
		return out, false
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false
	}
	return out, true
}
