package services

import (
	"testing"
	"time"

	"learnhub-engine/models"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name    string
		event   string
		payload Payload
		want    AwardResult
	}{
		{"lesson", EventLessonCompleted, nil, AwardResult{PointsDelta: 10, XPDelta: 20}},
		{"quiz scales with score", EventQuizPassed, Payload{"quizId": "q1", "score": 72, "maxScore": 100},
			AwardResult{PointsDelta: 12, XPDelta: 15}},
		{"perfect quiz", EventQuizPassed, Payload{"quizId": "q1", "score": 100, "maxScore": 100},
			AwardResult{PointsDelta: 15, XPDelta: 15, BadgeKeys: []string{"perfect-score"}}},
		{"quiz with junk payload", EventQuizPassed, Payload{"score": "lots"}, AwardResult{PointsDelta: 5, XPDelta: 15}},
		{"quiz scales with the percentage", EventQuizPassed, Payload{"score": 7, "maxScore": 10},
			AwardResult{PointsDelta: 12, XPDelta: 15}},
		{"quiz score above max", EventQuizPassed, Payload{"score": 1e12, "maxScore": 100}, AwardResult{PointsDelta: 5, XPDelta: 15}},
		{"quiz score beyond int64", EventQuizPassed, Payload{"score": 1e19, "maxScore": 100}, AwardResult{PointsDelta: 5, XPDelta: 15}},
		{"negative quiz score", EventQuizPassed, Payload{"score": -50, "maxScore": 100}, AwardResult{PointsDelta: 5, XPDelta: 15}},
		{"quiz without max", EventQuizPassed, Payload{"score": 80}, AwardResult{PointsDelta: 5, XPDelta: 15}},
		{"huge quiz in range", EventQuizPassed, Payload{"score": 1e19, "maxScore": 1e20}, AwardResult{PointsDelta: 6, XPDelta: 15}},
		{"hard challenge", EventChallengeSolved, Payload{"difficulty": "HARD"},
			AwardResult{PointsDelta: 80, XPDelta: 160, BadgeKeys: []string{"problem-solver"}}},
		{"unknown difficulty counts as easy", EventChallengeSolved, Payload{"difficulty": "legendary"},
			AwardResult{PointsDelta: 20, XPDelta: 40, BadgeKeys: []string{"problem-solver"}}},
		{"unknown event", "page_viewed", Payload{"x": 1}, AwardResult{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rules.Evaluate(tt.event, tt.payload))
		})
	}
}

func TestLevelForXP(t *testing.T) {
	cases := map[int64]int{0: 1, 99: 1, 100: 2, 328: 2, 329: 3, 701: 3, 702: 4}
	for xp, level := range cases {
		assert.Equal(t, level, LevelForXP(xp), "xp=%d", xp)
	}
}

func TestAdvanceStreak(t *testing.T) {
	day := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	bal := &models.UserBalance{}

	assert.True(t, advanceStreak(bal, day))
	assert.Equal(t, 1, bal.CurrentStreak)

	assert.False(t, advanceStreak(bal, day.Add(10*time.Minute)), "same UTC day")

	assert.True(t, advanceStreak(bal, day.Add(time.Hour)))
	assert.Equal(t, 2, bal.CurrentStreak)

	assert.False(t, advanceStreak(bal, day), "older activity is ignored")

	assert.True(t, advanceStreak(bal, day.AddDate(0, 0, 5)))
	assert.Equal(t, 1, bal.CurrentStreak)
	assert.Equal(t, 2, bal.LongestStreak)
}
