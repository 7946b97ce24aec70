package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	tests := map[string]string{
		"Course Finisher":    "course-finisher",
		"  Hackathon 2026  ": "hackathon-2026",
		"Perfect Score!":     "perfect-score",
		"already-a-key":      "already-a-key",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeKey(in), in)
	}
}

func TestValidKey(t *testing.T) {
	assert.True(t, ValidKey("sticker-pack"))
	assert.False(t, ValidKey("Sticker Pack"))
	assert.False(t, ValidKey(""))
}

func TestParseLimit(t *testing.T) {
	assert.Equal(t, 20, ParseLimit("", 20, 100))
	assert.Equal(t, 20, ParseLimit("abc", 20, 100))
	assert.Equal(t, 20, ParseLimit("0", 20, 100))
	assert.Equal(t, 20, ParseLimit("1000", 20, 100))
	assert.Equal(t, 50, ParseLimit("50", 20, 100))
}
