package utils

import (
	"strconv"
	"strings"

	"github.com/gosimple/slug"
)

// NormalizeKey turns a human label ("Course Finisher!") into the canonical
// lowercase key form ("course-finisher") used for badge keys, quest keys,
// reward SKUs and hackathon slugs.
func NormalizeKey(s string) string {
	return slug.Make(strings.TrimSpace(s))
}

// ValidKey reports whether s is already in canonical key form.
func ValidKey(s string) bool {
	return s != "" && slug.IsSlug(s)
}

// ParseLimit reads a page size, falling back to def when raw is empty,
// malformed or outside [1, max].
func ParseLimit(raw string, def, max int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > max {
		return def
	}
	return n
}
