package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidGrade indicates that a grade string is not one of the known access tiers.
var ErrInvalidGrade = errors.New("models: invalid grade")

// Grade is an ordered access tier.
type Grade string

const (
	GradeGuest   Grade = "guest"
	GradeV4      Grade = "v4"
	GradeV5      Grade = "v5"
	GradeSupport Grade = "support"
	GradeAdmin   Grade = "admin"
)

// ParseGrade normalizes raw input into a Grade.
func ParseGrade(raw string) (Grade, error) {
	grade := Grade(strings.ToLower(strings.TrimSpace(raw)))
	if grade.rank() < 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidGrade, raw)
	}
	return grade, nil
}

// Support and Admin share the top tier.
func (g Grade) rank() int {
	switch g {
	case GradeGuest:
		return 0
	case GradeV4:
		return 1
	case GradeV5:
		return 2
	case GradeSupport, GradeAdmin:
		return 3
	default:
		return -1
	}
}

// Valid reports whether the grade is a known tier.
func (g Grade) Valid() bool {
	return g.rank() >= 0
}

// Meets reports whether g is at or above the required tier. Unknown grades never meet anything.
func (g Grade) Meets(required Grade) bool {
	have := g.rank()
	want := required.rank()
	if have < 0 || want < 0 {
		return false
	}
	return have >= want
}

func (g Grade) String() string {
	return string(g)
}
