package grids

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/zfogg/paddock/internal/models"
)

// Grid limits
const (
	TitleMax   = 100
	MinEntries = 3
	MaxEntries = 20
	MinSeason  = 1950
)

// Input is the grid form. Entries are subject IDs, best first.
type Input struct {
	Title   string          `json:"title" binding:"required"`
	Kind    models.GridKind `json:"kind" binding:"required"`
	Season  int             `json:"season" binding:"required"`
	Entries []string        `json:"entries" binding:"required"`
}

// FieldError names the first field that failed validation
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

func fieldErr(field, format string, args ...interface{}) *FieldError {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Normalize checks everything that needs no database. maxSeason is the
// latest season a grid may rank.
func Normalize(in Input, maxSeason int) (Input, error) {
	out := Input{
		Title:  strings.TrimSpace(in.Title),
		Kind:   in.Kind,
		Season: in.Season,
	}
	if n := utf8.RuneCountInString(out.Title); n == 0 || n > TitleMax {
		return out, fieldErr("title", "must be 1 to %d characters", TitleMax)
	}
	if !out.Kind.Valid() {
		return out, fieldErr("kind", "must be drivers or teams")
	}
	if out.Season < MinSeason || out.Season > maxSeason {
		return out, fieldErr("season", "must be between %d and %d", MinSeason, maxSeason)
	}
	if len(in.Entries) < MinEntries || len(in.Entries) > MaxEntries {
		return out, fieldErr("entries", "a grid ranks %d to %d entries", MinEntries, MaxEntries)
	}

	seen := make(map[string]bool, len(in.Entries))
	for _, id := range in.Entries {
		id = strings.TrimSpace(id)
		if id == "" {
			return out, fieldErr("entries", "entry is empty")
		}
		if seen[id] {
			return out, fieldErr("entries", "%s is ranked twice", id)
		}
		seen[id] = true
		out.Entries = append(out.Entries, id)
	}
	return out, nil
}
