// Package polls implements fan polls: creation rules, voting, results and
// closing.
package polls

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Poll limits
const (
	QuestionMin     = 5
	QuestionMax     = 200
	DescriptionMax  = 1000
	MinOptions      = 2
	MaxOptions      = 10
	OptionMax       = 100
	MaxTags         = 5
	TagMax          = 30
	MaxCloseHorizon = 90 * 24 * time.Hour
)

// CreateInput is the poll form
type CreateInput struct {
	Question       string     `json:"question" binding:"required"`
	Description    string     `json:"description"`
	Options        []string   `json:"options" binding:"required"`
	MultipleChoice bool       `json:"multiple_choice"`
	ClosesAt       *time.Time `json:"closes_at"`
	Tags           []string   `json:"tags"`
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

// Normalize trims and checks in against the poll rules, returning the
// cleaned input. Option order is preserved.
func Normalize(in CreateInput, now time.Time) (CreateInput, error) {
	out := CreateInput{
		Question:       strings.TrimSpace(in.Question),
		Description:    strings.TrimSpace(in.Description),
		MultipleChoice: in.MultipleChoice,
	}

	switch n := utf8.RuneCountInString(out.Question); {
	case n < QuestionMin:
		return out, fieldErr("question", "must be at least %d characters", QuestionMin)
	case n > QuestionMax:
		return out, fieldErr("question", "must be at most %d characters", QuestionMax)
	}
	if utf8.RuneCountInString(out.Description) > DescriptionMax {
		return out, fieldErr("description", "must be at most %d characters", DescriptionMax)
	}

	if len(in.Options) < MinOptions {
		return out, fieldErr("options", "a poll needs at least %d options", MinOptions)
	}
	if len(in.Options) > MaxOptions {
		return out, fieldErr("options", "a poll can have at most %d options", MaxOptions)
	}
	seen := make(map[string]bool, len(in.Options))
	for i, raw := range in.Options {
		opt := strings.TrimSpace(raw)
		n := utf8.RuneCountInString(opt)
		if n == 0 {
			return out, fieldErr("options", "option %d is empty", i+1)
		}
		if n > OptionMax {
			return out, fieldErr("options", "option %d must be at most %d characters", i+1, OptionMax)
		}
		key := strings.ToLower(opt)
		if seen[key] {
			return out, fieldErr("options", "option %q is duplicated", opt)
		}
		seen[key] = true
		out.Options = append(out.Options, opt)
	}

	if in.ClosesAt != nil {
		closes := in.ClosesAt.UTC()
		if !closes.After(now) {
			return out, fieldErr("closes_at", "must be in the future")
		}
		if closes.Sub(now) > MaxCloseHorizon {
			return out, fieldErr("closes_at", "must be within 90 days")
		}
		out.ClosesAt = &closes
	}

	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return out, err
	}
	out.Tags = tags
	return out, nil
}

// normalizeTags lowercases, strips a leading '#' and dedupes
func normalizeTags(raw []string) ([]string, error) {
	tags := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "#"))
		if t == "" || seen[t] {
			continue
		}
		if utf8.RuneCountInString(t) > TagMax {
			return nil, fieldErr("tags", "tags must be at most %d characters", TagMax)
		}
		seen[t] = true
		tags = append(tags, t)
	}
	if len(tags) > MaxTags {
		return nil, fieldErr("tags", "at most %d tags", MaxTags)
	}
	return tags, nil
}

// CheckSelection validates option IDs for a vote. valid is the poll's
// option set.
func CheckSelection(optionIDs []string, valid map[string]bool, multiple bool) ([]string, error) {
	if len(optionIDs) == 0 {
		return nil, fieldErr("option_ids", "select an option")
	}
	if !multiple && len(optionIDs) != 1 {
		return nil, fieldErr("option_ids", "this poll takes exactly one option")
	}
	out := make([]string, 0, len(optionIDs))
	seen := make(map[string]bool, len(optionIDs))
	for _, id := range optionIDs {
		if !valid[id] {
			return nil, fieldErr("option_ids", "unknown option %q", id)
		}
		if seen[id] {
			return nil, fieldErr("option_ids", "option %q selected twice", id)
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}
