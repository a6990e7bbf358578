package polls

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/paddock/internal/models"
)

var now = time.Date(2026, 5, 24, 14, 0, 0, 0, time.UTC)

func validInput() CreateInput {
	return CreateInput{
		Question: "  Who takes pole in Monaco?  ",
		Options:  []string{" Charles ", "Max", "Lando"},
		Tags:     []string{"#Monaco", "quali", "monaco", " "},
	}
}

func TestNormalize(t *testing.T) {
	out, err := Normalize(validInput(), now)
	require.NoError(t, err)
	assert.Equal(t, "Who takes pole in Monaco?", out.Question)
	assert.Equal(t, []string{"Charles", "Max", "Lando"}, out.Options)
	assert.Equal(t, []string{"monaco", "quali"}, out.Tags)
	assert.Nil(t, out.ClosesAt)
}

func TestNormalizeRejects(t *testing.T) {
	inFuture := now.Add(time.Hour)
	tooFar := now.Add(91 * 24 * time.Hour)
	past := now.Add(-time.Minute)

	tests := []struct {
		name  string
		edit  func(*CreateInput)
		field string
	}{
		{"one option", func(in *CreateInput) { in.Options = []string{"Max"} }, "options"},
		{"no options", func(in *CreateInput) { in.Options = nil }, "options"},
		{"eleven options", func(in *CreateInput) {
			in.Options = nil
			for i := 0; i < 11; i++ {
				in.Options = append(in.Options, strings.Repeat("x", i+1))
			}
		}, "options"},
		{"blank option", func(in *CreateInput) { in.Options = []string{"Max", "   "} }, "options"},
		{"long option", func(in *CreateInput) { in.Options = []string{"Max", strings.Repeat("a", 101)} }, "options"},
		{"duplicate ignoring case", func(in *CreateInput) { in.Options = []string{"Max", " max "} }, "options"},
		{"short question", func(in *CreateInput) { in.Question = " Who " }, "question"},
		{"long question", func(in *CreateInput) { in.Question = strings.Repeat("q", 201) }, "question"},
		{"long description", func(in *CreateInput) { in.Description = strings.Repeat("d", 1001) }, "description"},
		{"closes in past", func(in *CreateInput) { in.ClosesAt = &past }, "closes_at"},
		{"closes too far out", func(in *CreateInput) { in.ClosesAt = &tooFar }, "closes_at"},
		{"too many tags", func(in *CreateInput) { in.Tags = []string{"a", "b", "c", "d", "e", "f"} }, "tags"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.edit(&in)
			_, err := Normalize(in, now)
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
		})
	}

	t.Run("future close is kept", func(t *testing.T) {
		in := validInput()
		in.ClosesAt = &inFuture
		out, err := Normalize(in, now)
		require.NoError(t, err)
		assert.Equal(t, inFuture, *out.ClosesAt)
	})

	t.Run("ten options allowed", func(t *testing.T) {
		in := validInput()
		in.Options = nil
		for i := 0; i < 10; i++ {
			in.Options = append(in.Options, strings.Repeat("y", i+1))
		}
		_, err := Normalize(in, now)
		assert.NoError(t, err)
	})
}

func TestCheckSelection(t *testing.T) {
	valid := map[string]bool{"a": true, "b": true, "c": true}

	got, err := CheckSelection([]string{"b"}, valid, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, got)

	_, err = CheckSelection([]string{"a", "b"}, valid, false)
	assert.Error(t, err)

	got, err = CheckSelection([]string{"a", "c"}, valid, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, got)

	_, err = CheckSelection([]string{"a", "a"}, valid, true)
	assert.Error(t, err)
	_, err = CheckSelection([]string{"z"}, valid, true)
	assert.Error(t, err)
	_, err = CheckSelection(nil, valid, true)
	assert.Error(t, err)
}

func TestTally(t *testing.T) {
	options := []models.PollOption{
		{ID: "a", Text: "Charles", VoteCount: 1},
		{ID: "b", Text: "Max", VoteCount: 2},
		{ID: "c", Text: "Lando", VoteCount: 0},
	}
	res := Tally(options, 3)
	assert.Equal(t, 3, res.Votes)
	assert.Equal(t, 33.3, res.Options[0].Percent)
	assert.Equal(t, 66.7, res.Options[1].Percent)
	assert.Equal(t, 0.0, res.Options[2].Percent)

	empty := Tally(options[:0], 0)
	assert.Empty(t, empty.Options)
	assert.Equal(t, 0.0, percent(0, 0))
}

func TestResultsVisible(t *testing.T) {
	assert.True(t, ResultsVisible(true, false, false))
	assert.True(t, ResultsVisible(false, true, false))
	assert.True(t, ResultsVisible(false, false, true))
	assert.False(t, ResultsVisible(false, false, false))
}
