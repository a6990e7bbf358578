package polls

import (
	"math"

	"github.com/zfogg/paddock/internal/models"
)

// OptionResult is one option's tally
type OptionResult struct {
	OptionID string  `json:"option_id"`
	Text     string  `json:"text"`
	Votes    int     `json:"votes"`
	Percent  float64 `json:"percent"`
}

// Results is a poll's tally. Percentages are of voters, so they sum to
// more than 100 on multiple-choice polls.
type Results struct {
	Voters  int            `json:"voters"`
	Votes   int            `json:"votes"`
	Options []OptionResult `json:"options"`
}

// Tally builds results from per-option counts
func Tally(options []models.PollOption, voters int) *Results {
	res := &Results{Voters: voters, Options: make([]OptionResult, 0, len(options))}
	for _, o := range options {
		res.Votes += o.VoteCount
		res.Options = append(res.Options, OptionResult{
			OptionID: o.ID,
			Text:     o.Text,
			Votes:    o.VoteCount,
			Percent:  percent(o.VoteCount, voters),
		})
	}
	return res
}

// percent rounds part/whole*100 to one decimal; 0 when whole is 0
func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(float64(part)*1000/float64(whole)) / 10
}

// ResultsVisible reports whether viewer may see the tally: the author and
// voters always can, everyone else once the poll has closed
func ResultsVisible(closed, isAuthor, hasVoted bool) bool {
	return closed || isAuthor || hasVoted
}
