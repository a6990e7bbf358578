// Package grids stores fans' ranked driver and team lists and folds them
// into a community ranking.
package grids

import "sort"

// Standing is one subject's place in the community ranking
type Standing struct {
	Rank        int    `json:"rank"`
	SubjectID   string `json:"subject_id"`
	Name        string `json:"name,omitempty"`
	Points      int    `json:"points"`
	FirstPlaces int    `json:"first_places"`
	Appearances int    `json:"appearances"`
}

// Consensus ranks subjects by Borda count. Each ranking is a list of
// subject IDs, best first; position p in a list of n earns n-p+1 points.
// Ties break on first-place votes, then subject ID.
func Consensus(rankings [][]string) []Standing {
	bySubject := make(map[string]*Standing)
	for _, list := range rankings {
		n := len(list)
		for i, id := range list {
			st, ok := bySubject[id]
			if !ok {
				st = &Standing{SubjectID: id}
				bySubject[id] = st
			}
			st.Points += n - i
			st.Appearances++
			if i == 0 {
				st.FirstPlaces++
			}
		}
	}

	out := make([]Standing, 0, len(bySubject))
	for _, st := range bySubject {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		if out[i].FirstPlaces != out[j].FirstPlaces {
			return out[i].FirstPlaces > out[j].FirstPlaces
		}
		return out[i].SubjectID < out[j].SubjectID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
