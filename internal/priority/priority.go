// Package priority ranks profile-scrape targets. Tiering is recomputed on
// every scheduling pass because client counts move as new clients are
// scraped; nothing here is cached or stateful.
package priority

import (
	"sort"
	"strings"
)

type Tier int

const (
	TierHotlist     Tier = iota // handle/display name matches a hotlist keyword
	TierMultiClient             // followed by 3+ clients
	TierPair                    // followed by exactly 2 clients
	TierLongTail                // everything else
)

// Partial matches are intentional: "black" matches "blacksuccess",
// "hustl" matches "hustlersimage".
var hotlistKeywords = []string{
	"hustl", "afri", "afro", "black", "melanin",
	"blvck", "culture", "kulture", "brown", "noir", "ebony",
}

// MatchesHotlist reports whether the handle or display name contains any
// hotlist keyword, case-insensitively.
func MatchesHotlist(handle, displayName string) bool {
	text := strings.ToLower(handle + " " + displayName)
	for _, kw := range hotlistKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// TierFor computes the scheduling tier for one account.
func TierFor(handle, displayName string, clientCount int) Tier {
	switch {
	case MatchesHotlist(handle, displayName):
		return TierHotlist
	case clientCount >= 3:
		return TierMultiClient
	case clientCount == 2:
		return TierPair
	default:
		return TierLongTail
	}
}

// Candidate is one account under consideration for a profile-scrape batch.
type Candidate struct {
	ID            string
	Handle        string
	DisplayName   string
	ClientCount   int
	FollowerCount int
}

// Rank orders candidates by tier, then client count descending, then
// follower count descending. The sort is stable so identical inputs always
// schedule identically.
func Rank(candidates []Candidate) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		ti := TierFor(ranked[i].Handle, ranked[i].DisplayName, ranked[i].ClientCount)
		tj := TierFor(ranked[j].Handle, ranked[j].DisplayName, ranked[j].ClientCount)
		if ti != tj {
			return ti < tj
		}
		if ranked[i].ClientCount != ranked[j].ClientCount {
			return ranked[i].ClientCount > ranked[j].ClientCount
		}
		return ranked[i].FollowerCount > ranked[j].FollowerCount
	})
	return ranked
}
