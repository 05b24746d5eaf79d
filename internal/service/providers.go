package service

import "context"

// FollowedAccount is one identity retrieved from a following list.
type FollowedAccount struct {
	Handle      string
	DisplayName string
	IsVerified  bool
	IsPrivate   bool
}

// FollowingListResult is the scraping provider's answer for one client.
// ExpectedCount is the provider's authoritative total when it reports one.
// A non-empty RawError means the provider failed this target; the text is
// kept verbatim and not parsed further.
type FollowingListResult struct {
	Accounts      []FollowedAccount
	ExpectedCount *int
	RawError      string
}

// ProfileDetailResult is the scraping provider's answer for one page.
type ProfileDetailResult struct {
	Handle        string
	FollowerCount int
	IsVerified    bool
	IsPrivate     bool
	Bio           string
	ImageRefs     []string
	RawError      string
}

// ScrapeProvider is the boundary to the external scraping service
type ScrapeProvider interface {
	FollowingList(ctx context.Context, handle string) (*FollowingListResult, error)
	ProfileDetail(ctx context.Context, handle string) (*ProfileDetailResult, error)
}

// CategorizationVerdict is the vision provider's answer for one page.
// Category is nil when the provider could not classify the page.
type CategorizationVerdict struct {
	Category          *string
	Confidence        float64
	ContactCandidates []string
	PromoSignal       bool
}

// VisionProvider is the boundary to the external classification service
type VisionProvider interface {
	Categorize(ctx context.Context, handle string, imageRefs []string, bioText string) (*CategorizationVerdict, error)
}
