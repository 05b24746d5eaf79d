package apify

import (
	"testing"
)

func TestParseFollowingItems(t *testing.T) {
	raw := []byte(`[
		{"username": "page_one", "full_name": "Page One", "is_verified": true, "is_private": false},
		{"username": "page_two", "full_name": "", "is_verified": false, "is_private": true},
		{"username": "", "full_name": "ghost entry"}
	]`)

	accounts, err := parseFollowingItems(raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Entries without a username are dropped.
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].Handle != "page_one" || !accounts[0].IsVerified {
		t.Errorf("unexpected first account: %+v", accounts[0])
	}
	if accounts[1].Handle != "page_two" || !accounts[1].IsPrivate {
		t.Errorf("unexpected second account: %+v", accounts[1])
	}
}

func TestParseFollowingItems_Empty(t *testing.T) {
	accounts, err := parseFollowingItems([]byte(`[]`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(accounts) != 0 {
		t.Errorf("expected no accounts, got %d", len(accounts))
	}
}

func TestParseFollowingItems_InvalidJSON(t *testing.T) {
	if _, err := parseFollowingItems([]byte(`not json`)); err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

func TestParseProfileItem(t *testing.T) {
	raw := []byte(`[{
		"id": "123456",
		"username": "brandpage",
		"biography": "collabs: hello@brand.com",
		"followersCount": 54321,
		"verified": true,
		"private": false,
		"profilePicUrl": "https://cdn.example.com/pic.jpg",
		"latestPosts": [
			{"displayUrl": "https://cdn.example.com/post1.jpg"},
			{"displayUrl": "https://cdn.example.com/post2.jpg"},
			{"displayUrl": ""}
		]
	}]`)

	result, err := parseProfileItem(raw, "brandpage")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.RawError != "" {
		t.Fatalf("expected no raw error, got %q", result.RawError)
	}
	if result.FollowerCount != 54321 || !result.IsVerified {
		t.Errorf("unexpected profile: %+v", result)
	}
	// Profile pic first, then post images, empty URLs dropped.
	if len(result.ImageRefs) != 3 {
		t.Fatalf("expected 3 image refs, got %d", len(result.ImageRefs))
	}
	if result.ImageRefs[0] != "https://cdn.example.com/pic.jpg" {
		t.Errorf("expected profile pic first, got %s", result.ImageRefs[0])
	}
}

func TestParseProfileItem_NotFound(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty dataset", `[]`},
		{"item without id", `[{"username": "ghostpage"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseProfileItem([]byte(tt.raw), "ghostpage")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result.RawError == "" {
				t.Error("expected a raw error for a missing profile")
			}
			if result.Handle != "ghostpage" {
				t.Errorf("expected requested handle kept, got %s", result.Handle)
			}
		})
	}
}

func TestParseProfileItem_CapsPostImages(t *testing.T) {
	raw := `[{"id": "1", "username": "busypage", "profilePicUrl": "https://cdn.example.com/pic.jpg", "latestPosts": [`
	for i := 0; i < 20; i++ {
		if i > 0 {
			raw += ","
		}
		raw += `{"displayUrl": "https://cdn.example.com/post.jpg"}`
	}
	raw += `]}]`

	result, err := parseProfileItem([]byte(raw), "busypage")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.ImageRefs) != maxPostImages {
		t.Errorf("expected image refs capped at %d, got %d", maxPostImages, len(result.ImageRefs))
	}
}

func TestParseFollowingCount(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *int
	}{
		{"edge_follow preferred", `[{"id": "1", "edge_follow": {"count": 842}, "followsCount": 700}]`, intPtr(842)},
		{"followsCount fallback", `[{"id": "1", "followsCount": 512}]`, intPtr(512)},
		{"no count reported", `[{"id": "1"}]`, nil},
		{"empty dataset", `[]`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFollowingCount([]byte(tt.raw))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if tt.want == nil {
				if got != nil {
					t.Errorf("expected nil, got %d", *got)
				}
				return
			}
			if got == nil || *got != *tt.want {
				t.Errorf("expected %d, got %v", *tt.want, got)
			}
		})
	}
}

func intPtr(n int) *int {
	return &n
}
