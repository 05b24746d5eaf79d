package apify

import (
	"encoding/json"
	"fmt"

	"igscout/internal/service"
)

type followingItem struct {
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	IsVerified bool   `json:"is_verified"`
	IsPrivate  bool   `json:"is_private"`
}

func parseFollowingItems(raw []byte) ([]service.FollowedAccount, error) {
	var items []followingItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}

	accounts := make([]service.FollowedAccount, 0, len(items))
	for _, it := range items {
		if it.Username == "" {
			continue
		}
		accounts = append(accounts, service.FollowedAccount{
			Handle:      it.Username,
			DisplayName: it.FullName,
			IsVerified:  it.IsVerified,
			IsPrivate:   it.IsPrivate,
		})
	}
	return accounts, nil
}

type profileItem struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Biography      string `json:"biography"`
	FollowersCount int    `json:"followersCount"`
	FollowingCount int    `json:"followsCount"`
	Verified       bool   `json:"verified"`
	Private        bool   `json:"private"`
	ProfilePicURL  string `json:"profilePicUrl"`
	EdgeFollow     *struct {
		Count int `json:"count"`
	} `json:"edge_follow"`
	LatestPosts []struct {
		DisplayURL string `json:"displayUrl"`
	} `json:"latestPosts"`
}

func parseProfileItem(raw []byte, handle string) (*service.ProfileDetailResult, error) {
	var items []profileItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}

	if len(items) == 0 || items[0].ID == "" {
		return &service.ProfileDetailResult{
			Handle:   handle,
			RawError: fmt.Sprintf("profile not found or inaccessible for @%s", handle),
		}, nil
	}

	item := items[0]
	imageRefs := make([]string, 0, maxPostImages+1)
	if item.ProfilePicURL != "" {
		imageRefs = append(imageRefs, item.ProfilePicURL)
	}
	for _, post := range item.LatestPosts {
		if len(imageRefs) >= maxPostImages {
			break
		}
		if post.DisplayURL != "" {
			imageRefs = append(imageRefs, post.DisplayURL)
		}
	}

	return &service.ProfileDetailResult{
		Handle:        item.Username,
		FollowerCount: item.FollowersCount,
		IsVerified:    item.Verified,
		IsPrivate:     item.Private,
		Bio:           item.Biography,
		ImageRefs:     imageRefs,
	}, nil
}

// parseFollowingCount pulls the reported following total out of a profile
// item. Different actor versions report it under different keys.
func parseFollowingCount(raw []byte) (*int, error) {
	var items []profileItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	item := items[0]
	count := 0
	if item.EdgeFollow != nil && item.EdgeFollow.Count > 0 {
		count = item.EdgeFollow.Count
	} else if item.FollowingCount > 0 {
		count = item.FollowingCount
	}
	if count == 0 {
		return nil, nil
	}
	return &count, nil
}
