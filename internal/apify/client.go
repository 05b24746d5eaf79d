package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"igscout/internal/service"
)

const (
	apifyBaseURL = "https://api.apify.com/v2"

	followingActorID = "louisdeconinck~instagram-following-scraper"
	profileActorID   = "apify~instagram-profile-scraper"

	pollInterval  = 3 * time.Second
	maxPostImages = 10
)

// Client calls the Apify REST API: start an actor run, poll it, fetch the
// dataset items. Actor-level failures come back as RawError on the result
// rather than a Go error; the worker treats any non-empty RawError as a
// failed target without parsing it.
type Client struct {
	apiToken   string
	httpClient *http.Client
}

func NewClient(apiToken string) *Client {
	return &Client{
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// FollowingList fetches a client's full following list, plus the profile
// scraper's reported following total when available. A missing total is not
// an error; the caller falls back to the last known count.
func (c *Client) FollowingList(ctx context.Context, handle string) (*service.FollowingListResult, error) {
	expectedCount, err := c.fetchFollowingCount(ctx, handle)
	if err != nil {
		// Coverage falls back to the stored count; keep going.
		expectedCount = nil
	}

	input := map[string]interface{}{
		"usernames": []string{handle},
	}
	raw, runErr := c.runActor(ctx, followingActorID, input)
	if runErr != nil {
		if isTransport(runErr) {
			return nil, runErr
		}
		return &service.FollowingListResult{
			ExpectedCount: expectedCount,
			RawError:      runErr.Error(),
		}, nil
	}

	accounts, err := parseFollowingItems(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse following items: %w", err)
	}

	return &service.FollowingListResult{
		Accounts:      accounts,
		ExpectedCount: expectedCount,
	}, nil
}

// ProfileDetail fetches one page's profile with recent post images.
func (c *Client) ProfileDetail(ctx context.Context, handle string) (*service.ProfileDetailResult, error) {
	input := map[string]interface{}{
		"usernames":    []string{handle},
		"resultsLimit": 12,
	}
	raw, runErr := c.runActor(ctx, profileActorID, input)
	if runErr != nil {
		if isTransport(runErr) {
			return nil, runErr
		}
		return &service.ProfileDetailResult{Handle: handle, RawError: runErr.Error()}, nil
	}

	detail, err := parseProfileItem(raw, handle)
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile item: %w", err)
	}
	return detail, nil
}

func (c *Client) fetchFollowingCount(ctx context.Context, handle string) (*int, error) {
	input := map[string]interface{}{
		"usernames":     []string{handle},
		"resultsLimit":  1,
		"addParentData": false,
	}
	raw, err := c.runActor(ctx, profileActorID, input)
	if err != nil {
		return nil, err
	}
	return parseFollowingCount(raw)
}

// actorError marks a failure reported by the provider, as opposed to a
// transport problem reaching it.
type actorError struct{ msg string }

func (e *actorError) Error() string { return e.msg }

func isTransport(err error) bool {
	_, actor := err.(*actorError)
	return !actor
}

func (c *Client) runActor(ctx context.Context, actorID string, input map[string]interface{}) ([]byte, error) {
	runID, err := c.startActorRun(ctx, actorID, input)
	if err != nil {
		return nil, err
	}
	return c.waitAndGetResults(ctx, runID)
}

func (c *Client) startActorRun(ctx context.Context, actorID string, input map[string]interface{}) (string, error) {
	url := fmt.Sprintf("%s/acts/%s/runs?token=%s", apifyBaseURL, actorID, c.apiToken)

	body, err := json.Marshal(input)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to start actor: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Data.ID, nil
}

func (c *Client) waitAndGetResults(ctx context.Context, runID string) ([]byte, error) {
	statusURL := fmt.Sprintf("%s/actor-runs/%s?token=%s", apifyBaseURL, runID, c.apiToken)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}

		var status struct {
			Data struct {
				Status           string `json:"status"`
				DefaultDatasetID string `json:"defaultDatasetId"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			resp.Body.Close()
			return nil, err
		}
		resp.Body.Close()

		switch status.Data.Status {
		case "SUCCEEDED":
			return c.getDatasetItems(ctx, status.Data.DefaultDatasetID)
		case "FAILED", "ABORTED", "TIMED-OUT":
			return nil, &actorError{msg: fmt.Sprintf("actor run %s finished with status %s", runID, status.Data.Status)}
		}
		// Still running, continue polling
	}
}

func (c *Client) getDatasetItems(ctx context.Context, datasetID string) ([]byte, error) {
	url := fmt.Sprintf("%s/datasets/%s/items?token=%s", apifyBaseURL, datasetID, c.apiToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}
