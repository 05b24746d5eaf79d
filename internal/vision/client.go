package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"igscout/internal/service"
)

const (
	openAIAPIURL = "https://api.openai.com/v1/chat/completions"
	defaultModel = "gpt-4o-mini"

	maxImagesPerRequest = 10
)

type Client struct {
	apiKey     string
	httpClient *http.Client
	model      string
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		model: defaultModel,
	}
}

// SetModel overrides the default vision model
func (c *Client) SetModel(model string) {
	c.model = model
}

// verdictPayload is the strict JSON shape the prompt asks for.
type verdictPayload struct {
	Category          *string  `json:"category"`
	Confidence        float64  `json:"confidence"`
	ContactCandidates []string `json:"contact_candidates"`
	PromoSignal       bool     `json:"promo_signal"`
}

// Categorize sends a page's bio and images to the vision model and parses
// the structured verdict out of the reply.
func (c *Client) Categorize(ctx context.Context, handle string, imageRefs []string, bioText string) (*service.CategorizationVerdict, error) {
	if len(imageRefs) > maxImagesPerRequest {
		imageRefs = imageRefs[:maxImagesPerRequest]
	}

	content := []map[string]interface{}{
		{"type": "text", "text": c.buildPrompt(handle, bioText, len(imageRefs))},
	}
	for _, ref := range imageRefs {
		content = append(content, map[string]interface{}{
			"type":      "image_url",
			"image_url": map[string]string{"url": ref},
		})
	}

	reqBody := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]interface{}{
			{"role": "user", "content": content},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIAPIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("no response from vision model")
	}

	cleaned := cleanJSONResponse(apiResp.Choices[0].Message.Content)

	var payload verdictPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse verdict JSON: %w", err)
	}

	return normalizeVerdict(payload), nil
}

// normalizeVerdict maps the raw payload onto the provider contract: an
// empty or UNKNOWN category becomes nil, confidence is clamped to [0,1].
func normalizeVerdict(p verdictPayload) *service.CategorizationVerdict {
	v := &service.CategorizationVerdict{
		ContactCandidates: p.ContactCandidates,
		PromoSignal:       p.PromoSignal,
	}

	if p.Category != nil {
		cat := strings.TrimSpace(*p.Category)
		if cat != "" && !strings.EqualFold(cat, "unknown") {
			v.Category = &cat
		}
	}

	switch {
	case p.Confidence < 0:
		v.Confidence = 0
	case p.Confidence > 1:
		v.Confidence = 1
	default:
		v.Confidence = p.Confidence
	}
	return v
}

// cleanJSONResponse removes markdown code blocks and extra text around the
// JSON object in a model reply.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	startIdx := strings.Index(content, "{")
	endIdx := strings.LastIndex(content, "}")
	if startIdx == -1 || endIdx == -1 || startIdx > endIdx {
		// No valid JSON found, return as is and let the parser fail with a
		// proper error.
		return content
	}
	return strings.TrimSpace(content[startIdx : endIdx+1])
}

func (c *Client) buildPrompt(handle, bioText string, numImages int) string {
	return fmt.Sprintf(`You are analyzing an Instagram page to categorize its content theme.

**Username:** @%s
**Bio:** %s
**Images Provided:** %d (1 profile picture + recent posts)

Categories:
- BLACK_THEME: African American targeted content with Black individuals prominently featured
- MIXED_THEME: Diverse representation with mix of ethnicities in content
- TEXT_ONLY: Pure text-based posts with minimal or no imagery of people
- BLACK_BG_WHITE_TEXT: Black background with white text aesthetic
- GENERAL_WHITE_THEME: Caucasian-focused content with white individuals predominantly featured
- BLACK_CELEBRITY: Black celebrity or public figure personal account
- WHITE_CELEBRITY: White celebrity or public figure personal account
- STREAMER_YOUTUBER: Content creator, streamer, or YouTuber
- PERSONAL_BRAND_ENTREPRENEUR: Business coach, entrepreneur, or self-improvement content creator

Return a STRICT JSON object only, no explanations:

{
  "category": "",
  "confidence": 0.0,
  "contact_candidates": [],
  "promo_signal": false
}

Rules:
- "category" must be one of the listed categories, or null if you cannot tell.
- "confidence" is your certainty between 0.0 and 1.0.
- "contact_candidates" lists any email addresses or contact handles visible in the bio.
- "promo_signal" is true if the page appears open to paid promotions or collaborations.`,
		handle, bioText, numImages)
}
