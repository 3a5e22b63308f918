package fimfic2cover

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"
)

// ---- Story references ----

// ErrInvalidStoryRef is returned when the story argument is neither a numeric
// id nor a recognized Fimfiction story URL.
var ErrInvalidStoryRef = errors.New("not a story id or fimfiction story URL")

var storyURLRE = regexp.MustCompile(`^https?://(?:www\.)?fimfiction\.net/story/(\d+)`)

// ResolveStoryRef extracts the numeric story id from a raw id or a story URL.
func ResolveStoryRef(ref string) (string, error) {
	if ref != "" && isNumeric(ref) {
		return ref, nil
	}
	if m := storyURLRE.FindStringSubmatch(ref); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("%q: %w", ref, ErrInvalidStoryRef)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ---- Metadata API ----

const defaultAPIBase = "https://www.fimfiction.net"

// StoryMetadata is the slice of the story API response this tool cares about.
type StoryMetadata struct {
	ID       string
	Title    string
	Author   string
	HasCover bool
}

// APIError reports a failed or malformed story API exchange. Fatal; the run
// is aborted, never retried.
type APIError struct {
	URL        string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("story API %s: %v", e.URL, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("story API %s: %s", e.URL, e.Message)
	}
	return fmt.Sprintf("story API %s: HTTP %d", e.URL, e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.Err }

// Client queries the Fimfiction story metadata API.
type Client struct {
	http *resty.Client
	base string
}

// NewClient returns a metadata API client. An empty baseURL targets the real
// Fimfiction API; tests point it at a local server.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultAPIBase
	}
	return &Client{
		http: resty.New().
			SetTimeout(10 * time.Second).
			SetHeader("User-Agent", "fimfic2cover/"+Version),
		base: baseURL,
	}
}

type storyResponse struct {
	Story *struct {
		Title  string `json:"title"`
		Author struct {
			Name string `json:"name"`
		} `json:"author"`
		Image *string `json:"image"`
	} `json:"story"`
	Error string `json:"error"`
}

// FetchStory performs one GET against the story API and extracts the title,
// author name, and cover-presence flag.
func (c *Client) FetchStory(ctx context.Context, storyID string) (StoryMetadata, error) {
	url := fmt.Sprintf("%s/api/story.php?story=%s", c.base, storyID)

	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return StoryMetadata{}, &APIError{URL: url, Err: err}
	}
	if resp.StatusCode() != 200 {
		return StoryMetadata{}, &APIError{URL: url, StatusCode: resp.StatusCode()}
	}

	var body storyResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return StoryMetadata{}, &APIError{URL: url, Err: fmt.Errorf("decode response: %w", err)}
	}
	if body.Story == nil {
		msg := body.Error
		if msg == "" {
			msg = "response has no story object"
		}
		return StoryMetadata{}, &APIError{URL: url, StatusCode: resp.StatusCode(), Message: msg}
	}

	return StoryMetadata{
		ID:       storyID,
		Title:    body.Story.Title,
		Author:   body.Story.Author.Name,
		HasCover: body.Story.Image != nil && *body.Story.Image != "",
	}, nil
}
