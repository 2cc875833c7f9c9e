// Package reddit fetches discussion threads from Reddit's public JSON
// endpoints. No authentication is used; requests stay inside the
// unauthenticated rate limit.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/interfaces"
)

const (
	DefaultBaseURL   = "https://www.reddit.com"
	DefaultTimeout   = 20 * time.Second
	DefaultRateLimit = 1 // requests per second, unauthenticated
	DefaultUserAgent = "argus-research/1.0"

	maxCommentsPerThread = 20
)

// Client implements the SocialClient interface.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

var _ interfaces.SocialClient = (*Client)(nil)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger.
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Reddit client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), 2),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchPriorityThreads returns the stickied threads at the top of a forum's
// hot listing, with comments attached.
func (c *Client) FetchPriorityThreads(ctx context.Context, forum string, limit int) ([]interfaces.SocialThread, error) {
	threads, err := c.fetchListing(ctx, forum, "hot", limit)
	if err != nil {
		return nil, err
	}

	var priority []interfaces.SocialThread
	for _, t := range threads {
		if !t.Sticky {
			continue
		}
		if err := c.attachComments(ctx, forum, &t); err != nil {
			c.logger.Warn().Err(err).Str("thread", t.ID).Msg("Failed to fetch thread comments")
		}
		priority = append(priority, t)
	}
	return priority, nil
}

// FetchTrendingThreads returns the non-sticky threads from a forum's hot
// listing, with comments attached.
func (c *Client) FetchTrendingThreads(ctx context.Context, forum string, limit int) ([]interfaces.SocialThread, error) {
	threads, err := c.fetchListing(ctx, forum, "hot", limit)
	if err != nil {
		return nil, err
	}

	var trending []interfaces.SocialThread
	for _, t := range threads {
		if t.Sticky {
			continue
		}
		if err := c.attachComments(ctx, forum, &t); err != nil {
			c.logger.Warn().Err(err).Str("thread", t.ID).Msg("Failed to fetch thread comments")
		}
		trending = append(trending, t)
	}
	return trending, nil
}

func (c *Client) fetchListing(ctx context.Context, forum, sort string, limit int) ([]interfaces.SocialThread, error) {
	if limit <= 0 {
		limit = 25
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	var listing listingResponse
	path := fmt.Sprintf("/r/%s/%s.json", forum, sort)
	if err := c.get(ctx, path, params, &listing); err != nil {
		return nil, err
	}

	threads := make([]interfaces.SocialThread, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		p := child.Data
		threads = append(threads, interfaces.SocialThread{
			ID:      p.ID,
			Forum:   forum,
			Title:   p.Title,
			Body:    p.SelfText,
			Score:   p.Score,
			Sticky:  p.Stickied,
			Created: time.Unix(int64(p.CreatedUTC), 0).UTC(),
		})
	}
	return threads, nil
}

// attachComments loads the top comments for a thread.
func (c *Client) attachComments(ctx context.Context, forum string, thread *interfaces.SocialThread) error {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(maxCommentsPerThread))
	params.Set("sort", "top")

	var pages []listingResponse
	path := fmt.Sprintf("/r/%s/comments/%s.json", forum, thread.ID)
	if err := c.get(ctx, path, params, &pages); err != nil {
		return err
	}
	// Page 0 is the post itself, page 1 holds the comment tree
	if len(pages) < 2 {
		return nil
	}
	for _, child := range pages[1].Data.Children {
		if child.Kind != "t1" || child.Data.Body == "" {
			continue
		}
		thread.Comments = append(thread.Comments, child.Data.Body)
		if len(thread.Comments) >= maxCommentsPerThread {
			break
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug().Str("url", reqURL).Msg("Reddit API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("reddit API error: status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type listingResponse struct {
	Data struct {
		Children []struct {
			Kind string `json:"kind"`
			Data struct {
				ID         string  `json:"id"`
				Title      string  `json:"title"`
				SelfText   string  `json:"selftext"`
				Body       string  `json:"body"`
				Score      int     `json:"score"`
				Stickied   bool    `json:"stickied"`
				CreatedUTC float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}
