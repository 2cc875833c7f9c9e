// Package youtube searches channel feeds and fetches video transcripts.
// Transcript fetch is two-tier: the public timedtext API first, then a
// watch-page caption track extraction as fallback.
package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/interfaces"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 2 // requests per second

	feedURL      = "https://www.youtube.com/feeds/videos.xml"
	timedTextURL = "https://www.youtube.com/api/timedtext"
	watchURL     = "https://www.youtube.com/watch"
)

// Client implements the TranscriptClient interface.
type Client struct {
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

var _ interfaces.TranscriptClient = (*Client)(nil)

// ClientOption configures the client.
type ClientOption func(*Client)

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

// NewClient creates a new YouTube transcript client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SearchChannel returns videos published on a channel since the given
// time, read from the channel's public RSS feed.
func (c *Client) SearchChannel(ctx context.Context, channel string, since time.Time) ([]interfaces.VideoResult, error) {
	params := url.Values{}
	params.Set("channel_id", channel)

	body, err := c.fetch(ctx, feedURL+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channel feed: %w", err)
	}

	var feed channelFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse channel feed: %w", err)
	}

	var results []interfaces.VideoResult
	for _, entry := range feed.Entries {
		published, err := time.Parse(time.RFC3339, entry.Published)
		if err != nil || published.Before(since) {
			continue
		}
		results = append(results, interfaces.VideoResult{
			VideoID:     entry.VideoID,
			Title:       entry.Title,
			Channel:     feed.Title,
			PublishedAt: published,
		})
	}
	return results, nil
}

// FetchTranscript downloads the English transcript for a video. The fast
// timedtext API is tried first; a watch-page caption extraction second.
func (c *Client) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	text, err := c.fetchTimedText(ctx, videoID)
	if err == nil && text != "" {
		return text, nil
	}
	if err != nil {
		c.logger.Debug().Err(err).Str("video_id", videoID).Msg("Timedtext fetch failed, trying watch page")
	}

	text, fallbackErr := c.fetchFromWatchPage(ctx, videoID)
	if fallbackErr != nil {
		return "", fmt.Errorf("transcript unavailable for %s: %v; fallback: %w", videoID, err, fallbackErr)
	}
	return text, nil
}

func (c *Client) fetchTimedText(ctx context.Context, videoID string) (string, error) {
	params := url.Values{}
	params.Set("v", videoID)
	params.Set("lang", "en")
	params.Set("fmt", "json3")

	body, err := c.fetch(ctx, timedTextURL+"?"+params.Encode())
	if err != nil {
		return "", err
	}
	if len(body) == 0 {
		return "", fmt.Errorf("empty timedtext response")
	}

	var resp timedTextResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse timedtext: %w", err)
	}

	var sb strings.Builder
	for _, event := range resp.Events {
		for _, seg := range event.Segs {
			if seg.UTF8 == "" || seg.UTF8 == "\n" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(strings.TrimSpace(seg.UTF8))
		}
	}
	return sb.String(), nil
}

var captionTrackRegex = regexp.MustCompile(`"captionTracks":\[\{"baseUrl":"([^"]+)"`)

func (c *Client) fetchFromWatchPage(ctx context.Context, videoID string) (string, error) {
	body, err := c.fetch(ctx, watchURL+"?v="+url.QueryEscape(videoID))
	if err != nil {
		return "", err
	}

	matches := captionTrackRegex.FindSubmatch(body)
	if len(matches) < 2 {
		return "", fmt.Errorf("no caption tracks found")
	}
	trackURL := strings.ReplaceAll(string(matches[1]), `&`, "&")

	track, err := c.fetch(ctx, trackURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch caption track: %w", err)
	}

	var transcript captionTrack
	if err := xml.Unmarshal(track, &transcript); err != nil {
		return "", fmt.Errorf("failed to parse caption track: %w", err)
	}

	var sb strings.Builder
	for _, line := range transcript.Texts {
		text := strings.TrimSpace(html.UnescapeString(line.Value))
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

func (c *Client) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube request failed: status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}

type channelFeed struct {
	Title   string `xml:"title"`
	Entries []struct {
		VideoID   string `xml:"videoId"`
		Title     string `xml:"title"`
		Published string `xml:"published"`
	} `xml:"entry"`
}

type timedTextResponse struct {
	Events []struct {
		Segs []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

type captionTrack struct {
	Texts []struct {
		Value string `xml:",chardata"`
	} `xml:"text"`
}
