// Package xapi is a minimal X API v2 client for reading one account's posts.
// Docs: https://docs.x.com/x-api/posts/user-posts-timeline-by-user-id
package xapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"post-archivist/internal/model"
	"post-archivist/internal/source"
)

const (
	tweetFields = "created_at,public_metrics,entities,referenced_tweets,author_id,attachments,note_tweet,article"
	expansions  = "referenced_tweets.id,referenced_tweets.id.author_id,attachments.media_keys,article.cover_media,article.media_entities"
	mediaFields = "url,type,variants,preview_image_url"
	userFields  = "username,name"
	maxPageSize = 100
	maxLookup   = 100
)

// Client calls the X API with a bearer token.
type Client struct {
	baseURL  string
	token    string
	userID   string
	pageSize int
	client   *http.Client
}

// NewClient creates a client for userID's timeline. baseURL defaults to
// https://api.x.com; pageSize is capped at 100.
func NewClient(baseURL, token, userID string, pageSize int, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.x.com"
	}
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		userID:   userID,
		pageSize: pageSize,
		client:   &http.Client{Timeout: timeout},
	}
}

// SetUserID selects whose timeline FetchPosts reads.
func (c *Client) SetUserID(id string) { c.userID = id }

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Title  string
	Detail string
	// ResetAt is set from x-rate-limit-reset on 429 responses.
	ResetAt time.Time
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("x api: status %d", e.Status)
	if e.Title != "" {
		msg += ": " + e.Title
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if !e.ResetAt.IsZero() {
		msg += ", rate limit resets at " + e.ResetAt.Format(time.RFC3339)
	}
	return msg
}

type includes struct {
	Tweets []model.Post  `json:"tweets"`
	Users  []model.User  `json:"users"`
	Media  []model.Media `json:"media"`
}

type timelineResponse struct {
	Data     []model.Post `json:"data"`
	Includes includes     `json:"includes"`
	Meta     struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

// FetchPosts implements source.PostSource.
// API: GET /2/users/{id}/tweets
func (c *Client) FetchPosts(ctx context.Context, start, end time.Time, pageToken string) (source.Page, error) {
	if c.userID == "" {
		return source.Page{}, fmt.Errorf("x api: user id not set")
	}
	q := url.Values{
		"start_time":   {start.UTC().Format(time.RFC3339)},
		"end_time":     {end.UTC().Format(time.RFC3339)},
		"max_results":  {strconv.Itoa(c.pageSize)},
		"tweet.fields": {tweetFields},
		"expansions":   {expansions},
		"media.fields": {mediaFields},
		"user.fields":  {userFields},
	}
	if pageToken != "" {
		q.Set("pagination_token", pageToken)
	}
	var resp timelineResponse
	if err := c.get(ctx, fmt.Sprintf("/2/users/%s/tweets", url.PathEscape(c.userID)), q, &resp); err != nil {
		return source.Page{}, err
	}
	return source.Page{
		Posts: resp.Data,
		Includes: model.Includes{
			Posts: resp.Includes.Tweets,
			Users: resp.Includes.Users,
			Media: resp.Includes.Media,
		},
		NextToken: resp.Meta.NextToken,
	}, nil
}

// Me returns the account the token belongs to.
// API: GET /2/users/me
func (c *Client) Me(ctx context.Context) (model.User, error) {
	var resp struct {
		Data model.User `json:"data"`
	}
	if err := c.get(ctx, "/2/users/me", url.Values{"user.fields": {userFields}}, &resp); err != nil {
		return model.User{}, err
	}
	if resp.Data.ID == "" {
		return model.User{}, fmt.Errorf("x api: /2/users/me returned no user")
	}
	return resp.Data, nil
}

// BackfillMedia looks up included posts whose attachments or article cover
// are missing from c.Includes.Media and merges the media it finds. Referenced posts do not
// carry their media through the timeline expansions.
// API: GET /2/tweets?ids=...
func (c *Client) BackfillMedia(ctx context.Context, coll *model.PostCollection) error {
	known := make(map[string]bool, len(coll.Includes.Media))
	for _, m := range coll.Includes.Media {
		known[m.Key] = true
	}
	var ids []string
	for _, p := range coll.Includes.Posts {
		for _, k := range p.MediaKeys() {
			if !known[k] {
				ids = append(ids, p.ID)
				break
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}
	for len(ids) > 0 {
		n := min(len(ids), maxLookup)
		batch := ids[:n]
		ids = ids[n:]
		q := url.Values{
			"ids":          {strings.Join(batch, ",")},
			"tweet.fields": {"attachments,article"},
			"expansions":   {"attachments.media_keys,article.cover_media"},
			"media.fields": {mediaFields},
		}
		var resp timelineResponse
		if err := c.get(ctx, "/2/tweets", q, &resp); err != nil {
			return err
		}
		coll.Includes.Merge(model.Includes{Media: resp.Includes.Media})
		slog.Info("xapi: media backfill", "posts", len(batch), "media", len(resp.Includes.Media))
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("x api: %s: %w", path, err)
	}
	defer resp.Body.Close()
	slog.Debug("xapi: response", "path", path, "status", resp.StatusCode, "duration", time.Since(start))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("x api: decode %s: %w", path, err)
	}
	return nil
}

func apiError(resp *http.Response) error {
	e := &APIError{Status: resp.StatusCode}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(b, &body) == nil {
		e.Title, e.Detail = body.Title, body.Detail
	}
	if e.Title == "" && e.Detail == "" {
		e.Detail = strings.TrimSpace(string(b))
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		if sec, err := strconv.ParseInt(resp.Header.Get("x-rate-limit-reset"), 10, 64); err == nil {
			e.ResetAt = time.Unix(sec, 0)
		}
	}
	return e
}
