// Package canny is the feedback-board API client. All endpoints are JSON
// POSTs carrying the API key in the request body, per the Canny v1 API.
package canny

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const defaultBaseURL = "https://canny.io/api/v1"

// listPageSize is the page size used when building the duplicate index.
const listPageSize = 50

// Client calls the feedback-board service.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, primarily for tests.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a board API client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// User is a board identity, synthetic or real.
type User struct {
	ID string `json:"id"`
}

// Post is a single entry on a board. Only the fields the importer consults
// are decoded.
type Post struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type listPostsResponse struct {
	Posts   []Post `json:"posts"`
	HasMore bool   `json:"hasMore"`
}

// CreateOrUpdateUser upserts an identity keyed by email and returns its id.
// The endpoint is an idempotent upsert, so transient failures are retried.
func (c *Client) CreateOrUpdateUser(ctx context.Context, email, displayName string) (User, error) {
	body := map[string]any{
		"apiKey": c.apiKey,
		"email":  email,
		"name":   displayName,
		"userID": email,
	}
	var user User
	err := c.postWithRetry(ctx, "/users/create_or_update", body, &user)
	if err != nil {
		return User{}, fmt.Errorf("creating user %s: %w", email, err)
	}
	return user, nil
}

// ListBoardPostTitles pages through every post on a board and returns the
// titles in listing order.
func (c *Client) ListBoardPostTitles(ctx context.Context, boardID string) ([]string, error) {
	var titles []string
	skip := 0
	for {
		body := map[string]any{
			"apiKey":  c.apiKey,
			"boardID": boardID,
			"skip":    skip,
			"limit":   listPageSize,
		}
		var page listPostsResponse
		if err := c.postWithRetry(ctx, "/posts/list", body, &page); err != nil {
			return nil, fmt.Errorf("listing posts for board %s (skip %d): %w", boardID, skip, err)
		}
		for _, p := range page.Posts {
			titles = append(titles, p.Title)
		}
		if !page.HasMore {
			return titles, nil
		}
		skip += listPageSize
	}
}

// CreatePost creates a post authored by authorID on boardID. Not retried:
// an ambiguous transport failure after the server accepted the request
// could otherwise create duplicates.
func (c *Client) CreatePost(ctx context.Context, boardID, authorID, title, details, createdAt string) (Post, error) {
	body := map[string]any{
		"apiKey":   c.apiKey,
		"boardID":  boardID,
		"authorID": authorID,
		"title":    title,
		"details":  details,
	}
	if createdAt != "" {
		body["createdAt"] = createdAt
	}
	var post Post
	if err := c.post(ctx, "/posts/create", body, &post); err != nil {
		return Post{}, fmt.Errorf("creating post %q: %w", title, err)
	}
	return post, nil
}

// CreateVote casts one vote on postID by voterID. Not retried, same
// reasoning as CreatePost.
func (c *Client) CreateVote(ctx context.Context, postID, voterID string) error {
	body := map[string]any{
		"apiKey":  c.apiKey,
		"postID":  postID,
		"voterID": voterID,
	}
	if err := c.post(ctx, "/votes/create", body, nil); err != nil {
		return fmt.Errorf("casting vote on %s by %s: %w", postID, voterID, err)
	}
	return nil
}

// postWithRetry wraps post with exponential backoff for idempotent calls.
func (c *Client) postWithRetry(ctx context.Context, path string, body map[string]any, out any) error {
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(func() error {
		err := c.post(ctx, path, body, out)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		// Client errors other than rate limiting will not succeed on retry.
		if ok := asAPIError(err, &apiErr); ok && apiErr.StatusCode != http.StatusTooManyRequests && apiErr.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
}

func (c *Client) post(ctx context.Context, path string, body map[string]any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("board API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{StatusCode: resp.StatusCode, Body: string(msg)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
