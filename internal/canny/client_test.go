package canny

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestCreateOrUpdateUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/create_or_update", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "key-1", body["apiKey"])
		assert.Equal(t, "jane@acme.test", body["email"])
		assert.Equal(t, "Jane Doe", body["name"])
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "user-9"})
	}))
	defer srv.Close()

	c := NewClient("key-1", WithBaseURL(srv.URL))
	user, err := c.CreateOrUpdateUser(context.Background(), "jane@acme.test", "Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, "user-9", user.ID)
}

func TestListBoardPostTitlesPaginates(t *testing.T) {
	pages := [][]string{
		{"First", "Second"},
		{"Third"},
	}
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/posts/list", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "board-f", body["boardID"])
		assert.Equal(t, float64(calls*listPageSize), body["skip"])

		posts := make([]map[string]string, 0)
		for _, title := range pages[calls] {
			posts = append(posts, map[string]string{"id": "p", "title": title})
		}
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"posts":   posts,
			"hasMore": calls < len(pages),
		})
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	titles, err := c.ListBoardPostTitles(context.Background(), "board-f")
	require.NoError(t, err)
	assert.Equal(t, []string{"First", "Second", "Third"}, titles)
	assert.Equal(t, 2, calls, "must page until hasMore is false")
}

func TestListRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"posts": []any{}, "hasMore": false})
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	titles, err := c.ListBoardPostTitles(context.Background(), "b")
	require.NoError(t, err)
	assert.Empty(t, titles)
	assert.Equal(t, int32(2), calls.Load())
}

func TestListDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid board"}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.ListBoardPostTitles(context.Background(), "b")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestCreatePost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/posts/create", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "board-b", body["boardID"])
		assert.Equal(t, "author-1", body["authorID"])
		assert.Equal(t, "Crash on save", body["title"])
		assert.Equal(t, "details here", body["details"])
		assert.Equal(t, "2023-02-01", body["createdAt"])
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "post-3"})
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	post, err := c.CreatePost(context.Background(), "board-b", "author-1", "Crash on save", "details here", "2023-02-01")
	require.NoError(t, err)
	assert.Equal(t, "post-3", post.ID)
}

func TestCreatePostNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.CreatePost(context.Background(), "b", "a", "t", "d", "")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "post creation must never be retried")
}

func TestCreateVote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/votes/create", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "post-3", body["postID"])
		assert.Equal(t, "voter-7", body["voterID"])
		_, _ = w.Write([]byte(`"success"`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	err := c.CreateVote(context.Background(), "post-3", "voter-7")
	assert.NoError(t, err)
}

func TestCreatePostOmitsEmptyCreatedAt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		_, present := body["createdAt"]
		assert.False(t, present)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "p"})
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.CreatePost(context.Background(), "b", "a", "t", "d", "")
	require.NoError(t, err)
}
