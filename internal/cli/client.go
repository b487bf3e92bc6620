package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperjump/kindred/internal/models"
	"github.com/hyperjump/kindred/internal/service"
	"github.com/hyperjump/kindred/pkg/utils"
)

// Client talks to a running kindred server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Register submits a user's answers.
func (c *Client) Register(ctx context.Context, req *models.RegisterRequest) (*models.RegisterResponse, error) {
	var out models.RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/user/register", req, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Matches fetches a user's matches.
func (c *Client) Matches(ctx context.Context, req *models.MatchRequest) (*models.MatchResponse, error) {
	var out models.MatchResponse
	if err := c.do(ctx, http.MethodPost, "/matches", req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	if out.Matches == nil {
		out.Matches = []models.Match{}
	}
	return &out, nil
}

// Status fetches index and storage status.
func (c *Client) Status(ctx context.Context) (*service.Status, error) {
	var out service.Status
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Submissions fetches the stored submissions for a user.
func (c *Client) Submissions(ctx context.Context, userID string) (*models.SubmissionsResponse, error) {
	var out models.SubmissionsResponse
	path := "/api/v1/users/" + url.PathEscape(userID) + "/submissions"
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	if out.Submissions == nil {
		out.Submissions = []*models.Submission{}
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in interface{}, want int, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, utils.Truncate(strings.TrimSpace(string(b)), 200))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
