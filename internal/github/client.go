// Package github is a thin client for the pieces of the GitHub REST
// API ChillTask consumes: the contents API (archival writes) and the
// issues API (status reports).
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chilltask/internal/faults"
	"github.com/chilltask/internal/retry"
)

const defaultBaseURL = "https://api.github.com"

const userAgent = "ChillTask/1.0"

// issuesPageSize is GitHub's maximum per_page for list endpoints.
const issuesPageSize = 100

// Client talks to the GitHub REST API v3.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      func(context.Context) (string, error)
	retryCfg   retry.Config
}

// TokenFunc supplies the API token per call.
type TokenFunc func(context.Context) (string, error)

// StaticToken adapts a fixed token to a TokenFunc.
func StaticToken(token string) TokenFunc {
	return func(context.Context) (string, error) { return token, nil }
}

// NewClient creates a GitHub client. An empty baseURL selects the
// public API.
func NewClient(token TokenFunc, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    baseURL,
		token:      token,
		retryCfg:   retry.DefaultConfig(),
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload interface{}) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, faults.Fatal("marshal github payload: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, faults.Fatal("build github request: %v", err)
	}

	token, err := c.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("github token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, faults.Transient("github %s %s: %v", method, endpoint, err)
	}
	return resp, nil
}

// classifyStatus maps an unexpected response status to a fault class.
func classifyStatus(method, endpoint string, status int, body []byte) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return faults.Auth("github %s %s: status %d", method, endpoint, status)
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		// Contents API reports a stale SHA as 409/422. Retryable: the
		// caller re-reads and reapplies.
		return faults.Transient("github %s %s: version conflict (status %d): %s", method, endpoint, status, body)
	case status == http.StatusTooManyRequests || status >= 500:
		return faults.Transient("github %s %s: status %d", method, endpoint, status)
	default:
		return faults.Validation("github %s %s: status %d: %s", method, endpoint, status, body)
	}
}

type contentResponse struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// GetFile reads a file from the contents API. Returns (nil, nil) when
// the file does not exist; any other failure propagates as an error so
// the caller's retry loop can see it.
func (c *Client) GetFile(ctx context.Context, owner, repo, path, branch string) (*RepositoryFile, error) {
	var file *RepositoryFile

	endpoint := fmt.Sprintf("/repos/%s/%s/contents/%s?ref=%s", owner, repo, escapePath(path), url.QueryEscape(branch))
	result := retry.Do(ctx, c.retryCfg, "github.contents.get", func(ctx context.Context) error {
		resp, err := c.do(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			file = nil
			return nil
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return faults.Transient("github contents read: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			return classifyStatus(http.MethodGet, endpoint, resp.StatusCode, body)
		}

		var parsed contentResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return faults.Transient("github contents decode: %v", err)
		}

		decoded, err := base64.StdEncoding.DecodeString(stripNewlines(parsed.Content))
		if err != nil {
			return faults.Validation("github contents: undecodable content for %s: %v", path, err)
		}

		file = &RepositoryFile{Path: path, Branch: branch, SHA: parsed.SHA, Content: string(decoded)}
		return nil
	})
	if result.Err != nil {
		return nil, result.Err
	}
	return file, nil
}

// PutFile creates or updates a file through the contents API. SHA must
// be empty when creating and must carry the current version token when
// updating; GitHub rejects stale tokens, which surfaces here as a
// retryable conflict.
func (c *Client) PutFile(ctx context.Context, owner, repo string, file RepositoryFile, message string) error {
	payload := map[string]interface{}{
		"message": message,
		"content": base64.StdEncoding.EncodeToString([]byte(file.Content)),
		"branch":  file.Branch,
	}
	if file.SHA != "" {
		payload["sha"] = file.SHA
	}

	endpoint := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, escapePath(file.Path))
	result := retry.Do(ctx, c.retryCfg, "github.contents.put", func(ctx context.Context) error {
		resp, err := c.do(ctx, http.MethodPut, endpoint, payload)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			return nil
		}
		body, _ := io.ReadAll(resp.Body)
		return classifyStatus(http.MethodPut, endpoint, resp.StatusCode, body)
	})
	return result.Err
}

// ListOpenIssues fetches all open issues, following pagination and
// filtering out pull requests (the issues API returns both).
func (c *Client) ListOpenIssues(ctx context.Context, owner, repo string) ([]Issue, error) {
	var all []Issue

	for page := 1; ; page++ {
		var batch []Issue
		endpoint := fmt.Sprintf("/repos/%s/%s/issues?state=open&per_page=%d&page=%d", owner, repo, issuesPageSize, page)
		result := retry.Do(ctx, c.retryCfg, "github.issues.list", func(ctx context.Context) error {
			resp, err := c.do(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return faults.Transient("github issues read: %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				return classifyStatus(http.MethodGet, endpoint, resp.StatusCode, body)
			}

			batch = batch[:0]
			if err := json.Unmarshal(body, &batch); err != nil {
				return faults.Transient("github issues decode: %v", err)
			}
			return nil
		})
		if result.Err != nil {
			return nil, result.Err
		}

		for _, issue := range batch {
			if issue.PullRequest != nil {
				continue
			}
			all = append(all, issue)
		}

		if len(batch) < issuesPageSize {
			return all, nil
		}
	}
}

// escapePath escapes each path segment while keeping separators.
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// stripNewlines removes the line breaks GitHub inserts into base64
// content payloads.
func stripNewlines(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' || s[i] == '\r' {
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
