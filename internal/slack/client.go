package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/chilltask/internal/faults"
	"github.com/chilltask/internal/retry"
)

const defaultBaseURL = "https://slack.com/api"

// historyPageSize is Slack's maximum page size for conversation APIs.
const historyPageSize = 200

// Client is a minimal Slack Web API client. All calls go through the
// shared rate limiter and the retry orchestrator.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      func(context.Context) (string, error)
	limiter    *rate.Limiter
	retryCfg   retry.Config
}

// TokenFunc supplies the bot token per call so the secret cache can
// refresh stale credentials between invocations.
type TokenFunc func(context.Context) (string, error)

// StaticToken adapts a fixed token to a TokenFunc.
func StaticToken(token string) TokenFunc {
	return func(context.Context) (string, error) { return token, nil }
}

// NewClient creates a Slack client. Slack's conversation APIs sit in
// rate tier 3 (~50 req/min), so the limiter defaults below that.
func NewClient(token TokenFunc) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultBaseURL,
		token:      token,
		limiter:    rate.NewLimiter(rate.Every(1500*time.Millisecond), 3),
		retryCfg:   retry.DefaultConfig(),
	}
}

// apiResponse is the common envelope of every Slack Web API response.
type apiResponse struct {
	OK       bool      `json:"ok"`
	Error    string    `json:"error"`
	Messages []Message `json:"messages"`
	Metadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
	User struct {
		Profile struct {
			DisplayName string `json:"display_name"`
			RealName    string `json:"real_name"`
		} `json:"profile"`
		Name string `json:"name"`
	} `json:"user"`
}

func (c *Client) call(ctx context.Context, method string, params url.Values, body interface{}) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, faults.Transient("slack rate limiter: %v", err)
	}

	token, err := c.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("slack token: %w", err)
	}

	var req *http.Request
	endpoint := c.baseURL + "/" + method
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, faults.Fatal("marshal slack payload: %v", err)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, faults.Fatal("build slack request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	} else {
		if len(params) > 0 {
			endpoint += "?" + params.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, faults.Fatal("build slack request: %v", err)
		}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, faults.Transient("slack %s: %v", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, faults.Transient("slack %s: rate limited", method)
	}
	if resp.StatusCode >= 500 {
		return nil, faults.Transient("slack %s: status %d", method, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, faults.Transient("slack %s: read response: %v", method, err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, faults.Transient("slack %s: decode response: %v", method, err)
	}

	if !parsed.OK {
		switch parsed.Error {
		case "invalid_auth", "token_revoked", "not_authed":
			return nil, faults.Auth("slack %s: %s", method, parsed.Error)
		case "ratelimited", "rate_limited":
			return nil, faults.Transient("slack %s: %s", method, parsed.Error)
		default:
			return nil, faults.Validation("slack %s: %s", method, parsed.Error)
		}
	}
	return &parsed, nil
}

// PostMessage posts a text message to a channel.
func (c *Client) PostMessage(ctx context.Context, channel, text string) error {
	result := retry.Do(ctx, c.retryCfg, "slack.chat.postMessage", func(ctx context.Context) error {
		_, err := c.call(ctx, "chat.postMessage", nil, map[string]interface{}{
			"channel": channel,
			"text":    text,
			"mrkdwn":  true,
		})
		return err
	})
	return result.Err
}

// UserName resolves a user id to a display name, falling back through
// real name and login.
func (c *Client) UserName(ctx context.Context, userID string) (string, error) {
	var name string
	result := retry.Do(ctx, c.retryCfg, "slack.users.info", func(ctx context.Context) error {
		params := url.Values{"user": {userID}}
		resp, err := c.call(ctx, "users.info", params, nil)
		if err != nil {
			return err
		}
		switch {
		case resp.User.Profile.DisplayName != "":
			name = resp.User.Profile.DisplayName
		case resp.User.Profile.RealName != "":
			name = resp.User.Profile.RealName
		default:
			name = resp.User.Name
		}
		return nil
	})
	if result.Err != nil {
		return "", result.Err
	}
	return name, nil
}

// ResolveNames looks up display names for every distinct author in the
// given messages. A failed lookup falls back to the raw user id rather
// than failing the whole batch.
func (c *Client) ResolveNames(ctx context.Context, messages []Message) map[string]string {
	names := make(map[string]string)
	for _, m := range messages {
		ids := []string{m.User}
		if m.Call != nil {
			ids = append(ids, m.Call.Participants...)
		}
		for _, id := range ids {
			if id == "" {
				continue
			}
			if _, seen := names[id]; seen {
				continue
			}
			name, err := c.UserName(ctx, id)
			if err != nil {
				log.Warn().Str("user", id).Err(err).Msg("user lookup failed, keeping raw id")
				name = id
			}
			names[id] = name
		}
	}
	return names
}

// Replies fetches the full reply chain of a thread, following cursors.
func (c *Client) Replies(ctx context.Context, channel, threadTs string) ([]Message, error) {
	var all []Message
	cursor := ""
	for {
		var resp *apiResponse
		result := retry.Do(ctx, c.retryCfg, "slack.conversations.replies", func(ctx context.Context) error {
			params := url.Values{
				"channel": {channel},
				"ts":      {threadTs},
				"limit":   {fmt.Sprint(historyPageSize)},
			}
			if cursor != "" {
				params.Set("cursor", cursor)
			}
			var err error
			resp, err = c.call(ctx, "conversations.replies", params, nil)
			return err
		})
		if result.Err != nil {
			return nil, result.Err
		}
		all = append(all, resp.Messages...)
		cursor = resp.Metadata.NextCursor
		if cursor == "" {
			return all, nil
		}
	}
}

// HistoryPager walks a channel's message history page by page. The
// sequence is finite by construction: it ends when Slack stops
// returning a cursor. Restartable from any saved cursor.
type HistoryPager struct {
	client  *Client
	channel string
	cursor  string
	done    bool
}

// History returns a pager over the channel's message history.
func (c *Client) History(channel string) *HistoryPager {
	return &HistoryPager{client: c, channel: channel}
}

// Next fetches the next page. The second return value is false once
// the history is exhausted.
func (p *HistoryPager) Next(ctx context.Context) ([]Message, bool, error) {
	if p.done {
		return nil, false, nil
	}

	var resp *apiResponse
	result := retry.Do(ctx, p.client.retryCfg, "slack.conversations.history", func(ctx context.Context) error {
		params := url.Values{
			"channel": {p.channel},
			"limit":   {fmt.Sprint(historyPageSize)},
		}
		if p.cursor != "" {
			params.Set("cursor", p.cursor)
		}
		var err error
		resp, err = p.client.call(ctx, "conversations.history", params, nil)
		return err
	})
	if result.Err != nil {
		return nil, false, result.Err
	}

	p.cursor = resp.Metadata.NextCursor
	if p.cursor == "" {
		p.done = true
	}
	return resp.Messages, true, nil
}
