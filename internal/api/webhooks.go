package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/chilltask/internal/faults"
	"github.com/chilltask/internal/github"
	"github.com/chilltask/internal/signature"
	"github.com/chilltask/internal/slack"
	"github.com/chilltask/internal/store"
)

// maxBodySize caps inbound webhook bodies. Slack and GitHub payloads
// are far below this.
const maxBodySize = 1 << 20

type webhookHandler struct {
	deps Deps
}

// handleSlack is the chat ingress. It verifies the signature, answers
// the URL verification handshake, and for messages persists the raw
// event and enqueues processing so the response goes out well inside
// Slack's 3 second window. Only a signature failure yields 401 and
// only an unparseable payload yields 400; downstream trouble is
// reported inside a 200 so Slack does not disable the subscription.
func (h *webhookHandler) handleSlack(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
	}

	secret, err := h.deps.SlackSecret.Get(ctx)
	if err != nil {
		log.Error().Err(err).Msg("slack signing secret unavailable")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "verification unavailable"})
	}

	if err := signature.VerifySlack(
		body,
		c.Request().Header.Get("X-Slack-Request-Timestamp"),
		c.Request().Header.Get("X-Slack-Signature"),
		secret,
	); err != nil {
		log.Warn().Err(err).Msg("slack signature rejected")
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
	}

	event, err := slack.DecodeEvent(body)
	if err != nil {
		if faults.ClassOf(err) == faults.ClassValidation {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "decode failed"})
	}

	switch ev := event.(type) {
	case slack.URLVerification:
		return c.JSON(http.StatusOK, map[string]string{"challenge": ev.Challenge})

	case slack.MessageEvent:
		now := h.deps.now()
		record := store.InboundEvent{
			ID:         uuid.NewString(),
			Source:     "slack",
			EventType:  "message",
			RawPayload: body,
			ReceivedAt: now,
			ExpiresAt:  now.Add(h.deps.EventTTL),
		}
		if err := h.deps.Events.InsertEvent(ctx, record); err != nil {
			log.Error().Err(err).Msg("failed to buffer inbound event")
			return c.JSON(http.StatusOK, map[string]interface{}{"ok": false, "error": "buffering failed"})
		}
		if err := h.deps.Queue.EnqueueArchiveEvent(ctx, record.ID); err != nil {
			log.Error().Str("event", record.ID).Err(err).Msg("failed to enqueue archive job")
			return c.JSON(http.StatusOK, map[string]interface{}{"ok": false, "error": "enqueue failed"})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"ok": true})

	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unsupported event"})
	}
}

// handleGitHub is the repo-host ingress. Push events to a mapped
// repository trigger a channel re-sync; everything else is
// acknowledged and ignored.
func (h *webhookHandler) handleGitHub(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
	}

	secret, err := h.deps.GitHubSecret.Get(ctx)
	if err != nil {
		log.Error().Err(err).Msg("github webhook secret unavailable")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "verification unavailable"})
	}

	if err := signature.VerifyGitHub(body, c.Request().Header.Get("X-Hub-Signature-256"), secret); err != nil {
		log.Warn().Err(err).Msg("github signature rejected")
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
	}

	eventType := c.Request().Header.Get("X-GitHub-Event")
	switch eventType {
	case "ping":
		return c.JSON(http.StatusOK, map[string]string{"status": "pong"})

	case "push":
		var push github.PushEvent
		if err := json.Unmarshal(body, &push); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed push payload"})
		}
		return h.dispatchPush(c, push)

	default:
		log.Debug().Str("event", eventType).Msg("ignoring github event")
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}
}

// dispatchPush enqueues a re-sync for every channel mapped to the
// pushed repository.
func (h *webhookHandler) dispatchPush(c echo.Context, push github.PushEvent) error {
	ctx := c.Request().Context()

	mappings, err := h.deps.Events.ListActive(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list mappings for push event")
		return c.JSON(http.StatusOK, map[string]interface{}{"ok": false, "error": "mapping lookup failed"})
	}

	repoKey := push.RepoKey()
	queued := 0
	seen := map[string]bool{}
	for _, mapping := range mappings {
		if mapping.RepoKey() != repoKey || seen[mapping.ChannelID] {
			continue
		}
		seen[mapping.ChannelID] = true
		if err := h.deps.Queue.EnqueueChannelSync(ctx, mapping.ChannelID); err != nil {
			log.Error().Str("channel", mapping.ChannelID).Err(err).Msg("failed to enqueue channel sync")
			continue
		}
		queued++
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "queued": queued})
}
