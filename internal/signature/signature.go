// Package signature verifies inbound webhook payloads against their
// source platform's signing scheme. Verification always runs over the
// exact raw bytes received, before any JSON parsing.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/chilltask/internal/faults"
)

// MaxTimestampSkew bounds how far a Slack request timestamp may drift
// from the local clock before the request is treated as a replay.
const MaxTimestampSkew = 5 * time.Minute

const slackVersion = "v0"

// VerifySlack checks a Slack request signature. Slack signs
// "v0:<timestamp>:<raw body>" with the app's signing secret and sends
// the hex digest in X-Slack-Signature prefixed with "v0=".
func VerifySlack(body []byte, timestamp, sig, secret string) error {
	return verifySlackAt(body, timestamp, sig, secret, time.Now())
}

func verifySlackAt(body []byte, timestamp, sig, secret string, now time.Time) error {
	if timestamp == "" || sig == "" {
		return faults.Auth("missing slack signature headers")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return faults.Auth("malformed slack timestamp %q", timestamp)
	}

	skew := now.Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxTimestampSkew {
		return faults.Auth("slack timestamp outside allowed window (skew %s)", skew)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(slackVersion + ":" + timestamp + ":"))
	mac.Write(body)
	expected := slackVersion + "=" + hex.EncodeToString(mac.Sum(nil))

	if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
		return faults.Auth("slack signature mismatch")
	}
	return nil
}

// VerifyGitHub checks a GitHub webhook signature. GitHub signs the raw
// body with the webhook secret and sends the hex digest in
// X-Hub-Signature-256 prefixed with "sha256=".
func VerifyGitHub(body []byte, sig, secret string) error {
	if sig == "" {
		return faults.Auth("missing github signature header")
	}
	if !strings.HasPrefix(sig, "sha256=") {
		return faults.Auth("unsupported github signature scheme")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
		return faults.Auth("github signature mismatch")
	}
	return nil
}
