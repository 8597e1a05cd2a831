package slack

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// sectionDelimiter separates message sections in a transcript.
const sectionDelimiter = "\n---\n\n"

// FormatThread renders a thread into a Markdown document. It is a pure
// function: identical input always yields byte-identical output, which
// is what makes re-synced transcripts detectable by content as well as
// by filename.
func FormatThread(thread []Message, authorNames map[string]string) string {
	if len(thread) == 0 {
		return ""
	}

	var b strings.Builder
	first := tsTime(thread[0].Ts)
	fmt.Fprintf(&b, "# Conversation — %s\n\n", first.Format("2006-01-02"))

	sections := make([]string, 0, len(thread))
	for _, m := range thread {
		if m.IsCall() {
			sections = append(sections, formatCallSection(m, authorNames))
			continue
		}
		var s strings.Builder
		fmt.Fprintf(&s, "**%s** (%s):\n\n%s\n", resolveName(authorNames, m.User), tsTime(m.Ts).Format("15:04"), m.Text)
		sections = append(sections, s.String())
	}

	b.WriteString(strings.Join(sections, sectionDelimiter))
	b.WriteString("\n")
	return b.String()
}

// formatCallSection renders call/huddle metadata with the same
// heading/section conventions as regular messages.
func formatCallSection(m Message, authorNames map[string]string) string {
	var s strings.Builder
	fmt.Fprintf(&s, "**%s** (%s) started a call:\n\n", resolveName(authorNames, m.User), tsTime(m.Ts).Format("15:04"))

	if m.Call == nil {
		s.WriteString("_Call details not available._\n")
		return s.String()
	}

	duration := time.Duration(m.Call.DurationSeconds) * time.Second
	fmt.Fprintf(&s, "- Duration: %s\n", duration)
	fmt.Fprintf(&s, "- Participants: %d\n", len(m.Call.Participants))

	if len(m.Call.Transcript) == 0 {
		s.WriteString("\n_Transcript not available._\n")
		return s.String()
	}

	s.WriteString("\n")
	for _, entry := range m.Call.Transcript {
		fmt.Fprintf(&s, "> **%s**: %s\n", resolveName(authorNames, entry.Speaker), entry.Text)
	}
	return s.String()
}

// FileName derives the repository path for an archived thread:
// {folder}/{date}-{slug of first 5 words}-{threadKey}.md. The embedded
// thread key is what makes re-delivery of the same thread detectable.
func FileName(folder string, thread []Message) string {
	if len(thread) == 0 {
		return ""
	}
	first := thread[0]
	date := tsTime(first.Ts).Format("2006-01-02")
	name := fmt.Sprintf("%s-%s-%s.md", date, slug(first.Text, 5), first.ThreadKey())
	return path.Join(folder, name)
}

// slug lowercases the first maxWords words, strips non-alphanumeric
// characters, and joins the remaining tokens with hyphens.
func slug(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) > maxWords {
		words = words[:maxWords]
	}

	tokens := make([]string, 0, len(words))
	for _, w := range words {
		var t strings.Builder
		for _, r := range strings.ToLower(w) {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				t.WriteRune(r)
			}
		}
		if t.Len() > 0 {
			tokens = append(tokens, t.String())
		}
	}
	if len(tokens) == 0 {
		return "untitled"
	}
	return strings.Join(tokens, "-")
}

// DateOf returns the message's UTC calendar date, used for day-file
// paths in live archiving.
func DateOf(m Message) string {
	return tsTime(m.Ts).Format("2006-01-02")
}

func resolveName(names map[string]string, userID string) string {
	if name, ok := names[userID]; ok && name != "" {
		return name
	}
	return userID
}

// tsTime converts a Slack fractional-second timestamp to UTC time.
// UTC keeps formatting deterministic across hosts.
func tsTime(ts string) time.Time {
	return time.Unix(int64(tsValue(ts)), 0).UTC()
}
