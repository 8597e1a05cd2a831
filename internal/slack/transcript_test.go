package slack

import (
	"strings"
	"testing"
)

var sampleNames = map[string]string{
	"U1": "ada",
	"U2": "grace",
}

func sampleThread() []Message {
	return []Message{
		{Ts: "1700000100.000100", User: "U1", Text: "Deploy plan for tomorrow morning"},
		{Ts: "1700000200.000200", User: "U2", Text: "Looks good to me", ThreadTs: "1700000100.000100"},
	}
}

func TestFormatThreadDeterministic(t *testing.T) {
	a := FormatThread(sampleThread(), sampleNames)
	b := FormatThread(sampleThread(), sampleNames)

	if a != b {
		t.Error("identical input must yield byte-identical output")
	}
}

func TestFormatThreadContents(t *testing.T) {
	doc := FormatThread(sampleThread(), sampleNames)

	if !strings.HasPrefix(doc, "# Conversation — 2023-11-14\n") {
		t.Errorf("missing or wrong heading:\n%s", doc)
	}
	for _, want := range []string{"**ada**", "**grace**", "Deploy plan for tomorrow morning", "Looks good to me", "\n---\n"} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}
}

func TestFormatThreadUnresolvedAuthorFallsBack(t *testing.T) {
	doc := FormatThread([]Message{{Ts: "1700000100.000100", User: "U9", Text: "hi"}}, sampleNames)
	if !strings.Contains(doc, "**U9**") {
		t.Errorf("expected raw user id fallback:\n%s", doc)
	}
}

func TestFormatThreadEmpty(t *testing.T) {
	if doc := FormatThread(nil, nil); doc != "" {
		t.Errorf("expected empty document, got %q", doc)
	}
}

func TestFormatCallWithTranscript(t *testing.T) {
	thread := []Message{{
		Ts:   "1700000100.000100",
		User: "U1",
		Call: &CallInfo{
			DurationSeconds: 930,
			Participants:    []string{"U1", "U2"},
			Transcript: []TranscriptEntry{
				{Speaker: "U1", Text: "let's ship it"},
				{Speaker: "U2", Text: "agreed"},
			},
		},
	}}

	doc := FormatThread(thread, sampleNames)
	for _, want := range []string{"started a call", "Duration: 15m30s", "Participants: 2", "> **ada**: let's ship it", "> **grace**: agreed"} {
		if !strings.Contains(doc, want) {
			t.Errorf("call document missing %q:\n%s", want, doc)
		}
	}
}

func TestFormatCallWithoutTranscript(t *testing.T) {
	thread := []Message{{
		Ts:   "1700000100.000100",
		User: "U1",
		Call: &CallInfo{DurationSeconds: 60, Participants: []string{"U1"}},
	}}

	doc := FormatThread(thread, sampleNames)
	if !strings.Contains(doc, "_Transcript not available._") {
		t.Errorf("expected transcript placeholder:\n%s", doc)
	}
}

func TestFormatHuddleWithoutCallInfo(t *testing.T) {
	thread := []Message{{Ts: "1700000100.000100", User: "U1", Subtype: "huddle_thread"}}

	doc := FormatThread(thread, sampleNames)
	if !strings.Contains(doc, "_Call details not available._") {
		t.Errorf("expected call placeholder:\n%s", doc)
	}
}

func TestFileName(t *testing.T) {
	thread := []Message{
		{Ts: "1700000100.000100", User: "U1", Text: "Deploy plan for tomorrow morning, final version"},
	}

	got := FileName("archive/general", thread)
	want := "archive/general/2023-11-14-deploy-plan-for-tomorrow-morning-1700000100.000100.md"
	if got != want {
		t.Errorf("FileName = %q, want %q", got, want)
	}
}

func TestFileNameUsesThreadKey(t *testing.T) {
	thread := []Message{
		{Ts: "1700000200.000200", User: "U2", Text: "a reply", ThreadTs: "1700000100.000100"},
	}

	got := FileName("archive", thread)
	if !strings.Contains(got, "1700000100.000100.md") {
		t.Errorf("filename must embed the thread key, got %q", got)
	}
}

func TestSlug(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Deploy plan for tomorrow morning extra words", "deploy-plan-for-tomorrow-morning"},
		{"Hello, World!", "hello-world"},
		{"¡¡¡", "untitled"},
		{"  MiXeD   CaSe 42  ", "mixed-case-42"},
	}

	for _, tc := range cases {
		if got := slug(tc.in, 5); got != tc.want {
			t.Errorf("slug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
