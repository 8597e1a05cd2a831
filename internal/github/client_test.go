package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chilltask/internal/faults"
	"github.com/chilltask/internal/retry"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(StaticToken("ghp_test"), srv.URL)
	c.retryCfg = retry.Config{MaxAttempts: 2, BaseDelay: time.Millisecond, Multiplier: 2.0, Deadline: time.Second}
	return c
}

func TestGetFileNotFound(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	file, err := c.GetFile(context.Background(), "acme", "archive", "a/b.md", "main")
	if err != nil {
		t.Fatalf("404 must not be an error, got %v", err)
	}
	if file != nil {
		t.Errorf("expected nil file, got %+v", file)
	}
}

func TestGetFileDecodesContent(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer ghp_test" {
			t.Errorf("authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"sha":      "abc123",
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte("hello world")) + "\n",
		})
	}))

	file, err := c.GetFile(context.Background(), "acme", "archive", "a/b.md", "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if file.SHA != "abc123" {
		t.Errorf("sha = %q", file.SHA)
	}
	if file.Content != "hello world" {
		t.Errorf("content = %q", file.Content)
	}
}

func TestPutFileCreateOmitsSHA(t *testing.T) {
	var got map[string]interface{}
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))

	file := RepositoryFile{Path: "a/b.md", Branch: "main", Content: "doc"}
	if err := c.PutFile(context.Background(), "acme", "archive", file, "archive thread"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, present := got["sha"]; present {
		t.Error("create must omit sha")
	}
	if got["branch"] != "main" {
		t.Errorf("branch = %v", got["branch"])
	}
	decoded, _ := base64.StdEncoding.DecodeString(got["content"].(string))
	if string(decoded) != "doc" {
		t.Errorf("content = %q", decoded)
	}
}

func TestPutFileUpdateSendsSHA(t *testing.T) {
	var got map[string]interface{}
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))

	file := RepositoryFile{Path: "a/b.md", Branch: "main", SHA: "abc123", Content: "doc v2"}
	if err := c.PutFile(context.Background(), "acme", "archive", file, "append message"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["sha"] != "abc123" {
		t.Errorf("sha = %v, want abc123", got["sha"])
	}
}

func TestPutFileStaleSHAIsTransient(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"message":"is at abc but expected def"}`)
	}))

	file := RepositoryFile{Path: "a/b.md", Branch: "main", SHA: "stale", Content: "doc"}
	err := c.PutFile(context.Background(), "acme", "archive", file, "append")
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if faults.ClassOf(err) != faults.ClassTransient {
		t.Errorf("stale version token must be retryable, got %v", faults.ClassOf(err))
	}
}

func TestListOpenIssuesFiltersPullRequests(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"number": 1, "title": "real issue", "html_url": "http://x/1", "labels": [{"name": "blocked"}]},
			{"number": 2, "title": "a PR", "html_url": "http://x/2", "labels": [], "pull_request": {}}
		]`)
	}))

	issues, err := c.ListOpenIssues(context.Background(), "acme", "product")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue after PR filtering, got %d", len(issues))
	}
	if issues[0].Number != 1 {
		t.Errorf("number = %d", issues[0].Number)
	}
}

func TestListOpenIssuesPaginates(t *testing.T) {
	pages := 0
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		switch r.URL.Query().Get("page") {
		case "1":
			// A full page forces a second fetch.
			issues := make([]map[string]interface{}, issuesPageSize)
			for i := range issues {
				issues[i] = map[string]interface{}{"number": i + 1, "title": "i", "html_url": "u", "labels": []string{}}
			}
			json.NewEncoder(w).Encode(issues)
		case "2":
			fmt.Fprint(w, `[{"number": 101, "title": "last", "html_url": "u", "labels": []}]`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))

	issues, err := c.ListOpenIssues(context.Background(), "acme", "product")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(issues) != issuesPageSize+1 {
		t.Errorf("expected %d issues, got %d", issuesPageSize+1, len(issues))
	}
	if pages != 2 {
		t.Errorf("expected 2 pages fetched, got %d", pages)
	}
}

func TestUnauthorizedIsAuthFault(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := c.ListOpenIssues(context.Background(), "acme", "product")
	if faults.ClassOf(err) != faults.ClassAuth {
		t.Errorf("expected auth fault, got %v", err)
	}
}
