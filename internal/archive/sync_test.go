package archive

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chilltask/internal/faults"
	"github.com/chilltask/internal/github"
	"github.com/chilltask/internal/slack"
	"github.com/chilltask/internal/store"
)

type fakeFile struct {
	content string
	sha     int
}

// fakeContents is an in-memory repo host with version-token semantics:
// every write bumps the sha, and an update carrying a stale sha is
// rejected as a retryable conflict.
type fakeContents struct {
	files map[string]*fakeFile
	gets  int
	puts  int

	failGets   int
	failPuts   int
	staleReads int
}

func newFakeContents() *fakeContents {
	return &fakeContents{files: map[string]*fakeFile{}}
}

func (f *fakeContents) GetFile(_ context.Context, _, _, path, _ string) (*github.RepositoryFile, error) {
	f.gets++
	if f.failGets > 0 {
		f.failGets--
		return nil, faults.Transient("content store unavailable")
	}
	file, ok := f.files[path]
	if !ok {
		return nil, nil
	}
	sha := file.sha
	if f.staleReads > 0 {
		f.staleReads--
		sha--
	}
	return &github.RepositoryFile{Path: path, SHA: fmt.Sprintf("sha-%d", sha), Content: file.content}, nil
}

func (f *fakeContents) PutFile(_ context.Context, _, _ string, file github.RepositoryFile, _ string) error {
	f.puts++
	if f.failPuts > 0 {
		f.failPuts--
		return faults.Transient("content store unavailable")
	}
	existing, ok := f.files[file.Path]
	if !ok {
		f.files[file.Path] = &fakeFile{content: file.Content, sha: 1}
		return nil
	}
	if file.SHA != fmt.Sprintf("sha-%d", existing.sha) {
		return faults.Transient("version conflict on %s", file.Path)
	}
	existing.content = file.Content
	existing.sha++
	return nil
}

type fakeMappings struct {
	records []int64
}

func (f *fakeMappings) RecordSync(_ context.Context, _ int64, messages int64) error {
	f.records = append(f.records, messages)
	return nil
}

func testMapping() store.ChannelMapping {
	return store.ChannelMapping{
		ID:           1,
		ChannelID:    "C123",
		RepoOwner:    "acme",
		RepoName:     "notes",
		Branch:       "main",
		TargetFolder: "archive/general",
		Active:       true,
	}
}

func TestSyncFileCreateThenSkip(t *testing.T) {
	contents := newFakeContents()
	syncer := NewSyncer(contents, &fakeMappings{})
	req := SyncRequest{
		Owner: "acme", Repo: "notes", Branch: "main",
		Path:    "archive/general/2023-11-14-deploy-1700000000.000100.md",
		Content: "# Conversation — 2023-11-14\n\nhello\n",
		Mode:    ModeSkip,
	}

	outcome, err := syncer.SyncFile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, Created, outcome)

	// Re-delivery of the same thread: nothing written, state unchanged.
	before := contents.files[req.Path].content
	outcome, err = syncer.SyncFile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, Skipped, outcome)
	assert.Equal(t, before, contents.files[req.Path].content)
	assert.Equal(t, 1, contents.puts)
}

func TestSyncFileAppendAccumulatesEntries(t *testing.T) {
	contents := newFakeContents()
	syncer := NewSyncer(contents, &fakeMappings{})

	entries := []string{"first message\n", "second message\n", "third message\n"}
	for i, entry := range entries {
		outcome, err := syncer.SyncFile(context.Background(), SyncRequest{
			Owner: "acme", Repo: "notes", Branch: "main",
			Path:    "archive/general/2023-11-14.md",
			Content: entry,
			Mode:    ModeAppend,
		})
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, Created, outcome)
		} else {
			assert.Equal(t, Appended, outcome)
		}
	}

	got := contents.files["archive/general/2023-11-14.md"].content
	for _, entry := range entries {
		assert.Equal(t, 1, strings.Count(got, strings.TrimSpace(entry)))
	}
}

func TestSyncFileAppendRedeliveryIsNoop(t *testing.T) {
	contents := newFakeContents()
	syncer := NewSyncer(contents, &fakeMappings{})
	req := SyncRequest{
		Owner: "acme", Repo: "notes", Branch: "main",
		Path:    "archive/general/2023-11-14.md",
		Content: "only message\n",
		Mode:    ModeAppend,
	}

	_, err := syncer.SyncFile(context.Background(), req)
	require.NoError(t, err)

	outcome, err := syncer.SyncFile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, Skipped, outcome)
	assert.Equal(t, 1, strings.Count(contents.files[req.Path].content, "only message"))
}

func TestSyncFileStaleTokenSurfacesAsRetryable(t *testing.T) {
	contents := newFakeContents()
	contents.files["archive/general/2023-11-14.md"] = &fakeFile{content: "existing\n", sha: 1}
	contents.staleReads = 1
	syncer := NewSyncer(contents, &fakeMappings{})

	_, err := syncer.SyncFile(context.Background(), SyncRequest{
		Owner: "acme", Repo: "notes", Branch: "main",
		Path:    "archive/general/2023-11-14.md",
		Content: "ours\n",
		Mode:    ModeAppend,
	})
	require.Error(t, err)
	assert.True(t, faults.Retryable(err))
	assert.Equal(t, "existing\n", contents.files["archive/general/2023-11-14.md"].content)
}

func TestArchiveThreadsIsolatesFailures(t *testing.T) {
	contents := newFakeContents()
	mappings := &fakeMappings{}
	syncer := NewSyncer(contents, mappings)

	threads := slack.GroupThreads([]slack.Message{
		{Ts: "1700000000.000100", User: "U1", Text: "deploy plan for tomorrow"},
		{Ts: "1700000050.000100", User: "U2", Text: "reply", ThreadTs: "1700000000.000100"},
		{Ts: "1700000200.000100", User: "U1", Text: "standup notes"},
		{Ts: "1700000300.000100", User: "U2", Text: "incident review"},
	})
	require.Len(t, threads, 3)

	// First create fails; the other two threads still archive.
	contents.failPuts = 1
	result := syncer.ArchiveThreads(context.Background(), testMapping(), threads, map[string]string{"U1": "alice", "U2": "bob"})
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Skipped)
	assert.Len(t, contents.files, 2)

	// Second run repairs the failed thread and skips the archived ones.
	result = syncer.ArchiveThreads(context.Background(), testMapping(), threads, nil)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, contents.files, 3)
}

func TestArchiveThreadsRecordsMessageCounts(t *testing.T) {
	contents := newFakeContents()
	mappings := &fakeMappings{}
	syncer := NewSyncer(contents, mappings)

	threads := slack.GroupThreads([]slack.Message{
		{Ts: "1700000000.000100", User: "U1", Text: "root"},
		{Ts: "1700000050.000100", User: "U2", Text: "reply", ThreadTs: "1700000000.000100"},
	})

	syncer.ArchiveThreads(context.Background(), testMapping(), threads, nil)
	require.Len(t, mappings.records, 1)
	assert.Equal(t, int64(2), mappings.records[0])

	// All-skipped run must not bump the counters again.
	syncer.ArchiveThreads(context.Background(), testMapping(), threads, nil)
	assert.Len(t, mappings.records, 1)
}

func TestArchiveMessageUsesDayFile(t *testing.T) {
	contents := newFakeContents()
	mappings := &fakeMappings{}
	syncer := NewSyncer(contents, mappings)

	msg := slack.Message{Ts: "1700000100.000100", User: "U1", Text: "live update"}
	outcome, err := syncer.ArchiveMessage(context.Background(), testMapping(), msg, nil)
	require.NoError(t, err)
	assert.Equal(t, Created, outcome)

	_, ok := contents.files["archive/general/2023-11-14.md"]
	assert.True(t, ok)
	require.Len(t, mappings.records, 1)
	assert.Equal(t, int64(1), mappings.records[0])

	later := slack.Message{Ts: "1700003700.000100", User: "U2", Text: "another live update"}
	outcome, err = syncer.ArchiveMessage(context.Background(), testMapping(), later, nil)
	require.NoError(t, err)
	assert.Equal(t, Appended, outcome)
	assert.Len(t, mappings.records, 2)
}
