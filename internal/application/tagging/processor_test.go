package tagging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/knit-tagger/internal/domain/ai"
	domain "github.com/bryanwahyu/knit-tagger/internal/domain/tagging"
	"github.com/bryanwahyu/knit-tagger/internal/infra/source/fsdir"
	"github.com/bryanwahyu/knit-tagger/internal/infra/store/jsonfile"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	// sleepErr is returned by Sleep when set
	sleepErr error
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	if c.sleepErr != nil {
		return c.sleepErr
	}
	return ctx.Err()
}

type listSource []domain.Item

func (s listSource) List() ([]domain.Item, error) { return s, nil }

type result struct {
	raw string
	err error
}

// fakeAnalyzer answers from a table keyed by path and counts calls.
type fakeAnalyzer struct {
	results map[string]result
	calls   map[string]int
	// onCall runs before answering
	onCall func(path string)
}

func newFakeAnalyzer(results map[string]result) *fakeAnalyzer {
	return &fakeAnalyzer{results: results, calls: map[string]int{}}
}

func (f *fakeAnalyzer) AnalyzeFile(ctx context.Context, path, category string) (json.RawMessage, error) {
	f.calls[path]++
	if f.onCall != nil {
		f.onCall(path)
	}
	r, ok := f.results[path]
	if !ok {
		return nil, fmt.Errorf("no fake result for %s", path)
	}
	if r.err != nil {
		return nil, r.err
	}
	return json.RawMessage(r.raw), nil
}

type recordingReplica struct {
	keys []string
	err  error
}

func (r *recordingReplica) Name() string { return "recording" }

func (r *recordingReplica) Replicate(ctx context.Context, key string, rec domain.Record) error {
	r.keys = append(r.keys, key)
	return r.err
}

type recordingReporter struct {
	reports []domain.Progress
}

func (r *recordingReporter) Report(ctx context.Context, p domain.Progress) error {
	r.reports = append(r.reports, p)
	return errors.New("reporter down")
}

func items(names ...string) listSource {
	out := make(listSource, 0, len(names))
	for _, n := range names {
		out = append(out, domain.Item{Key: n, Filename: filepath.Base(n)})
	}
	return out
}

func newProcessor(t *testing.T, storePath string, src domain.Source, an domain.Analyzer) (*Processor, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	return &Processor{
		Store:    jsonfile.Opener{Path: storePath},
		Source:   src,
		Analyzer: an,
		Category: "sweaters",
		Pacing:   time.Second,
		Clock:    clock,
		NewID:    func() string { return "run-1" },
	}, clock
}

func readStore(t *testing.T, path string) map[string]domain.Record {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var m map[string]domain.Record
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestRunStoresSuccessesAndLeavesFailuresOut(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "analysis.json")
	an := newFakeAnalyzer(map[string]result{
		"a.jpg": {raw: `{"shape":"fitted"}`},
		"b.jpg": {raw: `null`},
	})
	p, clock := newProcessor(t, storePath, items("a.jpg", "b.jpg"), an)

	sum, err := p.Run(context.Background())
	require.NoError(t, err)

	got := readStore(t, storePath)
	require.Len(t, got, 1)
	require.Contains(t, got, "a.jpg")
	require.NotContains(t, got, "b.jpg")
	require.JSONEq(t, `{"shape":"fitted"}`, string(got["a.jpg"].Analysis))
	require.Equal(t, "a.jpg", got["a.jpg"].Filename)
	_, err = time.Parse(domain.TimestampLayout, got["a.jpg"].Timestamp)
	require.NoError(t, err)

	want := domain.Summary{RunID: "run-1", Total: 2, Analyzed: 1, Failed: 1}
	if diff := cmp.Diff(want, sum, cmp.FilterPath(func(p cmp.Path) bool {
		f := p.Last().String()
		return f == ".Started" || f == ".Finished"
	}, cmp.Ignore())); diff != "" {
		t.Fatal(diff)
	}
	require.False(t, sum.Finished.IsZero())

	// pacing only after the success
	require.Equal(t, []time.Duration{time.Second}, clock.sleeps)
}

func TestRerunSkipsStoredItems(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "analysis.json")
	existing := `{
  "a.jpg": {
    "analysis": {"shape": "fitted"},
    "timestamp": "2024-01-01T00:00:00Z",
    "filename": "a.jpg"
  }
}`
	require.NoError(t, os.WriteFile(storePath, []byte(existing), 0o644))

	an := newFakeAnalyzer(map[string]result{
		"a.jpg": {raw: `{"shape":"changed"}`},
		"b.jpg": {raw: `{"shape":"boxy"}`},
	})
	p, _ := newProcessor(t, storePath, items("a.jpg", "b.jpg"), an)

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, an.calls["a.jpg"])
	require.Equal(t, 1, an.calls["b.jpg"])
	require.Equal(t, 1, sum.Skipped)
	require.Equal(t, 1, sum.Analyzed)

	got := readStore(t, storePath)
	require.JSONEq(t, `{"shape":"fitted"}`, string(got["a.jpg"].Analysis))
	require.Equal(t, "2024-01-01T00:00:00Z", got["a.jpg"].Timestamp)
	require.JSONEq(t, `{"shape":"boxy"}`, string(got["b.jpg"].Analysis))
}

func TestSecondRunIsNoOp(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "analysis.json")
	an := newFakeAnalyzer(map[string]result{
		"a.jpg": {raw: `{"shape":"fitted"}`},
		"b.jpg": {raw: `{"shape":"boxy"}`},
	})
	p, _ := newProcessor(t, storePath, items("a.jpg", "b.jpg"), an)

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	before, err := os.ReadFile(storePath)
	require.NoError(t, err)

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	after, err := os.ReadFile(storePath)
	require.NoError(t, err)

	require.Equal(t, string(before), string(after))
	require.Equal(t, 2, sum.Skipped)
	require.Equal(t, 0, sum.Analyzed)
	require.Equal(t, 1, an.calls["a.jpg"])
	require.Equal(t, 1, an.calls["b.jpg"])
}

func TestStoreIsDurableAfterEachSuccess(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "analysis.json")
	an := newFakeAnalyzer(map[string]result{
		"a.jpg": {raw: `{"shape":"fitted"}`},
		"b.jpg": {raw: `{"shape":"boxy"}`},
		"c.jpg": {raw: `{"shape":"oversized"}`},
	})
	seen := map[string][]string{}
	an.onCall = func(path string) {
		data, err := os.ReadFile(storePath)
		if errors.Is(err, os.ErrNotExist) {
			seen[path] = nil
			return
		}
		require.NoError(t, err)
		var m map[string]domain.Record
		require.NoError(t, json.Unmarshal(data, &m), "store must be valid JSON between items")
		for k := range m {
			seen[path] = append(seen[path], k)
		}
	}
	p, _ := newProcessor(t, storePath, items("a.jpg", "b.jpg", "c.jpg"), an)

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, seen["a.jpg"])
	require.ElementsMatch(t, []string{"a.jpg"}, seen["b.jpg"])
	require.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, seen["c.jpg"])
}

func TestFailuresAreClassified(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "analysis.json")
	an := newFakeAnalyzer(map[string]result{
		"read.jpg":      {err: &ai.ReadError{Path: "read.jpg", Err: os.ErrPermission}},
		"quota.jpg":     {err: fmt.Errorf("%w: 429", ai.ErrQuotaExceeded)},
		"malformed.jpg": {err: fmt.Errorf("%w: not json", ai.ErrMalformedResponse)},
		"empty.jpg":     {err: ai.ErrEmptyResponse},
		"other.jpg":     {err: errors.New("connection reset")},
	})
	p, _ := newProcessor(t, storePath, nil, an)

	cases := map[string]domain.Reason{
		"read.jpg":      domain.ReasonRead,
		"quota.jpg":     domain.ReasonQuota,
		"malformed.jpg": domain.ReasonMalformed,
		"empty.jpg":     domain.ReasonMalformed,
		"other.jpg":     domain.ReasonAnalysis,
	}
	for name, want := range cases {
		out := p.ProcessItem(context.Background(), domain.Item{Key: name, Filename: name})
		require.True(t, out.Failed(), name)
		require.Equal(t, want, out.Reason, name)
		require.Error(t, out.Err, name)
		require.Nil(t, out.Record, name)
	}
}

func TestRunKeepsGoingAfterQuotaByDefault(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "analysis.json")
	an := newFakeAnalyzer(map[string]result{
		"a.jpg": {err: ai.ErrQuotaExceeded},
		"b.jpg": {raw: `{"shape":"boxy"}`},
	})
	p, _ := newProcessor(t, storePath, items("a.jpg", "b.jpg"), an)

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sum.Failed)
	require.Equal(t, 1, sum.Analyzed)
	require.Empty(t, sum.Stopped)
}

func TestStopOnQuota(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "analysis.json")
	an := newFakeAnalyzer(map[string]result{
		"a.jpg": {err: ai.ErrQuotaExceeded},
		"b.jpg": {raw: `{"shape":"boxy"}`},
	})
	p, _ := newProcessor(t, storePath, items("a.jpg", "b.jpg"), an)
	p.StopOnQuota = true

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, string(domain.ReasonQuota), sum.Stopped)
	require.Equal(t, 0, an.calls["b.jpg"])
	_, err = os.Stat(storePath)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCorruptStoreIsFatal(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "analysis.json")
	require.NoError(t, os.WriteFile(storePath, []byte(`{"a.jpg": `), 0o644))
	an := newFakeAnalyzer(map[string]result{"b.jpg": {raw: `{"shape":"boxy"}`}})
	p, _ := newProcessor(t, storePath, items("b.jpg"), an)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "load result store")
	require.Empty(t, an.calls)

	data, err := os.ReadFile(storePath)
	require.NoError(t, err)
	require.Equal(t, `{"a.jpg": `, string(data))
}

func TestReplicasAndReporters(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "analysis.json")
	an := newFakeAnalyzer(map[string]result{
		"a.jpg": {raw: `{"shape":"fitted"}`},
		"b.jpg": {err: errors.New("boom")},
	})
	p, _ := newProcessor(t, storePath, items("a.jpg", "b.jpg"), an)
	failing := &recordingReplica{err: errors.New("replica down")}
	ok := &recordingReplica{}
	rep := &recordingReporter{}
	p.Replicas = []domain.Replica{failing, ok}
	p.Reporters = []domain.ProgressReporter{rep}

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sum.Analyzed)
	require.Equal(t, []string{"a.jpg"}, failing.keys)
	require.Equal(t, []string{"a.jpg"}, ok.keys)

	// one report per item plus the final one
	require.Len(t, rep.reports, 3)
	require.Equal(t, "a.jpg", rep.reports[0].Current)
	last := rep.reports[len(rep.reports)-1]
	require.Empty(t, last.Current)
	require.False(t, last.Finished.IsZero())
	require.Equal(t, 2, last.Done())
}

func TestCancelStopsBetweenItems(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "analysis.json")
	an := newFakeAnalyzer(map[string]result{
		"a.jpg": {raw: `{"shape":"fitted"}`},
		"b.jpg": {raw: `{"shape":"boxy"}`},
	})
	p, clock := newProcessor(t, storePath, items("a.jpg", "b.jpg"), an)
	clock.sleepErr = context.Canceled

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, string(domain.ReasonCanceled), sum.Stopped)
	require.Equal(t, 1, sum.Analyzed)
	require.Equal(t, 0, an.calls["b.jpg"])
	require.Contains(t, readStore(t, storePath), "a.jpg")
}

func TestCanceledContextProcessesNothing(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "analysis.json")
	an := newFakeAnalyzer(map[string]result{"a.jpg": {raw: `{"shape":"fitted"}`}})
	p, _ := newProcessor(t, storePath, items("a.jpg"), an)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := p.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, string(domain.ReasonCanceled), sum.Stopped)
	require.Empty(t, an.calls)
}

type failingSource struct{}

func (failingSource) List() ([]domain.Item, error) { return nil, os.ErrNotExist }

func TestListFailureIsFatal(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "analysis.json")
	p, _ := newProcessor(t, storePath, failingSource{}, newFakeAnalyzer(nil))

	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunOverImageDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg", "d.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	src, err := fsdir.New(fsdir.Options{Dir: dir})
	require.NoError(t, err)

	storePath := filepath.Join(t.TempDir(), "analysis.json")
	a, b, c := filepath.Join(dir, "a.jpg"), filepath.Join(dir, "b.jpg"), filepath.Join(dir, "c.jpg")
	an := newFakeAnalyzer(map[string]result{
		a: {raw: `{"shape":"fitted"}`},
		c: {raw: `{"shape":"boxy"}`},
	})
	an.onCall = func(path string) {
		if path != c {
			return
		}
		st, err := jsonfile.Load(storePath)
		require.NoError(t, err)
		require.True(t, st.Has(a), "a must be on disk before c is analyzed")
	}
	p, _ := newProcessor(t, storePath, src, an)

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, sum.Total)
	require.Equal(t, 2, sum.Analyzed)
	require.Equal(t, 1, sum.Failed)
	first, err := os.ReadFile(storePath)
	require.NoError(t, err)

	sum, err = p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, sum.Analyzed)
	require.Equal(t, 2, sum.Skipped)
	require.Equal(t, 1, sum.Failed)
	require.Equal(t, 1, an.calls[a])
	require.Equal(t, 2, an.calls[b])
	second, err := os.ReadFile(storePath)
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))
	require.NotContains(t, readStore(t, storePath), filepath.Join(dir, "d.png"))
}
