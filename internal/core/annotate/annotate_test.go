package annotate

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"prelabel/internal/core/match"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDelivery(taskID string) Delivery {
	ok := true
	answer := "Jane Roe"
	return Delivery{
		JobID:  "job-1",
		TaskID: taskID,
		Model:  "gemini-2.5-flash",
		Spans:  []match.Span{{NodeID: "/div[1]/p[1]", Label: "PATIENT", Start: 9, End: 17, Text: "Jane Roe"}},
		Meta: Meta{
			Answers:      []match.Answer{{Question: "Who?", Label: "PATIENT", Text: &answer, Status: match.StatusOK}},
			Model:        "gemini-2.5-flash",
			MatchByLabel: map[string]*bool{"PATIENT": &ok, "DOB": nil},
			JobID:        "job-1",
		},
	}
}

type recorded struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func labelStudioServer(t *testing.T) (*httptest.Server, func() []recorded) {
	var mu sync.Mutex
	var reqs []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			require.NoError(t, json.Unmarshal(b, &rec.body))
		}
		mu.Lock()
		reqs = append(reqs, rec)
		mu.Unlock()
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/tasks/42":
			_, _ = w.Write([]byte(`{"id":42,"data":{"html":"<p>Patient: Jane Roe</p>"}}`))
		case r.URL.Path == "/api/tasks/7":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Not found."}`))
		default:
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), reqs...)
	}
}

func TestLabelStudioDeliver(t *testing.T) {
	srv, requests := labelStudioServer(t)
	ls := NewLabelStudio(srv.URL+"/", "secret")

	require.NoError(t, ls.Deliver(context.Background(), sampleDelivery("42")))

	reqs := requests()
	require.Len(t, reqs, 3)

	assert.Equal(t, http.MethodPost, reqs[0].method)
	assert.Equal(t, "/api/predictions", reqs[0].path)
	assert.Equal(t, "Token secret", reqs[0].auth)
	assert.Equal(t, float64(42), reqs[0].body["task"])
	assert.Equal(t, "gemini-2.5-flash", reqs[0].body["model_version"])
	result := reqs[0].body["result"].([]any)
	require.Len(t, result, 1)
	item := result[0].(map[string]any)
	assert.Equal(t, "labels", item["type"])
	assert.Equal(t, "label", item["from_name"])
	assert.Equal(t, "html", item["to_name"])
	value := item["value"].(map[string]any)
	assert.Equal(t, "/div[1]/p[1]", value["start"])
	assert.Equal(t, float64(9), value["startOffset"])
	assert.Equal(t, float64(17), value["endOffset"])
	assert.Equal(t, []any{"PATIENT"}, value["labels"])

	assert.Equal(t, http.MethodGet, reqs[1].method)
	assert.Equal(t, http.MethodPatch, reqs[2].method)
	data := reqs[2].body["data"].(map[string]any)
	assert.Equal(t, "<p>Patient: Jane Roe</p>", data["html"])
	meta := data["ml_meta"].(map[string]any)
	assert.Equal(t, "job-1", meta["job_id"])
	byLabel := meta["dom_match_by_label"].(map[string]any)
	assert.Equal(t, true, byLabel["PATIENT"])
	assert.Nil(t, byLabel["DOB"])
}

func TestLabelStudioErrors(t *testing.T) {
	srv, _ := labelStudioServer(t)
	ls := NewLabelStudio(srv.URL, "secret")

	err := ls.Deliver(context.Background(), sampleDelivery("task-a"))
	assert.ErrorContains(t, err, "numeric")

	err = ls.Deliver(context.Background(), sampleDelivery("7"))
	assert.ErrorContains(t, err, "status 404")
}

func TestArchiveLocalFallback(t *testing.T) {
	dir := t.TempDir()
	a, err := NewArchive(ArchiveConfig{DataDir: dir})
	require.NoError(t, err)

	require.NoError(t, a.Deliver(context.Background(), sampleDelivery("42")))

	b, err := os.ReadFile(filepath.Join(dir, "predictions", "job-1", "42.json"))
	require.NoError(t, err)
	var got Delivery
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "42", got.TaskID)
	assert.Len(t, got.Spans, 1)
}

func TestArchiveStopsWhenCancelled(t *testing.T) {
	dir := t.TempDir()
	a, err := NewArchive(ArchiveConfig{DataDir: dir})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = a.Deliver(ctx, sampleDelivery("42"))
	assert.True(t, errors.Is(err, context.Canceled))

	_, err = os.Stat(filepath.Join(dir, "predictions", "job-1", "42.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestArchiveRequiresSupabaseInProduction(t *testing.T) {
	_, err := NewArchive(ArchiveConfig{DataDir: t.TempDir(), Production: true})
	assert.Error(t, err)
}

func TestObjectPathStaysInPlace(t *testing.T) {
	d := sampleDelivery("../../etc/passwd")
	d.JobID = ".."
	assert.Equal(t, "predictions/_/passwd.json", objectPath(d))
}

type sinkFunc func(ctx context.Context, d Delivery) error

func (f sinkFunc) Deliver(ctx context.Context, d Delivery) error { return f(ctx, d) }

func TestMulti(t *testing.T) {
	var calls int
	ok := sinkFunc(func(context.Context, Delivery) error { calls++; return nil })
	bad := sinkFunc(func(context.Context, Delivery) error { calls++; return errors.New("down") })

	require.NoError(t, Multi{ok, ok}.Deliver(context.Background(), sampleDelivery("1")))
	err := Multi{bad, ok, bad}.Deliver(context.Background(), sampleDelivery("1"))
	assert.ErrorContains(t, err, "down")
	assert.Equal(t, 5, calls)
	assert.NoError(t, Multi{}.Deliver(context.Background(), sampleDelivery("1")))
}
