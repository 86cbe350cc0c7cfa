package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"eventengine/internal/cursor"
	"eventengine/internal/runner"
	"eventengine/internal/runtime"
	"eventengine/pkg/models"
)

// labelProgram labels every event it executes.
type labelProgram struct{}

func (labelProgram) Version() string    { return "test" }
func (labelProgram) Features() []string { return nil }

func (labelProgram) Execute(event *models.RawEvent, env runtime.Env) runtime.Execution {
	return labelExecution{event: event, env: env}
}

type labelExecution struct {
	event *models.RawEvent
	env   runtime.Env
}

func (e labelExecution) FetchFeature(ctx context.Context, name string) error {
	e.env.Sink.AddEventLabel("risk", "high", "rule-1")
	return nil
}

func (e labelExecution) Finalize(ctx context.Context) error { return nil }

type captureSink struct {
	batches [][]*models.EventResult
}

func (c *captureSink) EnqueuePersist(results []*models.EventResult) {
	c.batches = append(c.batches, results)
}

func post(t *testing.T, srv *httptest.Server, body string) (*http.Response, eventResponse) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/events", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var out eventResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, out
}

func newTestServer(t *testing.T) (*httptest.Server, *cursor.MemLog, *captureSink) {
	t.Helper()
	log := cursor.NewMemLog()
	sink := &captureSink{}
	s := NewServer(log, runner.New(labelProgram{}, runner.Config{}), sink)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, log, sink
}

func TestAsyncIngestAppendsAndReturnsID(t *testing.T) {
	srv, log, sink := newTestServer(t)

	resp, out := post(t, srv, `{"type":"signup","data":{"user_id":"u1"}}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if out.ID == "" || out.Result != nil {
		t.Fatalf("async response should carry only an id: %+v", out)
	}

	events, err := log.Read(context.Background(), cursor.Query{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Options.Sync {
		t.Fatalf("unexpected log contents: %+v", events)
	}
	if len(sink.batches) != 0 {
		t.Fatalf("async ingest must not persist inline")
	}
}

func TestSyncIngestExecutesInlineAndPersists(t *testing.T) {
	srv, log, sink := newTestServer(t)

	resp, out := post(t, srv, `{"type":"signup","data":{},"options":{"sync":true}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if out.Result == nil || len(out.Result.Labels) != 1 || out.Result.Labels[0].Label != "high" {
		t.Fatalf("inline result missing engine output: %+v", out.Result)
	}

	events, err := log.Read(context.Background(), cursor.Query{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || !events[0].Options.Sync {
		t.Fatalf("sync event not flagged in log: %+v", events)
	}

	if len(sink.batches) != 1 || len(sink.batches[0]) != 1 {
		t.Fatalf("sync ingest should persist exactly one result, got %+v", sink.batches)
	}
}

func TestIngestGeneratedIDsAreTimeOrdered(t *testing.T) {
	srv, log, _ := newTestServer(t)

	for i := 0; i < 3; i++ {
		if resp, _ := post(t, srv, `{"type":"ping"}`); resp.StatusCode != http.StatusAccepted {
			t.Fatalf("unexpected status %d", resp.StatusCode)
		}
	}

	events, err := log.Read(context.Background(), cursor.Query{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i-1].ID >= events[i].ID {
			t.Fatalf("generated ids not ascending: %s >= %s", events[i-1].ID, events[i].ID)
		}
	}
}

func TestIngestRejectsMissingType(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Post(srv.URL+"/events", "application/json", bytes.NewBufferString(`{"data":{}}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
