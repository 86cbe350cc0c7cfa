package clickhouse

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInsertSendsOneJSONObjectPerRow(t *testing.T) {
	var gotQuery string
	var gotBody []byte
	var gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotUser = r.Header.Get("X-ClickHouse-User")
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	c, err := NewClient(Config{URL: srv.URL, Database: "engine", Username: "writer"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	rows := []interface{}{
		map[string]interface{}{"event_id": "a"},
		map[string]interface{}{"event_id": "b"},
	}
	if err := c.Insert(context.Background(), "event_entity", rows); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if gotQuery != "INSERT INTO `engine`.`event_entity` FORMAT JSONEachRow" {
		t.Fatalf("unexpected query: %q", gotQuery)
	}
	if gotUser != "writer" {
		t.Fatalf("missing auth header")
	}

	scanner := bufio.NewScanner(bytes.NewReader(gotBody))
	var lines int
	for scanner.Scan() {
		lines++
		var obj map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &obj); err != nil {
			t.Fatalf("line %d is not a JSON object: %v", lines, err)
		}
	}
	if lines != 2 {
		t.Fatalf("expected 2 body lines, got %d", lines)
	}
}

func TestInsertSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Code: 60. Table does not exist", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient(Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	err = c.Insert(context.Background(), "missing", []interface{}{map[string]interface{}{"a": 1}})
	if err == nil {
		t.Fatalf("expected error from 404 response")
	}
}

func TestInsertSkipsEmptyBatches(t *testing.T) {
	c, err := NewClient(Config{URL: "http://127.0.0.1:9"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := c.Insert(context.Background(), "event_entity", nil); err != nil {
		t.Fatalf("empty batch should be a no-op, got %v", err)
	}
}
