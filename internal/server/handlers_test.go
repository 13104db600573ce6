package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/Keshav04042001/mindmeld/internal/config"
	"github.com/Keshav04042001/mindmeld/internal/embedding"
	"github.com/Keshav04042001/mindmeld/internal/ingest"
	"github.com/Keshav04042001/mindmeld/internal/nlp"
	"github.com/Keshav04042001/mindmeld/internal/resource"
	"github.com/Keshav04042001/mindmeld/internal/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	appPath := t.TempDir()

	queriesPath := filepath.Join(appPath, "domains", "store_info", "get_hours", "train.txt")
	if err := os.MkdirAll(filepath.Dir(queriesPath), 0755); err != nil {
		t.Fatal(err)
	}
	data := "when do you open at {9 am|sys_time|open_time}\n" +
		"are you open until {6 pm|sys_time|close_time}\n"
	if err := os.WriteFile(queriesPath, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := storage.NewSQLiteStorage(filepath.Join(appPath, ".generated", "app.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ingester := ingest.NewIngester(appPath, store, zap.NewNop())
	if _, err := ingester.Run(context.Background()); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	loader, err := resource.NewLoader(appPath, store, zap.NewNop())
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	embedder, err := embedding.NewEmbedder(appPath, "mock", embedding.DefaultRegistry(),
		embedding.Options{Dimensions: 16}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	t.Cleanup(func() { embedder.Close() })

	processor := nlp.NewProcessor(appPath, loader, embedder, zap.NewNop())
	srv := NewServer(processor, ingester, store, &config.ServerConfig{}, zap.NewNop())

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHandleTrainAndPredict(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/classifiers/store_info/get_hours/sys_time/train", trainRequest{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("train status = %d", resp.StatusCode)
	}
	var train trainResponse
	decodeBody(t, resp, &train)
	if train.RunID == "" || !train.Trained || train.Reused {
		t.Errorf("train response = %+v", train)
	}
	if len(train.Roles) != 2 {
		t.Errorf("roles = %v", train.Roles)
	}

	resp = postJSON(t, ts.URL+"/api/v1/classifiers/store_info/get_hours/sys_time/predict", map[string]any{
		"query": map[string]any{
			"text":     "do you open at 9 am",
			"entities": []map[string]string{{"text": "9 am", "type": "sys_time"}},
		},
		"entity_index": 0,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("predict status = %d", resp.StatusCode)
	}
	var pred map[string]string
	decodeBody(t, resp, &pred)
	if pred["role"] != "open_time" {
		t.Errorf("role = %q", pred["role"])
	}
}

func TestHandleTrainReusesSecondTime(t *testing.T) {
	ts := newTestServer(t)
	url := ts.URL + "/api/v1/classifiers/store_info/get_hours/sys_time/train"

	resp := postJSON(t, url, trainRequest{})
	resp.Body.Close()
	resp = postJSON(t, url, trainRequest{})
	var train trainResponse
	decodeBody(t, resp, &train)
	if !train.Reused {
		t.Error("second train should reuse the persisted artifact")
	}

	resp = postJSON(t, url, trainRequest{Force: true})
	decodeBody(t, resp, &train)
	if train.Reused {
		t.Error("forced train must refit")
	}
}

func TestHandlePredictUntrained(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/classifiers/store_info/greet/sys_time/predict", map[string]any{
		"query": map[string]any{
			"text":     "open at 9 am",
			"entities": []map[string]string{{"text": "9 am", "type": "sys_time"}},
		},
		"entity_index": 0,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestHandlePredictBadRequest(t *testing.T) {
	ts := newTestServer(t)
	url := ts.URL + "/api/v1/classifiers/store_info/get_hours/sys_time/predict"

	resp := postJSON(t, url, map[string]any{"query": map[string]any{"text": ""}})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty text status = %d", resp.StatusCode)
	}

	resp = postJSON(t, url, map[string]any{
		"query":        map[string]any{"text": "open at 9 am"},
		"entity_index": 3,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("out of range status = %d", resp.StatusCode)
	}
}

func TestHandleEncode(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/encodings", encodeRequest{Texts: []string{"hello", "world"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Encodings [][]float32 `json:"encodings"`
	}
	decodeBody(t, resp, &body)
	if len(body.Encodings) != 2 || len(body.Encodings[0]) != 16 {
		t.Errorf("encodings shape = %dx%d", len(body.Encodings), len(body.Encodings[0]))
	}

	resp = postJSON(t, ts.URL+"/api/v1/encodings", encodeRequest{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty texts status = %d", resp.StatusCode)
	}
}

func TestHandleClearCache(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/encodings", encodeRequest{Texts: []string{"hello"}})
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/encodings/cache", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestHandleIngestAndStatus(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/ingest", struct{}{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ingest status = %d", resp.StatusCode)
	}
	var ingestBody struct {
		RunID   string `json:"run_id"`
		Queries int    `json:"queries"`
	}
	decodeBody(t, resp, &ingestBody)
	if ingestBody.RunID == "" || ingestBody.Queries != 2 {
		t.Errorf("ingest response = %+v", ingestBody)
	}

	resp = postJSON(t, ts.URL+"/api/v1/classifiers/store_info/get_hours/sys_time/train", trainRequest{})
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var status struct {
		Queries     int              `json:"queries"`
		Classifiers []nlp.SlotStatus `json:"classifiers"`
	}
	decodeBody(t, resp, &status)
	if status.Queries != 2 || len(status.Classifiers) != 1 {
		t.Errorf("status response = %+v", status)
	}
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
