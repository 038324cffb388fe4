package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ejneale/inkpress/internal/model"
	"github.com/ejneale/inkpress/internal/pool"
)

// submitWatermark runs one successful watermark request and returns the job ID.
func submitWatermark(t *testing.T, baseURL string) string {
	t.Helper()
	resp := postJSON(t, baseURL, "/v1/watermarks", map[string]any{
		"image": base64.StdEncoding.EncodeToString(testPNG(t, 4, 4, color.RGBA{R: 255, A: 255})),
		"options": map[string]any{
			"type":       "image",
			"image_data": base64.StdEncoding.EncodeToString(testPNG(t, 2, 2, color.RGBA{B: 255, A: 255})),
		},
	})
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("watermark request status = %d, want 200", resp.StatusCode)
	}
	id := resp.Header.Get("X-Job-Id")
	if id == "" {
		t.Fatal("X-Job-Id header is empty")
	}
	return id
}

func TestGetJobNotFound(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/jobs/nonexistent")
	if err != nil {
		t.Fatalf("GET job: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListJobsEmpty(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/jobs")
	if err != nil {
		t.Fatalf("GET jobs: %v", err)
	}
	defer resp.Body.Close()

	var body listJobsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Total != 0 {
		t.Errorf("total = %d, want 0", body.Total)
	}
	if body.Jobs == nil {
		t.Error("jobs should be an empty array, not null")
	}
}

func TestListJobsPagination(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for i := 0; i < 3; i++ {
		submitWatermark(t, ts.URL)
	}

	resp, err := http.Get(ts.URL + "/v1/jobs?limit=2&offset=0")
	if err != nil {
		t.Fatalf("GET jobs: %v", err)
	}
	defer resp.Body.Close()

	var body listJobsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Total != 3 {
		t.Errorf("total = %d, want 3", body.Total)
	}
	if len(body.Jobs) != 2 {
		t.Errorf("got %d jobs, want 2", len(body.Jobs))
	}
	if body.Limit != 2 || body.Offset != 0 {
		t.Errorf("limit/offset = %d/%d, want 2/0", body.Limit, body.Offset)
	}

	resp2, err := http.Get(ts.URL + "/v1/jobs?limit=2&offset=2")
	if err != nil {
		t.Fatalf("GET jobs page 2: %v", err)
	}
	defer resp2.Body.Close()

	var page2 listJobsResponse
	if err := json.NewDecoder(resp2.Body).Decode(&page2); err != nil {
		t.Fatalf("decode page 2: %v", err)
	}
	if len(page2.Jobs) != 1 {
		t.Errorf("page 2: got %d jobs, want 1", len(page2.Jobs))
	}
}

func TestListJobsClampsBadParams(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/jobs?limit=9999&offset=-5")
	if err != nil {
		t.Fatalf("GET jobs: %v", err)
	}
	defer resp.Body.Close()

	var body listJobsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Limit != defaultListLimit {
		t.Errorf("limit = %d, want %d", body.Limit, defaultListLimit)
	}
	if body.Offset != 0 {
		t.Errorf("offset = %d, want 0", body.Offset)
	}
}

func TestGetStats(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	submitWatermark(t, ts.URL)
	submitWatermark(t, ts.URL)

	resp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET stats: %v", err)
	}
	defer resp.Body.Close()

	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("total = %d, want 2", stats.Total)
	}
	if stats.ByStatus[model.StatusCompleted] != 2 {
		t.Errorf("by_status[completed] = %d, want 2", stats.ByStatus[model.StatusCompleted])
	}
	if stats.ByKind[model.KindSingle] != 2 {
		t.Errorf("by_kind[single] = %d, want 2", stats.ByKind[model.KindSingle])
	}
}

func TestGetPoolStatus(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/pool")
	if err != nil {
		t.Fatalf("GET pool: %v", err)
	}
	defer resp.Body.Close()

	var status pool.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status.Total != 2 {
		t.Errorf("total = %d, want 2", status.Total)
	}
	if status.Active != 0 || status.Queued != 0 {
		t.Errorf("active/queued = %d/%d, want 0/0", status.Active, status.Queued)
	}
}

func TestStreamEventsUnknownJob(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/jobs/nonexistent/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStreamEventsSettledJob(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	id := submitWatermark(t, ts.URL)

	resp, err := http.Get(fmt.Sprintf("%s/v1/jobs/%s/events", ts.URL, id))
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	// The job is terminal so the stream ends immediately with no frames.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(body) != 0 {
		t.Errorf("expected an empty stream, got %q", body)
	}
}
