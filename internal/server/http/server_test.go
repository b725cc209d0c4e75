package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	cfgpkg "github.com/ppdx999/tiny64/internal/config"
	"github.com/ppdx999/tiny64/internal/runtime"
	"github.com/ppdx999/tiny64/pkg/tiny64"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	rt, err := runtime.Open(runtime.Options{Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("runtime.Open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	s := New(rt, nil)
	ts := httptest.NewServer(s.srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestNewIssuesRequestedCount(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/v1/ids/new?count=5", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.IDs) != 5 {
		t.Fatalf("got %d ids, want 5", len(body.IDs))
	}
	for i, s := range body.IDs {
		if _, err := tiny64.Parse(s); err != nil {
			t.Fatalf("id %d %q invalid: %v", i, s, err)
		}
		if i > 0 && !(body.IDs[i-1] < s) {
			t.Fatalf("ids not lexically increasing: %q, %q", body.IDs[i-1], s)
		}
	}
}

func TestNewRejectsBadCount(t *testing.T) {
	ts := newTestServer(t)
	for _, q := range []string{"count=0", "count=-1", "count=abc", "count=100000"} {
		resp, err := http.Post(ts.URL+"/v1/ids/new?"+q, "application/json", nil)
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestNewRequiresPost(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/ids/new")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	id, err := tiny64.Make(1000, 7, 5)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Get(ts.URL + "/v1/ids/decode?id=" + id.String())
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		IDs []struct {
			ID          string `json:"id"`
			TimestampMs uint64 `json:"timestamp_ms"`
			Sequence    uint16 `json:"sequence"`
			Random      uint16 `json:"random"`
		} `json:"ids"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.IDs) != 1 {
		t.Fatalf("got %d results", len(body.IDs))
	}
	got := body.IDs[0]
	if got.TimestampMs != 1000 || got.Sequence != 7 || got.Random != 5 {
		t.Fatalf("decoded fields = %+v", got)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	ts := newTestServer(t)
	for _, bad := range []string{"short", "AAAAAAAAAA%3D"} {
		resp, err := http.Get(ts.URL + "/v1/ids/decode?id=" + bad)
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%q: status = %d, want 400", bad, resp.StatusCode)
		}
	}
}

func TestDecodeAppliesFilter(t *testing.T) {
	ts := newTestServer(t)
	a, _ := tiny64.Make(1000, 1, 0)
	b, _ := tiny64.Make(1000, 50, 0)

	url := ts.URL + "/v1/ids/decode?id=" + a.String() + "&id=" + b.String() + "&filter=sequence%20%3E%2010"
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		IDs []struct {
			Sequence uint16 `json:"sequence"`
		} `json:"ids"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.IDs) != 1 || body.IDs[0].Sequence != 50 {
		t.Fatalf("filter result = %+v", body.IDs)
	}
}

func TestDecodeRejectsBadFilter(t *testing.T) {
	ts := newTestServer(t)
	id, _ := tiny64.Make(1000, 0, 0)
	resp, err := http.Get(ts.URL + "/v1/ids/decode?id=" + id.String() + "&filter=sequence%20%3E")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
