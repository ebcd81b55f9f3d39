package probe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/healthbatch/internal/domain"
)

func newProber(timeout time.Duration) *HTTPProber {
	return NewHTTPProber(zap.NewNop(), timeout, 0)
}

func TestHTTPProber_StatusOK_JSONBody(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte(`{"status":"up"}`))
	}))
	defer s.Close()

	tgt := domain.Target{ID: 1, Name: "api", URL: s.URL, Method: domain.MethodGet}
	out := newProber(2*time.Second).Probe(context.Background(), tgt)
	if !out.Success {
		t.Fatalf("want success, got %+v", out)
	}
	if out.StatusCode != 200 {
		t.Fatalf("want status 200, got %d", out.StatusCode)
	}
	if out.ElapsedMS < 0 {
		t.Fatalf("elapsed should be >= 0, got %d", out.ElapsedMS)
	}
	if string(out.ResponseJSON) != `{"status":"up"}` {
		t.Fatalf("unexpected structured body %s", out.ResponseJSON)
	}
	if out.ErrorMessage != "" {
		t.Fatalf("success must not carry an error: %q", out.ErrorMessage)
	}
	if out.TargetID != 1 || out.Name != "api" || out.URL != s.URL {
		t.Fatalf("target snapshot missing: %+v", out)
	}
}

// Any HTTP response is a success; the observed code is informational.
func TestHTTPProber_Status500IsSuccess(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", 500)
	}))
	defer s.Close()

	out := newProber(2*time.Second).Probe(context.Background(), domain.Target{URL: s.URL})
	if !out.Success {
		t.Fatalf("want success, got %+v", out)
	}
	if out.StatusCode != 200 {
		t.Fatalf("want literal status 200, got %d", out.StatusCode)
	}
	if out.ObservedStatus != 500 {
		t.Fatalf("want observed status 500, got %d", out.ObservedStatus)
	}
}

func TestHTTPProber_NonJSONBodyIsWrapped(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer s.Close()

	out := newProber(2*time.Second).Probe(context.Background(), domain.Target{URL: s.URL})
	if !out.Success {
		t.Fatalf("want success, got %+v", out)
	}
	var got map[string]string
	if err := json.Unmarshal(out.ResponseJSON, &got); err != nil {
		t.Fatalf("structured body not JSON: %v", err)
	}
	if got["raw_response"] != "ok" {
		t.Fatalf("want raw_response=ok, got %+v", got)
	}
	if out.Response != "ok" {
		t.Fatalf("raw text lost: %q", out.Response)
	}
}

func TestHTTPProber_EmptyBody(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer s.Close()

	out := newProber(2*time.Second).Probe(context.Background(), domain.Target{URL: s.URL})
	if !out.Success || out.ResponseJSON != nil {
		t.Fatalf("want success without structured body, got %+v", out)
	}
}

func TestHTTPProber_PostSendsJSONBody(t *testing.T) {
	var (
		gotMethod, gotCT, gotBody string
	)
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotCT = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(201)
	}))
	defer s.Close()

	tgt := domain.Target{URL: s.URL, Method: domain.MethodPost, RequestBody: `{"ping":true}`}
	out := newProber(2*time.Second).Probe(context.Background(), tgt)
	if !out.Success {
		t.Fatalf("want success, got %+v", out)
	}
	if gotMethod != http.MethodPost || gotCT != "application/json" || gotBody != `{"ping":true}` {
		t.Fatalf("unexpected request: method=%s ct=%s body=%s", gotMethod, gotCT, gotBody)
	}
}

func TestHTTPProber_PostWithoutBody(t *testing.T) {
	var gotLen int64 = -1
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLen = r.ContentLength
	}))
	defer s.Close()

	out := newProber(2*time.Second).Probe(context.Background(), domain.Target{URL: s.URL, Method: domain.MethodPost})
	if !out.Success || gotLen != 0 {
		t.Fatalf("want success with empty body, got %+v len=%d", out, gotLen)
	}
}

func TestHTTPProber_TimeoutSetsStatusZero(t *testing.T) {
	// Server sleeps longer than the target timeout
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(200)
	}))
	defer s.Close()

	tgt := domain.Target{URL: s.URL, TimeoutMS: 50}
	out := newProber(5*time.Second).Probe(context.Background(), tgt)
	if out.Success {
		t.Fatalf("want failure due to timeout, got %+v", out)
	}
	if out.StatusCode != 0 {
		t.Fatalf("want status 0 on transport error, got %d", out.StatusCode)
	}
	if out.ErrorMessage == "" {
		t.Fatalf("want non-empty error message")
	}
	if out.ElapsedMS < 40 || out.ElapsedMS > 280 {
		t.Fatalf("elapsed should reflect the timeout, got %dms", out.ElapsedMS)
	}
}

func TestHTTPProber_ConnectionRefused(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := s.URL
	s.Close()

	out := newProber(time.Second).Probe(context.Background(), domain.Target{URL: url})
	if out.Success || out.StatusCode != 0 || out.ErrorMessage == "" {
		t.Fatalf("want transport failure, got %+v", out)
	}
}

func TestHTTPProber_DNSDiagnosisAppendsClass(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := s.URL
	s.Close()

	p := newProber(time.Second)
	p.DNSDiagnosis = true
	out := p.Probe(context.Background(), domain.Target{URL: url})
	if !strings.HasSuffix(out.ErrorMessage, "dns=RESOLVES") {
		t.Fatalf("want dns class suffix, got %q", out.ErrorMessage)
	}
}

func TestHTTPProber_InvalidURL(t *testing.T) {
	out := newProber(time.Second).Probe(context.Background(), domain.Target{URL: "://nope"})
	if out.Success || out.ErrorMessage == "" {
		t.Fatalf("want failure for invalid url, got %+v", out)
	}
}

func TestHTTPProber_DoesNotMutateTarget(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer s.Close()

	tgt := domain.Target{ID: 3, URL: s.URL, Method: "put"}
	before := tgt
	out := newProber(time.Second).Probe(context.Background(), tgt)
	if tgt != before {
		t.Fatalf("target mutated: %+v", tgt)
	}
	if out.Method != domain.MethodGet {
		t.Fatalf("unsupported methods probe as GET, got %s", out.Method)
	}
}
