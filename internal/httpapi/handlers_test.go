package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/zhengpenghou/lanpaste/internal/admission"
	"github.com/zhengpenghou/lanpaste/internal/apikeys"
	"github.com/zhengpenghou/lanpaste/internal/idempotency"
	"github.com/zhengpenghou/lanpaste/internal/ratelimit"
	"github.com/zhengpenghou/lanpaste/internal/store"
)

func writeJSONFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func newTestServer(t *testing.T, gate *admission.Gate) (*Server, *store.Store) {
	t.Helper()
	return newTestServerPush(t, gate, store.PushOff)
}

func newTestServerPush(t *testing.T, gate *admission.Gate, push store.PushMode) (*Server, *store.Store) {
	t.Helper()
	requireGit(t)

	st, err := store.Open(store.Options{
		BaseDir:  t.TempDir(),
		Identity: store.Identity{Name: "Test Runner", Email: "test@lan"},
		Push:     push,
		Remote:   "origin",
	})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}

	idem, err := idempotency.New(idempotency.MinEntries)
	if err != nil {
		t.Fatalf("idempotency.New() error = %v", err)
	}

	if gate == nil {
		gate = &admission.Gate{}
	}

	srv, err := New(lgr.New(), st, gate, idem, ServerOptions{
		MaxBytes:     1 << 20,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, st
}

func TestHandleCreateHappyPath(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/paste?name=note.txt&tag=demo", strings.NewReader("hello world"))
	req.RemoteAddr = "127.0.0.1:12345"
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var result store.CreateResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.ID == "" || result.Commit == "" {
		t.Fatalf("expected populated create result, got %+v", result)
	}
}

func TestHandleCreateIdempotentReplay(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	makeReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/paste", strings.NewReader("same body"))
		req.RemoteAddr = "127.0.0.1:1"
		req.Header.Set(idempotencyKeyHeader, "key-1")
		return req
	}

	rec1 := httptest.NewRecorder()
	srv.router.ServeHTTP(rec1, makeReq())
	if rec1.Code != http.StatusCreated {
		t.Fatalf("first request status = %d, body = %s", rec1.Code, rec1.Body.String())
	}
	var first store.CreateResult
	if err := json.Unmarshal(rec1.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode first response: %v", err)
	}

	rec2 := httptest.NewRecorder()
	srv.router.ServeHTTP(rec2, makeReq())
	if rec2.Code != http.StatusOK {
		t.Fatalf("replay status = %d, want 200, body = %s", rec2.Code, rec2.Body.String())
	}
	var second store.CreateResult
	if err := json.Unmarshal(rec2.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode replay response: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay returned a different id: %q vs %q", second.ID, first.ID)
	}
}

func TestHandleCreateIdempotentConflict(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req1 := httptest.NewRequest(http.MethodPost, "/api/v1/paste", strings.NewReader("body one"))
	req1.RemoteAddr = "127.0.0.1:1"
	req1.Header.Set(idempotencyKeyHeader, "dup-key")
	rec1 := httptest.NewRecorder()
	srv.router.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusCreated {
		t.Fatalf("first request status = %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/paste", strings.NewReader("body two, different"))
	req2.RemoteAddr = "127.0.0.1:1"
	req2.Header.Set(idempotencyKeyHeader, "dup-key")
	rec2 := httptest.NewRecorder()
	srv.router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body = %s", rec2.Code, rec2.Body.String())
	}
}

func TestHandleCreatePayloadTooLarge(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	srv.options.MaxBytes = 4

	req := httptest.NewRequest(http.MethodPost, "/api/v1/paste", strings.NewReader("this is far too long"))
	req.RemoteAddr = "127.0.0.1:1"
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandleCreateRejectsOutsideAllowCIDR(t *testing.T) {
	nets, err := admission.ParseCIDRList([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("ParseCIDRList: %v", err)
	}
	srv, _ := newTestServer(t, &admission.Gate{AllowCIDR: nets})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/paste", strings.NewReader("body"))
	req.RemoteAddr = "192.168.1.5:1"
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandleCreateReplayDoesNotConsumeRateLimitToken(t *testing.T) {
	keysPath := t.TempDir() + "/keys.json"
	if err := writeJSONFile(keysPath, `{"keys":[{"name":"ci","key":"abc","scopes":["paste:create"],"max_requests_per_minute":1}]}`); err != nil {
		t.Fatalf("write keys file: %v", err)
	}
	keys, err := apikeys.Load(keysPath)
	if err != nil {
		t.Fatalf("apikeys.Load() error = %v", err)
	}
	limiter := ratelimit.New()
	limiter.Configure("ci", 1)
	gate := &admission.Gate{Keys: keys, Limiter: limiter}

	srv, _ := newTestServer(t, gate)

	makeReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/paste", strings.NewReader("replay body"))
		req.RemoteAddr = "127.0.0.1:1"
		req.Header.Set(idempotencyKeyHeader, "shared-key")
		req.Header.Set("X-API-Key", "abc")
		return req
	}

	rec1 := httptest.NewRecorder()
	srv.router.ServeHTTP(rec1, makeReq())
	if rec1.Code != http.StatusCreated {
		t.Fatalf("first request status = %d, body = %s", rec1.Code, rec1.Body.String())
	}

	// The single configured token was spent on the first call. A replay of
	// the same idempotency key must succeed without spending another.
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, makeReq())
		if rec.Code != http.StatusOK {
			t.Fatalf("replay %d status = %d, want 200, body = %s", i, rec.Code, rec.Body.String())
		}
	}

	// A genuinely new request for the same principal, with no remaining
	// tokens, must be rate limited.
	newReq := httptest.NewRequest(http.MethodPost, "/api/v1/paste", strings.NewReader("a new body"))
	newReq.RemoteAddr = "127.0.0.1:1"
	newReq.Header.Set(idempotencyKeyHeader, "another-key")
	newReq.Header.Set("X-API-Key", "abc")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, newReq)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429, body = %s", rec.Code, rec.Body.String())
	}
}

// TestHandleCreateStrictPushFailureReturns500 exercises spec.md §8 scenario
// 6: push mode strict with no reachable remote must return 500 and leave no
// trace of the attempted paste.
func TestHandleCreateStrictPushFailureReturns500(t *testing.T) {
	srv, st := newTestServerPush(t, nil, store.PushStrict)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/paste", strings.NewReader("will not push"))
	req.RemoteAddr = "127.0.0.1:1"
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500, body = %s", rec.Code, rec.Body.String())
	}

	list, err := st.Recent(10, "")
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no committed pastes after strict push failure, got %+v", list)
	}
}

func TestHandleGetMetaNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/p/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandleHealthzAndReadyz(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d", rec.Code)
	}
}

func TestHandleRecentAndView(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	createReq := httptest.NewRequest(http.MethodPost, "/api/v1/paste?name=note.md", strings.NewReader("# title"))
	createReq.RemoteAddr = "127.0.0.1:1"
	createReq.Header.Set("Content-Type", "text/markdown")
	createRec := httptest.NewRecorder()
	srv.router.ServeHTTP(createRec, createReq)
	var created store.CreateResult
	if err := json.Unmarshal(createRec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	recentRec := httptest.NewRecorder()
	srv.router.ServeHTTP(recentRec, httptest.NewRequest(http.MethodGet, "/api/v1/recent", nil))
	if recentRec.Code != http.StatusOK {
		t.Fatalf("recent status = %d, body = %s", recentRec.Code, recentRec.Body.String())
	}
	var list []store.Paste
	if err := json.Unmarshal(recentRec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode recent response: %v", err)
	}
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("recent list = %+v, want single entry with id %q", list, created.ID)
	}

	viewRec := httptest.NewRecorder()
	srv.router.ServeHTTP(viewRec, httptest.NewRequest(http.MethodGet, "/p/"+created.ID, nil))
	if viewRec.Code != http.StatusOK {
		t.Fatalf("view status = %d, body = %s", viewRec.Code, viewRec.Body.String())
	}
	if !strings.Contains(viewRec.Body.String(), "<h1>title</h1>") {
		t.Fatalf("expected rendered markdown heading, got %s", viewRec.Body.String())
	}
}
