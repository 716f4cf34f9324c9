package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) result {
	t.Helper()
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return body
}

func TestHealthz_AlwaysReturns200(t *testing.T) {
	h := New(Checker{Name: "encoder", Check: func(context.Context) error { return errors.New("down") }})

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if body := decode(t, rec); body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestReadyz(t *testing.T) {
	ok := func(context.Context) error { return nil }
	fail := func(msg string) func(context.Context) error {
		return func(context.Context) error { return errors.New(msg) }
	}

	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "all pass",
			checkers:   []Checker{{"encoder", ok}, {"metrics", ok}},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"encoder": "ok", "metrics": "ok"},
		},
		{
			name:       "one fails",
			checkers:   []Checker{{"decoder", fail("input closed")}, {"metrics", ok}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{"decoder": "fail: input closed", "metrics": "ok"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			New(tc.checkers...).Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

			if rec.Code != tc.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tc.wantCode)
			}
			body := decode(t, rec)
			if body.Status != tc.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tc.wantStatus)
			}
			if diff := cmp.Diff(tc.wantChecks, body.Checks); diff != "" {
				t.Errorf("checks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadyz_CheckerGetsDeadline(t *testing.T) {
	var hasDeadline bool
	h := New(Checker{Name: "probe", Check: func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	}})
	h.Readyz(httptest.NewRecorder(), httptest.NewRequest("GET", "/readyz", nil))
	if !hasDeadline {
		t.Error("checker context has no deadline")
	}
}

func TestState(t *testing.T) {
	var s State
	if err := s.Err(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("zero State: err = %v, want %v", err, ErrNotStarted)
	}

	s.SetReady()
	if err := s.Err(); err != nil {
		t.Errorf("ready State: err = %v, want nil", err)
	}

	s.SetDone(nil)
	if err := s.Err(); !errors.Is(err, ErrStopped) {
		t.Errorf("stopped State: err = %v, want %v", err, ErrStopped)
	}

	boom := errors.New("write: broken pipe")
	s.SetDone(boom)
	if err := s.Err(); !errors.Is(err, boom) {
		t.Errorf("failed State: err = %v, want %v", err, boom)
	}
}

func TestState_Checker(t *testing.T) {
	var s State
	h := New(s.Checker("encoder"))
	mux := http.NewServeMux()
	h.Register(mux)

	get := func() int {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
		return rec.Code
	}
	if code := get(); code != http.StatusServiceUnavailable {
		t.Errorf("before start: status = %d, want %d", code, http.StatusServiceUnavailable)
	}
	s.SetReady()
	if code := get(); code != http.StatusOK {
		t.Errorf("running: status = %d, want %d", code, http.StatusOK)
	}
}
