package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCanonicalPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/", "/"},
		{"", "/"},
		{"/api/v1/assets", "/api/v1/assets"},
		{"/api/v1/admin/assets/3f2c9a1e-7b44-4e21-9c3d-5a6b7c8d9e0f/approve", "/api/v1/admin/assets/:id/approve"},
		{"/api/v1/assets/0123456789abcdef0123", "/api/v1/assets/:id"},
		{"/api/v1/assets/a1", "/api/v1/assets/a1"},
	}
	for _, tc := range cases {
		if got := canonicalPath(tc.in); got != tc.want {
			t.Fatalf("canonicalPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestInstrumentHandlerPassthrough(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := InstrumentHandler(inner)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/assets", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("metrics passthrough status = %d", rec.Code)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	RecordModerationDecision("approve", nil)
	RecordSideEffect("email.asset_approved", "ok")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatalf("empty exposition")
	}
}
