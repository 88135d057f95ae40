package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	app "github.com/pixelhaven/marketplace/internal/app"
	"github.com/pixelhaven/marketplace/internal/app/domain/asset"
	"github.com/pixelhaven/marketplace/internal/app/domain/plan"
	"github.com/pixelhaven/marketplace/internal/app/domain/profile"
	"github.com/pixelhaven/marketplace/internal/app/storage/memory"
	"github.com/pixelhaven/marketplace/internal/middleware"
)

type testServer struct {
	app     *app.Application
	handler http.Handler
	store   *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	seed := []profile.Profile{
		{ID: "admin-1", Role: profile.RoleAdmin},
		{ID: "contrib-1", Role: profile.RoleContributor},
		{ID: "user-1", Role: profile.RoleUser},
	}
	for _, p := range seed {
		if _, err := store.CreateProfile(ctx, p); err != nil {
			t.Fatalf("seed %s: %v", p.ID, err)
		}
	}

	application, err := app.New(app.Stores{
		Profiles:      store,
		Assets:        store,
		Notifications: store,
		Plans:         store,
		Subscriptions: store,
		Sessions:      store,
	}, app.Options{
		SessionSecret: []byte("test-secret"),
		SessionTTL:    time.Hour,
	}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	handler := NewHandler(application, Options{
		Auth:       StaticAuthenticator{},
		AdminGuard: middleware.NewAdminGuard(application.Guard, nil),
	})
	return &testServer{app: application, handler: handler, store: store}
}

func (s *testServer) seedPendingAsset(t *testing.T, id string) asset.Asset {
	t.Helper()
	a, err := s.store.CreateAsset(context.Background(), asset.Asset{
		ID:            id,
		ContributorID: "contrib-1",
		Title:         "Forest Pack",
		Kind:          asset.KindImage,
		Status:        asset.StatusPending,
		StoragePath:   "assets/" + id,
	})
	if err != nil {
		t.Fatalf("seed asset: %v", err)
	}
	return a
}

func (s *testServer) do(t *testing.T, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Content-Type", "application/json")
	if userID != "" {
		r = r.WithContext(middleware.WithUserID(r.Context(), userID))
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, r)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad response body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestApproveEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.seedPendingAsset(t, "a1")

	rec := s.do(t, http.MethodPost, "/api/v1/admin/assets/a1/approve", "admin-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true || body["asset_id"] != "a1" {
		t.Fatalf("body = %v", body)
	}

	a, err := s.store.GetAsset(context.Background(), "a1")
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	if a.Status != asset.StatusApproved {
		t.Fatalf("status = %s", a.Status)
	}
}

func TestRejectEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.seedPendingAsset(t, "a1")

	rec := s.do(t, http.MethodPost, "/api/v1/admin/assets/a1/reject", "admin-1", `{"reason":"blurry"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	a, _ := s.store.GetAsset(context.Background(), "a1")
	if a.Status != asset.StatusRejected || a.RejectedReason == nil || *a.RejectedReason != "blurry" {
		t.Fatalf("asset = %+v", a)
	}
}

func TestModerationEndpointErrors(t *testing.T) {
	s := newTestServer(t)
	s.seedPendingAsset(t, "a1")

	cases := []struct {
		name   string
		path   string
		userID string
		status int
	}{
		{"anonymous", "/api/v1/admin/assets/a1/approve", "", http.StatusUnauthorized},
		{"non-admin", "/api/v1/admin/assets/a1/approve", "contrib-1", http.StatusForbidden},
		{"missing asset", "/api/v1/admin/assets/ghost/approve", "admin-1", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, tc.path, tc.userID, "")
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tc.status, rec.Body.String())
			}
			body := decodeBody(t, rec)
			if body["error"] == "" {
				t.Fatalf("missing error message")
			}
		})
	}
}

func TestApproveTwiceReportsCurrentStatus(t *testing.T) {
	s := newTestServer(t)
	s.seedPendingAsset(t, "a1")

	if rec := s.do(t, http.MethodPost, "/api/v1/admin/assets/a1/approve", "admin-1", ""); rec.Code != http.StatusOK {
		t.Fatalf("first approve: %d", rec.Code)
	}
	rec := s.do(t, http.MethodPost, "/api/v1/admin/assets/a1/reject", "admin-1", `{"reason":"nope"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	details, ok := body["details"].(map[string]interface{})
	if !ok || details["current_status"] != "approved" {
		t.Fatalf("body = %v", body)
	}
}

func TestPendingQueueEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.seedPendingAsset(t, "a1")
	s.seedPendingAsset(t, "a2")

	rec := s.do(t, http.MethodGet, "/api/v1/admin/assets/pending", "admin-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var queue []asset.Asset
	if err := json.Unmarshal(rec.Body.Bytes(), &queue); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(queue) != 2 {
		t.Fatalf("queue = %d, want 2", len(queue))
	}
}

func TestApplyEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/contributors/apply", "user-1", `{"message":"hi","portfolio_url":"https://example.com"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["pending"] != true {
		t.Fatalf("body = %v", body)
	}

	// resubmission while pending is not an error
	rec = s.do(t, http.MethodPost, "/api/v1/contributors/apply", "user-1", `{"message":"again"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["pending"] != true {
		t.Fatalf("body = %v", body)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/contributors/apply", "", `{"message":"anon"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anon status = %d", rec.Code)
	}
}

func TestApplicationReviewEndpoints(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	if rec := s.do(t, http.MethodPost, "/api/v1/contributors/apply", "user-1", `{"message":"hi"}`); rec.Code != http.StatusCreated {
		t.Fatalf("apply: %d", rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/api/v1/admin/applications", "admin-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	var pending []profile.Profile
	if err := json.Unmarshal(rec.Body.Bytes(), &pending); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "user-1" {
		t.Fatalf("pending = %+v", pending)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/admin/applications/user-1/approve", "admin-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: %d, body = %s", rec.Code, rec.Body.String())
	}
	p, err := s.store.GetProfile(ctx, "user-1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p.Role != profile.RoleContributor {
		t.Fatalf("role = %s", p.Role)
	}

	rec = s.do(t, http.MethodPut, "/api/v1/admin/contributors/user-1/tier", "admin-1", `{"tier":"gold"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("set tier: %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitAndCatalogEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/assets", "contrib-1", `{"title":"Dunes","kind":"image","storage_path":"up/dunes.png"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: %d, body = %s", rec.Code, rec.Body.String())
	}
	var created asset.Asset
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// pending assets stay out of the public catalog
	rec = s.do(t, http.MethodGet, "/api/v1/assets", "", "")
	var public []asset.Asset
	if err := json.Unmarshal(rec.Body.Bytes(), &public); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(public) != 0 {
		t.Fatalf("public = %d, want 0", len(public))
	}

	if rec := s.do(t, http.MethodPost, "/api/v1/admin/assets/"+created.ID+"/approve", "admin-1", ""); rec.Code != http.StatusOK {
		t.Fatalf("approve: %d", rec.Code)
	}
	rec = s.do(t, http.MethodGet, "/api/v1/assets", "", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &public); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(public) != 1 {
		t.Fatalf("public = %d, want 1", len(public))
	}

	rec = s.do(t, http.MethodGet, "/api/v1/assets/mine", "contrib-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("mine: %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/assets", "user-1", `{"title":"X","kind":"image","storage_path":"p"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-contributor submit: %d", rec.Code)
	}
}

func TestPlanAndSubscriptionEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/admin/plans", "admin-1", `{"name":"Pro","price_cents":2000,"interval":"monthly","download_limit":25}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create plan: %d, body = %s", rec.Code, rec.Body.String())
	}
	var created plan.Plan
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	now := time.Now().UTC()
	windowBody, _ := json.Marshal(map[string]interface{}{
		"percent":   25,
		"starts_at": now.Add(-time.Hour),
		"ends_at":   now.Add(time.Hour),
	})
	rec = s.do(t, http.MethodPost, "/api/v1/admin/plans/"+created.ID+"/discounts", "admin-1", string(windowBody))
	if rec.Code != http.StatusCreated {
		t.Fatalf("add window: %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/api/v1/plans", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list plans: %d", rec.Code)
	}
	var plans []struct {
		ID                  string `json:"id"`
		PriceCents          int64  `json:"price_cents"`
		EffectivePriceCents int64  `json:"effective_price_cents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &plans); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(plans) != 1 || plans[0].EffectivePriceCents != 1500 {
		t.Fatalf("plans = %+v", plans)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/subscriptions", "user-1", `{"plan_id":"`+created.ID+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("subscribe: %d, body = %s", rec.Code, rec.Body.String())
	}
	rec = s.do(t, http.MethodDelete, "/api/v1/subscriptions", "user-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: %d", rec.Code)
	}
}

func TestNotificationEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.seedPendingAsset(t, "a1")

	if rec := s.do(t, http.MethodPost, "/api/v1/admin/assets/a1/approve", "admin-1", ""); rec.Code != http.StatusOK {
		t.Fatalf("approve: %d", rec.Code)
	}
	s.app.Effects.Drain(context.Background())

	rec := s.do(t, http.MethodGet, "/api/v1/notifications", "contrib-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	var notes []struct {
		ID   string `json:"id"`
		Read bool   `json:"read"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &notes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(notes) != 1 || notes[0].Read {
		t.Fatalf("notes = %+v", notes)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/notifications/"+notes[0].ID+"/read", "contrib-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("mark read: %d", rec.Code)
	}

	// another user cannot mark it
	rec = s.do(t, http.MethodPost, "/api/v1/notifications/"+notes[0].ID+"/read", "user-1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign mark read: %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/notifications", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anon list: %d", rec.Code)
	}
}

func TestSignInAndOut(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/signin", "", `{"access_token":"user:user-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("signin: %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("no token in response")
	}
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.TokenCookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != token || !cookie.HttpOnly {
		t.Fatalf("cookie = %+v", cookie)
	}

	if _, err := s.app.Sessions.Validate(context.Background(), token); err != nil {
		t.Fatalf("issued token invalid: %v", err)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/auth/signin", "", `{"access_token":"garbage"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token signin: %d", rec.Code)
	}

	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signout", strings.NewReader("{}"))
	r.Header.Set("Authorization", "Bearer "+token)
	out := httptest.NewRecorder()
	s.handler.ServeHTTP(out, r)
	if out.Code != http.StatusOK {
		t.Fatalf("signout: %d", out.Code)
	}
	if _, err := s.app.Sessions.Validate(context.Background(), token); err == nil {
		t.Fatalf("token survived signout")
	}
}

func TestMalformedBody(t *testing.T) {
	s := newTestServer(t)
	s.seedPendingAsset(t, "a1")

	rec := s.do(t, http.MethodPost, "/api/v1/admin/assets/a1/reject", "admin-1", `{"reason":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	rec = s.do(t, http.MethodPost, "/api/v1/admin/assets/a1/reject", "admin-1", `{"unknown_field":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d", rec.Code)
	}
}

func TestAuditEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.seedPendingAsset(t, "a1")

	if rec := s.do(t, http.MethodPost, "/api/v1/admin/assets/a1/approve", "admin-1", ""); rec.Code != http.StatusOK {
		t.Fatalf("approve: %d", rec.Code)
	}
	s.app.Effects.Drain(context.Background())

	rec := s.do(t, http.MethodGet, "/api/v1/admin/audit", "admin-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("audit: %d", rec.Code)
	}
	var entries []struct {
		Action  string `json:"action"`
		Outcome string `json:"outcome"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("no audit entries after moderation")
	}

	if rec := s.do(t, http.MethodGet, "/api/v1/admin/audit?limit=bogus", "admin-1", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/v1/admin/audit", "contrib-1", ""); rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin audit: %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
}
