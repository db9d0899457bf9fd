package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/newswire/internal/store"
	"github.com/danmuck/newswire/internal/testutil/testlog"
	"github.com/rs/zerolog"
)

func TestAdminRouterHealthIncludesStatus(t *testing.T) {
	testlog.Start(t)
	r := AdminRouter(zerolog.Nop(), AdminOptions{}, func() map[string]any {
		return map[string]any{"active_clients": 3}
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", body)
	}
	if body["active_clients"] != float64(3) {
		t.Fatalf("expected active_clients in body: %v", body)
	}
}

func TestAdminRouterServesMetrics(t *testing.T) {
	testlog.Start(t)
	r := AdminRouter(zerolog.Nop(), AdminOptions{CORSOrigins: []string{"http://dash.local"}}, nil)
	RecordAction("quit", "ok")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "newswire_session_actions_total") {
		t.Fatalf("expected action counter in metrics output")
	}
}

func TestAdminRouterRequiresToken(t *testing.T) {
	testlog.Start(t)
	r := AdminRouter(zerolog.Nop(), AdminOptions{Token: "s3cret"}, nil)

	cases := []struct {
		path   string
		header string
		want   int
	}{
		{path: "/ready", want: http.StatusOK},
		{path: "/health", want: http.StatusUnauthorized},
		{path: "/metrics", header: "Bearer wrong", want: http.StatusUnauthorized},
		{path: "/health", header: "Bearer s3cret", want: http.StatusOK},
		{path: "/metrics", header: "Bearer s3cret", want: http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s with %q: got status %d want %d", tc.path, tc.header, rec.Code, tc.want)
		}
	}
}

func TestAdminRouterServesStoredResponses(t *testing.T) {
	testlog.Start(t)
	mem := store.NewMemoryStore()
	ctx := context.Background()
	if err := mem.Persist(ctx, store.Key{Username: "alice", Action: "headlines_all"}, []byte(`{"status":"ok"}`)); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := mem.Persist(ctx, store.Key{Username: "bob", Action: "sources_all"}, []byte(`{}`)); err != nil {
		t.Fatalf("persist: %v", err)
	}
	r := AdminRouter(zerolog.Nop(), AdminOptions{Token: "s3cret", Responses: mem}, nil)

	get := func(target, header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	if rec := get("/responses?username=alice&action=headlines_all", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("stored responses must require the token, got %d", rec.Code)
	}
	rec := get("/responses?username=alice&action=headlines_all", "Bearer s3cret")
	if rec.Code != http.StatusOK || rec.Body.String() != `{"status":"ok"}` {
		t.Fatalf("unexpected payload: %d %s", rec.Code, rec.Body.String())
	}
	if rec := get("/responses?username=carol&action=headlines_all", "Bearer s3cret"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing key, got %d", rec.Code)
	}
	if rec := get("/responses?username=alice", "Bearer s3cret"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a partial key, got %d", rec.Code)
	}

	rec = get("/responses?prefix=b", "Bearer s3cret")
	var body struct {
		Responses []map[string]string `json:"responses"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(body.Responses) != 1 || body.Responses[0]["username"] != "bob" || body.Responses[0]["action"] != "sources_all" {
		t.Fatalf("unexpected listing: %+v", body.Responses)
	}
}

func TestAdminRouterHidesResponsesWithoutToken(t *testing.T) {
	testlog.Start(t)
	r := AdminRouter(zerolog.Nop(), AdminOptions{Responses: store.NewMemoryStore()}, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/responses?prefix=", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("responses route should not exist without a token, got %d", rec.Code)
	}
}
