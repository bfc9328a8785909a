package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/filiksyos/ghostmrr/internal/config"
	"github.com/filiksyos/ghostmrr/internal/domain"
	"github.com/filiksyos/ghostmrr/internal/infra/badgemem"
	"github.com/filiksyos/ghostmrr/internal/infra/cachelru"
	"github.com/filiksyos/ghostmrr/internal/infra/feed"
	"github.com/filiksyos/ghostmrr/internal/infra/policyopa"
	"github.com/filiksyos/ghostmrr/internal/usecase"
	"github.com/filiksyos/ghostmrr/pkg/badge"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type failingRepo struct {
	usecase.BadgeRepository
}

func (failingRepo) Apply(context.Context, domain.DedupKey, usecase.ApplyFunc) (domain.Resolution, error) {
	return domain.Resolution{}, errors.Join(domain.ErrStorageUnavailable, errors.New("connection refused"))
}

type testServer struct {
	*Server
	hub   *feed.Hub
	audit *badgemem.AuditLog
}

func newTestServer(t *testing.T, cfg config.Config, repo usecase.BadgeRepository) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	policy, err := policyopa.NewEngine(context.Background())
	if err != nil {
		t.Fatalf("policy engine: %v", err)
	}
	cache, err := cachelru.New(16)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	if repo == nil {
		repo = badgemem.New()
	}
	hub := feed.NewHub(nil)
	auditLog := badgemem.NewAuditLog()
	audit := usecase.NewAuditEmitter(auditLog, nil)
	clock := func() time.Time { return baseTime.Add(time.Hour) }

	server := NewServerWithDeps(cfg, ServerDeps{
		Submit:      &usecase.SubmitBadge{Badges: repo, Policy: policy, Audit: audit, Feed: hub, Clock: clock},
		Replace:     &usecase.ReplaceBadge{Badges: repo, Audit: audit, Feed: hub, Clock: clock},
		Verify:      &usecase.VerifyBadge{Cache: cache},
		Query:       &usecase.QueryBadges{Badges: repo},
		Feed:        hub,
		StorageMode: config.StorageMemory,
		AccessLog:   io.Discard,
	})
	return testServer{Server: server, hub: hub, audit: auditLog}
}

func mustKeypair(t *testing.T, seed int) domain.Keypair {
	t.Helper()
	kp, err := badge.KeypairFromSeedHex(fmt.Sprintf("%064x", seed))
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	return kp
}

// keypairWithSlash finds a deterministic identity whose did needs path
// escaping.
func keypairWithSlash(t *testing.T) domain.Keypair {
	t.Helper()
	for seed := 1; seed < 1000; seed++ {
		kp := mustKeypair(t, seed)
		if strings.Contains(kp.DID, "/") {
			return kp
		}
	}
	t.Fatal("no did with a slash found")
	return domain.Keypair{}
}

func signClaim(t *testing.T, kp domain.Keypair, mrr uint64, at time.Time, accountHash string) domain.Claim {
	t.Helper()
	metrics, err := badge.NewMetrics(mrr, 3)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	opts := []badge.SignOption{badge.WithClock(func() time.Time { return at })}
	if accountHash != "" {
		opts = append(opts, badge.WithAccountHash(accountHash))
	}
	claim, err := badge.Sign(metrics, kp, opts...)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return claim
}

func withGroup(claim domain.Claim, group domain.GroupTag) domain.Claim {
	claim.JoinedGroup = &group
	return claim
}

func withReveal(claim domain.Claim) domain.Claim {
	reveal := true
	claim.RevealExact = &reveal
	return claim
}

func doJSON(t *testing.T, s *Server, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader = http.NoBody
	switch v := payload.(type) {
	case nil:
	case string:
		body = strings.NewReader(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("encode payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestBadgeEndpoints_SubmissionLifecycle(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)
	kp := mustKeypair(t, 7)
	hash := badge.AccountHash("acct_123")

	first := withGroup(signClaim(t, kp, 25, baseTime, hash), domain.GroupTenMRRClub)
	w := doJSON(t, ts.Server, http.MethodPost, "/badges", first)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decode[submitResponse](t, w)
	if created.IsUpdate {
		t.Fatal("first submission must be an insert")
	}
	if created.Badge.Metrics.MRR != nil || created.Badge.Signature != "" {
		t.Fatalf("exact figures must be withheld: %+v", created.Badge)
	}
	if created.Badge.Metrics.Tier != "$1+" {
		t.Fatalf("unexpected tier %q", created.Badge.Metrics.Tier)
	}

	second := withReveal(withGroup(signClaim(t, kp, 40, baseTime.Add(time.Minute), hash), domain.GroupExactNumbers))
	w = doJSON(t, ts.Server, http.MethodPost, "/api/badges", second)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	updated := decode[submitResponse](t, w)
	if !updated.IsUpdate {
		t.Fatal("second submission must update")
	}
	if updated.Badge.Metrics.MRR == nil || *updated.Badge.Metrics.MRR != 40 {
		t.Fatalf("expected revealed mrr 40, got %+v", updated.Badge.Metrics)
	}
	if len(updated.Badge.JoinedGroups) != 2 {
		t.Fatalf("expected both groups, got %v", updated.Badge.JoinedGroups)
	}

	stale := signClaim(t, kp, 90, baseTime.Add(-time.Second), hash)
	w = doJSON(t, ts.Server, http.MethodPost, "/badges", stale)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	assertErrorCode(t, w.Body.Bytes(), "STALE_SUBMISSION")

	w = doJSON(t, ts.Server, http.MethodGet, "/badges", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if list := decode[listResponse](t, w); len(list.Badges) != 1 || *list.Badges[0].Metrics.MRR != 40 {
		t.Fatalf("unexpected list: %+v", list)
	}

	w = doJSON(t, ts.Server, http.MethodGet, "/badges?group=exact-numbers", nil)
	if list := decode[listResponse](t, w); len(list.Badges) != 1 {
		t.Fatalf("expected one exact-numbers member, got %d", len(list.Badges))
	}

	w = doJSON(t, ts.Server, http.MethodGet, "/badges/"+url.PathEscape(kp.DID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decode[badgeResponse](t, w); got.Badge.DID != kp.DID {
		t.Fatalf("unexpected did %q", got.Badge.DID)
	}

	events, err := ts.audit.List(context.Background())
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 audit events, got %d", len(events))
	}
	if events[2].Accepted() || events[2].Reason != "STALE_SUBMISSION" {
		t.Fatalf("expected the stale submission to be recorded as rejected: %+v", events[2])
	}
}

func TestBadgeEndpoints_Rejections(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)
	kp := mustKeypair(t, 8)

	tampered := signClaim(t, kp, 25, baseTime, "")
	tampered.Metrics.MRR = 2500

	small := withGroup(signClaim(t, kp, 5, baseTime, ""), domain.GroupTenMRRClub)
	unknown := withGroup(signClaim(t, kp, 25, baseTime, ""), domain.GroupTag("vip"))
	foreign := signClaim(t, kp, 25, baseTime, "")
	foreign.DID = mustKeypair(t, 9).DID

	cases := []struct {
		name    string
		method  string
		path    string
		payload any
		status  int
		code    string
	}{
		{"malformed json", http.MethodPost, "/badges", "{", http.StatusBadRequest, "MALFORMED_CLAIM"},
		{"missing metrics", http.MethodPost, "/badges", `{"did":"did:key:zabc"}`, http.StatusBadRequest, "MALFORMED_CLAIM"},
		{"tampered metrics", http.MethodPost, "/badges", tampered, http.StatusBadRequest, "SIGNATURE_INVALID"},
		{"foreign did", http.MethodPost, "/badges", foreign, http.StatusBadRequest, "IDENTIFIER_MISMATCH"},
		{"group threshold", http.MethodPost, "/badges", small, http.StatusBadRequest, "GROUP_INELIGIBLE"},
		{"unknown group", http.MethodPost, "/badges", unknown, http.StatusBadRequest, "UNKNOWN_GROUP"},
		{"unknown list group", http.MethodGet, "/badges?group=vip", nil, http.StatusBadRequest, "UNKNOWN_GROUP"},
		{"missing badge", http.MethodGet, "/badges/did:key:zmissing", nil, http.StatusNotFound, "NOT_FOUND"},
		{"replace missing", http.MethodPut, "/badges/" + url.PathEscape(kp.DID), signClaim(t, kp, 25, baseTime, ""), http.StatusNotFound, "NOT_FOUND"},
		{"no route", http.MethodGet, "/v1/nothing", nil, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, ts.Server, tc.method, tc.path, tc.payload)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
			assertErrorCode(t, w.Body.Bytes(), tc.code)
		})
	}
}

func TestReplaceEndpoint_EscapedDID(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)
	kp := keypairWithSlash(t)
	path := "/badges/" + url.PathEscape(kp.DID)

	w := doJSON(t, ts.Server, http.MethodPost, "/badges", withReveal(signClaim(t, kp, 25, baseTime, "")))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// Older than the stored claim: PUT has no freshness gate.
	replacement := signClaim(t, kp, 60, baseTime.Add(-time.Hour), "")
	w = doJSON(t, ts.Server, http.MethodPut, path, replacement)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	replaced := decode[badgeResponse](t, w)
	if replaced.Badge.DID != kp.DID || !replaced.Badge.RevealExact || *replaced.Badge.Metrics.MRR != 60 {
		t.Fatalf("unexpected replaced badge: %+v", replaced.Badge)
	}

	w = doJSON(t, ts.Server, http.MethodGet, path, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	other := signClaim(t, mustKeypair(t, 11), 60, baseTime, "")
	w = doJSON(t, ts.Server, http.MethodPut, path, other)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	assertErrorCode(t, w.Body.Bytes(), "DID_MISMATCH")

	bound := signClaim(t, kp, 60, baseTime, badge.AccountHash("acct_9"))
	w = doJSON(t, ts.Server, http.MethodPut, path, bound)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	assertErrorCode(t, w.Body.Bytes(), "ACCOUNT_HASH_MISMATCH")
}

func TestSubmitEndpoint_StorageFailureIsRetryable(t *testing.T) {
	ts := newTestServer(t, config.Config{}, failingRepo{})
	w := doJSON(t, ts.Server, http.MethodPost, "/badges", signClaim(t, mustKeypair(t, 12), 25, baseTime, ""))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	resp := decode[errorResponse](t, w)
	if resp.Code != "STORAGE_UNAVAILABLE" {
		t.Fatalf("unexpected code %s", resp.Code)
	}
	if resp.Details["retryable"] != true {
		t.Fatalf("expected retryable detail, got %v", resp.Details)
	}
	if strings.Contains(resp.Message, "connection refused") {
		t.Fatal("driver errors must not leak")
	}
}

func TestSubmitEndpoint_RateLimited(t *testing.T) {
	ts := newTestServer(t, config.Config{RateLimitRequests: 1, RateLimitWindowSeconds: 60}, nil)
	kp := mustKeypair(t, 13)

	w := doJSON(t, ts.Server, http.MethodPost, "/badges", signClaim(t, kp, 25, baseTime, ""))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("RateLimit-Limit") != "1" {
		t.Fatalf("expected rate limit header, got %q", w.Header().Get("RateLimit-Limit"))
	}
	w = doJSON(t, ts.Server, http.MethodPost, "/badges", signClaim(t, kp, 30, baseTime.Add(time.Second), ""))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	assertErrorCode(t, w.Body.Bytes(), "RATE_LIMITED")
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	// Reads are not limited.
	if w := doJSON(t, ts.Server, http.MethodGet, "/badges", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestVerifyEndpoint(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)
	kp := mustKeypair(t, 14)
	claim := signClaim(t, kp, 12_500, baseTime, badge.AccountHash("acct_1"))

	w := doJSON(t, ts.Server, http.MethodPost, "/badges/verify", claim)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	ok := decode[verifyResponse](t, w)
	if !ok.Valid || ok.DID != kp.DID || ok.Tier != "$10k+" {
		t.Fatalf("unexpected verdict: %+v", ok)
	}

	claim.AccountHash = nil
	w = doJSON(t, ts.Server, http.MethodPost, "/api/badges/verify", claim)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	bad := decode[verifyResponse](t, w)
	if bad.Valid || bad.Reason != domain.RejectSignatureInvalid {
		t.Fatalf("expected signature rejection, got %+v", bad)
	}

	if w := doJSON(t, ts.Server, http.MethodGet, "/badges", nil); len(decode[listResponse](t, w).Badges) != 0 {
		t.Fatal("verify must not store anything")
	}
}

func TestFeedEndpoint_StreamsAcceptedBadges(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)
	srv := httptest.NewServer(ts.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/badges/feed", nil)
	if err != nil {
		t.Fatalf("dial feed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for ts.hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	kp := mustKeypair(t, 15)
	raw, err := json.Marshal(signClaim(t, kp, 25, baseTime, ""))
	if err != nil {
		t.Fatalf("encode claim: %v", err)
	}
	resp, err := http.Post(srv.URL+"/badges", "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read feed: %v", err)
	}
	var event domain.FeedEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.Type != domain.FeedEventBadgeAccepted || event.Badge.DID != kp.DID || event.IsUpdate {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)
	w := doJSON(t, ts.Server, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decode[map[string]any](t, w)
	if body["status"] != "ok" || body["mode"] != config.StorageMemory {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func assertErrorCode(t *testing.T, body []byte, expected string) {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code != expected {
		t.Fatalf("expected code %s, got %s", expected, resp.Code)
	}
}
