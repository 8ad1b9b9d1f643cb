package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"atelier-ai/internal/auth"
	"atelier-ai/internal/billing"
	"atelier-ai/internal/catalog"
	"atelier-ai/internal/generation"
	"atelier-ai/internal/history"
	"atelier-ai/internal/store"
)

const testSecret = "test-secret"

type fakeCapability struct {
	calls       atomic.Int32
	description string
	imageRef    string
	err         error
	block       bool
}

func (f *fakeCapability) GenerateShot(ctx context.Context, promptText string, garmentRefs []string) (string, string, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return "", "", ctx.Err()
	}
	return f.description, f.imageRef, f.err
}

type serverFixture struct {
	server  *Server
	ledger  *billing.Ledger
	history *history.Store
	cap     *fakeCapability
}

func newTestServer(t *testing.T, allowAnonymous bool) *serverFixture {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "server.db"), nil)
	require.NoError(t, err)

	ledger, err := billing.NewLedger(billing.LedgerOptions{
		DB:            db,
		DefaultTier:   billing.TierTrial,
		SignupCredits: 3,
	})
	require.NoError(t, err)

	schedule, err := billing.NewSchedule(
		map[string]int{"studio-shot": 1, "editorial-shot": 2},
		map[string]string{"studio-shot": "trial", "editorial-shot": "silver"},
	)
	require.NoError(t, err)

	gate := billing.NewGate(billing.GateOptions{
		Ledger:         ledger,
		Schedule:       schedule,
		AllowAnonymous: allowAnonymous,
	})

	historyStore, err := history.NewStore(history.StoreOptions{DB: db})
	require.NoError(t, err)

	cap := &fakeCapability{description: "a look", imageRef: "data:image/png;base64,AAAA"}
	registry := catalog.Default()

	service := generation.NewService(generation.ServiceOptions{
		Validator:              generation.NewValidator(registry),
		Gate:                   gate,
		Gateway:                generation.NewGateway(generation.GatewayOptions{Capability: cap, Timeout: 50 * time.Millisecond}),
		History:                historyStore,
		ChargeTerminalFailures: true,
	})

	srv := New(Options{
		Service:  service,
		Gate:     gate,
		History:  historyStore,
		Catalog:  registry,
		Verifier: auth.NewVerifier(testSecret),
	})

	return &serverFixture{server: srv, ledger: ledger, history: historyStore, cap: cap}
}

func bearerFor(t *testing.T, userID uuid.UUID) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func (fx *serverFixture) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}

	rec := httptest.NewRecorder()
	fx.server.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func validBody() map[string]any {
	registry := catalog.Default()
	facets := make(map[string]string)
	for _, cat := range catalog.Categories() {
		facets[string(cat)] = registry.List(cat)[0].ID
	}
	return map[string]any{
		"garment_refs": []string{"https://cdn.example/dress.jpg"},
		"facets":       facets,
		"service":      "studio-shot",
	}
}

func TestHealthz(t *testing.T) {
	fx := newTestServer(t, true)
	rec := fx.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestFacetsListsEveryCategory(t *testing.T) {
	fx := newTestServer(t, true)
	rec := fx.do(t, http.MethodGet, "/facets", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	for _, cat := range catalog.Categories() {
		require.Contains(t, body, string(cat))
	}
}

func TestGenerateSuccess(t *testing.T) {
	fx := newTestServer(t, true)
	userID := uuid.New()

	rec := fx.do(t, http.MethodPost, "/generate", bearerFor(t, userID), validBody())
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	require.Equal(t, "succeeded", body["status"])
	require.Equal(t, "data:image/png;base64,AAAA", body["image_ref"])
	require.NotEmpty(t, body["record_id"])
}

func TestGenerateRejectsBadBody(t *testing.T) {
	fx := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewBufferString("{broken"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	fx.server.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateValidationError(t *testing.T) {
	fx := newTestServer(t, true)

	body := validBody()
	body["facets"].(map[string]string)["pose"] = "handstand"

	rec := fx.do(t, http.MethodPost, "/generate", "", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decode(t, rec)["error"], "unknown facet")
	require.Equal(t, int32(0), fx.cap.calls.Load())
}

func TestGenerateTierDenied(t *testing.T) {
	fx := newTestServer(t, true)
	userID := uuid.New()

	body := validBody()
	body["service"] = "editorial-shot"

	rec := fx.do(t, http.MethodPost, "/generate", bearerFor(t, userID), body)
	require.Equal(t, http.StatusForbidden, rec.Code)

	resp := decode(t, rec)
	require.Equal(t, "trial", resp["user_tier"])
	require.Equal(t, []any{"silver", "gold"}, resp["required_tiers"])
}

func TestGenerateInsufficientCredit(t *testing.T) {
	fx := newTestServer(t, true)
	userID := uuid.New()
	bearer := bearerFor(t, userID)

	for i := 0; i < 3; i++ {
		rec := fx.do(t, http.MethodPost, "/generate", bearer, validBody())
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := fx.do(t, http.MethodPost, "/generate", bearer, validBody())
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestGenerateTimeoutMapsTo504(t *testing.T) {
	fx := newTestServer(t, true)
	fx.cap.block = true

	rec := fx.do(t, http.MethodPost, "/generate", bearerFor(t, uuid.New()), validBody())
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)

	body := decode(t, rec)
	require.Equal(t, "failed", body["status"])
}

func TestGenerateRejectsBadToken(t *testing.T) {
	fx := newTestServer(t, true)

	rec := fx.do(t, http.MethodPost, "/generate", "Bearer garbage", validBody())
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, int32(0), fx.cap.calls.Load())
}

func TestGenerateAnonymousDeniedWhenClosed(t *testing.T) {
	fx := newTestServer(t, false)

	rec := fx.do(t, http.MethodPost, "/generate", "", validBody())
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListGenerations(t *testing.T) {
	fx := newTestServer(t, true)
	userID := uuid.New()
	bearer := bearerFor(t, userID)

	rec := fx.do(t, http.MethodPost, "/generate", bearer, validBody())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = fx.do(t, http.MethodGet, "/generations", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	generations := body["generations"].([]any)
	require.Len(t, generations, 1)

	first := generations[0].(map[string]any)
	require.Equal(t, "succeeded", first["status"])
	require.NotEmpty(t, first["prompt"])
	require.Contains(t, first, "facet_snapshot")
}

func TestListGenerationsRequiresIdentity(t *testing.T) {
	fx := newTestServer(t, true)

	rec := fx.do(t, http.MethodGet, "/generations", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListGenerationsRejectsBadLimit(t *testing.T) {
	fx := newTestServer(t, true)

	rec := fx.do(t, http.MethodGet, "/generations?limit=abc", bearerFor(t, uuid.New()), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteGeneration(t *testing.T) {
	fx := newTestServer(t, true)
	owner := uuid.New()
	bearer := bearerFor(t, owner)

	rec := fx.do(t, http.MethodPost, "/generate", bearer, validBody())
	require.Equal(t, http.StatusOK, rec.Code)
	recordID := decode(t, rec)["record_id"].(string)

	rec = fx.do(t, http.MethodDelete, "/generations/"+recordID, bearerFor(t, uuid.New()), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = fx.do(t, http.MethodDelete, "/generations/not-a-uuid", bearer, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = fx.do(t, http.MethodDelete, "/generations/"+uuid.NewString(), bearer, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = fx.do(t, http.MethodDelete, "/generations/"+recordID, bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = fx.do(t, http.MethodDelete, "/generations/"+recordID, bearer, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckServiceAccess(t *testing.T) {
	fx := newTestServer(t, true)
	userID := uuid.New()

	rec := fx.do(t, http.MethodGet, "/check-service-access/studio-shot", bearerFor(t, userID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, true, body["hasAccess"])
	require.Equal(t, "trial", body["userTier"])
	require.Empty(t, body["requiredTiers"])

	rec = fx.do(t, http.MethodGet, "/check-service-access/editorial-shot", bearerFor(t, userID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	require.Equal(t, false, body["hasAccess"])
	require.Equal(t, "trial", body["userTier"])
	require.Equal(t, []any{"silver", "gold"}, body["requiredTiers"])

	rec = fx.do(t, http.MethodGet, "/check-service-access/no-such-service", bearerFor(t, userID), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckServiceAccessAnonymous(t *testing.T) {
	open := newTestServer(t, true)
	rec := open.do(t, http.MethodGet, "/check-service-access/studio-shot", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decode(t, rec)["hasAccess"])

	closed := newTestServer(t, false)
	rec = closed.do(t, http.MethodGet, "/check-service-access/studio-shot", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
