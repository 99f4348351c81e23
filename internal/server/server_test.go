package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"autoeden/internal/app"
	"autoeden/pkg/auth"
	"autoeden/pkg/cache"
	"autoeden/pkg/domain"
	"autoeden/pkg/mail"
	"autoeden/pkg/queue"
	"autoeden/pkg/storage"
	"autoeden/pkg/store"
)

type stubQueue struct {
	tasks []queue.Task
}

func (q *stubQueue) Enqueue(_ context.Context, kind, payload string) (queue.Task, error) {
	task := queue.Task{Kind: kind, Payload: payload, Status: queue.StatusQueued}
	q.tasks = append(q.tasks, task)
	return task, nil
}

type testServer struct {
	srv    *httptest.Server
	store  *store.MemoryStore
	queue  *stubQueue
	mailer *mail.Recorder
	redis  *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ts := &testServer{
		store:  store.NewMemoryStore(),
		queue:  &stubQueue{},
		mailer: mail.NewRecorder(),
		redis:  mr,
	}
	tokens := auth.NewTokenService("test-secret", 15*time.Minute)
	a, err := app.New(app.Config{
		Store:         ts.store,
		RefreshTokens: store.NewMemoryRefreshTokenStore(),
		Tokens:        tokens,
		Cache:         cache.NewMarketplaceCache(client, time.Minute),
		Queue:         ts.queue,
		Objects:       storage.NewMemoryStore(),
		Mailer:        ts.mailer,
		PublicBaseURL: "https://autoeden.test",
	})
	require.NoError(t, err)

	srv := New(Config{App: a, Tokens: tokens})
	ts.srv = httptest.NewServer(srv.Handler())
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, payload
}

// register returns the created user's access token. The first registration
// on a fresh server gets the admin role.
func (ts *testServer) register(t *testing.T, username, email string) (domain.User, string) {
	t.Helper()
	resp, payload := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "hunter22pass",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(payload))
	var body struct {
		User   domain.User `json:"user"`
		Tokens struct {
			AccessToken string `json:"accessToken"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(payload, &body))
	return body.User, body.Tokens.AccessToken
}

func vehicleBody(vin string) map[string]any {
	return map[string]any{
		"make":        "Toyota",
		"model":       "Hilux",
		"year":        2020,
		"vin":         vin,
		"mileage":     45000,
		"location":    "Harare",
		"listingType": "marketplace",
		"price":       15000,
	}
}

func (ts *testServer) createVehicle(t *testing.T, token, vin string) domain.Vehicle {
	t.Helper()
	resp, payload := ts.do(t, http.MethodPost, "/api/vehicles", token, vehicleBody(vin))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(payload))
	var vehicle domain.Vehicle
	require.NoError(t, json.Unmarshal(payload, &vehicle))
	return vehicle
}

func (ts *testServer) verifyPhysical(t *testing.T, adminToken, vehicleID string) domain.Vehicle {
	t.Helper()
	resp, payload := ts.do(t, http.MethodPatch,
		"/api/admin/vehicles/"+vehicleID+"/verify", adminToken,
		map[string]string{"verificationState": "physical"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(payload))
	var vehicle domain.Vehicle
	require.NoError(t, json.Unmarshal(payload, &vehicle))
	return vehicle
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)
	resp, payload := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "al",
		"email":    "not-an-email",
		"password": "hunter22pass",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, string(payload), "username")
	require.Contains(t, string(payload), "email")
}

func TestCreateVehicleRequiresAuth(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := ts.do(t, http.MethodPost, "/api/vehicles", "", vehicleBody("JT123456789012345"))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateVehicleMissingPriceIs400(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.register(t, "alice", "alice@example.com")
	body := vehicleBody("JT123456789012345")
	delete(body, "price")
	resp, payload := ts.do(t, http.MethodPost, "/api/vehicles", token, body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, string(payload), "price")
}

func TestAdminVerifyFlow(t *testing.T) {
	ts := newTestServer(t)
	admin, adminToken := ts.register(t, "admin", "admin@example.com")
	require.Equal(t, domain.RoleAdmin, admin.Role)
	_, ownerToken := ts.register(t, "alice", "alice@example.com")

	vehicle := ts.createVehicle(t, ownerToken, "JT123456789012345")
	require.Equal(t, domain.VerificationPending, vehicle.VerificationState)

	// non-admin cannot review
	resp, _ := ts.do(t, http.MethodPatch,
		"/api/admin/vehicles/"+vehicle.ID+"/verify", ownerToken,
		map[string]string{"verificationState": "physical"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// rejection without a reason fails
	resp, payload := ts.do(t, http.MethodPatch,
		"/api/admin/vehicles/"+vehicle.ID+"/verify", adminToken,
		map[string]string{"verificationState": "rejected"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, string(payload))

	// reject with reason, then re-verify clears the reason
	resp, _ = ts.do(t, http.MethodPatch,
		"/api/admin/vehicles/"+vehicle.ID+"/verify", adminToken,
		map[string]string{"verificationState": "rejected", "rejectionReason": "vin plate unreadable"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	verified := ts.verifyPhysical(t, adminToken, vehicle.ID)
	require.Equal(t, domain.VerificationPhysical, verified.VerificationState)
	require.Empty(t, verified.RejectionReason)

	// owner got an unread approval notification
	resp, payload = ts.do(t, http.MethodGet, "/api/notifications?unread=true", ownerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(payload), `"approval"`)
}

func TestMarketplaceCacheAndInvalidation(t *testing.T) {
	ts := newTestServer(t)
	_, adminToken := ts.register(t, "admin", "admin@example.com")
	_, ownerToken := ts.register(t, "alice", "alice@example.com")

	vehicle := ts.createVehicle(t, ownerToken, "JT123456789012345")
	ts.verifyPhysical(t, adminToken, vehicle.ID)

	resp, first := ts.do(t, http.MethodGet, "/api/marketplace?make=Toyota&minYear=2018", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(first), "JT123456789012345")

	// identical filter in a different parameter order hits the same cache key
	keys := ts.redis.Keys()
	resp, second := ts.do(t, http.MethodGet, "/api/marketplace?minYear=2018&make=Toyota", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, string(first), string(second))
	require.Equal(t, keys, ts.redis.Keys())

	// a vehicle write clears cached pages
	other := ts.createVehicle(t, ownerToken, "JT000000000000001")
	ts.verifyPhysical(t, adminToken, other.ID)
	resp, third := ts.do(t, http.MethodGet, "/api/marketplace?make=Toyota&minYear=2018", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(third), "JT000000000000001")
}

func TestMarketplaceMalformedFilterIs400(t *testing.T) {
	ts := newTestServer(t)
	resp, payload := ts.do(t, http.MethodGet, "/api/marketplace?minYear=soon", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, string(payload), "minYear")
}

func TestMarketplaceSortByPriceLowHigh(t *testing.T) {
	ts := newTestServer(t)
	_, adminToken := ts.register(t, "admin", "admin@example.com")
	_, ownerToken := ts.register(t, "alice", "alice@example.com")

	// the cheap vehicle is listed first, so newest-first ordering would
	// put the expensive one ahead of it
	cheap := vehicleBody("JT000000000000001")
	cheap["price"] = 5000
	resp, payload := ts.do(t, http.MethodPost, "/api/vehicles", ownerToken, cheap)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(payload))
	var vehicle domain.Vehicle
	require.NoError(t, json.Unmarshal(payload, &vehicle))
	ts.verifyPhysical(t, adminToken, vehicle.ID)

	costly := vehicleBody("JT123456789012345")
	costly["price"] = 30000
	resp, payload = ts.do(t, http.MethodPost, "/api/vehicles", ownerToken, costly)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(payload))
	require.NoError(t, json.Unmarshal(payload, &vehicle))
	ts.verifyPhysical(t, adminToken, vehicle.ID)

	resp, payload = ts.do(t, http.MethodGet, "/api/marketplace?make=Toyota&sortBy=priceLowHigh", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := string(payload)
	require.Contains(t, body, "JT000000000000001")
	require.Contains(t, body, "JT123456789012345")
	require.Less(t, strings.Index(body, "JT000000000000001"), strings.Index(body, "JT123456789012345"),
		"cheapest vehicle should come first")
}

func TestQuoteCreatedEvenWhenMailWillFail(t *testing.T) {
	ts := newTestServer(t)
	_, adminToken := ts.register(t, "admin", "admin@example.com")
	_, ownerToken := ts.register(t, "alice", "alice@example.com")
	vehicle := ts.createVehicle(t, ownerToken, "JT123456789012345")
	ts.verifyPhysical(t, adminToken, vehicle.ID)

	ts.mailer.Err = fmt.Errorf("smtp down")
	resp, payload := ts.do(t, http.MethodPost, "/api/vehicles/"+vehicle.ID+"/quotes", "", map[string]string{
		"fullName":  "Tafadzwa Moyo",
		"email":     "tafadzwa@example.com",
		"telephone": "0772000000",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(payload))

	var quote domain.QuoteRequest
	require.NoError(t, json.Unmarshal(payload, &quote))
	require.NotEmpty(t, quote.ID)
	require.Empty(t, ts.mailer.Messages(), "no email should be recorded when SMTP is down")
}

func TestBidFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	_, adminToken := ts.register(t, "admin", "admin@example.com")
	_, ownerToken := ts.register(t, "alice", "alice@example.com")
	_, buyerToken := ts.register(t, "bob", "bob@example.com")

	vehicle := ts.createVehicle(t, ownerToken, "JT123456789012345")
	ts.verifyPhysical(t, adminToken, vehicle.ID)

	resp, payload := ts.do(t, http.MethodPost, "/api/vehicles/"+vehicle.ID+"/bids", buyerToken,
		map[string]any{"amount": 14000, "message": "cash ready"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(payload))
	var bid domain.Bid
	require.NoError(t, json.Unmarshal(payload, &bid))

	resp, _ = ts.do(t, http.MethodPost, "/api/admin/bids/"+bid.ID+"/accept", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// the losing concurrent decision conflicts
	resp, _ = ts.do(t, http.MethodPost, "/api/admin/bids/"+bid.ID+"/reject", adminToken, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, payload = ts.do(t, http.MethodGet, "/api/bids/mine", buyerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(payload), `"accepted"`)
}

func TestVehicleDetailVisibility(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "admin", "admin@example.com")
	_, ownerToken := ts.register(t, "alice", "alice@example.com")

	vehicle := ts.createVehicle(t, ownerToken, "JT123456789012345")

	// pending vehicles are invisible to anonymous viewers
	resp, _ := ts.do(t, http.MethodGet, "/api/vehicles/"+vehicle.ID, "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// but the owner sees them
	resp, _ = ts.do(t, http.MethodGet, "/api/vehicles/"+vehicle.ID, ownerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExportEndpoint(t *testing.T) {
	ts := newTestServer(t)
	_, adminToken := ts.register(t, "admin", "admin@example.com")
	_, ownerToken := ts.register(t, "alice", "alice@example.com")
	ts.createVehicle(t, ownerToken, "JT123456789012345")

	resp, payload := ts.do(t, http.MethodPost, "/api/admin/exports", adminToken, map[string]any{
		"dataType": "vehicles",
		"format":   "csv",
		"columns":  []string{"vin", "verificationState"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	require.Contains(t, string(payload), "JT123456789012345,pending")

	// non-admin is rejected
	resp, _ = ts.do(t, http.MethodPost, "/api/admin/exports", ownerToken, map[string]any{
		"dataType": "vehicles", "format": "csv",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, payload := ts.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(payload), `"ok"`)
}

func TestAssistantDisabledAnswersEnabledFalse(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.register(t, "alice", "alice@example.com")

	resp, payload := ts.do(t, http.MethodPost, "/api/ai/chat", token, map[string]string{
		"message": "how do I list my car?",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"enabled": false}`, string(payload))
}

func TestAdminDisablesUserOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	_, adminToken := ts.register(t, "admin", "admin@example.com")
	user, userToken := ts.register(t, "alice", "alice@example.com")

	resp, payload := ts.do(t, http.MethodGet, "/api/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(payload), "alice@example.com")

	resp, _ = ts.do(t, http.MethodPatch, "/api/admin/users/"+user.ID+"/status", adminToken, map[string]string{
		"status": "disabled",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// the disabled account's token stops working on the next request
	resp, _ = ts.do(t, http.MethodGet, "/api/me/profile", userToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHealthzAlias(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := ts.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
