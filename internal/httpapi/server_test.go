package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/metrics"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/service"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/session"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store/memory"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/httpapi"
)

type testEnv struct {
	ts    *httptest.Server
	store *memory.Store
}

// newTestServer wires the checkpoint over an in-memory store with one
// supervisor ("sup"/"pw") and one read-only auditor ("aud"/"pw").
func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	dir := session.NewStaticDirectory(
		session.Operator{
			Username:     "sup",
			PasswordHash: string(hash),
			Grants: session.NewGrants(map[string][]string{
				"entries": {"*"}, "badges": {"*"}, "alerts": {"*"},
			}),
		},
		session.Operator{
			Username:     "aud",
			PasswordHash: string(hash),
			Grants:       session.NewGrants(map[string][]string{"entries": {"read"}}),
		},
	)
	auth := session.NewAuthority(dir, nil)

	st := memory.New()
	reg := prometheus.NewRegistry()
	cp := service.New(service.Config{
		Store:     st,
		Authority: auth,
		Metrics:   metrics.New(reg),
	})

	srv := httpapi.NewServer(httpapi.Dependencies{
		Addr:       ":0",
		Checkpoint: cp,
		Session:    auth,
		Gatherer:   reg,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, store: st}
}

func (e *testEnv) post(t *testing.T, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(e.ts.URL+path, "application/json", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	return resp, readJSON(t, resp)
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(e.ts.URL + path)
	require.NoError(t, err)
	return resp, readJSON(t, resp)
}

func (e *testEnv) login(t *testing.T, user string) {
	t.Helper()
	resp, body := e.post(t, "/v1/session/login", `{"username":"`+user+`","password":"pw"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
}

func readJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

// ── Health / metrics ─────────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	env := newTestServer(t)
	resp, body := env.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
}

func TestMetrics_Exposed(t *testing.T) {
	env := newTestServer(t)
	env.login(t, "sup")
	env.post(t, "/v1/entries", `{"identity_key":"V1","name":"Ann","category":"visitor","host_ref":"h-1"}`)

	resp, err := http.Get(env.ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "checkpoint_entry_decisions_total")
}

// ── Session ──────────────────────────────────────────────────────────────────

func TestSession_LoginLogout(t *testing.T) {
	env := newTestServer(t)

	resp, body := env.get(t, "/v1/session")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, service.CodeNoSession, errorCode(body))

	resp, body = env.post(t, "/v1/session/login", `{"username":"sup","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, service.CodeInvalidCredentials, errorCode(body))

	env.login(t, "sup")
	resp, body = env.get(t, "/v1/session")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "sup", body["operator"])

	resp, body = env.post(t, "/v1/session/login", `{"username":"aud","password":"pw"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, service.CodeSessionActive, errorCode(body))

	resp, _ = env.post(t, "/v1/session/logout", ``)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.post(t, "/v1/entries", `{"identity_key":"V1","name":"Ann","category":"visitor","host_ref":"h-1"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, service.CodeNoSession, errorCode(body))
}

// ── Entry lifecycle ──────────────────────────────────────────────────────────

func TestEntry_FullVisitWithUnreturnedBadge(t *testing.T) {
	env := newTestServer(t)
	env.login(t, "sup")

	resp, _ := env.post(t, "/v1/badges", `{"code":"B7"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := env.post(t, "/v1/entries", `{"identity_key":"V1","name":"Ann","category":"visitor","host_ref":"h-1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, string(types.StateEntered), body["state"])
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)

	resp, body = env.post(t, "/v1/entries/"+id+"/badge", `{"badge_code":"B7"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(types.StateInPremises), body["state"])
	assert.Equal(t, "B7", body["badge_code"])

	resp, body = env.get(t, "/v1/badges/b7")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(types.BadgeIssued), body["state"])

	resp, body = env.post(t, "/v1/entries/"+id+"/exit", `{}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	record, _ := body["record"].(map[string]any)
	alert, _ := body["alert"].(map[string]any)
	assert.Equal(t, string(types.StateExited), record["state"])
	assert.Equal(t, string(types.AlertNotReturned), alert["kind"])

	resp, body = env.get(t, "/v1/alerts?open=true")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	alerts, _ := body["alerts"].([]any)
	assert.Len(t, alerts, 1)

	alertID, _ := alert["id"].(string)
	resp, body = env.post(t, "/v1/alerts/"+alertID+"/resolve", `{"note":"returned next day"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["resolved"])

	resp, body = env.post(t, "/v1/entries/"+id+"/exit", `{}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, service.CodeInvalidTransition, errorCode(body))
}

func TestEntry_BlacklistedIsForbiddenWithReasons(t *testing.T) {
	env := newTestServer(t)
	require.NoError(t, env.store.SaveBlacklistEntry(context.Background(), types.BlacklistEntry{
		ID:     "bl-1",
		Kind:   types.SubjectPerson,
		Key:    "V9",
		Reason: "prior incident",
		Active: true,
		From:   time.Now().Add(-24 * time.Hour),
	}))
	env.login(t, "sup")

	resp, body := env.post(t, "/v1/entries", `{"identity_key":"V9","name":"Bob","category":"visitor","host_ref":"h-1"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, service.CodeBlocked, errorCode(body))

	detail, _ := body["error"].(map[string]any)
	reasons, _ := detail["reasons"].([]any)
	require.NotEmpty(t, reasons)
	first, _ := reasons[0].(map[string]any)
	assert.Equal(t, string(types.ReasonBlacklisted), first["code"])

	resp, body = env.get(t, "/v1/entries")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries, _ := body["entries"].([]any)
	assert.Empty(t, entries)
}

func TestEntry_RejectedContractorIsUnprocessable(t *testing.T) {
	env := newTestServer(t)
	env.login(t, "sup")

	resp, body := env.post(t, "/v1/entries", `{"identity_key":"C1","name":"Cal","category":"contractor","company_ref":"NOPE","expected_stay_minutes":60}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, service.CodeRejected, errorCode(body))
}

func TestEntry_BadRequests(t *testing.T) {
	env := newTestServer(t)
	env.login(t, "sup")

	resp, body := env.post(t, "/v1/entries", `{"identity_key":"V1","nmae":"typo"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "bad_json", errorCode(body))

	resp, body = env.post(t, "/v1/entries", `{"identity_key":"V1","name":"Ann","category":"astronaut"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, service.CodeInvalidInput, errorCode(body))

	resp, body = env.get(t, "/v1/alerts?open=maybe")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, service.CodeInvalidInput, errorCode(body))

	resp, body = env.get(t, "/v1/entries/does-not-exist")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, service.CodeNotFound, errorCode(body))
}

func TestPermissionDenied_IsForbidden(t *testing.T) {
	env := newTestServer(t)
	env.login(t, "aud")

	resp, body := env.post(t, "/v1/badges", `{"code":"B1"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, service.CodePermissionDenied, errorCode(body))

	resp, _ = env.get(t, "/v1/entries")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// ── Protobuf ─────────────────────────────────────────────────────────────────

func TestSubmitEntry_Protobuf(t *testing.T) {
	env := newTestServer(t)
	env.login(t, "sup")

	msg, err := structpb.NewStruct(map[string]any{
		"identity_key": "V5",
		"name":         "Eve",
		"category":     "visitor",
		"host_ref":     "h-9",
	})
	require.NoError(t, err)
	raw, err := proto.Marshal(msg)
	require.NoError(t, err)

	resp, err := http.Post(env.ts.URL+"/v1/entries", "application/x-protobuf", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "application/x-protobuf", resp.Header.Get("Content-Type"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out structpb.Struct
	require.NoError(t, proto.Unmarshal(data, &out))
	assert.Equal(t, string(types.StateEntered), out.GetFields()["state"].GetStringValue())
	identity := out.GetFields()["identity"].GetStructValue()
	assert.Equal(t, "V5", identity.GetFields()["key"].GetStringValue())
}
