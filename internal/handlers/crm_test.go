package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/tenantcrm/internal/handlers/testutil"
)

type clientPayload struct {
	ID          string   `json:"id"`
	WorkspaceID string   `json:"workspace_id"`
	Name        string   `json:"name"`
	Status      string   `json:"status"`
	Tags        []string `json:"tags"`
}

type activityPayload struct {
	ID       string `json:"id"`
	ClientID string `json:"client_id"`
	Type     string `json:"type"`
	Content  string `json:"content"`
}

type followUpPayload struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"client_id"`
	Reason      string     `json:"reason"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completed_at"`
}

func createClient(t *testing.T, env *testutil.Env, session testutil.Session, name string) clientPayload {
	t.Helper()

	w := env.Request(http.MethodPost, "/api/clients", map[string]any{
		"name": name,
		"tags": []string{"vip"},
	}, session.AccessToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var client clientPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &client)
	return client
}

func TestClientHandler_CRUD(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.SignupOwner()

	client := createClient(t, env, owner, "Globex")
	require.Equal(t, owner.Workspace.ID, client.WorkspaceID)
	require.Equal(t, "PROSPECT", client.Status)
	require.Equal(t, []string{"vip"}, client.Tags)

	w := env.Request(http.MethodPatch, "/api/clients/"+client.ID, map[string]string{"status": "ACTIVE"}, owner.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated clientPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &updated)
	require.Equal(t, "ACTIVE", updated.Status)
	require.Equal(t, "Globex", updated.Name)

	w = env.Request(http.MethodGet, "/api/clients?status=ACTIVE", nil, owner.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, 1, testutil.DecodeResponse(t, w).Meta.Total)

	w = env.Request(http.MethodDelete, "/api/clients/"+client.ID, nil, owner.AccessToken)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = env.Request(http.MethodGet, "/api/clients/"+client.ID, nil, owner.AccessToken)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestClientHandler_CreateRequiresName(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.SignupOwner()

	w := env.Request(http.MethodPost, "/api/clients", map[string]string{"company": "Nameless"}, owner.AccessToken)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.Contains(t, testutil.DecodeResponse(t, w).Error.Fields, "name")
}

func TestClientHandler_TenantIsolation(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.SignupOwner()
	bob := env.SignupOwner()

	secret := createClient(t, env, alice, "Alice's Client")
	createClient(t, env, bob, "Bob's Client")

	w := env.Request(http.MethodGet, "/api/clients", nil, bob.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []clientPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &listed)
	require.Len(t, listed, 1)
	require.Equal(t, "Bob's Client", listed[0].Name)

	requests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/clients/" + secret.ID, nil},
		{http.MethodPatch, "/api/clients/" + secret.ID, map[string]string{"name": "Hijacked"}},
		{http.MethodDelete, "/api/clients/" + secret.ID, nil},
		{http.MethodGet, "/api/clients/" + secret.ID + "/activities", nil},
		{http.MethodPost, "/api/clients/" + secret.ID + "/activities", map[string]string{"type": "NOTE", "content": "peek"}},
		{http.MethodPost, "/api/followups", map[string]any{"client_id": secret.ID, "reason": "peek", "due_date": time.Now().Add(time.Hour)}},
	}
	for _, req := range requests {
		w := env.Request(req.method, req.path, req.body, bob.AccessToken)
		require.Equal(t, http.StatusNotFound, w.Code, "%s %s: %s", req.method, req.path, w.Body.String())
	}

	w = env.Request(http.MethodGet, "/api/clients/"+secret.ID, nil, alice.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	var still clientPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &still)
	require.Equal(t, "Alice's Client", still.Name)
}

func TestClientHandler_Activities(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.SignupOwner()
	intruder := env.SignupOwner()
	client := createClient(t, env, owner, "Initech")

	w := env.Request(http.MethodPost, "/api/clients/"+client.ID+"/activities", map[string]string{
		"type": "CALL", "content": "Discussed renewal",
	}, owner.AccessToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var activity activityPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &activity)
	require.Equal(t, client.ID, activity.ClientID)

	w = env.Request(http.MethodPost, "/api/clients/"+client.ID+"/activities", map[string]string{
		"type": "FAX", "content": "Nope",
	}, owner.AccessToken)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Request(http.MethodDelete, "/api/activities/"+activity.ID, nil, intruder.AccessToken)
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

	w = env.Request(http.MethodGet, "/api/clients/"+client.ID+"/activities", nil, owner.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, testutil.DecodeResponse(t, w).Meta.Total)

	w = env.Request(http.MethodDelete, "/api/activities/"+activity.ID, nil, owner.AccessToken)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
}

func TestFollowUpHandler_Lifecycle(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.SignupOwner()
	intruder := env.SignupOwner()
	client := createClient(t, env, owner, "Umbrella")

	w := env.Request(http.MethodPost, "/api/followups", map[string]any{
		"client_id": client.ID,
		"reason":    "Send proposal",
		"due_date":  time.Now().Add(48 * time.Hour).UTC(),
	}, owner.AccessToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var followUp followUpPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &followUp)
	require.Equal(t, "OPEN", followUp.Status)

	w = env.Request(http.MethodPost, "/api/followups/"+followUp.ID+"/toggle", nil, owner.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &followUp)
	require.Equal(t, "DONE", followUp.Status)
	require.NotNil(t, followUp.CompletedAt)

	w = env.Request(http.MethodPatch, "/api/followups/"+followUp.ID, map[string]string{"reason": "Send revised proposal"}, owner.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &followUp)
	require.Equal(t, "Send revised proposal", followUp.Reason)

	w = env.Request(http.MethodGet, "/api/followups?client_id="+client.ID, nil, owner.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, testutil.DecodeResponse(t, w).Meta.Total)

	w = env.Request(http.MethodGet, "/api/followups", nil, intruder.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 0, testutil.DecodeResponse(t, w).Meta.Total)

	w = env.Request(http.MethodPost, "/api/followups/"+followUp.ID+"/toggle", nil, intruder.AccessToken)
	require.Equal(t, http.StatusNotFound, w.Code)
	w = env.Request(http.MethodDelete, "/api/followups/"+followUp.ID, nil, intruder.AccessToken)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.Request(http.MethodDelete, "/api/followups/"+followUp.ID, nil, owner.AccessToken)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
}
