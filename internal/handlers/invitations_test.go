package handlers_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/tenantcrm/internal/handlers/testutil"
	"github.com/charlesng35/tenantcrm/internal/models"
)

type generatedInvitation struct {
	ID   string `json:"id"`
	Link string `json:"link"`
	Role string `json:"role"`
}

type invitationCheck struct {
	Outcome       string `json:"outcome"`
	WorkspaceID   string `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`
	Role          string `json:"role"`
}

type acceptResult struct {
	WorkspaceID   string `json:"workspace_id"`
	AlreadyMember bool   `json:"already_member"`
}

func createInvitation(t *testing.T, env *testutil.Env, owner testutil.Session, body any) (generatedInvitation, string) {
	t.Helper()

	w := env.Request(http.MethodPost, "/api/workspace/invitations", body, owner.AccessToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var generated generatedInvitation
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &generated)

	link, err := url.Parse(generated.Link)
	require.NoError(t, err)
	require.Equal(t, "/accept-invite", link.Path)
	token := link.Query().Get("token")
	require.NotEmpty(t, token)
	return generated, token
}

func validateInvitation(t *testing.T, env *testutil.Env, token string) invitationCheck {
	t.Helper()

	w := env.Request(http.MethodGet, "/api/invitations/"+url.PathEscape(token), nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var check invitationCheck
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &check)
	return check
}

func TestInvitationHandler_GenerateAndValidate(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.Signup("owner@example.com", "secret1", "Acme")

	generated, token := createInvitation(t, env, owner, nil)
	require.Equal(t, string(models.RoleMember), generated.Role)
	require.Contains(t, generated.Link, testutil.BaseURL)

	check := validateInvitation(t, env, token)
	require.Equal(t, "VALID", check.Outcome)
	require.Equal(t, owner.Workspace.ID, check.WorkspaceID)
	require.Equal(t, "Acme", check.WorkspaceName)

	unknown := validateInvitation(t, env, "not-a-real-token")
	require.Equal(t, "INVALID", unknown.Outcome)
	require.Empty(t, unknown.WorkspaceID)
}

func TestInvitationHandler_SignupWithInviteJoinsWorkspace(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.SignupOwner()
	_, token := createInvitation(t, env, owner, map[string]string{"role": "MEMBER"})

	w := env.Request(http.MethodPost, "/api/auth/signup", map[string]string{
		"email":            "invitee@example.com",
		"password":         "secret1",
		"confirm_password": "secret1",
		"invite_token":     token,
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var session testutil.Session
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &session)
	require.NotNil(t, session.Workspace)
	require.Equal(t, owner.Workspace.ID, session.Workspace.ID)
	require.Equal(t, string(models.RoleMember), session.Workspace.Role)

	var owned int64
	require.NoError(t, env.DB.Model(&models.Workspace{}).Count(&owned).Error)
	require.EqualValues(t, 1, owned)

	require.Equal(t, "USED", validateInvitation(t, env, token).Outcome)
}

func TestInvitationHandler_SignupWithBadInviteCreatesNothing(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/auth/signup", map[string]string{
		"email":            "invitee@example.com",
		"password":         "secret1",
		"confirm_password": "secret1",
		"invite_token":     "bogus",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.Equal(t, "INVITATION_INVALID", testutil.DecodeResponse(t, w).Error.Code)

	var users int64
	require.NoError(t, env.DB.Model(&models.User{}).Count(&users).Error)
	require.Zero(t, users)
}

func TestInvitationHandler_AcceptByExistingUser(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.SignupOwner()
	other := env.SignupOwner()
	_, token := createInvitation(t, env, owner, nil)

	w := env.Request(http.MethodPost, "/api/invitations/"+token+"/accept", nil, other.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result acceptResult
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &result)
	require.Equal(t, owner.Workspace.ID, result.WorkspaceID)
	require.False(t, result.AlreadyMember)

	cookie := testutil.PreferenceCookie(w)
	require.NotNil(t, cookie)

	w = env.Request(http.MethodGet, "/api/workspace", nil, other.AccessToken, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var current testutil.WorkspacePayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &current)
	require.Equal(t, owner.Workspace.ID, current.ID)
	require.Equal(t, string(models.RoleMember), current.Role)

	// Accepting again as the same user is harmless.
	w = env.Request(http.MethodPost, "/api/invitations/"+token+"/accept", nil, other.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &result)
	require.True(t, result.AlreadyMember)

	// Anybody else finds it spent.
	third := env.SignupOwner()
	w = env.Request(http.MethodPost, "/api/invitations/"+token+"/accept", nil, third.AccessToken)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.Equal(t, "INVITATION_USED", testutil.DecodeResponse(t, w).Error.Code)
}

func TestInvitationHandler_AcceptRequiresAuth(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.SignupOwner()
	_, token := createInvitation(t, env, owner, nil)

	w := env.Request(http.MethodPost, "/api/invitations/"+token+"/accept", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "VALID", validateInvitation(t, env, token).Outcome)
}

func TestInvitationHandler_Revoke(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.SignupOwner()
	generated, token := createInvitation(t, env, owner, nil)

	w := env.Request(http.MethodDelete, "/api/workspace/invitations/"+generated.ID, nil, owner.AccessToken)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	require.Equal(t, "REVOKED", validateInvitation(t, env, token).Outcome)

	other := env.SignupOwner()
	w = env.Request(http.MethodPost, "/api/invitations/"+token+"/accept", nil, other.AccessToken)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "INVITATION_REVOKED", testutil.DecodeResponse(t, w).Error.Code)

	w = env.Request(http.MethodGet, "/api/workspace/invitations", nil, owner.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	require.Equal(t, 1, resp.Meta.Total)
}

func TestInvitationHandler_RevokeOtherWorkspace(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.SignupOwner()
	intruder := env.SignupOwner()
	generated, token := createInvitation(t, env, owner, nil)

	w := env.Request(http.MethodDelete, "/api/workspace/invitations/"+generated.ID, nil, intruder.AccessToken)
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	require.Equal(t, "VALID", validateInvitation(t, env, token).Outcome)
}

func TestInvitationHandler_MembersCannotManageInvitations(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.SignupOwner()
	_, token := createInvitation(t, env, owner, nil)

	w := env.Request(http.MethodPost, "/api/auth/signup", map[string]string{
		"email":            "member@example.com",
		"password":         "secret1",
		"confirm_password": "secret1",
		"invite_token":     token,
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var member testutil.Session
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &member)

	w = env.Request(http.MethodPost, "/api/workspace/invitations", nil, member.AccessToken)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	w = env.Request(http.MethodGet, "/api/workspace/invitations", nil, member.AccessToken)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
}

func TestInvitationHandler_CreateRejectsUnknownRole(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.SignupOwner()

	w := env.Request(http.MethodPost, "/api/workspace/invitations", map[string]string{"role": "ADMIN"}, owner.AccessToken)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.Contains(t, testutil.DecodeResponse(t, w).Error.Fields, "role")
}
