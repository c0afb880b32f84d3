package handlers_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/tenantcrm/internal/app"
	"github.com/charlesng35/tenantcrm/internal/handlers/testutil"
)

type forgotResponse struct {
	Message string `json:"message"`
	Debug   *struct {
		Sent   bool   `json:"sent"`
		Reason string `json:"reason"`
	} `json:"debug"`
}

func requestReset(t *testing.T, env *testutil.Env, email string) forgotResponse {
	t.Helper()

	w := env.Request(http.MethodPost, "/api/auth/password/forgot", map[string]string{"email": email}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp forgotResponse
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &resp)
	require.NotEmpty(t, resp.Message)
	return resp
}

func TestPasswordHandler_ForgotDoesNotRevealAccounts(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Signup("known@example.com", "secret1", "Known")

	known := env.Request(http.MethodPost, "/api/auth/password/forgot", map[string]string{"email": "known@example.com"}, "")
	unknown := env.Request(http.MethodPost, "/api/auth/password/forgot", map[string]string{"email": "ghost@example.com"}, "")

	require.Equal(t, http.StatusOK, known.Code)
	require.Equal(t, http.StatusOK, unknown.Code)
	require.JSONEq(t, known.Body.String(), unknown.Body.String())
	require.Len(t, env.Mailer.Messages(), 1)
}

func TestPasswordHandler_ForgotDebugInDevelopment(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithEnvironment(app.EnvDevelopment))
	env.Signup("known@example.com", "secret1", "Known")

	sent := requestReset(t, env, "known@example.com")
	require.NotNil(t, sent.Debug)
	require.True(t, sent.Debug.Sent)
	require.Equal(t, "sent", sent.Debug.Reason)

	missing := requestReset(t, env, "ghost@example.com")
	require.NotNil(t, missing.Debug)
	require.False(t, missing.Debug.Sent)
	require.Equal(t, "user_not_found", missing.Debug.Reason)
}

func TestPasswordHandler_ForgotRateLimitStaysSilent(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithEnvironment(app.EnvDevelopment))
	env.Signup("known@example.com", "secret1", "Known")

	for i := 0; i < 5; i++ {
		require.Equal(t, "sent", requestReset(t, env, "known@example.com").Debug.Reason)
	}
	blocked := requestReset(t, env, "KNOWN@example.com")
	require.Equal(t, "rate_limited", blocked.Debug.Reason)
	require.Len(t, env.Mailer.Messages(), 5)
}

func TestPasswordHandler_ForgotMasksDeliveryFailure(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithEnvironment(app.EnvDevelopment))
	env.Signup("known@example.com", "secret1", "Known")
	env.Mailer.Err = errors.New("smtp down")

	resp := requestReset(t, env, "known@example.com")
	require.Equal(t, "smtp_failed", resp.Debug.Reason)
}

func TestPasswordHandler_ForgotHidesDebugOutsideDevelopment(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := requestReset(t, env, "ghost@example.com")
	require.Nil(t, resp.Debug)
}

func TestPasswordHandler_ResetFlow(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Signup("reset@example.com", "secret1", "Reset Co")

	requestReset(t, env, "reset@example.com")
	token := env.Mailer.LastToken(t)

	body := map[string]string{"token": token, "password": "brand-new-pass", "confirm_password": "brand-new-pass"}
	w := env.Request(http.MethodPost, "/api/auth/password/reset", body, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env.Login("reset@example.com", "brand-new-pass")

	w = env.Request(http.MethodPost, "/api/auth/login", map[string]string{"email": "reset@example.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// A spent token cannot be replayed.
	body["password"], body["confirm_password"] = "another-pass", "another-pass"
	w = env.Request(http.MethodPost, "/api/auth/password/reset", body, "")
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.Equal(t, "TOKEN_INVALID", testutil.DecodeResponse(t, w).Error.Code)
}

func TestPasswordHandler_NewerRequestInvalidatesOlderToken(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Signup("reset@example.com", "secret1", "Reset Co")

	requestReset(t, env, "reset@example.com")
	first := env.Mailer.LastToken(t)
	requestReset(t, env, "reset@example.com")
	second := env.Mailer.LastToken(t)
	require.NotEqual(t, first, second)

	w := env.Request(http.MethodPost, "/api/auth/password/reset", map[string]string{
		"token": first, "password": "brand-new-pass", "confirm_password": "brand-new-pass",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Request(http.MethodPost, "/api/auth/password/reset", map[string]string{
		"token": second, "password": "brand-new-pass", "confirm_password": "brand-new-pass",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestPasswordHandler_ResetValidation(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/auth/password/reset", map[string]string{
		"token": "whatever", "password": "short", "confirm_password": "short",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, testutil.DecodeResponse(t, w).Error.Fields, "password")

	w = env.Request(http.MethodPost, "/api/auth/password/reset", map[string]string{
		"token": "whatever", "password": "long-enough", "confirm_password": "different",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, testutil.DecodeResponse(t, w).Error.Fields, "confirm_password")

	w = env.Request(http.MethodPost, "/api/auth/password/reset", map[string]string{
		"token": "unknown-token", "password": "long-enough", "confirm_password": "long-enough",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "TOKEN_INVALID", testutil.DecodeResponse(t, w).Error.Code)
}

func TestPasswordHandler_Change(t *testing.T) {
	env := testutil.NewEnv(t)
	session := env.Signup("change@example.com", "secret1", "Change Co")

	w := env.Request(http.MethodPost, "/api/auth/password/change", map[string]string{
		"current_password": "wrong-one", "new_password": "brand-new-pass", "confirm_password": "brand-new-pass",
	}, session.AccessToken)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.Contains(t, testutil.DecodeResponse(t, w).Error.Fields, "current_password")

	w = env.Request(http.MethodPost, "/api/auth/password/change", map[string]string{
		"current_password": "secret1", "new_password": "brand-new-pass", "confirm_password": "brand-new-pass",
	}, session.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env.Login("change@example.com", "brand-new-pass")
}

func TestPasswordHandler_ChangeRequiresAuth(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/auth/password/change", map[string]string{
		"current_password": "secret1", "new_password": "brand-new-pass", "confirm_password": "brand-new-pass",
	}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPasswordHandler_ChangeIsRateLimited(t *testing.T) {
	env := testutil.NewEnv(t)
	session := env.Signup("change@example.com", "secret1", "Change Co")

	body := map[string]string{
		"current_password": "wrong-one", "new_password": "brand-new-pass", "confirm_password": "brand-new-pass",
	}
	for i := 0; i < 5; i++ {
		w := env.Request(http.MethodPost, "/api/auth/password/change", body, session.AccessToken)
		require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	}

	// Even the right password is refused once the window is exhausted.
	body["current_password"] = "secret1"
	w := env.Request(http.MethodPost, "/api/auth/password/change", body, session.AccessToken)
	require.Equal(t, http.StatusTooManyRequests, w.Code, w.Body.String())
	require.Equal(t, "RATE_LIMITED", testutil.DecodeResponse(t, w).Error.Code)
}
