package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

func newTestApp() *App {
	return &App{
		DB:          NewMemoryDB(),
		secret:      []byte("test-secret"),
		accessTTL:   2 * time.Hour,
		refreshTTL:  7 * 24 * time.Hour,
		corsOrigins: []string{"*"},
		rateLimiter: NewRateLimiter(),
	}
}

func doJSON(t *testing.T, router *mux.Router, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func registerUser(t *testing.T, router *mux.Router, email string, roles []string) string {
	t.Helper()
	rec := doJSON(t, router, "POST", "/api/v1/auth/register", "", map[string]interface{}{
		"email":      email,
		"password":   "pa55word",
		"first_name": "Test",
		"last_name":  "User",
		"roles":      roles,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody(t, rec)["id"].(string)
}

func signIn(t *testing.T, router *mux.Router, email string) string {
	t.Helper()
	rec := doJSON(t, router, "POST", "/api/v1/auth/signin", "", creds{Email: email, Password: "pa55word"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	require.Equal(t, "bearer", body["token_type"])
	return body["access_token"].(string)
}

func TestRegisterSigninCreateProject(t *testing.T) {
	app := newTestApp()
	router := app.Router()

	aliceID := registerUser(t, router, "alice@example.com", []string{"project_manager"})
	token := signIn(t, router, "alice@example.com")

	rec := doJSON(t, router, "POST", "/api/v1/projects", token, map[string]string{
		"name":        "Apollo",
		"description": "First project",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	project := decodeBody(t, rec)
	require.Equal(t, aliceID, project["created_by"])
	require.Equal(t, ProjectActive, project["status"])
}

func TestListProjectsRequiresAdmin(t *testing.T) {
	app := newTestApp()
	router := app.Router()

	registerUser(t, router, "alice@example.com", []string{"project_manager"})
	token := signIn(t, router, "alice@example.com")

	// project_manager can create but only admin can list everything
	rec := doJSON(t, router, "GET", "/api/v1/projects", token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "FORBIDDEN", decodeBody(t, rec)["error_code"])
}

func TestSigninUniformFailure(t *testing.T) {
	app := newTestApp()
	router := app.Router()

	registerUser(t, router, "alice@example.com", []string{"member"})

	unknown := doJSON(t, router, "POST", "/api/v1/auth/signin", "", creds{Email: "nobody@example.com", Password: "pa55word"})
	wrongPw := doJSON(t, router, "POST", "/api/v1/auth/signin", "", creds{Email: "alice@example.com", Password: "bad"})

	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	require.Equal(t, http.StatusUnauthorized, wrongPw.Code)
	// unknown email and wrong password must be indistinguishable
	require.Equal(t, unknown.Body.String(), wrongPw.Body.String())
}

func TestMissingTokenUnauthorized(t *testing.T) {
	app := newTestApp()
	router := app.Router()

	rec := doJSON(t, router, "GET", "/api/v1/users/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

func TestExpiredTokenUnauthorized(t *testing.T) {
	app := newTestApp()
	router := app.Router()

	id := registerUser(t, router, "alice@example.com", []string{"admin"})
	expired, err := createAccessToken(app.secret, id, []string{"admin"}, -time.Minute)
	require.NoError(t, err)

	// expired beats any role outcome: 401, not 403, even on an admin route
	rec := doJSON(t, router, "GET", "/api/v1/projects", expired, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

func TestWrongKeyTokenUnauthorized(t *testing.T) {
	app := newTestApp()
	router := app.Router()

	id := registerUser(t, router, "alice@example.com", []string{"admin"})
	forged, err := createAccessToken([]byte("some-other-secret"), id, []string{"admin"}, time.Hour)
	require.NoError(t, err)

	rec := doJSON(t, router, "GET", "/api/v1/users/me", forged, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeletedUserTokenUnauthorized(t *testing.T) {
	app := newTestApp()
	router := app.Router()

	id := registerUser(t, router, "alice@example.com", []string{"member"})
	token := signIn(t, router, "alice@example.com")

	_, err := app.DB.DeleteUser(httptest.NewRequest("GET", "/", nil).Context(), id)
	require.NoError(t, err)

	// the subject no longer resolves, so the still-unexpired token is dead
	rec := doJSON(t, router, "GET", "/api/v1/users/me", token, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

func TestAuthorizationUsesLiveRoles(t *testing.T) {
	app := newTestApp()
	router := app.Router()

	id := registerUser(t, router, "alice@example.com", []string{"project_manager"})
	token := signIn(t, router, "alice@example.com")

	// demote alice after the token (with its project_manager snapshot) was issued
	mem := app.DB.(*MemDB)
	mem.mu.Lock()
	mem.users[id].Roles = []string{"member"}
	mem.mu.Unlock()

	rec := doJSON(t, router, "POST", "/api/v1/projects", token, map[string]string{"name": "Apollo"})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRefreshFlow(t *testing.T) {
	app := newTestApp()
	router := app.Router()

	registerUser(t, router, "alice@example.com", []string{"member"})
	rec := doJSON(t, router, "POST", "/api/v1/auth/signin", "", creds{Email: "alice@example.com", Password: "pa55word"})
	require.Equal(t, http.StatusOK, rec.Code)
	refresh := decodeBody(t, rec)["refresh_token"].(string)

	rec = doJSON(t, router, "POST", "/api/v1/auth/refresh", "", map[string]string{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)

	access := body["access_token"].(string)
	me := doJSON(t, router, "GET", "/api/v1/users/me", access, nil)
	require.Equal(t, http.StatusOK, me.Code)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	app := newTestApp()
	router := app.Router()

	registerUser(t, router, "alice@example.com", []string{"member"})
	access := signIn(t, router, "alice@example.com")

	rec := doJSON(t, router, "POST", "/api/v1/auth/refresh", "", map[string]string{"refresh_token": access})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshTokenNotUsableAsBearer(t *testing.T) {
	app := newTestApp()
	router := app.Router()

	registerUser(t, router, "alice@example.com", []string{"member"})
	rec := doJSON(t, router, "POST", "/api/v1/auth/signin", "", creds{Email: "alice@example.com", Password: "pa55word"})
	refresh := decodeBody(t, rec)["refresh_token"].(string)

	me := doJSON(t, router, "GET", "/api/v1/users/me", refresh, nil)
	require.Equal(t, http.StatusUnauthorized, me.Code)
}

func TestDuplicateRegistration(t *testing.T) {
	app := newTestApp()
	router := app.Router()

	registerUser(t, router, "alice@example.com", []string{"member"})
	rec := doJSON(t, router, "POST", "/api/v1/auth/register", "", map[string]interface{}{
		"email":      "alice@example.com",
		"password":   "pa55word",
		"first_name": "Other",
		"last_name":  "Alice",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "USER_EXISTS", decodeBody(t, rec)["error_code"])
}

func TestInviteMember(t *testing.T) {
	app := newTestApp()
	router := app.Router()

	registerUser(t, router, "pm@example.com", []string{"project_manager"})
	bobID := registerUser(t, router, "bob@example.com", []string{"member"})
	pmToken := signIn(t, router, "pm@example.com")
	bobToken := signIn(t, router, "bob@example.com")

	rec := doJSON(t, router, "POST", "/api/v1/projects", pmToken, map[string]string{"name": "Apollo"})
	require.Equal(t, http.StatusCreated, rec.Code)
	projectID := decodeBody(t, rec)["id"].(string)

	// plain member may not invite
	rec = doJSON(t, router, "POST", "/api/v1/projects/"+projectID+"/invite", bobToken, inviteRequest{UserID: bobID})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, "POST", "/api/v1/projects/"+projectID+"/invite", pmToken, inviteRequest{UserID: bobID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	member := decodeBody(t, rec)
	require.Equal(t, bobID, member["user_id"])
	require.Equal(t, MemberRoleMember, member["role"])

	// inviting twice is a conflict
	rec = doJSON(t, router, "POST", "/api/v1/projects/"+projectID+"/invite", pmToken, inviteRequest{UserID: bobID})
	require.Equal(t, http.StatusConflict, rec.Code)

	// a vanished target is 404 even though the role check passed
	rec = doJSON(t, router, "POST", "/api/v1/projects/"+projectID+"/invite", pmToken, inviteRequest{UserID: "00000000-0000-0000-0000-000000000000"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	// bob now sees the project among his own
	rec = doJSON(t, router, "GET", "/api/v1/projects/me", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var projects []Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &projects))
	require.Len(t, projects, 1)
	require.Equal(t, projectID, projects[0].ID)
}

func TestTaskLifecycle(t *testing.T) {
	app := newTestApp()
	router := app.Router()

	pmID := registerUser(t, router, "pm@example.com", []string{"project_manager"})
	bobID := registerUser(t, router, "bob@example.com", []string{"member"})
	pmToken := signIn(t, router, "pm@example.com")
	bobToken := signIn(t, router, "bob@example.com")

	rec := doJSON(t, router, "POST", "/api/v1/projects", pmToken, map[string]string{"name": "Apollo"})
	projectID := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, router, "POST", "/api/v1/tasks", pmToken, map[string]string{
		"title":      "Write the launch checklist",
		"project_id": projectID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	task := decodeBody(t, rec)
	taskID := task["id"].(string)
	require.Equal(t, TaskTodo, task["status"])
	require.Equal(t, PriorityMedium, task["priority"])
	require.Equal(t, pmID, task["created_by"])

	// members cannot create tasks
	rec = doJSON(t, router, "POST", "/api/v1/tasks", bobToken, map[string]string{
		"title": "Nope", "project_id": projectID,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, "PUT", "/api/v1/tasks/"+taskID+"/assign/"+bobID, pmToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, bobID, decodeBody(t, rec)["assigned_to"])

	// partial update touches only the provided fields
	status := TaskInProgress
	rec = doJSON(t, router, "PUT", "/api/v1/tasks/"+taskID, pmToken, TaskUpdate{Status: &status})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeBody(t, rec)
	require.Equal(t, TaskInProgress, updated["status"])
	require.Equal(t, "Write the launch checklist", updated["title"])

	// anyone authenticated can comment
	rec = doJSON(t, router, "POST", "/api/v1/tasks/"+taskID+"/comments", bobToken, commentRequest{Content: "On it"})
	require.Equal(t, http.StatusCreated, rec.Code)
	commentID := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, router, "PUT", "/api/v1/tasks/comments/"+commentID, bobToken, commentRequest{Content: "Done"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Done", decodeBody(t, rec)["content"])

	rec = doJSON(t, router, "GET", "/api/v1/tasks/project/"+projectID, bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
}

func TestProjectNotFound(t *testing.T) {
	app := newTestApp()
	router := app.Router()

	registerUser(t, router, "alice@example.com", []string{"member"})
	token := signIn(t, router, "alice@example.com")

	rec := doJSON(t, router, "GET", "/api/v1/projects/00000000-0000-0000-0000-000000000000", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", decodeBody(t, rec)["error_code"])
}
