package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type projectCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

func (a *App) HandleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Project name is required")
		return
	}
	if req.Status == "" {
		req.Status = ProjectActive
	}
	project := &Project{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		CreatedBy:   currentUser(r).ID,
		CreatedAt:   time.Now().UTC(),
	}
	created, err := a.DB.CreateProject(r.Context(), project)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create project")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *App) HandleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := a.DB.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list projects")
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (a *App) HandleGetProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	project, err := a.DB.GetProjectByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load project")
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (a *App) HandleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var up ProjectUpdate
	if err := json.NewDecoder(r.Body).Decode(&up); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	project, err := a.DB.UpdateProject(r.Context(), id, &up)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update project")
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (a *App) HandleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	project, err := a.DB.DeleteProject(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete project")
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (a *App) HandleArchiveProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	status := ProjectArchived
	project, err := a.DB.UpdateProject(r.Context(), id, &ProjectUpdate{Status: &status})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to archive project")
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

type inviteRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// HandleInviteMember adds a user to a project. The role gate (admin or
// project_manager) has already run by the time this executes; target
// existence is checked independently and reported as 404.
func (a *App) HandleInviteMember(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "user_id is required")
		return
	}
	if req.Role == "" {
		req.Role = MemberRoleMember
	}

	project, err := a.DB.GetProjectByID(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load project")
		return
	}
	target, err := a.DB.GetUserByID(r.Context(), req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load user")
		return
	}
	if project == nil || target == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "user or project not found")
		return
	}

	member := &ProjectMember{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		UserID:    req.UserID,
		Role:      req.Role,
		JoinedAt:  time.Now().UTC(),
	}
	created, err := a.DB.AddProjectMember(r.Context(), member)
	if err != nil {
		if err == ErrDuplicate {
			writeError(w, http.StatusConflict, "MEMBER_EXISTS", "User is already a member of this project")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add member")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *App) HandleGetProjectMembers(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	project, err := a.DB.GetProjectByID(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load project")
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Project not found")
		return
	}
	members, err := a.DB.GetProjectMembers(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list members")
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (a *App) HandleRemoveProjectMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	removed, err := a.DB.RemoveProjectMember(r.Context(), vars["id"], vars["user_id"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to remove member")
		return
	}
	if removed == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Member not found in project")
		return
	}
	writeJSON(w, http.StatusOK, removed)
}

func (a *App) HandleGetAvailableUsers(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	project, err := a.DB.GetProjectByID(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load project")
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Project not found")
		return
	}
	users, err := a.DB.GetAvailableUsers(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *App) HandleGetUserProjects(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	user, err := a.DB.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "User does not exist")
		return
	}
	projects, err := a.DB.GetProjectsForUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list projects")
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (a *App) HandleGetMyProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := a.DB.GetProjectsForUser(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list projects")
		return
	}
	writeJSON(w, http.StatusOK, projects)
}
