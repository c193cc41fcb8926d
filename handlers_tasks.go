package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type taskCreateRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	ProjectID   string     `json:"project_id"`
	AssignedTo  *string    `json:"assigned_to"`
	DueDate     *time.Time `json:"due_date"`
}

func (a *App) HandleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.Title == "" || req.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Title and project_id are required")
		return
	}
	if req.Status == "" {
		req.Status = TaskTodo
	}
	if req.Priority == "" {
		req.Priority = PriorityMedium
	}

	project, err := a.DB.GetProjectByID(r.Context(), req.ProjectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load project")
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "user or project not found")
		return
	}
	if req.AssignedTo != nil {
		assignee, err := a.DB.GetUserByID(r.Context(), *req.AssignedTo)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load user")
			return
		}
		if assignee == nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "user or project not found")
			return
		}
	}

	task := &Task{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		ProjectID:   req.ProjectID,
		CreatedBy:   currentUser(r).ID,
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate,
		CreatedAt:   time.Now().UTC(),
	}
	created, err := a.DB.CreateTask(r.Context(), task)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create task")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *App) HandleGetProjectTasks(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["project_id"]
	project, err := a.DB.GetProjectByID(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load project")
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Project does not exist")
		return
	}
	tasks, err := a.DB.GetTasksByProject(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list tasks")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (a *App) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	task, err := a.DB.GetTaskByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load task")
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Task does not exist")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (a *App) HandleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var up TaskUpdate
	if err := json.NewDecoder(r.Body).Decode(&up); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	task, err := a.DB.UpdateTask(r.Context(), id, &up)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update task")
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Task does not exist")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (a *App) HandleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	task, err := a.DB.DeleteTask(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete task")
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Task does not exist")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (a *App) HandleAssignTask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	assignee, err := a.DB.GetUserByID(r.Context(), vars["user_id"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load user")
		return
	}
	if assignee == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Task or User does not exist.")
		return
	}
	task, err := a.DB.AssignTask(r.Context(), vars["id"], vars["user_id"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to assign task")
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Task or User does not exist.")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type commentRequest struct {
	Content string `json:"content"`
}

func (a *App) HandleCreateComment(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["id"]
	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Content is required")
		return
	}
	task, err := a.DB.GetTaskByID(r.Context(), taskID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load task")
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "task or user does not exist.")
		return
	}
	comment := &TaskComment{
		ID:        uuid.NewString(),
		Content:   req.Content,
		TaskID:    taskID,
		UserID:    currentUser(r).ID,
		CreatedAt: time.Now().UTC(),
	}
	created, err := a.DB.CreateComment(r.Context(), comment)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create comment")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *App) HandleGetTaskComments(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["id"]
	task, err := a.DB.GetTaskByID(r.Context(), taskID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load task")
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "task does not exist")
		return
	}
	comments, err := a.DB.GetCommentsByTask(r.Context(), taskID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list comments")
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (a *App) HandleUpdateComment(w http.ResponseWriter, r *http.Request) {
	commentID := mux.Vars(r)["comment_id"]
	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Content is required")
		return
	}
	comment, err := a.DB.UpdateComment(r.Context(), commentID, req.Content)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update comment")
		return
	}
	if comment == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "comment does not exist")
		return
	}
	writeJSON(w, http.StatusOK, comment)
}
