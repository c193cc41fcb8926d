package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// ErrDuplicate is returned when a unique constraint (user email, project
// membership) is violated.
var ErrDuplicate = errors.New("already exists")

// DB is the storage interface. Lookups return (nil, nil) when the record is
// absent; callers translate that into NOT_FOUND or UNAUTHORIZED as
// appropriate.
type DB interface {
	Init() error

	// User operations
	CreateUser(ctx context.Context, u *User) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	UpdateUser(ctx context.Context, id string, up *UserUpdate) (*User, error)
	DeleteUser(ctx context.Context, id string) (*User, error)

	// Project operations
	CreateProject(ctx context.Context, p *Project) (*Project, error)
	GetProjectByID(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	UpdateProject(ctx context.Context, id string, up *ProjectUpdate) (*Project, error)
	DeleteProject(ctx context.Context, id string) (*Project, error)

	// Membership operations
	AddProjectMember(ctx context.Context, m *ProjectMember) (*ProjectMember, error)
	RemoveProjectMember(ctx context.Context, projectID, userID string) (*ProjectMember, error)
	GetProjectMembers(ctx context.Context, projectID string) ([]*User, error)
	GetProjectsForUser(ctx context.Context, userID string) ([]*Project, error)
	GetAvailableUsers(ctx context.Context, projectID string) ([]*User, error)

	// Task operations
	CreateTask(ctx context.Context, t *Task) (*Task, error)
	GetTaskByID(ctx context.Context, id string) (*Task, error)
	GetTasksByProject(ctx context.Context, projectID string) ([]*Task, error)
	UpdateTask(ctx context.Context, id string, up *TaskUpdate) (*Task, error)
	DeleteTask(ctx context.Context, id string) (*Task, error)
	AssignTask(ctx context.Context, taskID, userID string) (*Task, error)

	// Comment operations
	CreateComment(ctx context.Context, c *TaskComment) (*TaskComment, error)
	GetCommentsByTask(ctx context.Context, taskID string) ([]*TaskComment, error)
	UpdateComment(ctx context.Context, id, content string) (*TaskComment, error)
}

// Memory DB, used by tests and the "memory" adapter.
type MemDB struct {
	mu       sync.RWMutex
	users    map[string]*User
	projects map[string]*Project
	members  map[string]*ProjectMember
	tasks    map[string]*Task
	comments map[string]*TaskComment
}

func NewMemoryDB() *MemDB {
	return &MemDB{
		users:    map[string]*User{},
		projects: map[string]*Project{},
		members:  map[string]*ProjectMember{},
		tasks:    map[string]*Task{},
		comments: map[string]*TaskComment{},
	}
}

func (m *MemDB) Init() error { return nil }

func (m *MemDB) CreateUser(ctx context.Context, u *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return nil, ErrDuplicate
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return &cp, nil
}

func (m *MemDB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemDB) GetUserByID(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *MemDB) ListUsers(ctx context.Context) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*User{}
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemDB) UpdateUser(ctx context.Context, id string, up *UserUpdate) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	up.Apply(u)
	cp := *u
	return &cp, nil
}

func (m *MemDB) DeleteUser(ctx context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	delete(m.users, id)
	return u, nil
}

func (m *MemDB) CreateProject(ctx context.Context, p *Project) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.projects[p.ID] = &cp
	return &cp, nil
}

func (m *MemDB) GetProjectByID(ctx context.Context, id string) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.projects[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *MemDB) ListProjects(ctx context.Context) ([]*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*Project{}
	for _, p := range m.projects {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemDB) UpdateProject(ctx context.Context, id string, up *ProjectUpdate) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	up.Apply(p)
	now := time.Now().UTC()
	p.UpdatedAt = &now
	cp := *p
	return &cp, nil
}

func (m *MemDB) DeleteProject(ctx context.Context, id string) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	delete(m.projects, id)
	for mid, mem := range m.members {
		if mem.ProjectID == id {
			delete(m.members, mid)
		}
	}
	return p, nil
}

func (m *MemDB) AddProjectMember(ctx context.Context, pm *ProjectMember) (*ProjectMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range m.members {
		if mem.ProjectID == pm.ProjectID && mem.UserID == pm.UserID {
			return nil, ErrDuplicate
		}
	}
	cp := *pm
	m.members[pm.ID] = &cp
	return &cp, nil
}

func (m *MemDB) RemoveProjectMember(ctx context.Context, projectID, userID string) (*ProjectMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, mem := range m.members {
		if mem.ProjectID == projectID && mem.UserID == userID {
			delete(m.members, id)
			return mem, nil
		}
	}
	return nil, nil
}

func (m *MemDB) GetProjectMembers(ctx context.Context, projectID string) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*User{}
	for _, mem := range m.members {
		if mem.ProjectID == projectID {
			if u, ok := m.users[mem.UserID]; ok {
				cp := *u
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (m *MemDB) GetProjectsForUser(ctx context.Context, userID string) ([]*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*Project{}
	for _, mem := range m.members {
		if mem.UserID == userID {
			if p, ok := m.projects[mem.ProjectID]; ok {
				cp := *p
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (m *MemDB) GetAvailableUsers(ctx context.Context, projectID string) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inProject := map[string]bool{}
	for _, mem := range m.members {
		if mem.ProjectID == projectID {
			inProject[mem.UserID] = true
		}
	}
	out := []*User{}
	for id, u := range m.users {
		if !inProject[id] {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemDB) CreateTask(ctx context.Context, t *Task) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	return &cp, nil
}

func (m *MemDB) GetTaskByID(ctx context.Context, id string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.tasks[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (m *MemDB) GetTasksByProject(ctx context.Context, projectID string) ([]*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*Task{}
	for _, t := range m.tasks {
		if t.ProjectID == projectID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemDB) UpdateTask(ctx context.Context, id string, up *TaskUpdate) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, nil
	}
	up.Apply(t)
	now := time.Now().UTC()
	t.UpdatedAt = &now
	cp := *t
	return &cp, nil
}

func (m *MemDB) DeleteTask(ctx context.Context, id string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, nil
	}
	delete(m.tasks, id)
	return t, nil
}

func (m *MemDB) AssignTask(ctx context.Context, taskID, userID string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return nil, nil
	}
	t.AssignedTo = &userID
	now := time.Now().UTC()
	t.UpdatedAt = &now
	cp := *t
	return &cp, nil
}

func (m *MemDB) CreateComment(ctx context.Context, c *TaskComment) (*TaskComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.comments[c.ID] = &cp
	return &cp, nil
}

func (m *MemDB) GetCommentsByTask(ctx context.Context, taskID string) ([]*TaskComment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*TaskComment{}
	for _, c := range m.comments {
		if c.TaskID == taskID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemDB) UpdateComment(ctx context.Context, id, content string) (*TaskComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, nil
	}
	c.Content = content
	now := time.Now().UTC()
	c.UpdatedAt = &now
	cp := *c
	return &cp, nil
}

// lifecycle helpers
func (m *MemDB) close() error { return nil }
func (m *MemDB) ping() bool   { return true }

// SQLite DB. Roles are stored as a JSON array, timestamps as RFC 3339 text.
type SQLiteDB struct {
	db   *sql.DB
	path string
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteDB{db: d, path: path}
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteDB) Init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (id TEXT PRIMARY KEY, email TEXT UNIQUE NOT NULL, password TEXT NOT NULL, first_name TEXT NOT NULL, last_name TEXT NOT NULL, middle_name TEXT, gender TEXT, avatar_url TEXT, roles TEXT NOT NULL, created_at TEXT NOT NULL);`,
		`CREATE TABLE IF NOT EXISTS projects (id TEXT PRIMARY KEY, name TEXT NOT NULL, description TEXT NOT NULL, status TEXT NOT NULL DEFAULT 'active', created_by TEXT NOT NULL, created_at TEXT NOT NULL, updated_at TEXT);`,
		`CREATE TABLE IF NOT EXISTS project_members (id TEXT PRIMARY KEY, project_id TEXT NOT NULL, user_id TEXT NOT NULL, role TEXT NOT NULL DEFAULT 'member', joined_at TEXT NOT NULL, UNIQUE(project_id, user_id));`,
		`CREATE TABLE IF NOT EXISTS tasks (id TEXT PRIMARY KEY, title TEXT NOT NULL, description TEXT NOT NULL, status TEXT NOT NULL DEFAULT 'todo', priority TEXT NOT NULL DEFAULT 'medium', project_id TEXT NOT NULL, created_by TEXT NOT NULL, assigned_to TEXT, due_date TEXT, created_at TEXT NOT NULL, updated_at TEXT);`,
		`CREATE TABLE IF NOT EXISTS task_comments (id TEXT PRIMARY KEY, content TEXT NOT NULL, task_id TEXT NOT NULL, user_id TEXT NOT NULL, created_at TEXT NOT NULL, updated_at TEXT);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func encodeRoles(roles []string) string {
	b, _ := json.Marshal(roles)
	return string(b)
}

func decodeRoles(s string) []string {
	var roles []string
	if err := json.Unmarshal([]byte(s), &roles); err != nil {
		return nil
	}
	return roles
}

func encodeTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func decodeTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func encodeTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: encodeTime(*t), Valid: true}
}

func decodeTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := decodeTime(s.String)
	return &t
}

func (s *SQLiteDB) CreateUser(ctx context.Context, u *User) (*User, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id,email,password,first_name,last_name,middle_name,gender,avatar_url,roles,created_at) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		u.ID, u.Email, u.Password, u.FirstName, u.LastName, u.MiddleName, u.Gender, u.AvatarURL, encodeRoles(u.Roles), encodeTime(u.CreatedAt))
	if err != nil {
		if existing, _ := s.GetUserByEmail(ctx, u.Email); existing != nil {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return u, nil
}

func (s *SQLiteDB) scanUser(row *sql.Row) (*User, error) {
	var u User
	var roles, created string
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FirstName, &u.LastName, &u.MiddleName, &u.Gender, &u.AvatarURL, &roles, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	u.Roles = decodeRoles(roles)
	u.CreatedAt = decodeTime(created)
	return &u, nil
}

const sqliteUserCols = `id,email,password,first_name,last_name,middle_name,gender,avatar_url,roles,created_at`

func (s *SQLiteDB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `SELECT `+sqliteUserCols+` FROM users WHERE email = ?`, email))
}

func (s *SQLiteDB) GetUserByID(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `SELECT `+sqliteUserCols+` FROM users WHERE id = ?`, id))
}

func (s *SQLiteDB) listUsers(ctx context.Context, query string, args ...interface{}) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*User{}
	for rows.Next() {
		var u User
		var roles, created string
		if err := rows.Scan(&u.ID, &u.Email, &u.Password, &u.FirstName, &u.LastName, &u.MiddleName, &u.Gender, &u.AvatarURL, &roles, &created); err != nil {
			return nil, err
		}
		u.Roles = decodeRoles(roles)
		u.CreatedAt = decodeTime(created)
		out = append(out, &u)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) ListUsers(ctx context.Context) ([]*User, error) {
	return s.listUsers(ctx, `SELECT `+sqliteUserCols+` FROM users`)
}

func (s *SQLiteDB) UpdateUser(ctx context.Context, id string, up *UserUpdate) (*User, error) {
	u, err := s.GetUserByID(ctx, id)
	if err != nil || u == nil {
		return nil, err
	}
	up.Apply(u)
	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET first_name=?,last_name=?,middle_name=?,gender=?,avatar_url=? WHERE id=?`,
		u.FirstName, u.LastName, u.MiddleName, u.Gender, u.AvatarURL, id)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *SQLiteDB) DeleteUser(ctx context.Context, id string) (*User, error) {
	u, err := s.GetUserByID(ctx, id)
	if err != nil || u == nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id); err != nil {
		return nil, err
	}
	return u, nil
}

const sqliteProjectCols = `id,name,description,status,created_by,created_at,updated_at`

func (s *SQLiteDB) CreateProject(ctx context.Context, p *Project) (*Project, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects(id,name,description,status,created_by,created_at) VALUES(?,?,?,?,?,?)`,
		p.ID, p.Name, p.Description, p.Status, p.CreatedBy, encodeTime(p.CreatedAt))
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteDB) scanProject(row *sql.Row) (*Project, error) {
	var p Project
	var created string
	var updated sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &p.CreatedBy, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	p.CreatedAt = decodeTime(created)
	p.UpdatedAt = decodeTimePtr(updated)
	return &p, nil
}

func (s *SQLiteDB) GetProjectByID(ctx context.Context, id string) (*Project, error) {
	return s.scanProject(s.db.QueryRowContext(ctx, `SELECT `+sqliteProjectCols+` FROM projects WHERE id = ?`, id))
}

func (s *SQLiteDB) listProjects(ctx context.Context, query string, args ...interface{}) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*Project{}
	for rows.Next() {
		var p Project
		var created string
		var updated sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &p.CreatedBy, &created, &updated); err != nil {
			return nil, err
		}
		p.CreatedAt = decodeTime(created)
		p.UpdatedAt = decodeTimePtr(updated)
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) ListProjects(ctx context.Context) ([]*Project, error) {
	return s.listProjects(ctx, `SELECT `+sqliteProjectCols+` FROM projects`)
}

func (s *SQLiteDB) UpdateProject(ctx context.Context, id string, up *ProjectUpdate) (*Project, error) {
	p, err := s.GetProjectByID(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	up.Apply(p)
	now := time.Now().UTC()
	p.UpdatedAt = &now
	_, err = s.db.ExecContext(ctx,
		`UPDATE projects SET name=?,description=?,status=?,updated_at=? WHERE id=?`,
		p.Name, p.Description, p.Status, encodeTime(now), id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteDB) DeleteProject(ctx context.Context, id string) (*Project, error) {
	p, err := s.GetProjectByID(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM project_members WHERE project_id=?`, id); err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteDB) AddProjectMember(ctx context.Context, pm *ProjectMember) (*ProjectMember, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO project_members(id,project_id,user_id,role,joined_at) VALUES(?,?,?,?,?)`,
		pm.ID, pm.ProjectID, pm.UserID, pm.Role, encodeTime(pm.JoinedAt))
	if err != nil {
		var n int
		row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM project_members WHERE project_id=? AND user_id=?`, pm.ProjectID, pm.UserID)
		if scanErr := row.Scan(&n); scanErr == nil && n > 0 {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return pm, nil
}

func (s *SQLiteDB) RemoveProjectMember(ctx context.Context, projectID, userID string) (*ProjectMember, error) {
	var pm ProjectMember
	var joined string
	row := s.db.QueryRowContext(ctx, `SELECT id,project_id,user_id,role,joined_at FROM project_members WHERE project_id=? AND user_id=?`, projectID, userID)
	if err := row.Scan(&pm.ID, &pm.ProjectID, &pm.UserID, &pm.Role, &joined); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	pm.JoinedAt = decodeTime(joined)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM project_members WHERE id=?`, pm.ID); err != nil {
		return nil, err
	}
	return &pm, nil
}

func (s *SQLiteDB) GetProjectMembers(ctx context.Context, projectID string) ([]*User, error) {
	return s.listUsers(ctx, `SELECT u.id,u.email,u.password,u.first_name,u.last_name,u.middle_name,u.gender,u.avatar_url,u.roles,u.created_at
		FROM users u JOIN project_members pm ON pm.user_id = u.id WHERE pm.project_id = ?`, projectID)
}

func (s *SQLiteDB) GetProjectsForUser(ctx context.Context, userID string) ([]*Project, error) {
	return s.listProjects(ctx, `SELECT p.id,p.name,p.description,p.status,p.created_by,p.created_at,p.updated_at
		FROM projects p JOIN project_members pm ON pm.project_id = p.id WHERE pm.user_id = ?`, userID)
}

func (s *SQLiteDB) GetAvailableUsers(ctx context.Context, projectID string) ([]*User, error) {
	return s.listUsers(ctx, `SELECT `+sqliteUserCols+` FROM users
		WHERE id NOT IN (SELECT user_id FROM project_members WHERE project_id = ?)`, projectID)
}

const sqliteTaskCols = `id,title,description,status,priority,project_id,created_by,assigned_to,due_date,created_at,updated_at`

func (s *SQLiteDB) CreateTask(ctx context.Context, t *Task) (*Task, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks(id,title,description,status,priority,project_id,created_by,assigned_to,due_date,created_at) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, t.Description, t.Status, t.Priority, t.ProjectID, t.CreatedBy, t.AssignedTo, encodeTimePtr(t.DueDate), encodeTime(t.CreatedAt))
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLiteDB) scanTask(row *sql.Row) (*Task, error) {
	var t Task
	var created string
	var due, updated sql.NullString
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.ProjectID, &t.CreatedBy, &t.AssignedTo, &due, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	t.DueDate = decodeTimePtr(due)
	t.CreatedAt = decodeTime(created)
	t.UpdatedAt = decodeTimePtr(updated)
	return &t, nil
}

func (s *SQLiteDB) GetTaskByID(ctx context.Context, id string) (*Task, error) {
	return s.scanTask(s.db.QueryRowContext(ctx, `SELECT `+sqliteTaskCols+` FROM tasks WHERE id = ?`, id))
}

func (s *SQLiteDB) GetTasksByProject(ctx context.Context, projectID string) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteTaskCols+` FROM tasks WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*Task{}
	for rows.Next() {
		var t Task
		var created string
		var due, updated sql.NullString
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.ProjectID, &t.CreatedBy, &t.AssignedTo, &due, &created, &updated); err != nil {
			return nil, err
		}
		t.DueDate = decodeTimePtr(due)
		t.CreatedAt = decodeTime(created)
		t.UpdatedAt = decodeTimePtr(updated)
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) UpdateTask(ctx context.Context, id string, up *TaskUpdate) (*Task, error) {
	t, err := s.GetTaskByID(ctx, id)
	if err != nil || t == nil {
		return nil, err
	}
	up.Apply(t)
	now := time.Now().UTC()
	t.UpdatedAt = &now
	_, err = s.db.ExecContext(ctx,
		`UPDATE tasks SET title=?,description=?,status=?,priority=?,due_date=?,updated_at=? WHERE id=?`,
		t.Title, t.Description, t.Status, t.Priority, encodeTimePtr(t.DueDate), encodeTime(now), id)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLiteDB) DeleteTask(ctx context.Context, id string) (*Task, error) {
	t, err := s.GetTaskByID(ctx, id)
	if err != nil || t == nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLiteDB) AssignTask(ctx context.Context, taskID, userID string) (*Task, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET assigned_to=?,updated_at=? WHERE id=?`, userID, encodeTime(now), taskID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetTaskByID(ctx, taskID)
}

func (s *SQLiteDB) CreateComment(ctx context.Context, c *TaskComment) (*TaskComment, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_comments(id,content,task_id,user_id,created_at) VALUES(?,?,?,?,?)`,
		c.ID, c.Content, c.TaskID, c.UserID, encodeTime(c.CreatedAt))
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *SQLiteDB) GetCommentsByTask(ctx context.Context, taskID string) ([]*TaskComment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,content,task_id,user_id,created_at,updated_at FROM task_comments WHERE task_id = ?`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*TaskComment{}
	for rows.Next() {
		var c TaskComment
		var created string
		var updated sql.NullString
		if err := rows.Scan(&c.ID, &c.Content, &c.TaskID, &c.UserID, &created, &updated); err != nil {
			return nil, err
		}
		c.CreatedAt = decodeTime(created)
		c.UpdatedAt = decodeTimePtr(updated)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) UpdateComment(ctx context.Context, id, content string) (*TaskComment, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `UPDATE task_comments SET content=?,updated_at=? WHERE id=?`, content, encodeTime(now), id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	var c TaskComment
	var created string
	var updated sql.NullString
	row := s.db.QueryRowContext(ctx, `SELECT id,content,task_id,user_id,created_at,updated_at FROM task_comments WHERE id = ?`, id)
	if err := row.Scan(&c.ID, &c.Content, &c.TaskID, &c.UserID, &created, &updated); err != nil {
		return nil, err
	}
	c.CreatedAt = decodeTime(created)
	c.UpdatedAt = decodeTimePtr(updated)
	return &c, nil
}

func (s *SQLiteDB) close() error { return s.db.Close() }
func (s *SQLiteDB) ping() bool   { return s.db.Ping() == nil }
