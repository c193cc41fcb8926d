package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
)

type PostgresDB struct {
	db  *sql.DB
	dsn string
}

func NewPostgresDB(dsn string) (*PostgresDB, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	p := &PostgresDB{db: d, dsn: dsn}
	if err := p.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresDB) Init() error {
	// rely on migrations to create tables; just verify connectivity
	if err := p.db.Ping(); err != nil {
		return err
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

const pgUserCols = `id,email,password,first_name,last_name,middle_name,gender,avatar_url,roles,created_at`

func (p *PostgresDB) CreateUser(ctx context.Context, u *User) (*User, error) {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO users(id,email,password,first_name,last_name,middle_name,gender,avatar_url,roles,created_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		u.ID, u.Email, u.Password, u.FirstName, u.LastName, u.MiddleName, u.Gender, u.AvatarURL, pq.Array(u.Roles), u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return u, nil
}

func (p *PostgresDB) scanUser(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FirstName, &u.LastName, &u.MiddleName, &u.Gender, &u.AvatarURL, pq.Array(&u.Roles), &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (p *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx, `SELECT `+pgUserCols+` FROM users WHERE email = $1`, email))
}

func (p *PostgresDB) GetUserByID(ctx context.Context, id string) (*User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx, `SELECT `+pgUserCols+` FROM users WHERE id = $1`, id))
}

func (p *PostgresDB) listUsers(ctx context.Context, query string, args ...interface{}) ([]*User, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Password, &u.FirstName, &u.LastName, &u.MiddleName, &u.Gender, &u.AvatarURL, pq.Array(&u.Roles), &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

func (p *PostgresDB) ListUsers(ctx context.Context) ([]*User, error) {
	return p.listUsers(ctx, `SELECT `+pgUserCols+` FROM users ORDER BY created_at`)
}

func (p *PostgresDB) UpdateUser(ctx context.Context, id string, up *UserUpdate) (*User, error) {
	u, err := p.GetUserByID(ctx, id)
	if err != nil || u == nil {
		return nil, err
	}
	up.Apply(u)
	_, err = p.db.ExecContext(ctx,
		`UPDATE users SET first_name=$1,last_name=$2,middle_name=$3,gender=$4,avatar_url=$5 WHERE id=$6`,
		u.FirstName, u.LastName, u.MiddleName, u.Gender, u.AvatarURL, id)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (p *PostgresDB) DeleteUser(ctx context.Context, id string) (*User, error) {
	u, err := p.GetUserByID(ctx, id)
	if err != nil || u == nil {
		return nil, err
	}
	if _, err := p.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return u, nil
}

const pgProjectCols = `id,name,description,status,created_by,created_at,updated_at`

func (p *PostgresDB) CreateProject(ctx context.Context, pr *Project) (*Project, error) {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO projects(id,name,description,status,created_by,created_at) VALUES($1,$2,$3,$4,$5,$6)`,
		pr.ID, pr.Name, pr.Description, pr.Status, pr.CreatedBy, pr.CreatedAt)
	if err != nil {
		return nil, err
	}
	return pr, nil
}

func (p *PostgresDB) scanProject(row *sql.Row) (*Project, error) {
	var pr Project
	if err := row.Scan(&pr.ID, &pr.Name, &pr.Description, &pr.Status, &pr.CreatedBy, &pr.CreatedAt, &pr.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &pr, nil
}

func (p *PostgresDB) GetProjectByID(ctx context.Context, id string) (*Project, error) {
	return p.scanProject(p.db.QueryRowContext(ctx, `SELECT `+pgProjectCols+` FROM projects WHERE id = $1`, id))
}

func (p *PostgresDB) listProjects(ctx context.Context, query string, args ...interface{}) ([]*Project, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*Project{}
	for rows.Next() {
		var pr Project
		if err := rows.Scan(&pr.ID, &pr.Name, &pr.Description, &pr.Status, &pr.CreatedBy, &pr.CreatedAt, &pr.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &pr)
	}
	return out, rows.Err()
}

func (p *PostgresDB) ListProjects(ctx context.Context) ([]*Project, error) {
	return p.listProjects(ctx, `SELECT `+pgProjectCols+` FROM projects ORDER BY created_at`)
}

func (p *PostgresDB) UpdateProject(ctx context.Context, id string, up *ProjectUpdate) (*Project, error) {
	pr, err := p.GetProjectByID(ctx, id)
	if err != nil || pr == nil {
		return nil, err
	}
	up.Apply(pr)
	now := time.Now().UTC()
	pr.UpdatedAt = &now
	_, err = p.db.ExecContext(ctx,
		`UPDATE projects SET name=$1,description=$2,status=$3,updated_at=$4 WHERE id=$5`,
		pr.Name, pr.Description, pr.Status, now, id)
	if err != nil {
		return nil, err
	}
	return pr, nil
}

func (p *PostgresDB) DeleteProject(ctx context.Context, id string) (*Project, error) {
	pr, err := p.GetProjectByID(ctx, id)
	if err != nil || pr == nil {
		return nil, err
	}
	if _, err := p.db.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return pr, nil
}

func (p *PostgresDB) AddProjectMember(ctx context.Context, pm *ProjectMember) (*ProjectMember, error) {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO project_members(id,project_id,user_id,role,joined_at) VALUES($1,$2,$3,$4,$5)`,
		pm.ID, pm.ProjectID, pm.UserID, pm.Role, pm.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return pm, nil
}

func (p *PostgresDB) RemoveProjectMember(ctx context.Context, projectID, userID string) (*ProjectMember, error) {
	var pm ProjectMember
	row := p.db.QueryRowContext(ctx,
		`DELETE FROM project_members WHERE project_id=$1 AND user_id=$2 RETURNING id,project_id,user_id,role,joined_at`,
		projectID, userID)
	if err := row.Scan(&pm.ID, &pm.ProjectID, &pm.UserID, &pm.Role, &pm.JoinedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &pm, nil
}

func (p *PostgresDB) GetProjectMembers(ctx context.Context, projectID string) ([]*User, error) {
	return p.listUsers(ctx, `SELECT u.id,u.email,u.password,u.first_name,u.last_name,u.middle_name,u.gender,u.avatar_url,u.roles,u.created_at
		FROM users u JOIN project_members pm ON pm.user_id = u.id WHERE pm.project_id = $1`, projectID)
}

func (p *PostgresDB) GetProjectsForUser(ctx context.Context, userID string) ([]*Project, error) {
	return p.listProjects(ctx, `SELECT p.id,p.name,p.description,p.status,p.created_by,p.created_at,p.updated_at
		FROM projects p JOIN project_members pm ON pm.project_id = p.id WHERE pm.user_id = $1`, userID)
}

func (p *PostgresDB) GetAvailableUsers(ctx context.Context, projectID string) ([]*User, error) {
	return p.listUsers(ctx, `SELECT `+pgUserCols+` FROM users
		WHERE id NOT IN (SELECT user_id FROM project_members WHERE project_id = $1)`, projectID)
}

const pgTaskCols = `id,title,description,status,priority,project_id,created_by,assigned_to,due_date,created_at,updated_at`

func (p *PostgresDB) CreateTask(ctx context.Context, t *Task) (*Task, error) {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO tasks(id,title,description,status,priority,project_id,created_by,assigned_to,due_date,created_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		t.ID, t.Title, t.Description, t.Status, t.Priority, t.ProjectID, t.CreatedBy, t.AssignedTo, t.DueDate, t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (p *PostgresDB) scanTask(row *sql.Row) (*Task, error) {
	var t Task
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.ProjectID, &t.CreatedBy, &t.AssignedTo, &t.DueDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (p *PostgresDB) GetTaskByID(ctx context.Context, id string) (*Task, error) {
	return p.scanTask(p.db.QueryRowContext(ctx, `SELECT `+pgTaskCols+` FROM tasks WHERE id = $1`, id))
}

func (p *PostgresDB) GetTasksByProject(ctx context.Context, projectID string) ([]*Task, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+pgTaskCols+` FROM tasks WHERE project_id = $1 ORDER BY created_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*Task{}
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.ProjectID, &t.CreatedBy, &t.AssignedTo, &t.DueDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (p *PostgresDB) UpdateTask(ctx context.Context, id string, up *TaskUpdate) (*Task, error) {
	t, err := p.GetTaskByID(ctx, id)
	if err != nil || t == nil {
		return nil, err
	}
	up.Apply(t)
	now := time.Now().UTC()
	t.UpdatedAt = &now
	_, err = p.db.ExecContext(ctx,
		`UPDATE tasks SET title=$1,description=$2,status=$3,priority=$4,due_date=$5,updated_at=$6 WHERE id=$7`,
		t.Title, t.Description, t.Status, t.Priority, t.DueDate, now, id)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (p *PostgresDB) DeleteTask(ctx context.Context, id string) (*Task, error) {
	t, err := p.GetTaskByID(ctx, id)
	if err != nil || t == nil {
		return nil, err
	}
	if _, err := p.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *PostgresDB) AssignTask(ctx context.Context, taskID, userID string) (*Task, error) {
	row := p.db.QueryRowContext(ctx,
		`UPDATE tasks SET assigned_to=$1,updated_at=now() WHERE id=$2 RETURNING `+pgTaskCols,
		userID, taskID)
	return p.scanTask(row)
}

func (p *PostgresDB) CreateComment(ctx context.Context, c *TaskComment) (*TaskComment, error) {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO task_comments(id,content,task_id,user_id,created_at) VALUES($1,$2,$3,$4,$5)`,
		c.ID, c.Content, c.TaskID, c.UserID, c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (p *PostgresDB) GetCommentsByTask(ctx context.Context, taskID string) ([]*TaskComment, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id,content,task_id,user_id,created_at,updated_at FROM task_comments WHERE task_id = $1 ORDER BY created_at`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*TaskComment{}
	for rows.Next() {
		var c TaskComment
		if err := rows.Scan(&c.ID, &c.Content, &c.TaskID, &c.UserID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (p *PostgresDB) UpdateComment(ctx context.Context, id, content string) (*TaskComment, error) {
	var c TaskComment
	row := p.db.QueryRowContext(ctx,
		`UPDATE task_comments SET content=$1,updated_at=now() WHERE id=$2 RETURNING id,content,task_id,user_id,created_at,updated_at`,
		content, id)
	if err := row.Scan(&c.ID, &c.Content, &c.TaskID, &c.UserID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (p *PostgresDB) close() error { return p.db.Close() }
func (p *PostgresDB) ping() bool   { return p.db.Ping() == nil }
