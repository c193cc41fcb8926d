package main

import "time"

// Project lifecycle states.
const (
	ProjectActive    = "active"
	ProjectCompleted = "completed"
	ProjectArchived  = "archived"
)

// Task workflow states and priorities.
const (
	TaskTodo       = "todo"
	TaskInProgress = "in_progress"
	TaskReview     = "review"
	TaskDone       = "done"

	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Project member roles.
const (
	MemberRoleManager = "manager"
	MemberRoleMember  = "member"
)

// User represents an account. Password holds the bcrypt hash, never plaintext.
type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Password   string    `json:"-"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	MiddleName *string   `json:"middle_name,omitempty"`
	Gender     *string   `json:"gender,omitempty"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	Roles      []string  `json:"roles"`
	CreatedAt  time.Time `json:"created_at"`
}

// HasAnyRole reports whether the user holds at least one of the given roles.
func (u *User) HasAnyRole(required ...string) bool {
	for _, want := range required {
		for _, have := range u.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// UserUpdate carries a partial profile update. Nil fields are left untouched.
type UserUpdate struct {
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
	MiddleName *string `json:"middle_name"`
	Gender     *string `json:"gender"`
	AvatarURL  *string `json:"avatar_url"`
}

// Apply merges the set fields into the user record.
func (up *UserUpdate) Apply(u *User) {
	if up.FirstName != nil {
		u.FirstName = *up.FirstName
	}
	if up.LastName != nil {
		u.LastName = *up.LastName
	}
	if up.MiddleName != nil {
		u.MiddleName = up.MiddleName
	}
	if up.Gender != nil {
		u.Gender = up.Gender
	}
	if up.AvatarURL != nil {
		u.AvatarURL = up.AvatarURL
	}
}

// Project represents a project record.
type Project struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// ProjectUpdate carries a partial project update.
type ProjectUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

func (up *ProjectUpdate) Apply(p *Project) {
	if up.Name != nil {
		p.Name = *up.Name
	}
	if up.Description != nil {
		p.Description = *up.Description
	}
	if up.Status != nil {
		p.Status = *up.Status
	}
}

// ProjectMember links a user to a project with a project-scoped role.
type ProjectMember struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
}

// Task represents a unit of work inside a project.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	ProjectID   string     `json:"project_id"`
	CreatedBy   string     `json:"created_by"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// TaskUpdate carries a partial task update.
type TaskUpdate struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
}

func (up *TaskUpdate) Apply(t *Task) {
	if up.Title != nil {
		t.Title = *up.Title
	}
	if up.Description != nil {
		t.Description = *up.Description
	}
	if up.Status != nil {
		t.Status = *up.Status
	}
	if up.Priority != nil {
		t.Priority = *up.Priority
	}
	if up.DueDate != nil {
		t.DueDate = up.DueDate
	}
}

// TaskComment is a comment left on a task by a user.
type TaskComment struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	TaskID    string     `json:"task_id"`
	UserID    string     `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}
