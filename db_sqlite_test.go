package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestSQLite(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.close() })
	return db
}

func testUser(email string, roles ...string) *User {
	return &User{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  "$2a$10$fakehashfakehashfakehash",
		FirstName: "Test",
		LastName:  "User",
		Roles:     roles,
		CreatedAt: time.Now().UTC(),
	}
}

func TestSQLiteUsers(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	u, err := db.CreateUser(ctx, testUser("a@example.com", "admin", "member"))
	require.NoError(t, err)

	got, err := db.GetUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, []string{"admin", "member"}, got.Roles)
	require.WithinDuration(t, u.CreatedAt, got.CreatedAt, time.Second)

	// duplicate email
	_, err = db.CreateUser(ctx, testUser("a@example.com", "member"))
	require.ErrorIs(t, err, ErrDuplicate)

	// partial update leaves unset fields alone
	first := "Changed"
	updated, err := db.UpdateUser(ctx, u.ID, &UserUpdate{FirstName: &first})
	require.NoError(t, err)
	require.Equal(t, "Changed", updated.FirstName)
	require.Equal(t, "User", updated.LastName)

	missing, err := db.GetUserByID(ctx, uuid.NewString())
	require.NoError(t, err)
	require.Nil(t, missing)

	deleted, err := db.DeleteUser(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted)
	gone, err := db.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestSQLiteProjectsAndMembers(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	owner, err := db.CreateUser(ctx, testUser("pm@example.com", "project_manager"))
	require.NoError(t, err)
	bob, err := db.CreateUser(ctx, testUser("bob@example.com", "member"))
	require.NoError(t, err)

	p, err := db.CreateProject(ctx, &Project{
		ID: uuid.NewString(), Name: "Apollo", Description: "d",
		Status: ProjectActive, CreatedBy: owner.ID, CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	_, err = db.AddProjectMember(ctx, &ProjectMember{
		ID: uuid.NewString(), ProjectID: p.ID, UserID: bob.ID,
		Role: MemberRoleMember, JoinedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	// unique (project, user)
	_, err = db.AddProjectMember(ctx, &ProjectMember{
		ID: uuid.NewString(), ProjectID: p.ID, UserID: bob.ID,
		Role: MemberRoleManager, JoinedAt: time.Now().UTC(),
	})
	require.ErrorIs(t, err, ErrDuplicate)

	members, err := db.GetProjectMembers(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, bob.ID, members[0].ID)

	mine, err := db.GetProjectsForUser(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, p.ID, mine[0].ID)

	available, err := db.GetAvailableUsers(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, available, 1)
	require.Equal(t, owner.ID, available[0].ID)

	status := ProjectArchived
	archived, err := db.UpdateProject(ctx, p.ID, &ProjectUpdate{Status: &status})
	require.NoError(t, err)
	require.Equal(t, ProjectArchived, archived.Status)
	require.NotNil(t, archived.UpdatedAt)

	removed, err := db.RemoveProjectMember(ctx, p.ID, bob.ID)
	require.NoError(t, err)
	require.NotNil(t, removed)
	removed, err = db.RemoveProjectMember(ctx, p.ID, bob.ID)
	require.NoError(t, err)
	require.Nil(t, removed)
}

func TestSQLiteTasksAndComments(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	owner, err := db.CreateUser(ctx, testUser("pm@example.com", "project_manager"))
	require.NoError(t, err)
	p, err := db.CreateProject(ctx, &Project{
		ID: uuid.NewString(), Name: "Apollo", Description: "d",
		Status: ProjectActive, CreatedBy: owner.ID, CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	due := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
	task, err := db.CreateTask(ctx, &Task{
		ID: uuid.NewString(), Title: "Checklist", Description: "d",
		Status: TaskTodo, Priority: PriorityHigh, ProjectID: p.ID,
		CreatedBy: owner.ID, DueDate: &due, CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	got, err := db.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DueDate)
	require.True(t, got.DueDate.Equal(due))

	assigned, err := db.AssignTask(ctx, task.ID, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, assigned.AssignedTo)
	require.Equal(t, owner.ID, *assigned.AssignedTo)

	c, err := db.CreateComment(ctx, &TaskComment{
		ID: uuid.NewString(), Content: "first", TaskID: task.ID,
		UserID: owner.ID, CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	updated, err := db.UpdateComment(ctx, c.ID, "second")
	require.NoError(t, err)
	require.Equal(t, "second", updated.Content)
	require.NotNil(t, updated.UpdatedAt)

	comments, err := db.GetCommentsByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)

	tasks, err := db.GetTasksByProject(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	deleted, err := db.DeleteTask(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted)
}
