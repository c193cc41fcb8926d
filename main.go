package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfg "github.com/DouaeBakkali269/Project-Management-Application/internal/config"
	"github.com/gorilla/mux"
	_ "modernc.org/sqlite"
)

// App wires the storage adapter to the HTTP surface. The signing secret and
// token lifetimes come from config at construction and never change while the
// process runs; rotating the secret invalidates all outstanding tokens.
type App struct {
	DB          DB
	secret      []byte
	accessTTL   time.Duration
	refreshTTL  time.Duration
	corsOrigins []string
	rateLimiter *RateLimiter
}

func NewApp(db DB, c *cfg.Config) *App {
	return &App{
		DB:          db,
		secret:      []byte(c.JwtSecret),
		accessTTL:   time.Duration(c.AccessTokenExpireMinutes) * time.Minute,
		refreshTTL:  time.Duration(c.RefreshTokenExpireDays) * 24 * time.Hour,
		corsOrigins: c.CORSOrigins,
		rateLimiter: NewRateLimiter(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

// Router assembles the full route table. Each protected route declares its
// required role set inline, so the authorization policy is readable in one
// place.
func (a *App) Router() *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	r.Use(SecurityHeaders)
	r.Use(a.Logging)
	r.Use(a.CORS)

	// Health check endpoints (no auth required)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if p, ok := a.DB.(interface{ ping() bool }); ok {
			if !p.ping() {
				w.WriteHeader(503)
				w.Write([]byte(`{"ready":false}`))
				return
			}
		}
		w.WriteHeader(200)
		w.Write([]byte(`{"ready":true}`))
	}).Methods("GET")

	// Credential endpoints: public, rate limited per client
	auth := r.PathPrefix("/api/v1/auth").Subrouter()
	auth.Use(a.RateLimitCredentials)
	auth.HandleFunc("/register", a.HandleRegister).Methods("POST")
	auth.HandleFunc("/signin", a.HandleSignin).Methods("POST")
	auth.HandleFunc("/refresh", a.HandleRefresh).Methods("POST")

	// Everything below requires a valid bearer token
	users := r.PathPrefix("/api/v1/users").Subrouter()
	users.Use(a.Authenticate)
	users.HandleFunc("", a.requireRoles(a.HandleListUsers, "admin")).Methods("GET")
	users.HandleFunc("/me", a.HandleGetMe).Methods("GET")
	users.HandleFunc("/me", a.HandleUpdateMe).Methods("PUT")
	users.HandleFunc("/{id}", a.HandleGetUser).Methods("GET")
	users.HandleFunc("/{id}", a.HandleUpdateUser).Methods("PUT")
	users.HandleFunc("/{id}", a.requireRoles(a.HandleDeleteUser, "admin")).Methods("DELETE")

	projects := r.PathPrefix("/api/v1/projects").Subrouter()
	projects.Use(a.Authenticate)
	projects.HandleFunc("", a.requireRoles(a.HandleCreateProject, "admin", "project_manager")).Methods("POST")
	projects.HandleFunc("", a.requireRoles(a.HandleListProjects, "admin")).Methods("GET")
	projects.HandleFunc("/me", a.HandleGetMyProjects).Methods("GET")
	projects.HandleFunc("/users/{user_id}", a.HandleGetUserProjects).Methods("GET")
	projects.HandleFunc("/{id}", a.HandleGetProject).Methods("GET")
	projects.HandleFunc("/{id}", a.requireRoles(a.HandleUpdateProject, "admin", "project_manager")).Methods("PUT")
	projects.HandleFunc("/{id}", a.requireRoles(a.HandleDeleteProject, "admin", "project_manager")).Methods("DELETE")
	projects.HandleFunc("/{id}/archive", a.requireRoles(a.HandleArchiveProject, "admin", "project_manager")).Methods("PUT")
	projects.HandleFunc("/{id}/invite", a.requireRoles(a.HandleInviteMember, "admin", "project_manager")).Methods("POST")
	projects.HandleFunc("/{id}/members", a.HandleGetProjectMembers).Methods("GET")
	projects.HandleFunc("/{id}/members/{user_id}", a.requireRoles(a.HandleRemoveProjectMember, "admin", "project_manager")).Methods("DELETE")
	projects.HandleFunc("/{id}/available-users", a.HandleGetAvailableUsers).Methods("GET")

	tasks := r.PathPrefix("/api/v1/tasks").Subrouter()
	tasks.Use(a.Authenticate)
	tasks.HandleFunc("", a.requireRoles(a.HandleCreateTask, "admin", "project_manager")).Methods("POST")
	tasks.HandleFunc("/project/{project_id}", a.HandleGetProjectTasks).Methods("GET")
	tasks.HandleFunc("/comments/{comment_id}", a.HandleUpdateComment).Methods("PUT")
	tasks.HandleFunc("/{id}", a.HandleGetTask).Methods("GET")
	tasks.HandleFunc("/{id}", a.requireRoles(a.HandleUpdateTask, "admin", "project_manager")).Methods("PUT")
	tasks.HandleFunc("/{id}", a.requireRoles(a.HandleDeleteTask, "admin", "project_manager")).Methods("DELETE")
	tasks.HandleFunc("/{id}/assign/{user_id}", a.requireRoles(a.HandleAssignTask, "admin", "project_manager")).Methods("PUT")
	tasks.HandleFunc("/{id}/comments", a.HandleCreateComment).Methods("POST")
	tasks.HandleFunc("/{id}/comments", a.HandleGetTaskComments).Methods("GET")

	return r
}

func main() {
	c, err := cfg.New()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var db DB
	switch c.DBAdapter {
	case "sqlite":
		s, err := NewSQLiteDB(c.SQLiteFile)
		if err != nil {
			log.Fatalf("sqlite init: %v", err)
		}
		db = s
	case "postgres":
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			log.Fatalf("postgres config error: %v", err)
		}

		// Apply migrations before connecting
		log.Println("Applying database migrations...")
		if err := ApplyMigrations("./migrations", dsn); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		log.Println("Migrations applied successfully")

		p, err := NewPostgresDB(dsn)
		if err != nil {
			log.Fatalf("postgres init: %v", err)
		}
		db = p
		log.Println("Connected to PostgreSQL database")
	case "memory":
		log.Println("Using in-memory database (not recommended for production)")
		db = NewMemoryDB()
	default:
		log.Fatalf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", c.DBAdapter)
	}

	app := NewApp(db, c)
	srv := &http.Server{Handler: app.Router(), Addr: ":" + c.Port, ReadTimeout: 5 * time.Second, WriteTimeout: 10 * time.Second}

	go func() {
		fmt.Println("Starting Go server on", c.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if closer, ok := app.DB.(interface{ close() error }); ok {
		_ = closer.close()
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown failed:%+v", err)
	}
	fmt.Println("Server exited properly")
}
