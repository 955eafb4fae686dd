// Package server exposes authentication and per-user task operations over
// HTTP, including a Server-Sent Events feed of task snapshots.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ldi/dayplan/internal/session"
	"github.com/ldi/dayplan/internal/taskstore"
	"github.com/ldi/dayplan/pkg/models"
)

// Authenticator is an identity provider that can also resolve the tokens
// it issues.
type Authenticator interface {
	session.Provider
	Verify(ctx context.Context, token string) (models.Identity, error)
}

type Server struct {
	auth   Authenticator
	tasks  *taskstore.Client
	logger *slog.Logger
	server *http.Server
}

func NewServer(auth Authenticator, tasks *taskstore.Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{auth: auth, tasks: tasks, logger: logger}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/signup", s.handleSignUp)
	mux.HandleFunc("POST /api/auth/signin", s.handleSignIn)
	mux.HandleFunc("POST /api/auth/signout", s.handleSignOut)

	mux.HandleFunc("GET /api/tasks", s.authenticated(s.handleListTasks))
	mux.HandleFunc("GET /api/tasks/stream", s.authenticated(s.handleStreamTasks))
	mux.HandleFunc("POST /api/tasks", s.authenticated(s.handleCreateTask))
	mux.HandleFunc("PUT /api/tasks/{id}", s.authenticated(s.handleUpdateTask))
	mux.HandleFunc("PATCH /api/tasks/{id}/completed", s.authenticated(s.handleSetCompleted))
	mux.HandleFunc("DELETE /api/tasks/{id}", s.authenticated(s.handleDeleteTask))

	return s.logRequests(mux)
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("http server listening", "addr", addr)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type taskRequest struct {
	Name        string           `json:"name"`
	IsCompleted bool             `json:"isCompleted"`
	TimeSlot    string           `json:"timeSlot"`
	SubTasks    []models.SubTask `json:"subTasks"`
}

type completedRequest struct {
	IsCompleted *bool `json:"isCompleted"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	s.handleCredentials(w, r, s.auth.SignUp, http.StatusCreated)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	s.handleCredentials(w, r, s.auth.SignIn, http.StatusOK)
}

func (s *Server) handleCredentials(
	w http.ResponseWriter,
	r *http.Request,
	call func(context.Context, string, string) (session.Credentials, error),
	status int,
) {
	var req credentialsRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	creds, err := call(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondErr(w, err)
		return
	}

	s.respond(w, status, authResponse{
		Token:  creds.Token,
		UserID: creds.Identity.UserID,
		Email:  creds.Identity.Email,
	})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	if err := s.auth.SignOut(r.Context(), token); err != nil {
		s.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type identityHandler func(w http.ResponseWriter, r *http.Request, id models.Identity)

func (s *Server) authenticated(next identityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		id, err := s.auth.Verify(r.Context(), token)
		if err != nil {
			s.respondErr(w, err)
			return
		}
		next(w, r, id)
	}
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request, id models.Identity) {
	tasks, err := s.currentTasks(r.Context(), id.UserID)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, tasks)
}

// currentTasks returns the first snapshot of a live query.
func (s *Server) currentTasks(ctx context.Context, userID string) ([]models.Task, error) {
	sub, err := s.tasks.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	select {
	case snap, ok := <-sub.C():
		if !ok {
			return nil, ctx.Err()
		}
		if snap.Err != nil {
			return nil, snap.Err
		}
		return snap.Tasks, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Server) handleStreamTasks(w http.ResponseWriter, r *http.Request, id models.Identity) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sub, err := s.tasks.List(r.Context(), id.UserID)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.logger.Debug("task stream opened", "user_id", id.UserID)
	defer s.logger.Debug("task stream closed", "user_id", id.UserID)

	for {
		select {
		case snap, ok := <-sub.C():
			if !ok {
				return
			}
			event, payload := "snapshot", any(snap.Tasks)
			if snap.Err != nil {
				event, payload = "error", errorResponse{Error: snap.Err.Error()}
			}
			if err := writeEvent(w, event, payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request, id models.Identity) {
	var req taskRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var draft taskstore.Draft
	draft.SetName(req.Name)
	draft.SetTimeSlot(req.TimeSlot)
	for _, st := range req.SubTasks {
		draft.AddSubTask(st.Name)
	}
	task, err := draft.Build()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	task.IsCompleted = req.IsCompleted

	created, err := s.tasks.Add(r.Context(), id.UserID, task)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respond(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request, id models.Identity) {
	var req taskRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	task := models.Task{
		ID:          r.PathValue("id"),
		Name:        req.Name,
		IsCompleted: req.IsCompleted,
		TimeSlot:    req.TimeSlot,
		SubTasks:    req.SubTasks,
	}
	if task.SubTasks == nil {
		task.SubTasks = []models.SubTask{}
	}

	if err := s.tasks.Update(r.Context(), id.UserID, task); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, task)
}

func (s *Server) handleSetCompleted(w http.ResponseWriter, r *http.Request, id models.Identity) {
	var req completedRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.IsCompleted == nil {
		s.respondError(w, http.StatusBadRequest, "isCompleted is required")
		return
	}

	taskID := r.PathValue("id")
	tasks, err := s.currentTasks(r.Context(), id.UserID)
	if err != nil {
		s.respondErr(w, err)
		return
	}

	for _, task := range tasks {
		if task.ID != taskID {
			continue
		}
		if err := s.tasks.SetCompleted(r.Context(), id.UserID, task, *req.IsCompleted); err != nil {
			s.respondErr(w, err)
			return
		}
		task.IsCompleted = *req.IsCompleted
		s.respond(w, http.StatusOK, task)
		return
	}
	s.respondErr(w, &taskstore.NotFoundError{ID: taskID})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request, id models.Identity) {
	if err := s.tasks.Delete(r.Context(), id.UserID, r.PathValue("id")); err != nil {
		s.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps auth and store errors onto HTTP status codes.
func statusFor(err error) int {
	var ae *session.AuthError
	if errors.As(err, &ae) {
		switch ae.Code {
		case session.CodeInvalidEmail, session.CodeWeakPassword:
			return http.StatusBadRequest
		case session.CodeEmailInUse:
			return http.StatusConflict
		case session.CodeUserNotFound, session.CodeWrongPassword, session.CodeInvalidToken:
			return http.StatusUnauthorized
		default:
			return http.StatusInternalServerError
		}
	}

	switch {
	case errors.Is(err, taskstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, taskstore.ErrUserIDRequired), errors.Is(err, taskstore.ErrTaskIDRequired):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respond(w, status, errorResponse{Error: message})
}

func (s *Server) respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
