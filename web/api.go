package web

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"TaskBoard/db"
	"TaskBoard/service"
)

const maxBodyBytes = 1 << 20

type credentialsRequest struct {
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Password string `json:"password"`
}

type createTaskRequest struct {
	Name    *string `json:"name"`
	Surname *string `json:"surname"`
	Backlog string  `json:"backlog"`
	Process string  `json:"process"`
	Done    string  `json:"done"`
	Date    string  `json:"date"`
}

type updateTaskRequest struct {
	Backlog *string `json:"backlog"`
	Process *string `json:"process"`
	Done    *string `json:"done"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      db.User   `json:"user"`
}

// writeJSON 输出 JSON 响应
func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[HTTP] 写入响应失败: %v", err)
	}
}

func errorJSON(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// apiError 把服务层错误映射成状态码
func apiError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		errorJSON(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		errorJSON(w, http.StatusUnauthorized, "invalid name, surname, or password")
	case errors.Is(err, service.ErrUnauthorized):
		errorJSON(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, service.ErrForbidden):
		errorJSON(w, http.StatusForbidden, "you do not have permission to modify this task")
	case errors.Is(err, service.ErrNotFound):
		errorJSON(w, http.StatusNotFound, "task not found")
	case errors.Is(err, service.ErrDuplicateUser):
		errorJSON(w, http.StatusConflict, "user already exists")
	default:
		log.Printf("[HTTP] %s %s %s: %v", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) apiRegister(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := decodeJSON(w, r, &in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}
	user, err := s.svc.Register(r.Context(), in.Name, in.Surname, in.Password)
	if err != nil {
		apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) apiLogin(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := decodeJSON(w, r, &in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}
	res, err := s.svc.Login(r.Context(), in.Name, in.Surname, in.Password)
	if err != nil {
		apiError(w, r, err)
		return
	}
	s.setSessionCookie(w, res.Token, res.Session.ExpiresAt)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     res.Token,
		ExpiresAt: res.Session.ExpiresAt,
		User:      res.Session.User,
	})
}

func (s *Server) apiLogout(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	if err := s.svc.Logout(r.Context(), sess.ID); err != nil {
		apiError(w, r, err)
		return
	}
	s.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) apiMe(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	writeJSON(w, http.StatusOK, sess.User)
}

func (s *Server) apiListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.svc.ListTasks(r.Context())
	if err != nil {
		apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) apiCreateTask(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	var in createTaskRequest
	if err := decodeJSON(w, r, &in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}
	if in.Name == nil {
		apiError(w, r, service.Required("name"))
		return
	}
	if in.Surname == nil {
		apiError(w, r, service.Required("surname"))
		return
	}

	task, err := s.svc.CreateTask(r.Context(), sess, service.TaskInput{
		Name:    *in.Name,
		Surname: *in.Surname,
		Backlog: in.Backlog,
		Process: in.Process,
		Done:    in.Done,
		Date:    in.Date,
	})
	if err != nil {
		apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) apiGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		errorJSON(w, http.StatusBadRequest, "invalid task id")
		return
	}
	task, err := s.svc.GetTask(r.Context(), id)
	if err != nil {
		apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) apiUpdateTask(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	id, ok := taskID(r)
	if !ok {
		errorJSON(w, http.StatusBadRequest, "invalid task id")
		return
	}
	var in updateTaskRequest
	if err := decodeJSON(w, r, &in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}

	task, err := s.svc.UpdateTask(r.Context(), sess, id, service.StatusUpdate{
		Backlog: in.Backlog,
		Process: in.Process,
		Done:    in.Done,
	})
	if err != nil {
		apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) apiDeleteTask(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	id, ok := taskID(r)
	if !ok {
		errorJSON(w, http.StatusBadRequest, "invalid task id")
		return
	}
	if err := s.svc.DeleteTask(r.Context(), sess, id); err != nil {
		apiError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
