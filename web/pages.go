package web

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"TaskBoard/db"
	"TaskBoard/service"
)

type pageData struct {
	User  *db.User
	Flash *flash
	Error string
	Tasks []taskRow
	Task  *db.Task
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("[HTTP] 渲染 %s 失败: %v", name, err)
	}
}

func (s *Server) renderError(w http.ResponseWriter, status int, message string) {
	s.render(w, status, "error.html", pageData{Error: message})
}

// formValues 读取表单字段，任一字段缺失都返回 ValidationError；空字符串视为已提供
func formValues(r *http.Request, fields ...string) (map[string]string, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	vals := make(map[string]string, len(fields))
	for _, f := range fields {
		v, ok := r.PostForm[f]
		if !ok || len(v) == 0 {
			return nil, service.Required(f)
		}
		vals[f] = v[0]
	}
	return vals, nil
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("[HTTP] %s %s %s: %v", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, err)
	s.renderError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
}

func (s *Server) registerPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "register.html", pageData{Flash: s.popFlash(w, r)})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	vals, err := formValues(r, "name", "surname", "password")
	if err != nil {
		s.render(w, http.StatusBadRequest, "register.html", pageData{Error: err.Error()})
		return
	}

	_, err = s.svc.Register(r.Context(), vals["name"], vals["surname"], vals["password"])
	switch {
	case err == nil:
		s.setFlash(w, "success", "Registration successful. Please login.")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	case errors.Is(err, service.ErrDuplicateUser):
		s.setFlash(w, "danger", "User already exists")
		http.Redirect(w, r, "/register", http.StatusSeeOther)
	case errors.Is(err, service.ErrValidation):
		s.render(w, http.StatusBadRequest, "register.html", pageData{Error: err.Error()})
	default:
		s.internalError(w, r, err)
	}
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "login.html", pageData{Flash: s.popFlash(w, r)})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	vals, err := formValues(r, "name", "surname", "password")
	if err != nil {
		s.render(w, http.StatusBadRequest, "login.html", pageData{Error: err.Error()})
		return
	}

	res, err := s.svc.Login(r.Context(), vals["name"], vals["surname"], vals["password"])
	switch {
	case err == nil:
		s.setSessionCookie(w, res.Token, res.Session.ExpiresAt)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.Is(err, service.ErrInvalidCredentials):
		s.render(w, http.StatusUnauthorized, "login.html", pageData{Error: "Invalid name, surname, or password"})
	case errors.Is(err, service.ErrValidation):
		s.render(w, http.StatusBadRequest, "login.html", pageData{Error: err.Error()})
	default:
		s.internalError(w, r, err)
	}
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	if err := s.svc.Logout(r.Context(), sess.ID); err != nil {
		log.Printf("[HTTP] %s 删除会话失败: %v", middleware.GetReqID(r.Context()), err)
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	tasks, err := s.svc.ListTasks(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.render(w, http.StatusOK, "index.html", pageData{
		User:  &sess.User,
		Flash: s.popFlash(w, r),
		Tasks: rowsFor(sess, tasks),
	})
}

func (s *Server) addTask(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	vals, err := formValues(r, "name", "surname", "backlog", "process", "done", "date")
	if err != nil {
		s.renderError(w, http.StatusBadRequest, err.Error())
		return
	}

	_, err = s.svc.CreateTask(r.Context(), sess, service.TaskInput{
		Name:    vals["name"],
		Surname: vals["surname"],
		Backlog: vals["backlog"],
		Process: vals["process"],
		Done:    vals["done"],
		Date:    vals["date"],
	})
	if errors.Is(err, service.ErrValidation) {
		s.renderError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) editPage(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	id, ok := taskID(r)
	if !ok {
		s.renderError(w, http.StatusNotFound, "Task not found.")
		return
	}

	task, err := s.svc.TaskForEdit(r.Context(), sess, id)
	if err != nil {
		s.taskError(w, r, err, "edit")
		return
	}
	s.render(w, http.StatusOK, "edit.html", pageData{User: &sess.User, Task: task})
}

func (s *Server) editTask(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	id, ok := taskID(r)
	if !ok {
		s.renderError(w, http.StatusNotFound, "Task not found.")
		return
	}

	// 先检查任务和权限，再校验表单
	if _, err := s.svc.TaskForEdit(r.Context(), sess, id); err != nil {
		s.taskError(w, r, err, "edit")
		return
	}
	vals, err := formValues(r, "backlog", "process", "done")
	if err != nil {
		s.renderError(w, http.StatusBadRequest, err.Error())
		return
	}

	backlog, process, done := vals["backlog"], vals["process"], vals["done"]
	_, err = s.svc.UpdateTask(r.Context(), sess, id, service.StatusUpdate{
		Backlog: &backlog,
		Process: &process,
		Done:    &done,
	})
	if err != nil {
		s.taskError(w, r, err, "edit")
		return
	}
	s.setFlash(w, "success", "Task updated successfully!")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	id, ok := taskID(r)
	if !ok {
		s.renderError(w, http.StatusNotFound, "Task not found.")
		return
	}

	if err := s.svc.DeleteTask(r.Context(), sess, id); err != nil {
		s.taskError(w, r, err, "delete")
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// taskError 处理修改/删除任务时的错误
func (s *Server) taskError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		s.renderError(w, http.StatusNotFound, "Task not found.")
	case errors.Is(err, service.ErrForbidden):
		s.setFlash(w, "danger", "You do not have permission to "+action+" this task.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		s.internalError(w, r, err)
	}
}
