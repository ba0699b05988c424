package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Handler 组装路由
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(noCache)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	// 页面：不需要登录
	r.Get("/register", s.registerPage)
	r.Post("/register", s.register)
	r.Get("/login", s.loginPage)
	r.Post("/login", s.login)

	// 页面：需要登录
	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/", s.index)
		r.Get("/logout", s.logout)
		r.Post("/add", s.addTask)
		r.Get("/edit/{id}", s.editPage)
		r.Post("/edit/{id}", s.editTask)
		r.Post("/delete/{id}", s.deleteTask)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
			AllowCredentials: true,
			MaxAge:           300,
		}))

		r.Post("/register", s.apiRegister)
		r.Post("/login", s.apiLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAPISession)
			r.Post("/logout", s.apiLogout)
			r.Get("/me", s.apiMe)
			r.Get("/tasks", s.apiListTasks)
			r.Post("/tasks", s.apiCreateTask)
			r.Get("/tasks/{id}", s.apiGetTask)
			r.Patch("/tasks/{id}", s.apiUpdateTask)
			r.Put("/tasks/{id}", s.apiUpdateTask)
			r.Delete("/tasks/{id}", s.apiDeleteTask)
		})
	})

	return r
}
