package web

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"TaskBoard/service"
)

// noCache 禁止浏览器缓存页面，退出登录后按“后退”也看不到受保护的内容
func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0, post-check=0, pre-check=0")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}

// requireSession 页面守卫：未登录时跳转到登录页
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.svc.Authenticate(r.Context(), s.cookieToken(r))
		if errors.Is(err, service.ErrUnauthorized) {
			s.clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		if err != nil {
			log.Printf("[HTTP] %s 验证会话失败: %v", middleware.GetReqID(r.Context()), err)
			s.renderError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
			return
		}
		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
	})
}

// requireAPISession API 守卫：未登录时返回 401
func (s *Server) requireAPISession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			errorJSON(w, http.StatusUnauthorized, err.Error())
			return
		}
		if token == "" {
			token = s.cookieToken(r)
		}
		sess, err := s.svc.Authenticate(r.Context(), token)
		if err != nil {
			apiError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
	})
}

// bearerToken 读取 "Authorization: Bearer <token>"；没有该头时返回空串
func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", nil
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.New("invalid Authorization header format")
	}
	return parts[1], nil
}
