// Package web 看板的 HTTP 层：凭会话 cookie 访问的页面，
// 以及 /api 下的 JSON 接口，同一会话可用 cookie 或 Bearer token 携带。
package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"TaskBoard/db"
	"TaskBoard/service"
)

//go:embed templates/*.html
var templatesFS embed.FS

type Options struct {
	CookieName   string
	CookieSecure bool
	CORSOrigins  []string
}

type Server struct {
	svc  *service.Service
	opts Options
	tmpl *template.Template
}

func New(svc *service.Service, opts Options) *Server {
	if opts.CookieName == "" {
		opts.CookieName = "scheduler_session"
	}
	return &Server{
		svc:  svc,
		opts: opts,
		tmpl: template.Must(template.ParseFS(templatesFS, "templates/*.html")),
	}
}

// ContextKey 自定义类型，避免与其他包的 context key 冲突
type ContextKey string

const sessionKey ContextKey = "session"

func withSession(ctx context.Context, sess *service.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// SessionFromContext 取出守卫中间件放入的会话
func SessionFromContext(ctx context.Context) (*service.Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*service.Session)
	return sess, ok && sess != nil
}

func mustSession(r *http.Request) service.Session {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		// 只会出现在没有挂守卫中间件的路由上
		panic("web: handler requires session middleware")
	}
	return *sess
}

// taskID 解析路径中的 {id}
func taskID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// taskRow 列表中的一行，带上当前用户能否修改
type taskRow struct {
	db.Task
	CanModify bool
}

func rowsFor(sess service.Session, tasks []db.Task) []taskRow {
	perm := sess.Permission()
	rows := make([]taskRow, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, taskRow{Task: t, CanModify: service.Allows(perm, t)})
	}
	return rows
}
