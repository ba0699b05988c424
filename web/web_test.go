package web

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"TaskBoard/db"
	"TaskBoard/service"
)

const testOrigin = "http://board.example"

type testEnv struct {
	srv   *httptest.Server
	svc   *service.Service
	store *db.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := db.NewMemoryStore()
	svc := service.New(store, service.Options{Secret: []byte("web-test-secret"), BcryptCost: bcrypt.MinCost})
	if _, err := svc.SeedAdmin(context.Background(), "Admin", "User", "admin123"); err != nil {
		t.Fatalf("SeedAdmin: %v", err)
	}
	srv := httptest.NewServer(New(svc, Options{CORSOrigins: []string{testOrigin}}).Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, svc: svc, store: store}
}

// newClient 带 cookie，不自动跟随跳转
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return string(b)
}

func expectStatus(t *testing.T, resp *http.Response, want int) string {
	t.Helper()
	body := readBody(t, resp)
	if resp.StatusCode != want {
		t.Fatalf("%s %s: status %d; want %d; body: %s", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, body)
	}
	return body
}

func expectRedirect(t *testing.T, resp *http.Response, status int, location string) {
	t.Helper()
	expectStatus(t, resp, status)
	if got := resp.Header.Get("Location"); got != location {
		t.Fatalf("%s %s: Location %q; want %q", resp.Request.Method, resp.Request.URL.Path, got, location)
	}
}

func (e *testEnv) get(t *testing.T, c *http.Client, path string) *http.Response {
	t.Helper()
	resp, err := c.Get(e.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func (e *testEnv) post(t *testing.T, c *http.Client, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := c.PostForm(e.srv.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func credentials(name, surname, pw string) url.Values {
	return url.Values{"name": {name}, "surname": {surname}, "password": {pw}}
}

func (e *testEnv) registerAndLogin(t *testing.T, name, surname, pw string) *http.Client {
	t.Helper()
	c := newClient(t)
	expectRedirect(t, e.post(t, c, "/register", credentials(name, surname, pw)), http.StatusSeeOther, "/login")
	expectRedirect(t, e.post(t, c, "/login", credentials(name, surname, pw)), http.StatusSeeOther, "/")
	return c
}

func (e *testEnv) loginAdmin(t *testing.T) *http.Client {
	t.Helper()
	c := newClient(t)
	expectRedirect(t, e.post(t, c, "/login", credentials("Admin", "User", "admin123")), http.StatusSeeOther, "/")
	return c
}

func (e *testEnv) mustList(t *testing.T) []db.Task {
	t.Helper()
	tasks, err := e.store.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	return tasks
}

func (e *testEnv) onlyTask(t *testing.T) db.Task {
	t.Helper()
	tasks := e.mustList(t)
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task; got %d", len(tasks))
	}
	return tasks[0]
}

func taskForm(name, surname, backlog, process, done, date string) url.Values {
	return url.Values{
		"name": {name}, "surname": {surname},
		"backlog": {backlog}, "process": {process}, "done": {done}, "date": {date},
	}
}
