package db

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// repository 两种存储实现共同满足的方法集
type repository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByName(ctx context.Context, name, surname string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	HasAdmin(ctx context.Context) (bool, error)
	CreateTask(ctx context.Context, task *Task) error
	ListTasks(ctx context.Context) ([]Task, error)
	GetTask(ctx context.Context, id int64) (*Task, error)
	UpdateTaskStatus(ctx context.Context, id int64, backlog, process, done string) error
	DeleteTask(ctx context.Context, id int64) error
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
	Close() error
}

var (
	_ repository = (*Store)(nil)
	_ repository = (*MemoryStore)(nil)
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Options{Driver: "sqlite3", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func stores(t *testing.T) map[string]repository {
	return map[string]repository{
		"sqlite": openSQLite(t),
		"memory": NewMemoryStore(),
	}
}

func mustCreateUser(t *testing.T, r repository, name, surname string, role Role) *User {
	t.Helper()
	u := &User{Name: name, Surname: surname, PasswordHash: "x", Role: role}
	if err := r.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s %s): %v", name, surname, err)
	}
	return u
}

func TestStore_CreateUser_AssignsIDAndDefaultsRole(t *testing.T) {
	for name, r := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			u := &User{Name: "Amy", Surname: "Lee", PasswordHash: "hash"}
			if err := r.CreateUser(ctx, u); err != nil {
				t.Fatalf("CreateUser: %v", err)
			}
			if u.ID == 0 {
				t.Fatalf("expected ID to be assigned")
			}
			if u.Role != RoleUser {
				t.Fatalf("expected default role %q; got %q", RoleUser, u.Role)
			}

			got, err := r.GetUserByName(ctx, "Amy", "Lee")
			if err != nil {
				t.Fatalf("GetUserByName: %v", err)
			}
			if got.ID != u.ID || got.PasswordHash != "hash" || got.Role != RoleUser {
				t.Fatalf("loaded user mismatch: %+v", got)
			}

			byID, err := r.GetUserByID(ctx, u.ID)
			if err != nil {
				t.Fatalf("GetUserByID: %v", err)
			}
			if byID.Name != "Amy" || byID.Surname != "Lee" {
				t.Fatalf("loaded user mismatch: %+v", byID)
			}
		})
	}
}

func TestStore_CreateUser_DuplicateNamePairRejected(t *testing.T) {
	for name, r := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			mustCreateUser(t, r, "Amy", "Lee", RoleUser)

			err := r.CreateUser(ctx, &User{Name: "Amy", Surname: "Lee", PasswordHash: "y"})
			if !errors.Is(err, ErrDuplicateUser) {
				t.Fatalf("expected ErrDuplicateUser; got %v", err)
			}

			// 只有姓相同不算重复
			if err := r.CreateUser(ctx, &User{Name: "Bob", Surname: "Lee", PasswordHash: "y"}); err != nil {
				t.Fatalf("CreateUser(Bob Lee): %v", err)
			}
		})
	}
}

func TestStore_CreateUser_ConcurrentDuplicatesOnlyOneWins(t *testing.T) {
	for name, r := range stores(t) {
		t.Run(name, func(t *testing.T) {
			const n = 8
			var wg sync.WaitGroup
			errs := make([]error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					errs[i] = r.CreateUser(context.Background(), &User{Name: "Amy", Surname: "Lee", PasswordHash: "h"})
				}(i)
			}
			wg.Wait()

			ok := 0
			for _, err := range errs {
				switch {
				case err == nil:
					ok++
				case errors.Is(err, ErrDuplicateUser):
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			if ok != 1 {
				t.Fatalf("expected exactly one successful registration; got %d", ok)
			}
		})
	}
}

func TestStore_GetUser_NotFound(t *testing.T) {
	for name, r := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := r.GetUserByName(ctx, "No", "One"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("GetUserByName: expected ErrNotFound; got %v", err)
			}
			if _, err := r.GetUserByID(ctx, 42); !errors.Is(err, ErrNotFound) {
				t.Fatalf("GetUserByID: expected ErrNotFound; got %v", err)
			}
		})
	}
}

func TestStore_HasAdmin(t *testing.T) {
	for name, r := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			mustCreateUser(t, r, "Amy", "Lee", RoleUser)
			has, err := r.HasAdmin(ctx)
			if err != nil {
				t.Fatalf("HasAdmin: %v", err)
			}
			if has {
				t.Fatalf("expected no admin yet")
			}

			mustCreateUser(t, r, "Admin", "User", RoleAdmin)
			has, err = r.HasAdmin(ctx)
			if err != nil {
				t.Fatalf("HasAdmin: %v", err)
			}
			if !has {
				t.Fatalf("expected admin to exist")
			}
		})
	}
}

func TestStore_TaskRoundTrip(t *testing.T) {
	for name, r := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			owner := mustCreateUser(t, r, "Amy", "Lee", RoleUser)

			in := Task{
				Name:    "Amy",
				Surname: "Lee",
				Backlog: "write report",
				Process: "",
				Done:    "kickoff",
				Date:    "next friday-ish",
				UserID:  owner.ID,
			}
			created := in
			if err := r.CreateTask(ctx, &created); err != nil {
				t.Fatalf("CreateTask: %v", err)
			}
			if created.ID == 0 {
				t.Fatalf("expected task ID to be assigned")
			}

			tasks, err := r.ListTasks(ctx)
			if err != nil {
				t.Fatalf("ListTasks: %v", err)
			}
			if len(tasks) != 1 {
				t.Fatalf("expected 1 task; got %d", len(tasks))
			}
			in.ID = created.ID
			if tasks[0] != in {
				t.Fatalf("task mismatch:\n got  %+v\n want %+v", tasks[0], in)
			}
		})
	}
}

func TestStore_ListTasks_OrderedByIDAndEmptyIsNonNil(t *testing.T) {
	for name, r := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tasks, err := r.ListTasks(ctx)
			if err != nil {
				t.Fatalf("ListTasks: %v", err)
			}
			if tasks == nil || len(tasks) != 0 {
				t.Fatalf("expected empty non-nil slice; got %#v", tasks)
			}

			amy := mustCreateUser(t, r, "Amy", "Lee", RoleUser)
			bob := mustCreateUser(t, r, "Bob", "Ray", RoleUser)
			for _, uid := range []int64{amy.ID, bob.ID, amy.ID} {
				if err := r.CreateTask(ctx, &Task{Name: "n", Surname: "s", UserID: uid}); err != nil {
					t.Fatalf("CreateTask: %v", err)
				}
			}

			tasks, err = r.ListTasks(ctx)
			if err != nil {
				t.Fatalf("ListTasks: %v", err)
			}
			if len(tasks) != 3 {
				t.Fatalf("expected 3 tasks; got %d", len(tasks))
			}
			for i := 1; i < len(tasks); i++ {
				if tasks[i-1].ID >= tasks[i].ID {
					t.Fatalf("tasks not ordered by id: %+v", tasks)
				}
			}
		})
	}
}

func TestStore_UpdateTaskStatus_OnlyStatusFieldsChange(t *testing.T) {
	for name, r := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			owner := mustCreateUser(t, r, "Amy", "Lee", RoleUser)
			task := &Task{Name: "Amy", Surname: "Lee", Backlog: "a", Process: "b", Done: "c", Date: "d", UserID: owner.ID}
			if err := r.CreateTask(ctx, task); err != nil {
				t.Fatalf("CreateTask: %v", err)
			}

			if err := r.UpdateTaskStatus(ctx, task.ID, "A", "B", "C"); err != nil {
				t.Fatalf("UpdateTaskStatus: %v", err)
			}
			// 相同的值再写一次也不能报 NotFound
			if err := r.UpdateTaskStatus(ctx, task.ID, "A", "B", "C"); err != nil {
				t.Fatalf("UpdateTaskStatus (unchanged): %v", err)
			}

			got, err := r.GetTask(ctx, task.ID)
			if err != nil {
				t.Fatalf("GetTask: %v", err)
			}
			want := Task{ID: task.ID, Name: "Amy", Surname: "Lee", Backlog: "A", Process: "B", Done: "C", Date: "d", UserID: owner.ID}
			if *got != want {
				t.Fatalf("task mismatch:\n got  %+v\n want %+v", *got, want)
			}
		})
	}
}

func TestStore_TaskMissingID(t *testing.T) {
	for name, r := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := r.GetTask(ctx, 99); !errors.Is(err, ErrNotFound) {
				t.Fatalf("GetTask: expected ErrNotFound; got %v", err)
			}
			if err := r.UpdateTaskStatus(ctx, 99, "", "", ""); !errors.Is(err, ErrNotFound) {
				t.Fatalf("UpdateTaskStatus: expected ErrNotFound; got %v", err)
			}
			if err := r.DeleteTask(ctx, 99); !errors.Is(err, ErrNotFound) {
				t.Fatalf("DeleteTask: expected ErrNotFound; got %v", err)
			}
		})
	}
}

func TestStore_DeleteTask(t *testing.T) {
	for name, r := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			owner := mustCreateUser(t, r, "Amy", "Lee", RoleUser)
			task := &Task{Name: "Amy", Surname: "Lee", UserID: owner.ID}
			if err := r.CreateTask(ctx, task); err != nil {
				t.Fatalf("CreateTask: %v", err)
			}
			if err := r.DeleteTask(ctx, task.ID); err != nil {
				t.Fatalf("DeleteTask: %v", err)
			}
			if _, err := r.GetTask(ctx, task.ID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected task to be gone; got %v", err)
			}
		})
	}
}

func TestStore_Sessions(t *testing.T) {
	for name, r := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			u := mustCreateUser(t, r, "Amy", "Lee", RoleUser)
			now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

			live := &Session{ID: "live", UserID: u.ID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
			old := &Session{ID: "old", UserID: u.ID, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
			for _, s := range []*Session{live, old} {
				if err := r.CreateSession(ctx, s); err != nil {
					t.Fatalf("CreateSession(%s): %v", s.ID, err)
				}
			}

			got, err := r.GetSession(ctx, "live")
			if err != nil {
				t.Fatalf("GetSession: %v", err)
			}
			if got.UserID != u.ID || !got.ExpiresAt.Equal(live.ExpiresAt) || !got.CreatedAt.Equal(now) {
				t.Fatalf("session mismatch: %+v", got)
			}

			n, err := r.DeleteExpiredSessions(ctx, now)
			if err != nil {
				t.Fatalf("DeleteExpiredSessions: %v", err)
			}
			if n != 1 {
				t.Fatalf("expected 1 expired session removed; got %d", n)
			}
			if _, err := r.GetSession(ctx, "old"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected expired session gone; got %v", err)
			}

			if err := r.DeleteSession(ctx, "live"); err != nil {
				t.Fatalf("DeleteSession: %v", err)
			}
			if err := r.DeleteSession(ctx, "live"); err != nil {
				t.Fatalf("DeleteSession (missing): %v", err)
			}
			if _, err := r.GetSession(ctx, "live"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected session gone; got %v", err)
			}
		})
	}
}

func TestOpen_SQLiteFileCreatesDataDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "scheduler.db")
	s, err := Open(context.Background(), Options{Driver: "sqlite3", DSN: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	// 重复打开时建表语句应幂等
	s2, err := Open(context.Background(), Options{Driver: "sqlite3", DSN: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	s2.Close()
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Options{Driver: "oracle"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestDialect_Rebind(t *testing.T) {
	pg, err := dialectFor("postgres")
	if err != nil {
		t.Fatalf("dialectFor: %v", err)
	}
	got := pg.rebind("UPDATE tasks SET backlog = ?, process = ? WHERE id = ?")
	want := "UPDATE tasks SET backlog = $1, process = $2 WHERE id = $3"
	if got != want {
		t.Fatalf("rebind:\n got  %q\n want %q", got, want)
	}

	lite, err := dialectFor("sqlite3")
	if err != nil {
		t.Fatalf("dialectFor: %v", err)
	}
	if q := "SELECT ? "; lite.rebind(q) != q {
		t.Fatalf("sqlite rebind should be identity")
	}
}

func TestPassword_HashAndCheck(t *testing.T) {
	hash, err := HashPassword("pw1", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "pw1" {
		t.Fatalf("hash must not equal plaintext")
	}
	if !CheckPassword("pw1", hash) {
		t.Fatalf("expected password to match")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestPassword_LongerThanBcryptLimit(t *testing.T) {
	long := strings.Repeat("p", 100)
	hash, err := HashPassword(long, 4)
	if err != nil {
		t.Fatalf("HashPassword(100 bytes): %v", err)
	}
	if !CheckPassword(long, hash) {
		t.Fatalf("expected long password to match")
	}
	// 超过 72 字节的部分同样参与校验
	if CheckPassword(long[:72], hash) {
		t.Fatalf("72-byte prefix must not match")
	}
	if CheckPassword(long+"x", hash) {
		t.Fatalf("longer password must not match")
	}
}

func TestDialect_ValueTooLong(t *testing.T) {
	cases := []struct {
		driver string
		err    error
		want   bool
	}{
		{"postgres", &pq.Error{Code: "22001"}, true},
		{"pgx", &pgconn.PgError{Code: "22001"}, true},
		{"postgres", &pq.Error{Code: "23505"}, false},
		{"mysql", &mysql.MySQLError{Number: 1406}, true},
		{"mysql", fmt.Errorf("保存用户失败: %w", &mysql.MySQLError{Number: 1406}), true},
		{"mysql", &mysql.MySQLError{Number: 1062}, false},
		{"sqlite3", errors.New("anything"), false},
	}
	for _, tc := range cases {
		d, err := dialectFor(tc.driver)
		if err != nil {
			t.Fatalf("dialectFor(%s): %v", tc.driver, err)
		}
		if got := d.tooLong(tc.err); got != tc.want {
			t.Fatalf("%s tooLong(%v) = %v; want %v", tc.driver, tc.err, got, tc.want)
		}
	}
}
