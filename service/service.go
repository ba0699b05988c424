// Package service 看板的业务逻辑：注册、登录会话、任务增删改查，
// 修改和删除只允许任务创建者或管理员。存储通过下面的仓库接口注入，
// db.Store 与 db.MemoryStore 都满足。
package service

import (
	"context"
	"crypto/rand"
	"log"
	"time"

	"TaskBoard/db"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *db.User) error
	GetUserByName(ctx context.Context, name, surname string) (*db.User, error)
	GetUserByID(ctx context.Context, id int64) (*db.User, error)
	HasAdmin(ctx context.Context) (bool, error)
}

type TaskRepository interface {
	CreateTask(ctx context.Context, task *db.Task) error
	ListTasks(ctx context.Context) ([]db.Task, error)
	GetTask(ctx context.Context, id int64) (*db.Task, error)
	UpdateTaskStatus(ctx context.Context, id int64, backlog, process, done string) error
	DeleteTask(ctx context.Context, id int64) error
}

type SessionRepository interface {
	CreateSession(ctx context.Context, session *db.Session) error
	GetSession(ctx context.Context, id string) (*db.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Store 三种仓库合在一起，db.Store 与 db.MemoryStore 都满足
type Store interface {
	UserRepository
	TaskRepository
	SessionRepository
}

type Options struct {
	// Secret 签名 token 的密钥；为空时每个进程随机生成
	Secret     []byte
	SessionTTL time.Duration
	BcryptCost int
	Now        func() time.Time
}

type Service struct {
	users    UserRepository
	tasks    TaskRepository
	sessions SessionRepository
	tokens   tokenSigner
	ttl      time.Duration
	cost     int
	now      func() time.Time
}

// New 创建服务
func New(store Store, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	secret := opts.Secret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			// 随机生成失败，使用默认密钥
			secret = []byte("default_secret_key_for_development")
		}
		log.Println("[AUTH] 未配置 SESSION_SECRET，使用随机密钥，重启后所有会话失效")
	}
	return &Service{
		users:    store,
		tasks:    store,
		sessions: store,
		tokens:   tokenSigner{secret: secret, now: opts.Now},
		ttl:      opts.SessionTTL,
		cost:     opts.BcryptCost,
		now:      opts.Now,
	}
}

// SessionTTL 会话有效期，cookie 过期时间与之一致
func (s *Service) SessionTTL() time.Duration { return s.ttl }
