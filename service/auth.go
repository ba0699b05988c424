package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"TaskBoard/db"
)

// Session 已登录请求的身份
type Session struct {
	ID        string
	User      db.User
	ExpiresAt time.Time
}

func (s Session) Permission() Permission { return PermissionFor(s.User) }

// LoginResult 登录成功后返回给客户端的内容
type LoginResult struct {
	Session Session
	Token   string
}

// Register 用户注册。(name, surname) 已存在时返回 ErrDuplicateUser
func (s *Service) Register(ctx context.Context, name, surname, password string) (*db.User, error) {
	if err := requireCredentials(name, surname, password); err != nil {
		return nil, err
	}

	// 检查用户是否已存在；并发注册由唯一约束兜底
	_, err := s.users.GetUserByName(ctx, name, surname)
	if err == nil {
		return nil, ErrDuplicateUser
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	hash, err := db.HashPassword(password, s.cost)
	if err != nil {
		return nil, fmt.Errorf("生成密码哈希失败: %w", err)
	}
	user := &db.User{
		Name:         name,
		Surname:      surname,
		PasswordHash: hash,
		Role:         db.RoleUser,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, invalidInput(err)
	}
	log.Printf("[AUTH] 注册用户 %d", user.ID)
	return user, nil
}

// Login 校验姓名和密码，成功时创建会话并签发 token
func (s *Service) Login(ctx context.Context, name, surname, password string) (*LoginResult, error) {
	if err := requireCredentials(name, surname, password); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByName(ctx, name, surname)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !db.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	session := &db.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	token, err := s.tokens.sign(session.ID, user.ID, now, session.ExpiresAt)
	if err != nil {
		// 签名失败时不留下无法使用的会话
		_ = s.sessions.DeleteSession(ctx, session.ID)
		return nil, fmt.Errorf("签发token失败: %w", err)
	}

	log.Printf("[AUTH] 用户 %d 登录", user.ID)
	return &LoginResult{
		Session: Session{ID: session.ID, User: *user, ExpiresAt: session.ExpiresAt},
		Token:   token,
	}, nil
}

// Authenticate 校验 token 并取回会话与用户；任何失败都返回 ErrUnauthorized
func (s *Service) Authenticate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	claims, err := s.tokens.parse(token)
	if err != nil {
		return nil, ErrUnauthorized
	}

	stored, err := s.sessions.GetSession(ctx, claims.ID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if stored.UserID != claims.UserID || stored.Expired(s.now()) {
		return nil, ErrUnauthorized
	}

	user, err := s.users.GetUserByID(ctx, stored.UserID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	return &Session{ID: stored.ID, User: *user, ExpiresAt: stored.ExpiresAt}, nil
}

// Logout 删除会话，会话不存在也视为成功
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessions.DeleteSession(ctx, sessionID)
}

// PurgeExpiredSessions 清理过期会话，返回删除条数
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpiredSessions(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("清理过期会话失败: %w", err)
	}
	if n > 0 {
		log.Printf("[AUTH] 清理过期会话 %d 条", n)
	}
	return n, nil
}

// SeedAdmin 没有管理员时创建一个。返回是否新建
func (s *Service) SeedAdmin(ctx context.Context, name, surname, password string) (bool, error) {
	has, err := s.users.HasAdmin(ctx)
	if err != nil {
		return false, err
	}
	if has {
		return false, nil
	}
	if err := requireCredentials(name, surname, password); err != nil {
		return false, fmt.Errorf("管理员账号配置不完整: %w", err)
	}

	hash, err := db.HashPassword(password, s.cost)
	if err != nil {
		return false, fmt.Errorf("生成密码哈希失败: %w", err)
	}
	admin := &db.User{
		Name:         name,
		Surname:      surname,
		PasswordHash: hash,
		Role:         db.RoleAdmin,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, admin); err != nil {
		return false, fmt.Errorf("创建管理员失败: %w", err)
	}
	return true, nil
}

func requireCredentials(name, surname, password string) error {
	switch {
	case name == "":
		return Required("name")
	case surname == "":
		return Required("surname")
	case password == "":
		return Required("password")
	}
	return nil
}
