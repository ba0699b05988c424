package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateUser 保存新用户并回填 ID。(name, surname) 重复时返回 ErrDuplicateUser
func (s *Store) CreateUser(ctx context.Context, user *User) error {
	if user.Role == "" {
		user.Role = RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO users (name, surname, password_hash, role, created_at)
	VALUES (?, ?, ?, ?, ?)`
	id, err := s.insert(ctx, query,
		user.Name, user.Surname, user.PasswordHash, string(user.Role), timeToString(user.CreatedAt),
	)
	if err != nil {
		if s.dialect.unique(err) {
			return ErrDuplicateUser
		}
		if s.dialect.tooLong(err) {
			return ErrValueTooLong
		}
		return fmt.Errorf("保存用户失败: %w", err)
	}
	user.ID = id
	return nil
}

// 根据姓名获取用户
func (s *Store) GetUserByName(ctx context.Context, name, surname string) (*User, error) {
	query := `
	SELECT id, name, surname, password_hash, role, created_at
	FROM users
	WHERE name = ? AND surname = ?`
	return scanUser(s.queryRow(ctx, query, name, surname))
}

// 根据ID获取用户
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	query := `
	SELECT id, name, surname, password_hash, role, created_at
	FROM users
	WHERE id = ?`
	return scanUser(s.queryRow(ctx, query, id))
}

// HasAdmin 是否已存在管理员账号
func (s *Store) HasAdmin(ctx context.Context) (bool, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = ?`, string(RoleAdmin)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("查询管理员失败: %w", err)
	}
	return n > 0, nil
}

func scanUser(row rowScanner) (*User, error) {
	var user User
	var role, createdAtStr string
	err := row.Scan(&user.ID, &user.Name, &user.Surname, &user.PasswordHash, &role, &createdAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取用户失败: %w", err)
	}
	user.Role = Role(role)
	user.CreatedAt, err = stringToTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
