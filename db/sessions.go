package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// 保存会话
func (s *Store) CreateSession(ctx context.Context, session *Session) error {
	query := `
	INSERT INTO sessions (id, user_id, created_at, expires_at)
	VALUES (?, ?, ?, ?)`
	_, err := s.exec(ctx, query,
		session.ID, session.UserID, timeToString(session.CreatedAt), timeToString(session.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("保存会话失败: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	query := `
	SELECT id, user_id, created_at, expires_at
	FROM sessions
	WHERE id = ?`

	var session Session
	var createdAtStr, expiresAtStr string
	err := s.queryRow(ctx, query, id).Scan(&session.ID, &session.UserID, &createdAtStr, &expiresAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取会话失败: %w", err)
	}

	session.CreatedAt, err = stringToTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	session.ExpiresAt, err = stringToTime(expiresAtStr)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteSession 删除会话，不存在时不报错
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.exec(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("删除会话失败: %w", err)
	}
	return nil
}

// DeleteExpiredSessions 清理过期会话，返回删除条数
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	// RFC3339 UTC 字符串按字典序即时间序
	res, err := s.exec(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, timeToString(now))
	if err != nil {
		return 0, fmt.Errorf("清理会话失败: %w", err)
	}
	return res.RowsAffected()
}
