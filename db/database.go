package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Options 数据库连接参数
type Options struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

// Store 基于 database/sql 的用户、任务、会话存储
type Store struct {
	db      *sql.DB
	dialect dialect
}

// Open 打开数据库连接并创建表
func Open(ctx context.Context, opts Options) (*Store, error) {
	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}

	dsn := opts.DSN
	if d.driver == "sqlite3" {
		dsn, err = sqliteDSN(dsn)
		if err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	if d.driver == "sqlite3" {
		// SQLite 只允许一个写连接；:memory: 库也只存在于单个连接里
		conn.SetMaxOpenConns(1)
	} else if opts.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(opts.MaxOpenConns)
		conn.SetMaxIdleConns(opts.MaxOpenConns)
		conn.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	s := &Store{db: conn, dialect: d}
	if err := s.createTables(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("创建表失败: %w", err)
	}

	log.Printf("[DB] %s 数据库初始化成功", d.driver)
	return s, nil
}

// sqliteDSN 确保数据目录存在并打开外键约束
func sqliteDSN(dsn string) (string, error) {
	if dsn == "" {
		dsn = "./data/scheduler.db"
	}
	path := dsn
	if i := strings.IndexRune(path, '?'); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimPrefix(path, "file:")
	if path != ":memory:" && path != "" {
		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return "", fmt.Errorf("创建数据目录失败: %w", err)
			}
		}
	}
	if !strings.Contains(dsn, "_foreign_keys") && !strings.Contains(dsn, "_fk") {
		if strings.Contains(dsn, "?") {
			dsn += "&_foreign_keys=on"
		} else {
			dsn += "?_foreign_keys=on"
		}
	}
	return dsn, nil
}

// createTables 创建数据库表
func (s *Store) createTables(ctx context.Context) error {
	for _, stmt := range s.dialect.tables {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	// 创建索引
	for _, stmt := range s.dialect.indexes {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// insert 执行 INSERT 并返回自增 ID
func (s *Store) insert(ctx context.Context, query string, args ...any) (int64, error) {
	if s.dialect.returning {
		var id int64
		err := s.db.QueryRowContext(ctx, s.dialect.rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

// 将time.Time转换为字符串存储
func timeToString(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// 将字符串转换为time.Time
func stringToTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
