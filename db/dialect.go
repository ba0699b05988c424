package db

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// dialect 不同数据库驱动之间的差异：建表语句、占位符、取自增 ID、约束错误
type dialect struct {
	driver    string
	tables    []string
	indexes   []string
	numbered  bool // $1, $2 ... 形式的占位符
	returning bool // INSERT ... RETURNING id
	unique    func(error) bool
	tooLong   func(error) bool
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "sqlite3":
		return dialect{
			driver:  driver,
			tables:  []string{sqliteUserTable, sqliteTaskTable, sqliteSessionTable},
			indexes: sharedIndexes,
			unique:  isSQLiteUnique,
			tooLong: func(error) bool { return false },
		}, nil
	case "postgres", "pgx":
		return dialect{
			driver:    driver,
			tables:    []string{postgresUserTable, postgresTaskTable, postgresSessionTable},
			indexes:   sharedIndexes,
			numbered:  true,
			returning: true,
			unique:    isPostgresUnique,
			tooLong:   isPostgresTooLong,
		}, nil
	case "mysql":
		// MySQL 不支持 CREATE INDEX IF NOT EXISTS，索引写在建表语句里
		return dialect{
			driver:  driver,
			tables:  []string{mysqlUserTable, mysqlTaskTable, mysqlSessionTable},
			unique:  isMySQLUnique,
			tooLong: isMySQLTooLong,
		}, nil
	default:
		return dialect{}, fmt.Errorf("不支持的数据库驱动: %q", driver)
	}
}

// rebind 把 ? 占位符改写成 $n
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func isSQLiteUnique(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func isPostgresUnique(err error) bool { return postgresCode(err) == "23505" }

// 22001 string_data_right_truncation
func isPostgresTooLong(err error) bool { return postgresCode(err) == "22001" }

func postgresCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isMySQLUnique(err error) bool { return mysqlNumber(err) == 1062 }

// 1406 ER_DATA_TOO_LONG
func isMySQLTooLong(err error) bool { return mysqlNumber(err) == 1406 }

func mysqlNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

var sharedIndexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id)",
	"CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)",
}

const sqliteUserTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	surname TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'user',
	created_at TEXT NOT NULL,
	UNIQUE(name, surname)
);`

const sqliteTaskTable = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL DEFAULT '',
	surname TEXT NOT NULL DEFAULT '',
	backlog TEXT NOT NULL DEFAULT '',
	process TEXT NOT NULL DEFAULT '',
	done TEXT NOT NULL DEFAULT '',
	date TEXT NOT NULL DEFAULT '',
	user_id INTEGER NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);`

const sqliteSessionTable = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	expires_at TEXT NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);`

const postgresUserTable = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	surname TEXT NOT NULL,
	password_hash VARCHAR(255) NOT NULL,
	role VARCHAR(20) NOT NULL DEFAULT 'user',
	created_at VARCHAR(40) NOT NULL,
	UNIQUE (name, surname)
);`

const postgresTaskTable = `
CREATE TABLE IF NOT EXISTS tasks (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	surname TEXT NOT NULL DEFAULT '',
	backlog TEXT NOT NULL DEFAULT '',
	process TEXT NOT NULL DEFAULT '',
	done TEXT NOT NULL DEFAULT '',
	date TEXT NOT NULL DEFAULT '',
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE
);`

const postgresSessionTable = `
CREATE TABLE IF NOT EXISTS sessions (
	id VARCHAR(64) PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at VARCHAR(40) NOT NULL,
	expires_at VARCHAR(40) NOT NULL
);`

// 唯一键要求定长列，name/surname 用 VARCHAR(255)，超长时报 1406
const mysqlUserTable = `
CREATE TABLE IF NOT EXISTS users (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	surname VARCHAR(255) NOT NULL,
	password_hash VARCHAR(255) NOT NULL,
	role VARCHAR(20) NOT NULL DEFAULT 'user',
	created_at VARCHAR(40) NOT NULL,
	UNIQUE KEY uq_users_name_surname (name, surname)
)`

const mysqlTaskTable = `
CREATE TABLE IF NOT EXISTS tasks (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	name TEXT NOT NULL,
	surname TEXT NOT NULL,
	backlog TEXT NOT NULL,
	process TEXT NOT NULL,
	done TEXT NOT NULL,
	date TEXT NOT NULL,
	user_id BIGINT NOT NULL,
	INDEX idx_tasks_user_id (user_id),
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
)`

const mysqlSessionTable = `
CREATE TABLE IF NOT EXISTS sessions (
	id VARCHAR(64) PRIMARY KEY,
	user_id BIGINT NOT NULL,
	created_at VARCHAR(40) NOT NULL,
	expires_at VARCHAR(40) NOT NULL,
	INDEX idx_sessions_user_id (user_id),
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
)`
