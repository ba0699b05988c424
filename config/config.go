package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAdminName     = "Admin"
	DefaultAdminSurname  = "User"
	DefaultAdminPassword = "admin123"
)

type Config struct {
	Port string

	DBDriver       string
	DBDSN          string
	DBMaxOpenConns int

	SessionSecret string
	SessionTTL    time.Duration
	CookieName    string
	CookieSecure  bool

	CORSOrigins []string

	AdminName     string
	AdminSurname  string
	AdminPassword string
	BcryptCost    int
}

// LoadDotenv 依次查找 .env 和 ../.env，找到第一个就加载。已设置的环境变量不会被覆盖
func LoadDotenv() {
	for _, p := range []string{".env", filepath.Join("..", ".env")} {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err != nil {
				log.Printf("[env] 加载 %s 失败: %v", p, err)
				return
			}
			log.Println("[env] loaded", p)
			return
		}
	}
}

// Load 从环境变量读取配置
func Load() (Config, error) {
	cfg := Config{
		Port:          getenv("PORT", "8080"),
		DBDriver:      getenv("DB_DRIVER", "sqlite3"),
		DBDSN:         os.Getenv("DB_DSN"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		CookieName:    getenv("COOKIE_NAME", "scheduler_session"),
		CookieSecure:  os.Getenv("COOKIE_SECURE") == "true",
		AdminName:     getenv("ADMIN_NAME", DefaultAdminName),
		AdminSurname:  getenv("ADMIN_SURNAME", DefaultAdminSurname),
		AdminPassword: getenv("ADMIN_PASSWORD", DefaultAdminPassword),
	}
	if cfg.DBDSN == "" && cfg.DBDriver == "sqlite3" {
		cfg.DBDSN = "./data/scheduler.db"
	}

	var err error
	if cfg.DBMaxOpenConns, err = getenvInt("DB_MAX_OPEN_CONNS", 10); err != nil {
		return Config{}, err
	}
	if cfg.BcryptCost, err = getenvInt("BCRYPT_COST", 0); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = getenvDuration("SESSION_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}

	// 允许逗号分隔的多个来源
	for _, p := range strings.Split(getenv("CORS_ORIGIN", "http://localhost:8080"), ",") {
		if o := strings.TrimRight(strings.TrimSpace(p), "/"); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	if cfg.DBDriver != "memory" && cfg.DBDSN == "" {
		return Config{}, fmt.Errorf("DB_DSN is required for driver %q", cfg.DBDriver)
	}
	return cfg, nil
}

// Addr 监听地址
func (c Config) Addr() string { return ":" + c.Port }

// UsesDefaultAdminPassword 管理员仍在使用默认密码
func (c Config) UsesDefaultAdminPassword() bool {
	return c.AdminPassword == DefaultAdminPassword
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", k, err)
	}
	return n, nil
}

func getenvDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", k, err)
	}
	return d, nil
}
