package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TaskBoard/config"
	"TaskBoard/db"
	"TaskBoard/service"
	"TaskBoard/web"
)

// store 服务层需要的仓库，外加关闭
type store interface {
	service.Store
	io.Closer
}

func main() {
	config.LoadDotenv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("配置加载失败:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("数据库初始化失败:", err)
	}
	defer st.Close()

	svc := service.New(st, service.Options{
		Secret:     []byte(cfg.SessionSecret),
		SessionTTL: cfg.SessionTTL,
		BcryptCost: cfg.BcryptCost,
	})

	if _, err := svc.PurgeExpiredSessions(ctx); err != nil {
		log.Println("[AUTH]", err)
	}
	created, err := svc.SeedAdmin(ctx, cfg.AdminName, cfg.AdminSurname, cfg.AdminPassword)
	if err != nil {
		log.Fatal("初始化管理员失败:", err)
	}
	if created {
		log.Printf("[AUTH] 已创建管理员 %s %s", cfg.AdminName, cfg.AdminSurname)
		if cfg.UsesDefaultAdminPassword() {
			log.Println("[AUTH] 警告: 管理员使用默认密码，请通过 ADMIN_PASSWORD 修改")
		}
	}
	go purgeLoop(ctx, svc, time.Hour)

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: web.New(svc, web.Options{
			CookieName:   cfg.CookieName,
			CookieSecure: cfg.CookieSecure,
			CORSOrigins:  cfg.CORSOrigins,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s (db=%s)", srv.Addr, cfg.DBDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("服务启动失败:", err)
		}
	case <-ctx.Done():
		log.Println("收到退出信号，正在关闭服务")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Println("关闭服务失败:", err)
		}
	}
}

func openStore(ctx context.Context, cfg config.Config) (store, error) {
	if cfg.DBDriver == "memory" {
		log.Println("[DB] 使用内存存储，重启后数据丢失")
		return db.NewMemoryStore(), nil
	}
	s, err := db.Open(ctx, db.Options{
		Driver:       cfg.DBDriver,
		DSN:          cfg.DBDSN,
		MaxOpenConns: cfg.DBMaxOpenConns,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// purgeLoop 定期清理过期会话
func purgeLoop(ctx context.Context, svc *service.Service, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.PurgeExpiredSessions(ctx); err != nil {
				log.Println("[AUTH]", err)
			}
		}
	}
}
