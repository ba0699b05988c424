package db

import "time"

// Role 用户权限等级
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User 用户，登录时以 (Name, Surname) 识别
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Surname      string    `json:"surname"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Task 看板上的任务。Name/Surname 是创建表单里填写的值，不引用用户表
type Task struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Backlog string `json:"backlog"`
	Process string `json:"process"`
	Done    string `json:"done"`
	Date    string `json:"date"`
	UserID  int64  `json:"user_id"`
}

// Session 服务端保存的登录会话
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
