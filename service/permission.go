package service

import "TaskBoard/db"

// Permission 修改/删除任务时的权限。只有 Admin 和 Owner 两种
type Permission interface {
	allows(task db.Task) bool
}

// Admin 可以修改任何任务
type Admin struct{}

// Owner 只能修改自己创建的任务
type Owner struct {
	UserID int64
}

func (Admin) allows(db.Task) bool { return true }

func (o Owner) allows(task db.Task) bool { return o.UserID == task.UserID }

// PermissionFor 由用户角色得到权限；未知角色按普通用户处理
func PermissionFor(user db.User) Permission {
	if user.IsAdmin() {
		return Admin{}
	}
	return Owner{UserID: user.ID}
}

// Allows 判断 p 能否修改或删除 task
func Allows(p Permission, task db.Task) bool {
	if p == nil {
		return false
	}
	return p.allows(task)
}
