package service

import (
	"context"
	"errors"
	"log"

	"TaskBoard/db"
)

// TaskInput 创建任务的字段
type TaskInput struct {
	Name    string
	Surname string
	Backlog string
	Process string
	Done    string
	Date    string
}

// StatusUpdate 三个状态字段的部分更新，nil 表示不变
type StatusUpdate struct {
	Backlog *string
	Process *string
	Done    *string
}

func (u StatusUpdate) apply(task *db.Task) {
	if u.Backlog != nil {
		task.Backlog = *u.Backlog
	}
	if u.Process != nil {
		task.Process = *u.Process
	}
	if u.Done != nil {
		task.Done = *u.Done
	}
}

// CreateTask 创建任务，归属当前登录用户
func (s *Service) CreateTask(ctx context.Context, sess Session, in TaskInput) (*db.Task, error) {
	task := &db.Task{
		Name:    in.Name,
		Surname: in.Surname,
		Backlog: in.Backlog,
		Process: in.Process,
		Done:    in.Done,
		Date:    in.Date,
		UserID:  sess.User.ID,
	}
	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, invalidInput(err)
	}
	log.Printf("创建任务: %d 由用户 %d", task.ID, sess.User.ID)
	return task, nil
}

// ListTasks 看板上的全部任务，不按用户过滤
func (s *Service) ListTasks(ctx context.Context) ([]db.Task, error) {
	return s.tasks.ListTasks(ctx)
}

func (s *Service) GetTask(ctx context.Context, id int64) (*db.Task, error) {
	return s.tasks.GetTask(ctx, id)
}

// TaskForEdit 取出任务并检查当前用户能否修改
func (s *Service) TaskForEdit(ctx context.Context, sess Session, id int64) (*db.Task, error) {
	task, err := s.tasks.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if !Allows(sess.Permission(), *task) {
		return nil, ErrForbidden
	}
	return task, nil
}

// UpdateTask 修改状态字段。先查是否存在，再检查权限
func (s *Service) UpdateTask(ctx context.Context, sess Session, id int64, update StatusUpdate) (*db.Task, error) {
	task, err := s.TaskForEdit(ctx, sess, id)
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			log.Printf("用户 %d 无权修改任务 %d", sess.User.ID, id)
		}
		return nil, err
	}

	update.apply(task)
	if err := s.tasks.UpdateTaskStatus(ctx, id, task.Backlog, task.Process, task.Done); err != nil {
		return nil, err
	}
	log.Printf("更新任务: %d 由用户 %d", id, sess.User.ID)
	return task, nil
}

// DeleteTask 删除任务，规则同 UpdateTask
func (s *Service) DeleteTask(ctx context.Context, sess Session, id int64) error {
	if _, err := s.TaskForEdit(ctx, sess, id); err != nil {
		if errors.Is(err, ErrForbidden) {
			log.Printf("用户 %d 无权删除任务 %d", sess.User.ID, id)
		}
		return err
	}
	if err := s.tasks.DeleteTask(ctx, id); err != nil {
		return err
	}
	log.Printf("删除任务: %d 由用户 %d", id, sess.User.ID)
	return nil
}
