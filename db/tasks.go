package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// 保存任务到数据库，回填 ID
func (s *Store) CreateTask(ctx context.Context, task *Task) error {
	query := `
	INSERT INTO tasks (name, surname, backlog, process, done, date, user_id)
	VALUES (?, ?, ?, ?, ?, ?, ?)`
	id, err := s.insert(ctx, query,
		task.Name, task.Surname, task.Backlog, task.Process, task.Done, task.Date, task.UserID,
	)
	if err != nil {
		if s.dialect.tooLong(err) {
			return ErrValueTooLong
		}
		return fmt.Errorf("保存任务失败: %w", err)
	}
	task.ID = id
	return nil
}

// 获取看板上的所有任务，按 ID 排序
func (s *Store) ListTasks(ctx context.Context) ([]Task, error) {
	query := `
	SELECT id, name, surname, backlog, process, done, date, user_id
	FROM tasks
	ORDER BY id ASC`

	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("查询任务失败: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("查询任务失败: %w", err)
	}
	return tasks, nil
}

func (s *Store) GetTask(ctx context.Context, id int64) (*Task, error) {
	query := `
	SELECT id, name, surname, backlog, process, done, date, user_id
	FROM tasks
	WHERE id = ?`
	return scanTask(s.queryRow(ctx, query, id))
}

// UpdateTaskStatus 只写三个状态字段
func (s *Store) UpdateTaskStatus(ctx context.Context, id int64, backlog, process, done string) error {
	res, err := s.exec(ctx,
		`UPDATE tasks SET backlog = ?, process = ?, done = ? WHERE id = ?`,
		backlog, process, done, id,
	)
	if err != nil {
		return fmt.Errorf("更新任务失败: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新任务失败: %w", err)
	}
	if n > 0 {
		return nil
	}
	// MySQL 在值没有变化时也返回 0，需要再确认一次行是否存在
	var one int
	err = s.queryRow(ctx, `SELECT 1 FROM tasks WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// 删除任务
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("删除任务失败: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("删除任务失败: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTask(row rowScanner) (*Task, error) {
	var task Task
	err := row.Scan(
		&task.ID, &task.Name, &task.Surname, &task.Backlog, &task.Process, &task.Done, &task.Date, &task.UserID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取任务失败: %w", err)
	}
	return &task, nil
}
