package db

import "errors"

var (
	// 按主键查询不到记录
	ErrNotFound = errors.New("record not found")
	// (name, surname) 已被注册
	ErrDuplicateUser = errors.New("user already exists")
	// 字段超出列的长度限制
	ErrValueTooLong = errors.New("value too long")
)
