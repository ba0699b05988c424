package service

import (
	"errors"
	"fmt"

	"TaskBoard/db"
)

var (
	ErrInvalidCredentials = errors.New("invalid name, surname, or password")
	ErrUnauthorized       = errors.New("authentication required")
	ErrForbidden          = errors.New("permission denied")
	ErrValidation         = errors.New("validation failed")

	ErrNotFound      = db.ErrNotFound
	ErrDuplicateUser = db.ErrDuplicateUser
)

// ValidationError 必填字段缺失
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s is required", ErrValidation.Error(), e.Field)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Required 返回字段缺失错误
func Required(field string) error {
	return &ValidationError{Field: field}
}

// invalidInput 存储层拒绝的超长字段归为校验错误
func invalidInput(err error) error {
	if errors.Is(err, db.ErrValueTooLong) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return err
}
