// Package service 包含了应用的业务逻辑层。
package service

import (
	"errors"

	"gorm.io/gorm"

	apperrors "scribe-eye-go/pkg/errors"
)

// dbError 把 gorm 错误转换成业务错误，记录不存在时返回 ErrNotFound。
func dbError(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.New(apperrors.ErrNotFound, what+" not found")
	}
	return apperrors.Wrap(apperrors.ErrDatabase, err, "database operation on "+what+" failed")
}
