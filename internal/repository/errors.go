package repository

import (
	"errors"
)

// 对外可见的仓库错误（管理层直接透出）
var (
	// ErrCameraNotFound 相机不存在
	ErrCameraNotFound = errors.New("camera not found")
	// ErrDuplicateCamera 相机ID已存在
	ErrDuplicateCamera = errors.New("camera already exists")
)
