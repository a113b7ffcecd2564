package domain

import "errors"

// ErrInvalidInput 输入不合法（越界概率、未知期权类型等）
var ErrInvalidInput = errors.New("invalid input")
