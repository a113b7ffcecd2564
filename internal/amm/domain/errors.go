// Package domain 自动做市商（AMM）流动性池的领域模型
package domain

import "errors"

var (
	// ErrPoolNotFound 操作引用了不存在的流动性池
	ErrPoolNotFound = errors.New("liquidity pool not found")
	// ErrOrderTooLarge 交易量超过池的单笔上限
	ErrOrderTooLarge = errors.New("order exceeds max order size")
	// ErrInvalidInput 输入不合法（非正数量、未知方向等）
	ErrInvalidInput = errors.New("invalid input")
)
