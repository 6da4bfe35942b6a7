package services

import "errors"

var (
	ErrValidation          = errors.New("参数无效")
	ErrNotFound            = errors.New("会话不存在")
	ErrInvalidState        = errors.New("当前状态无法执行该操作")
	ErrFull                = errors.New("房间已满")
	ErrUnauthorized        = errors.New("只有房主可以执行该操作")
	ErrInsufficientPlayers = errors.New("玩家数量不足")
	// ErrStaleResolution 结算开始后阶段已被其他调用推进
	ErrStaleResolution = errors.New("阶段已被结算")
)
