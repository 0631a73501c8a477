package service

import "errors"

// 业务错误分类；调用方用 errors.Is 判断，错误文本可直接展示给用户
var (
	ErrInvalidTransition = errors.New("操作与当前状态不符")
	ErrNotFound          = errors.New("记录不存在")
	ErrValidation        = errors.New("参数校验失败")
)
