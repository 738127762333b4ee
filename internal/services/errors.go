package services

import "errors"

// 业务错误分类，handler层用errors.Is映射到HTTP状态码
var (
	ErrUnauthorized  = errors.New("access unauthorized")
	ErrDuplicateUser = errors.New("username or email already taken")
	ErrNotFound      = errors.New("resource not found")
	ErrEdgeNotFound  = errors.New("not following this user")
	ErrSelfLike      = errors.New("cannot like your own message")
	ErrValidation    = errors.New("invalid input")
)
