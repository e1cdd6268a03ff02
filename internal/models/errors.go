package models

import "errors"

var (
	ErrInvalidValue  = errors.New("invalid value")
	ErrUnknownLesson = errors.New("unknown lesson")
)
