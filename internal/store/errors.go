package store

import "github.com/pkg/errors"

var (
	ErrBotNotFound = errors.New("bot not found")
	ErrBadDriver   = errors.New("unknown storage driver")
)
