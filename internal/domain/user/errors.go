package user

import "errors"

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNicknameTaken   = errors.New("nickname belongs to another user")
)
