package sourcegw

import "errors"

var (
	ErrNotFound     = errors.New("sourcegw: base not found")
	ErrTransport    = errors.New("sourcegw: transport failure")
	ErrDecode       = errors.New("sourcegw: decode failure")
	ErrUnauthorized = errors.New("sourcegw: unauthorized")
	ErrRateLimited  = errors.New("sourcegw: rate limited")
)
