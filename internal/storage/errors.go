package storage

import "errors"

var (
	ErrBlockNotFound   = errors.New("block not found")
	ErrReactorNotFound = errors.New("reactor not found")
	ErrBlockExists     = errors.New("block already exists")
	ErrVersionConflict = errors.New("block was modified concurrently")
)
