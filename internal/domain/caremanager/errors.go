package caremanager

import "errors"

var (
	ErrCareManagerNotFound = errors.New("care manager not found")
	ErrNameRequired        = errors.New("care manager name is required")
)
