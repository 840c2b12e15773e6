package audit

import "errors"

var (
	ErrStorageNotAvailable = errors.New("audit storage is unavailable")
	ErrInvalidEntry        = errors.New("invalid audit entry")
)
