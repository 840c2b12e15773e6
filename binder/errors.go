package binder

import "errors"

var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrMissingContentType   = errors.New("missing content type")
	ErrInvalidJSON          = errors.New("invalid JSON")
	// ErrBinderNotApplicable lets a binder step aside, e.g. for bodyless requests.
	ErrBinderNotApplicable = errors.New("binder not applicable")
)
