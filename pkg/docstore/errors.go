package docstore

import "errors"

var (
	// ErrNotFound indicates the document or version does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrVersionExists indicates the version was already written.
	ErrVersionExists = errors.New("document version already exists")
	// ErrInvalidAddress indicates a malformed collection, id, or version.
	ErrInvalidAddress = errors.New("invalid document address")
)
