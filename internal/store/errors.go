package store

import "errors"

// Errors for store context operations.
var (
	// ErrInvalidSlug indicates the directory name is not a valid store slug.
	ErrInvalidSlug = errors.New("invalid store slug")

	// ErrMissingFile indicates a required store file is absent.
	ErrMissingFile = errors.New("required store file missing")

	// ErrSchema indicates a store data file has the wrong shape.
	ErrSchema = errors.New("invalid store data schema")

	// ErrConfigValidation indicates config.json is missing required keys or malformed.
	ErrConfigValidation = errors.New("store config validation failed")

	// ErrPathEscape indicates a path resolves outside the store's directory tree.
	ErrPathEscape = errors.New("path escapes store bounds")
)
