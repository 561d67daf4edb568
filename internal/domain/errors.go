package domain

import "errors"

var (
	// ErrTopicNotFound means a required table has no row for the topic label.
	ErrTopicNotFound = errors.New("topic not found")

	// ErrFileNotFound means a required input table or the target document is absent.
	ErrFileNotFound = errors.New("file not found")

	// ErrMalformedRow means a row cannot be interpreted at all, e.g. a year
	// header that is not an integer or a required column that is missing.
	ErrMalformedRow = errors.New("malformed row")

	// ErrSchemaMismatch means the document or a table lacks the structure the
	// merge expects.
	ErrSchemaMismatch = errors.New("schema mismatch")
)
