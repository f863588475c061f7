package service

import "errors"

var (
	// ErrBatchNotFound is returned when a batch id does not exist
	ErrBatchNotFound = errors.New("batch not found")

	// ErrEmptyComment is returned when a comment is blank after trimming
	ErrEmptyComment = errors.New("comment text is required")

	// ErrBatchExists is returned when creating a batch with a taken id
	ErrBatchExists = errors.New("batch already exists")
)
