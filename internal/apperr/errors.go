// Package apperr defines the sentinel errors shared across Othala packages.
package apperr

import "errors"

var (
	// ErrNotFound indicates the node id is not present in the tree.
	ErrNotFound = errors.New("not found")

	// ErrCycle indicates a move that would place a folder inside itself
	// or one of its own descendants.
	ErrCycle = errors.New("move would create a cycle")

	// ErrFolderNotEmpty indicates a non-recursive remove of a folder that
	// still has children.
	ErrFolderNotEmpty = errors.New("folder is not empty")

	// ErrAlreadyExists indicates a create for an id the store already holds.
	ErrAlreadyExists = errors.New("already exists")

	// ErrClosed indicates an operation on a closed store or model.
	ErrClosed = errors.New("closed")
)
