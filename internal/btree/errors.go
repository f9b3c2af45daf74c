package btree

import "errors"

var (
	// ErrNotFound indicates Find did not locate the requested key.
	ErrNotFound = errors.New("btree: key not found")

	// ErrDuplicate indicates Add was called with replace=false against a
	// key already present in the tree.
	ErrDuplicate = errors.New("btree: key already exists")
)
