package yachtsql

import (
	"github.com/lychee-technology/yachtsql/internal/common"
)

// ErrorKind represents the category of engine error.
type ErrorKind = common.ErrorKind

const (
	ErrorKindTypeMismatch   = common.ErrorKindTypeMismatch
	ErrorKindUnresolvedName = common.ErrorKindUnresolvedName
	ErrorKindArity          = common.ErrorKindArity
	ErrorKindOutOfBounds    = common.ErrorKindOutOfBounds
	ErrorKindInternal       = common.ErrorKindInternal
	ErrorKindCatalog        = common.ErrorKindCatalog
)

// Error is the unified engine error carrying a kind, a stable code and
// optional details.
type Error = common.Error

// NewError creates a new engine error.
func NewError(kind ErrorKind, code, message string) *Error {
	return common.NewError(kind, code, message)
}

// IsTypeMismatchError checks if an error is a type mismatch error.
func IsTypeMismatchError(err error) bool {
	return common.IsTypeMismatchError(err)
}

// IsUnresolvedNameError checks if an error is an unresolved name error.
func IsUnresolvedNameError(err error) bool {
	return common.IsUnresolvedNameError(err)
}

// IsOutOfBoundsError checks if an error is an out of bounds error.
func IsOutOfBoundsError(err error) bool {
	return common.IsOutOfBoundsError(err)
}

// IsInternalError checks if an error is an internal error.
func IsInternalError(err error) bool {
	return common.IsInternalError(err)
}

// IsCatalogError checks if an error is a catalog error.
func IsCatalogError(err error) bool {
	return common.IsCatalogError(err)
}
