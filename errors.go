package cryo

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrTypeMismatch is returned when an entity (or nested value) is not an instance of the expected type
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrInvalidValue is returned when a supplied value cannot be used where it was given
	//
	// e.g. a non-object value where a nested object was required, or a composite key with the wrong number of parts
	ErrInvalidValue = errors.New("invalid value")
	// ErrMetadataInconsistency is returned when a property tree is malformed
	ErrMetadataInconsistency = errors.New("metadata inconsistency")
	// ErrUnknownColumn is returned by single column reads/writes for a column name the mapper does not know
	ErrUnknownColumn = errors.New("unknown column")
)

// IsTypeMismatch checks if an error is or wraps ErrTypeMismatch
func IsTypeMismatch(err error) bool {
	return err != nil && errors.Is(err, ErrTypeMismatch)
}

// IsInvalidValue checks if an error is or wraps ErrInvalidValue
func IsInvalidValue(err error) bool {
	return err != nil && errors.Is(err, ErrInvalidValue)
}

// IsMetadataInconsistency checks if an error is or wraps ErrMetadataInconsistency
func IsMetadataInconsistency(err error) bool {
	return err != nil && errors.Is(err, ErrMetadataInconsistency)
}

func typeMismatchf(format string, args ...any) error {
	return errors.Wrapf(ErrTypeMismatch, format, args...)
}

func invalidValuef(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidValue, format, args...)
}

func metadataf(format string, args ...any) error {
	return errors.Wrapf(ErrMetadataInconsistency, format, args...)
}

func wrapf(err error, format string, args ...any) error {
	return errors.Wrapf(err, format, args...)
}

// markInvalid makes err also match ErrInvalidValue
func markInvalid(err error) error {
	return errors.Mark(err, ErrInvalidValue)
}
