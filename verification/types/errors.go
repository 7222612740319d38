package types

import "fmt"

// UnsupportedVersionError is returned when a raw report carries a version
// discriminant this library cannot decode.
type UnsupportedVersionError struct {
	Version uint32
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported attestation report version %d (supported: 2, 3)", e.Version)
}

// UnsupportedFieldError is returned when a field is requested that does not
// exist in the report version at hand, e.g. CPUID information on a V2 report.
// Accessors never substitute a zero value for a missing field.
type UnsupportedFieldError struct {
	Field string
}

func (e *UnsupportedFieldError) Error() string {
	return fmt.Sprintf("field %q is not present in this report version", e.Field)
}
