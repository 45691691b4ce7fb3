// Package errors provides structured domain errors with machine-readable
// codes.
package errors

import stderrors "errors"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Attribute errors
	CodeAttributeUnknown   Code = "ATTRIBUTE_UNKNOWN"
	CodeAttributeMalformed Code = "ATTRIBUTE_MALFORMED"

	// Catalog errors
	CodeCatalogInvalid  Code = "CATALOG_INVALID"
	CodeCatalogEmpty    Code = "CATALOG_EMPTY"
	CodeCatalogNotFound Code = "CATALOG_NOT_FOUND"
	CodeFilterInvalid   Code = "FILTER_INVALID"

	// Rule set errors
	CodeRulesetLoad Code = "RULESET_LOAD"

	// Requirement errors
	CodeRequirementInvalid Code = "REQUIREMENT_INVALID"

	// Storage errors
	CodeNotFound     Code = "NOT_FOUND"
	CodeStorageWrite Code = "STORAGE_WRITE"
)

// Exit statuses follow the BSD sysexits convention.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 64
	ExitDataErr = 65
	ExitNoInput = 66
	ExitIOErr   = 74
	ExitConfig  = 78
)

// ExitStatus maps domain codes to process exit statuses.
func (c Code) ExitStatus() int {
	switch c {
	case CodeAttributeUnknown,
		CodeAttributeMalformed,
		CodeFilterInvalid,
		CodeRequirementInvalid:
		return ExitUsage

	case CodeCatalogInvalid,
		CodeCatalogEmpty:
		return ExitDataErr

	case CodeCatalogNotFound,
		CodeNotFound:
		return ExitNoInput

	case CodeRulesetLoad:
		return ExitConfig

	case CodeStorageWrite:
		return ExitIOErr

	default:
		return ExitFailure
	}
}

// GetCode extracts the Code from an error chain, or CodeUnknown.
func GetCode(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// ExitStatusOf returns the exit status for err; nil maps to ExitOK.
func ExitStatusOf(err error) int {
	if err == nil {
		return ExitOK
	}
	return GetCode(err).ExitStatus()
}
