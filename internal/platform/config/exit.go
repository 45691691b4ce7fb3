package config

import (
	"fmt"
	"os"

	apperrors "github.com/louisbranch/charforge/internal/platform/errors"
)

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(apperrors.ExitFailure)
}

// ExitErr writes err, followed by its code and metadata when it has any, to
// stderr and exits with the status mapped from that code. A nil error
// returns without exiting.
func ExitErr(prefix string, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", prefix, err)
	if detail := apperrors.Describe(err); detail != "" {
		fmt.Fprintf(os.Stderr, "  (%s)\n", detail)
	}
	os.Exit(apperrors.ExitStatusOf(err))
}
