package cli

import (
	"errors"

	"github.com/JonMunkholm/persons/internal/core"
)

const (
	exitFailure   = 1
	exitCancelled = 2
)

// errorText prefers the mapped user message and keeps the technical error
// visible for anything unrecognized.
func errorText(err error) string {
	if core.IsUserFacing(err) {
		return core.FormatUserError(err) + "\n  cause: " + err.Error()
	}
	return err.Error()
}

func exitCode(err error) int {
	if errors.Is(err, core.ErrCancelled) {
		return exitCancelled
	}
	return exitFailure
}
