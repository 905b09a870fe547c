package cli

import (
	"fmt"
	"io"
	"os"
	"sort"

	saerrors "github.com/byteness/supportaccess/errors"
)

// FormatErrorWithSuggestion writes error to stderr with suggestion if available.
// Returns the original error for chaining.
func FormatErrorWithSuggestion(err error) error {
	return FormatErrorWithSuggestionTo(os.Stderr, err)
}

// FormatErrorWithSuggestionTo writes to a specific writer (for testing).
// Returns the original error for chaining.
func FormatErrorWithSuggestionTo(w io.Writer, err error) error {
	if err == nil {
		return nil
	}

	ae, ok := saerrors.IsAccessError(err)
	if !ok {
		fmt.Fprintf(w, "Error: %v\n", err)
		return err
	}

	fmt.Fprintf(w, "Error: %s\n", ae.Error())
	if suggestion := ae.Suggestion(); suggestion != "" {
		fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
	}
	if ctx := ae.Context(); len(ctx) > 0 {
		keys := make([]string, 0, len(ctx))
		for k := range ctx {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(w, "\nDetails:\n")
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %s\n", k, ctx[k])
		}
	}
	return err
}
