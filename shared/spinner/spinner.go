// Package spinner shows CLI progress while a scan runs.
package spinner

import (
	"os"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/term"
)

var loader *spinner.Spinner

// StartSpinner starts the CLI loading spinner on stderr. Nothing is drawn when
// stderr is not a terminal.
func StartSpinner(suffix string) {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return
	}
	loader = spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	loader.Color("yellow") //nolint:errcheck
	loader.Suffix = " " + suffix
	loader.Start()
}

// UpdateSpinner replaces the spinner text.
func UpdateSpinner(suffix string) {
	if loader != nil {
		loader.Lock()
		loader.Suffix = " " + suffix
		loader.Unlock()
	}
}

// StopSpinner stops the CLI loading spinner.
func StopSpinner() {
	if loader != nil {
		loader.Stop()
		loader = nil
	}
}
