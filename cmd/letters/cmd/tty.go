package cmd

import (
	"os"

	"github.com/mattn/go-isatty"
)

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// hasTTY reports whether both stdin and stdout are terminals.
func hasTTY() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}
