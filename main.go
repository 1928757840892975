package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/drengskapur/codepick/cmd"
	"github.com/drengskapur/codepick/pkg/logging"
)

func main() {
	err := cmd.Execute()
	syncLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "codepick: %v\n", err)
		os.Exit(1)
	}
}

// syncLogger flushes the logger when stderr can be synced. Terminals and
// pipes report "invalid argument" on sync, which is not worth reporting.
func syncLogger() {
	if logging.Logger == nil {
		return
	}
	if !term.IsTerminal(int(os.Stderr.Fd())) && !isRegularFile(os.Stderr) {
		return
	}
	if syncErr := logging.Logger.Sync(); syncErr != nil {
		if !strings.Contains(strings.ToLower(syncErr.Error()), "invalid argument") {
			log.Printf("Logger sync failed: %v", syncErr)
		}
	}
}

// isRegularFile checks if the given file is a regular file.
func isRegularFile(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
