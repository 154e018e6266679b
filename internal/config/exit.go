package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/rs/zerolog/log"
)

// WaitOnWindows pauses so users can read errors before the console closes.
func WaitOnWindows() {
	if runtime.GOOS == "windows" {
		fmt.Println()
		fmt.Println("Press Enter to exit...")
		fmt.Scanln()
	}
}

// FatalWithWait logs msg, waits on Windows and exits.
func FatalWithWait(format string, args ...any) {
	log.Error().Msgf(format, args...)
	WaitOnWindows()
	os.Exit(1)
}
