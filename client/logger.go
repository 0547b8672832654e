package client

import "log"

var debugEnabled bool

// SetDebug toggles Debugf output.
func SetDebug(enabled bool) {
	debugEnabled = enabled
}

// Debugf logs only when debug output is enabled.
func Debugf(format string, args ...any) {
	if debugEnabled {
		log.Printf("[DEBUG] "+format, args...)
	}
}
