package utils

import "time"

// ToDuration converts a number of seconds from configuration to a time.Duration.
func ToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// ToDurationMs converts a number of milliseconds from configuration to a time.Duration.
func ToDurationMs(millis int) time.Duration {
	return time.Duration(millis) * time.Millisecond
}
