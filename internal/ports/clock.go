package ports

import "time"

// Clock abstracts time operations for testing.
// Session timeout arithmetic goes through this interface so the read loop
// can be exercised without real waiting.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep pauses execution for the specified duration.
	Sleep(d time.Duration)
}
