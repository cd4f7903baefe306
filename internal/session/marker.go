package session

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// markerPrefix is the fixed literal embedded in every completion marker.
// Unlikely to appear in legitimate command output.
const markerPrefix = "___SHELLMUX_DONE_"

// markerSeq disambiguates markers generated within the same nanosecond.
var markerSeq atomic.Uint64

// newMarker generates a unique completion marker from the high-resolution
// clock plus a process-wide counter. Uniqueness per invocation keeps output
// from a slow prior command from satisfying the current one.
func newMarker() string {
	return fmt.Sprintf("%s%d_%d___", markerPrefix, time.Now().UnixNano(), markerSeq.Add(1))
}

// frameCommand wraps a command so its completion is detectable in the byte
// stream without parsing the shell prompt. The shell echoes the marker
// immediately followed by $? with no intervening whitespace, so the digits
// after the marker are the command's exit status.
func frameCommand(command string) (framed, marker string) {
	marker = newMarker()
	framed = command + "; echo '" + marker + "'$?"
	return framed, marker
}

// extractCompletion scans output for the marker on its own line and, when
// found, returns the output preceding the marker line and the parsed exit
// status. The marker line must be newline-terminated before it counts as
// complete, so a split read can't yield a truncated exit code. exitCode is
// nil when the digits after the marker are missing or malformed.
func extractCompletion(output, marker string) (before string, exitCode *int, found bool) {
	output = normalizeNewlines(output)

	idx := markerLineIndex(output, marker)
	if idx < 0 {
		return "", nil, false
	}

	rest := output[idx+len(marker):]
	end := strings.IndexByte(rest, '\n')
	if end < 0 {
		// Marker arrived but its line is still incomplete.
		return "", nil, false
	}

	if code, ok := parseExitDigits(rest[:end]); ok {
		exitCode = &code
	}

	return output[:idx], exitCode, true
}

// markerLineIndex finds the marker at the start of a line. The echoed copy
// of the framed command also contains the marker text, but quoted, never at
// line start.
func markerLineIndex(output, marker string) int {
	if strings.HasPrefix(output, marker) {
		return 0
	}
	if idx := strings.Index(output, "\n"+marker); idx >= 0 {
		return idx + 1
	}
	return -1
}

// parseExitDigits parses the decimal exit status directly concatenated to
// the marker.
func parseExitDigits(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	code := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		code = code*10 + int(r-'0')
	}
	return code, true
}

// normalizeNewlines collapses the PTY's CRLF line endings and stray
// carriage returns.
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
