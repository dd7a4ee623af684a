package probes

import (
	"strconv"
	"strings"
)

// ParsePID reads pidof output. Exactly one decimal PID is accepted;
// no process and several broker instances are both errors.
func ParsePID(lines []string) (int32, error) {
	raw := strings.Join(lines, "\n")
	fields := strings.Fields(raw)

	switch {
	case len(fields) == 0:
		return 0, &MalformedOutputError{Tool: "pidof", Reason: "no matching process"}
	case len(fields) > 1:
		return 0, &MalformedOutputError{Tool: "pidof", Reason: "more than one matching process", Output: raw}
	}

	token := fields[0]
	for _, r := range token {
		if r < '0' || r > '9' {
			return 0, &MalformedOutputError{Tool: "pidof", Reason: "pid is not numeric", Output: raw}
		}
	}

	pid, err := strconv.ParseInt(token, 10, 32)
	if err != nil || pid == 0 {
		return 0, &MalformedOutputError{Tool: "pidof", Reason: "pid out of range", Output: raw}
	}

	return int32(pid), nil
}
