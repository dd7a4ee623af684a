package probes

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gravito-framework/quasar-rmq/pkg/types"
)

// pmapSummaryMarker starts the aggregate line printed by pmap -d
const pmapSummaryMarker = "mapped"

var (
	pmapLabelled = regexp.MustCompile(`([A-Za-z][A-Za-z/_-]*):\s*(\d+)`)
	pmapDigits   = regexp.MustCompile(`\d+`)
)

// labels accepted for the "used" column, in order of preference
var pmapUsedLabels = []string{"used", "writeable/private", "writable/private", "writeable-private", "writable-private"}

// PmapArgs returns the pmap arguments for a device-format summary of pid
func PmapArgs(pid int32) []string {
	return []string{"-d", strconv.FormatInt(int64(pid), 10)}
}

// ParseMemoryMap reads the trailing summary line of pmap -d, e.g.
//
//	mapped: 102400K    writeable/private: 51200K    shared: 2048K
//
// Labelled values win when present; otherwise the first three integers are
// taken in the order mapped, used, shared.
func ParseMemoryMap(lines []string) (types.ProcessMemoryStats, error) {
	var last string
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			last = s
			break
		}
	}

	if last == "" {
		return types.ProcessMemoryStats{}, &MalformedOutputError{Tool: "pmap", Reason: "no output"}
	}
	if !strings.HasPrefix(last, pmapSummaryMarker) {
		return types.ProcessMemoryStats{}, &MalformedOutputError{Tool: "pmap", Reason: "summary line not found", Output: last}
	}

	if stats, ok := parseLabelledSummary(last); ok {
		return stats, nil
	}

	nums := pmapDigits.FindAllString(last, 3)
	if len(nums) < 3 {
		return types.ProcessMemoryStats{}, &MalformedOutputError{Tool: "pmap", Reason: "summary line has fewer than 3 values", Output: last}
	}

	var values [3]int64
	for i, s := range nums {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return types.ProcessMemoryStats{}, &MalformedOutputError{Tool: "pmap", Reason: "value out of range", Output: last}
		}
		values[i] = v
	}

	return types.ProcessMemoryStats{
		MappedKB: values[0],
		UsedKB:   values[1],
		SharedKB: values[2],
	}, nil
}

func parseLabelledSummary(line string) (types.ProcessMemoryStats, bool) {
	byLabel := make(map[string]int64)
	for _, m := range pmapLabelled.FindAllStringSubmatch(line, -1) {
		v, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return types.ProcessMemoryStats{}, false
		}
		byLabel[strings.ToLower(m[1])] = v
	}

	mapped, ok := byLabel["mapped"]
	if !ok {
		return types.ProcessMemoryStats{}, false
	}
	shared, ok := byLabel["shared"]
	if !ok {
		return types.ProcessMemoryStats{}, false
	}

	for _, label := range pmapUsedLabels {
		if used, ok := byLabel[label]; ok {
			return types.ProcessMemoryStats{MappedKB: mapped, UsedKB: used, SharedKB: shared}, true
		}
	}

	return types.ProcessMemoryStats{}, false
}
