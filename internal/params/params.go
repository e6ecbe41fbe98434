// File path: internal/params/params.go
package params

import (
	"fmt"
	"regexp"
	"strings"
)

// Job numbers follow the ERP pattern: letter prefix, two digits, hyphen,
// five digits (e.g. J26-00010).
var jobNumPattern = regexp.MustCompile(`[A-Za-z]\d{2}-\d{5}`)

var (
	jobAliases   = []string{"job_num", "jobnum", "job_number"}
	shiftAliases = []string{"shift_name", "shiftname"}
)

// JobNum resolves a job number from the explicit parameter map, falling back
// to a scan of the question text. Returns "" when neither source yields a
// value; callers decide whether that is fatal for the chosen route.
func JobNum(params map[string]interface{}, question string) string {
	if value := lookup(params, jobAliases); value != "" {
		return strings.ToUpper(value)
	}
	if match := jobNumPattern.FindString(question); match != "" {
		return strings.ToUpper(match)
	}
	return ""
}

// ShiftName resolves a shift identifier from the parameter map. Shift names
// are not reliably extractable from free text, so there is no text fallback.
func ShiftName(params map[string]interface{}) string {
	return lookup(params, shiftAliases)
}

func lookup(params map[string]interface{}, aliases []string) string {
	for key, raw := range params {
		normalized := strings.ToLower(strings.TrimSpace(key))
		for _, alias := range aliases {
			if normalized == alias {
				if value := stringify(raw); value != "" {
					return value
				}
			}
		}
	}
	return ""
}

func stringify(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
