package pipeline

import "strings"

// rejectPrefixLen is the fixed offset past which the rejection reason
// starts in a "REJECT ..." gate response.
const rejectPrefixLen = len("REJECT")

// defaultRejectReason is substituted when a gate rejects without saying why.
const defaultRejectReason = "No reason provided"

// verdict is the parsed outcome of one gate evaluation.
type verdict struct {
	passed bool
	reason string
}

// parseVerdict interprets raw gate model output. A response beginning with
// "PASS" (case-insensitive) passes; one beginning with "REJECT" fails, with
// the remainder taken as the rejection reason. Anything else passes:
// unparseable gate output is non-blocking, gates are a quality check and
// must never wedge a run on a chatty model.
func parseVerdict(raw string) verdict {
	trimmed := strings.TrimSpace(raw)
	upper := strings.ToUpper(trimmed)

	switch {
	case strings.HasPrefix(upper, "PASS"):
		return verdict{passed: true}
	case strings.HasPrefix(upper, "REJECT"):
		reason := strings.TrimSpace(trimmed[rejectPrefixLen:])
		if reason == "" {
			reason = defaultRejectReason
		}
		return verdict{reason: reason}
	default:
		return verdict{passed: true}
	}
}
