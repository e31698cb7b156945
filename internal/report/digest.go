package report

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/streakgate/internal/harness"
)

// DomainTrace separates trace digests from any other hash of the same bytes.
const DomainTrace = "streakgate/trace/v1"

// TraceSnapshot converts a result's trace into a map suitable for
// MarshalCanonical.
func TraceSnapshot(r *harness.Result) map[string]any {
	events := make([]any, len(r.Trace))
	for i, ev := range r.Trace {
		m := map[string]any{
			"seq":      ev.Seq,
			"scenario": ev.Scenario,
			"case":     ev.Case,
			"action":   ev.Action,
			"status":   ev.Status,
		}
		if ev.Detail != "" {
			m["detail"] = ev.Detail
		}
		events[i] = m
	}
	return map[string]any{"trace": events}
}

// TraceDigest is SHA256(domain + 0x00 + canonical trace), hex encoded.
// Two runs with the same digest issued the same calls and saw the same
// statuses.
func TraceDigest(r *harness.Result) (string, error) {
	canonical, err := MarshalCanonical(TraceSnapshot(r))
	if err != nil {
		return "", fmt.Errorf("trace digest: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(DomainTrace))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}
