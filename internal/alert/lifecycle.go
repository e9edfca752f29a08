package alert

import (
	"time"

	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

// The transitions below mutate a in place and report whether anything
// changed. Resolved alerts accept no further changes.

func acknowledge(a *models.ScalingAlert, actor string, now time.Time) bool {
	if a.Resolved || a.Acknowledged {
		return false
	}
	a.Acknowledged = true
	a.AcknowledgedBy = actor
	at := now
	a.AcknowledgedAt = &at
	return true
}

func escalate(a *models.ScalingAlert, recipients []string) bool {
	if a.Resolved {
		return false
	}
	merged := mergeRecipients(a.EscalatedTo, recipients)
	if a.Escalated && len(merged) == len(a.EscalatedTo) {
		return false
	}
	a.Escalated = true
	a.EscalatedTo = merged
	return true
}

func resolve(a *models.ScalingAlert, now time.Time) bool {
	if a.Resolved {
		return false
	}
	a.Resolved = true
	at := now
	a.ResolvedAt = &at
	return true
}

func mergeRecipients(existing, added []string) []string {
	seen := make(map[string]bool, len(existing)+len(added))
	out := make([]string, 0, len(existing)+len(added))
	for _, list := range [][]string{existing, added} {
		for _, r := range list {
			if r == "" || seen[r] {
				continue
			}
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
