package selfmodel

import (
	"reflect"

	"github.com/selfmodel/mirror/internal/domain"
)

// Conflicts reports whether two claims are in logical conflict. The
// relation is symmetric and irreflexive: a claim never conflicts with
// itself, and claims about different subjects never conflict. Two claims on
// the same (subject, predicate) conflict when their objects differ with
// neither negated, or when exactly one is negated on an otherwise identical
// triple.
func Conflicts(a, b *domain.Claim) bool {
	if a.ClaimID == b.ClaimID {
		return false
	}
	if a.Subject != b.Subject || a.Predicate != b.Predicate {
		return false
	}

	sameObject := objectsEqual(a.Object, b.Object)
	if a.Negated != b.Negated {
		return sameObject
	}
	if a.Negated {
		// Both negated: two denials cannot contradict each other.
		return false
	}
	return !sameObject
}

// DetectContradictions compares a candidate claim against the existing
// active set and returns the conflicting claim ids in input order.
func DetectContradictions(existing []domain.Claim, candidate *domain.Claim) []string {
	var conflicting []string
	for i := range existing {
		if existing[i].Status != domain.StatusActive {
			continue
		}
		if Conflicts(&existing[i], candidate) {
			conflicting = append(conflicting, existing[i].ClaimID)
		}
	}
	return conflicting
}

func objectsEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
