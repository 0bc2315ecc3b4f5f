package domain

import "encoding/json"

// Snapshot is the materialized self-model view. It has no identity of its
// own: the same active claim set always produces the same snapshot.
type Snapshot struct {
	BehavioralTendencies map[string]float64 `json:"behavioral_tendencies"`
	KnowledgeGaps        []string           `json:"knowledge_gaps"`
	BeliefCount          int                `json:"belief_count"`
	ValueCount           int                `json:"value_count"`
	TendencyCount        int                `json:"tendency_count"`
	IdentityCount        int                `json:"identity_count"`
	ActiveClaimCount     int                `json:"active_claim_count"`
	Contradictions       [][2]string        `json:"contradictions"`
}

// CanonicalJSON serializes the snapshot with sorted keys and no
// insignificant whitespace. Used both for rsm_update event content and for
// change detection between checkpoints.
func (s *Snapshot) CanonicalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"behavioral_tendencies": s.BehavioralTendencies,
		"knowledge_gaps":        s.KnowledgeGaps,
		"belief_count":          s.BeliefCount,
		"value_count":           s.ValueCount,
		"tendency_count":        s.TendencyCount,
		"identity_count":        s.IdentityCount,
		"active_claim_count":    s.ActiveClaimCount,
		"contradictions":        s.Contradictions,
	})
}
