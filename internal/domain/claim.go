package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

type ClaimType string

const (
	ClaimBelief   ClaimType = "BELIEF"
	ClaimValue    ClaimType = "VALUE"
	ClaimTendency ClaimType = "TENDENCY"
	ClaimIdentity ClaimType = "IDENTITY"
	ClaimOntology ClaimType = "ONTOLOGY"
)

func ValidClaimType(t string) bool {
	switch ClaimType(t) {
	case ClaimBelief, ClaimValue, ClaimTendency, ClaimIdentity, ClaimOntology:
		return true
	}
	return false
}

type ClaimStatus string

const (
	StatusActive       ClaimStatus = "active"
	StatusRevised      ClaimStatus = "revised"
	StatusContradicted ClaimStatus = "contradicted"
)

// DefaultSubject is attributed to simple-form claims that name no subject.
const DefaultSubject = "self"

// Claim is a structured statement extracted from a source event. ClaimID is
// a pure function of (SourceEventID, RawText), so re-extracting the same
// event always yields the same identifier.
type Claim struct {
	ClaimID       string      `json:"claim_id"`
	SourceEventID int64       `json:"source_event_id"`
	Type          ClaimType   `json:"type"`
	Subject       string      `json:"subject"`
	Predicate     string      `json:"predicate"`
	Object        any         `json:"object"`
	RawText       string      `json:"raw_text"`
	Negated       bool        `json:"negated"`
	Strength      float64     `json:"strength"`
	Status        ClaimStatus `json:"status"`
}

// CanonicalJSON serializes the claim with sorted keys and no insignificant
// whitespace, so re-serialization of the same claim is byte-stable. This is
// the wire form stored in claim_register event content.
func (c *Claim) CanonicalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"claim_id":        c.ClaimID,
		"source_event_id": c.SourceEventID,
		"type":            c.Type,
		"subject":         c.Subject,
		"predicate":       c.Predicate,
		"object":          c.Object,
		"raw_text":        c.RawText,
		"negated":         c.Negated,
		"strength":        c.Strength,
		"status":          c.Status,
	})
}

var errClaimMissingID = errors.New("claim payload has no claim_id")

// ParseClaim decodes the content of a claim_register event.
func ParseClaim(content string) (*Claim, error) {
	var c Claim
	if err := json.Unmarshal([]byte(content), &c); err != nil {
		return nil, fmt.Errorf("decode claim payload: %w", err)
	}
	if c.ClaimID == "" {
		return nil, errClaimMissingID
	}
	return &c, nil
}
