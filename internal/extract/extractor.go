// Package extract turns free-text assistant messages into structured claims.
// Extraction is a pure function: no I/O, no randomness, no shared state, and
// repeated calls over the same event yield identical claims in identical
// order.
//
// Two line forms are recognized:
//
//	CLAIM: {"type":"BELIEF","subject":"self","predicate":"is_deterministic","object":"always"}
//	BELIEF: I am deterministic
//
// Structured lines are decoded strictly; a malformed line is skipped and
// never blocks the rest of the message. Simple lines derive subject,
// predicate, and object by the fixed tokenization rule documented on
// splitRemainder.
package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/selfmodel/mirror/internal/domain"
)

// ClaimIDVersion pins the claim identifier scheme:
// hex(sha256("<source_event_id>:<raw_text>")) truncated to 16 characters.
// Changing the scheme invalidates every stored claim id, so it never changes
// silently.
const ClaimIDVersion = 1

const claimIDWidth = 16

const structuredToken = "CLAIM:"

// Prefix order is fixed; it is also the tie-break if one line somehow
// matches several (it cannot, prefixes are disjoint).
var simplePrefixes = []struct {
	prefix string
	typ    domain.ClaimType
}{
	{"BELIEF:", domain.ClaimBelief},
	{"VALUE:", domain.ClaimValue},
	{"TENDENCY:", domain.ClaimTendency},
	{"IDENTITY:", domain.ClaimIdentity},
	{"ONTOLOGY:", domain.ClaimOntology},
}

var validate = validator.New()

// structuredClaim is the strict schema for structured-form lines. Unknown
// fields are rejected by the decoder; field constraints by the validator.
type structuredClaim struct {
	Type      string   `json:"type" validate:"omitempty,oneof=BELIEF VALUE TENDENCY IDENTITY ONTOLOGY"`
	Subject   string   `json:"subject"`
	Predicate string   `json:"predicate" validate:"required"`
	Object    any      `json:"object"`
	Negated   bool     `json:"negated"`
	Strength  *float64 `json:"strength"`
}

// FromEvent extracts zero or more claims from a ledger event. Only
// assistant_message events are claim material; every other kind, including
// the projection's own rsm_update output, yields nothing.
func FromEvent(ev *domain.Event) []domain.Claim {
	if ev == nil || ev.Kind != domain.KindAssistantMessage {
		return nil
	}

	var claims []domain.Claim
	for _, line := range strings.Split(ev.Content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if c, ok := parseLine(line, ev.ID); ok {
			claims = append(claims, c)
		}
	}
	return claims
}

func parseLine(line string, sourceEventID int64) (domain.Claim, bool) {
	// Structured token first: CLAIM: requires a JSON object with an
	// explicit type.
	if rest, ok := strings.CutPrefix(line, structuredToken); ok {
		rest = strings.TrimSpace(rest)
		if !strings.HasPrefix(rest, "{") {
			return domain.Claim{}, false
		}
		return parseStructured(rest, line, sourceEventID, "")
	}

	for _, p := range simplePrefixes {
		rest, ok := strings.CutPrefix(line, p.prefix)
		if !ok {
			continue
		}
		rest = strings.TrimSpace(rest)
		if rest == "" {
			return domain.Claim{}, false
		}
		// A typed prefix may also carry the structured form; malformed
		// JSON skips the line rather than degrading to text.
		if strings.HasPrefix(rest, "{") {
			return parseStructured(rest, line, sourceEventID, p.typ)
		}
		return parseSimple(rest, line, sourceEventID, p.typ)
	}

	return domain.Claim{}, false
}

func parseStructured(payload, rawText string, sourceEventID int64, defaultType domain.ClaimType) (domain.Claim, bool) {
	var sc structuredClaim
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sc); err != nil {
		return domain.Claim{}, false
	}
	if err := validate.Struct(sc); err != nil {
		return domain.Claim{}, false
	}

	typ := domain.ClaimType(sc.Type)
	if sc.Type == "" {
		if defaultType == "" {
			return domain.Claim{}, false
		}
		typ = defaultType
	}

	subject := sc.Subject
	if subject == "" {
		subject = domain.DefaultSubject
	}

	strength := 1.0
	if sc.Strength != nil {
		strength = clampStrength(*sc.Strength)
	}

	return domain.Claim{
		ClaimID:       ClaimID(sourceEventID, rawText),
		SourceEventID: sourceEventID,
		Type:          typ,
		Subject:       subject,
		Predicate:     sc.Predicate,
		Object:        sc.Object,
		RawText:       rawText,
		Negated:       sc.Negated,
		Strength:      strength,
		Status:        domain.StatusActive,
	}, true
}

func parseSimple(text, rawText string, sourceEventID int64, typ domain.ClaimType) (domain.Claim, bool) {
	predicate, object, negated := splitRemainder(text)
	if predicate == "" {
		return domain.Claim{}, false
	}

	return domain.Claim{
		ClaimID:       ClaimID(sourceEventID, rawText),
		SourceEventID: sourceEventID,
		Type:          typ,
		Subject:       domain.DefaultSubject,
		Predicate:     predicate,
		Object:        object,
		RawText:       rawText,
		Negated:       negated,
		Strength:      1.0,
		Status:        domain.StatusActive,
	}, true
}

var negationMarkers = map[string]struct{}{
	"not": {}, "never": {}, "no": {}, "dont": {}, "doesnt": {},
	"wont": {}, "cant": {}, "cannot": {}, "isnt": {}, "arent": {},
}

var copulas = map[string]struct{}{
	"am": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "being": {}, "been": {},
}

var verbs = map[string]struct{}{
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {},
	"value": {}, "values": {}, "prefer": {}, "prefers": {},
	"avoid": {}, "avoids": {}, "prioritize": {}, "prioritizes": {},
	"tend": {}, "tends": {}, "believe": {}, "believes": {},
	"seek": {}, "seeks": {}, "favor": {}, "favors": {},
}

var pronouns = map[string]struct{}{"i": {}, "we": {}}

// splitRemainder derives (predicate, object, negated) from simple-form text
// by a fixed tokenization rule, not language understanding. The rule:
//
//  1. Tokenize on whitespace; tokens are compared lowercased with
//     surrounding punctuation and apostrophes stripped.
//  2. Negation markers seen before the predicate is settled set negated.
//  3. The first copula or known verb token anchors the predicate: a copula
//     followed by token X yields predicate "is_X" with the remaining tokens
//     as object; any other verb becomes the predicate itself.
//  4. With no verb-like token, the first token that is neither a
//     first-person pronoun nor a negation marker becomes the predicate.
//  5. An empty remainder yields a nil object.
//
// "I am deterministic" -> ("is_deterministic", nil, false)
// "I never guess"      -> ("guess", nil, true)
// Ambiguity under this rule is a documented convention, not a defect.
func splitRemainder(text string) (string, any, bool) {
	toks := strings.Fields(text)
	negated := false
	verbIdx := -1

	for i, t := range toks {
		n := normalizeToken(t)
		if _, neg := negationMarkers[n]; neg {
			negated = true
			continue
		}
		if _, cop := copulas[n]; cop {
			verbIdx = i
			break
		}
		if _, vb := verbs[n]; vb {
			verbIdx = i
			break
		}
	}

	var predicate string
	var rest []string

	if verbIdx == -1 {
		for i, t := range toks {
			n := normalizeToken(t)
			if _, p := pronouns[n]; p {
				continue
			}
			if _, neg := negationMarkers[n]; neg {
				continue
			}
			predicate = n
			rest = toks[i+1:]
			break
		}
	} else {
		v := normalizeToken(toks[verbIdx])
		rest = toks[verbIdx+1:]
		for len(rest) > 0 {
			n := normalizeToken(rest[0])
			if _, neg := negationMarkers[n]; !neg {
				break
			}
			negated = true
			rest = rest[1:]
		}
		if _, cop := copulas[v]; cop {
			if len(rest) > 0 {
				predicate = "is_" + normalizeToken(rest[0])
				rest = rest[1:]
			} else {
				predicate = "is"
			}
		} else {
			predicate = v
		}
	}

	var object any
	if len(rest) > 0 {
		object = strings.Join(rest, " ")
	}
	return predicate, object, negated
}

func normalizeToken(t string) string {
	t = strings.ToLower(t)
	t = strings.ReplaceAll(t, "'", "")
	return strings.Trim(t, ".,;:!?\"()[]")
}

// ClaimID derives the deterministic content-addressed identifier for a
// claim. SHA-256 here guards against accidental collision, not forgery; the
// scheme is pinned by ClaimIDVersion.
func ClaimID(sourceEventID int64, rawText string) string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(sourceEventID, 10) + ":" + rawText))
	return hex.EncodeToString(sum[:])[:claimIDWidth]
}

func clampStrength(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
