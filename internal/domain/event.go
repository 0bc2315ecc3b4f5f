package domain

// Event kinds recognized by the ledger. The registry is enforced on append;
// unknown kinds are rejected rather than silently stored.
const (
	// KindAssistantMessage carries free-text agent output, the only kind the
	// claim extractor reads.
	KindAssistantMessage = "assistant_message"
	// KindUserMessage carries free-text user input. Stored for provenance,
	// never extracted.
	KindUserMessage = "user_message"
	// KindClaimRegister carries exactly one canonically serialized Claim.
	KindClaimRegister = "claim_register"
	// KindSelfModelUpdate carries a snapshot checkpoint. The projection must
	// never treat these as claim material, or the model would feed on its
	// own output.
	KindSelfModelUpdate = "rsm_update"
)

// Event is one immutable record in the append-only ledger. Hash covers
// (PrevHash, Kind, Content, Meta); ID and TS are assigned on append and TS
// is informational only, never an input to derived state.
type Event struct {
	ID       int64             `json:"id"`
	TS       string            `json:"ts"`
	Kind     string            `json:"kind"`
	Content  string            `json:"content"`
	Meta     map[string]string `json:"meta,omitempty"`
	PrevHash string            `json:"prev_hash"`
	Hash     string            `json:"hash"`
}
