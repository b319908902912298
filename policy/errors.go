package policy

// ErrorCode is the closed set of rule-failure codes: every rule fails
// with exactly one of these, named for the rule it terminates (see
// DESIGN.md for how this list was chosen).
type ErrorCode int

const (
	// NoError marks a result that is not a failure.
	NoError ErrorCode = iota
	// AggrChainTimeInconsistent: an aggregation chain's time metadata
	// doesn't match its sibling chains.
	AggrChainTimeInconsistent
	// AggrChainInputHashMismatch: the aggregation chain's declared input
	// imprint (at the claimed level) doesn't equal the document hash.
	AggrChainInputHashMismatch
	// AggrChainInconsistent: an aggregation chain fails to reduce to a
	// single coherent root (level overflow, algorithm mismatch, etc).
	AggrChainInconsistent
	// CalChainInputMismatch: the calendar chain's input imprint isn't the
	// aggregation chain's computed root.
	CalChainInputMismatch
	// CalChainTimeMismatch: the calendar chain's registration time isn't
	// the aggregation chain's claimed aggregation time.
	CalChainTimeMismatch
	// CalChainRootMismatch: the calendar chain's root doesn't match the
	// authentication record or publication record's imprint.
	CalChainRootMismatch
	// PKISignatureInvalid: the calendar authentication record's PKI
	// signature does not verify against the configured trust store.
	PKISignatureInvalid
	// PublicationNotFound: no publications-file record matches the
	// signature's publication record.
	PublicationNotFound
	// UserPublicationMismatch: the caller-supplied publication string
	// doesn't match the calendar root at that publication time.
	UserPublicationMismatch
	// ExtenderChainMismatch: a chain returned by the extender doesn't
	// reduce to the stored aggregation root and publication time.
	ExtenderChainMismatch
	// MissingElement: a rule's required signature element (calendar
	// chain, auth record, publication record) is absent.
	MissingElement
)

var errorCodeNames = map[ErrorCode]string{
	NoError:                    "VER_ERR_NONE",
	AggrChainTimeInconsistent:  "VER_ERR_AGGR_CHAIN_TIME_INCONSISTENT",
	AggrChainInputHashMismatch: "VER_ERR_AGGR_CHAIN_INPUT_HASH_MISMATCH",
	AggrChainInconsistent:      "VER_ERR_AGGR_CHAIN_INCONSISTENT",
	CalChainInputMismatch:      "VER_ERR_CAL_CHAIN_INPUT_MISMATCH",
	CalChainTimeMismatch:       "VER_ERR_CAL_CHAIN_TIME_MISMATCH",
	CalChainRootMismatch:       "VER_ERR_CAL_CHAIN_ROOT_MISMATCH",
	PKISignatureInvalid:        "VER_ERR_PKI_SIGNATURE_INVALID",
	PublicationNotFound:        "VER_ERR_PUBLICATION_NOT_FOUND",
	UserPublicationMismatch:    "VER_ERR_USER_PUBLICATION_MISMATCH",
	ExtenderChainMismatch:      "VER_ERR_EXTENDER_CHAIN_MISMATCH",
	MissingElement:             "VER_ERR_MISSING_ELEMENT",
}

func (c ErrorCode) String() string {
	if n, ok := errorCodeNames[c]; ok {
		return n
	}
	return "VER_ERR_UNKNOWN"
}
