package policy

// Internal verifies only properties derivable from the signature itself:
// aggregation-chain consistency and the calendar chain's relationship to
// it, with no external trust material.
var Internal = &Policy{
	Name: "INTERNAL",
	Rules: []Rule{
		ruleAggrChainTimeConsistency,
		ruleAggrChainInputHash,
		ruleAggrChainInternalConsistency,
		ruleCalChainInputEqualsAggrRoot,
		ruleCalChainTimeEqualsAggrTime,
	},
}

// CalendarBased additionally asks the extender to confirm the signature's
// calendar root against its own records at verification time.
var CalendarBased = &Policy{
	Name: "CALENDAR_BASED",
	Rules: []Rule{
		ruleExtenderChainMatch,
	},
}

// KeyBased verifies the calendar authentication record's embedded PKI
// signature against the configured trust store.
var KeyBased = &Policy{
	Name: "KEY_BASED",
	Rules: []Rule{
		ruleCalChainRootMatchesRecord,
		rulePKISignatureVerifies,
	},
}

// PublicationsFileBased verifies the signature's publication record
// against a fetched publications file.
var PublicationsFileBased = &Policy{
	Name: "PUBLICATIONS_FILE_BASED",
	Rules: []Rule{
		ruleCalChainRootMatchesRecord,
		rulePublicationFileMatch,
	},
}

// UserPublicationBased verifies the signature's calendar root against a
// caller-supplied publication string.
var UserPublicationBased = &Policy{
	Name: "USER_PUBLICATION_BASED",
	Rules: []Rule{
		ruleUserPublicationMatch,
	},
}

// General runs INTERNAL first. Only when INTERNAL is inconclusive (for
// example, no document hash was given) does it fall through
// USER_PUBLICATION_BASED → PUBLICATIONS_FILE_BASED → KEY_BASED →
// CALENDAR_BASED until one is conclusive. When INTERNAL passes, General
// returns Ok without consulting a user publication, the publications
// file, the trust store or the extender.
var General = &Policy{
	Name:  "GENERAL",
	Rules: Internal.Rules,
	Fallback: &Policy{
		Name:  "GENERAL/USER_PUBLICATION_BASED",
		Rules: UserPublicationBased.Rules,
		Fallback: &Policy{
			Name:  "GENERAL/PUBLICATIONS_FILE_BASED",
			Rules: PublicationsFileBased.Rules,
			Fallback: &Policy{
				Name:  "GENERAL/KEY_BASED",
				Rules: KeyBased.Rules,
				Fallback: &Policy{
					Name:  "GENERAL/CALENDAR_BASED",
					Rules: CalendarBased.Rules,
				},
			},
		},
	},
}
