package intent

import (
	"regexp"
	"strings"
)

var (
	tokenRE        = regexp.MustCompile(`[A-Za-z0-9]+`)
	lowerTokenRE   = regexp.MustCompile(`[a-z0-9]+`)
	letterTokenRE  = regexp.MustCompile(`[a-z]+`)
	numberLikeRE   = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)
	bareKeyRE      = regexp.MustCompile(`([,{]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	bareValueRE    = regexp.MustCompile(`:\s*([^",{}\[\]\s]+)(\s*[,}])`)
	regexMarkerSet = `^[]{}()?*+|\d$`
)

var regexHints = newSet("regex", "regular", "expression", "pattern", "format")

var validateHints = newSet("validate", "validation", "validator", "validators", "check", "verify", "ensure")

var diffHints = newSet("differ", "difference", "differs", "different", "compare", "comparison", "versus", "vs")

var payoutHints = newSet(
	"payout", "payouts", "transfer", "remit", "remittance", "payment",
	"payments", "disbursement", "sender", "beneficiary", "proxy",
)

var payinHints = newSet(
	"payin", "payins", "deposit", "fund", "topup", "top-up",
	"incoming", "credit", "wallet", "receive",
)

var createPayoutPhrases = []string{
	"create payout",
	"create a payout",
	"submit payout",
	"payout api",
	"curl payout",
	"call the payout api",
}

// lowSignalTokens are too generic to disambiguate schema fields on their own.
var lowSignalTokens = newSet(
	"code", "codes", "number", "numbers", "value", "values", "field",
	"fields", "country", "currency", "account", "routing", "type", "types",
)

var queryStopwords = newSet(
	"the", "and", "for", "with", "should", "not", "more", "than", "only",
	"if", "in", "required", "can", "must", "length", "digits", "characters",
	"note", "into", "that", "this", "those", "these", "highlighted",
	"status", "conditionally", "mandatory", "require", "requires", "shall",
	"is", "be", "one", "of", "start", "case", "methods", "channels",
	"properties", "payout", "default", "bank", "local", "wire", "wallet",
	"provider", "contact", "insensitive", "special", "contain", "number",
	"value", "values", "routing", "code",
)

// optionStopwords filter schema prose when mining enum-like option tokens.
var optionStopwords = newSet(
	"REGEX", "SHOULD", "BE", "ONLY", "THESE", "SPECIAL", "CHARACTERS",
	"LENGTH", "MORE", "THAN", "LESS", "MINIMUM", "MAXIMUM", "DECIMAL",
	"DECIMALS", "ALPHANUMERIC", "REQUIRED", "MANDATORY", "OPTIONAL",
	"CONDITIONAL", "CONDITIONALLY", "HIGHLIGHTED", "STATUS", "PROXY",
	"VALUE", "VALUES", "CODE", "TABLE", "BELOW", "KINDLY", "REFER",
	"SHALL", "MUST", "TYPE", "TYPES", "INCLUDING", "NUMBER", "NUMBERS",
	"VALID",
)

type set map[string]struct{}

func newSet(values ...string) set {
	s := make(set, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

func (s set) has(value string) bool {
	_, ok := s[value]
	return ok
}

func (s set) containsAny(normalized string) bool {
	for value := range s {
		if strings.Contains(normalized, value) {
			return true
		}
	}
	return false
}

func (s set) diff(other set) set {
	out := make(set)
	for v := range s {
		if !other.has(v) {
			out[v] = struct{}{}
		}
	}
	return out
}

func (s set) intersect(other set) set {
	out := make(set)
	for v := range s {
		if other.has(v) {
			out[v] = struct{}{}
		}
	}
	return out
}

func normalizeTokens(text string) set {
	out := make(set)
	for _, tok := range lowerTokenRE.FindAllString(strings.ToLower(text), -1) {
		out[tok] = struct{}{}
	}
	return out
}

func letterTokens(text string) set {
	out := make(set)
	for _, tok := range letterTokenRE.FindAllString(strings.ToLower(text), -1) {
		out[tok] = struct{}{}
	}
	return out
}
