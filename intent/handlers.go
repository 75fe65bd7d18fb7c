package intent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/corridorhq/copilot/corridor"
)

// channelFor narrows a corridor schema to the method/channel pair a query
// asked about (or the corridor defaults).
func (r *Router) channelFor(c corridor.Corridor, methodPref, channelPref string) (string, string, map[string]any) {
	schema, err := r.registry.Schema(c)
	if err != nil {
		return "", "", nil
	}
	methods := corridor.Methods(schema)
	if methods == nil {
		return "", "", nil
	}
	methodName, methodBlock := corridor.SelectMethod(methods, methodPref)
	if methodBlock == nil {
		return "", "", nil
	}
	channelName, channelSchema := corridor.SelectChannel(methodBlock, channelPref)
	if channelSchema == nil {
		return methodName, "", nil
	}
	return methodName, channelName, channelSchema
}

func requiredFieldList(channelSchema map[string]any) []string {
	raw, _ := channelSchema["required"].([]any)
	fields := make([]string, 0, len(raw))
	for _, item := range raw {
		if field, ok := item.(string); ok {
			fields = append(fields, field)
		}
	}
	return fields
}

func propertyMeta(channelSchema map[string]any, field string) map[string]any {
	properties, _ := channelSchema["properties"].(map[string]any)
	meta, _ := properties[field].(map[string]any)
	return meta
}

func propertyString(channelSchema map[string]any, field, key string) string {
	meta := propertyMeta(channelSchema, field)
	value, _ := meta[key].(string)
	return strings.TrimSpace(value)
}

// createPayout answers "how do I call the payout API" with a canned curl
// walkthrough.
func (r *Router) createPayout(query string) *Answer {
	normalized := strings.ToLower(query)
	if !strings.Contains(normalized, "payout") || !strings.Contains(normalized, "api") {
		return nil
	}
	matched := false
	for _, phrase := range createPayoutPhrases {
		if strings.Contains(normalized, phrase) {
			matched = true
			break
		}
	}
	if !matched {
		return nil
	}

	curl := "```bash\n" +
		"curl -X POST https://api.corridorhq.com/v1/payouts \\\n" +
		"  -H \"Authorization: Bearer <token>\" \\\n" +
		"  -H \"Content-Type: application/json\" \\\n" +
		"  -d '{\n" +
		"    \"country\": \"US\",\n" +
		"    \"currency\": \"USD\",\n" +
		"    \"amount\": 100.00,\n" +
		"    \"beneficiary\": {\n" +
		"      \"name\": \"ACME Recipient\",\n" +
		"      \"accountNumber\": \"1234567890\",\n" +
		"      \"routingCode\": { \"type\": \"ACH\", \"value\": \"021000021\" }\n" +
		"    },\n" +
		"    \"remitter\": {\n" +
		"      \"name\": \"ACME Sender\",\n" +
		"      \"accountNumber\": \"0987654321\"\n" +
		"    }\n" +
		"  }'\n" +
		"```"

	lines := []string{
		"POST `https://api.corridorhq.com/v1/payouts` with `Authorization: Bearer <token>` and `Content-Type: application/json`.",
		"Minimal example:",
		curl,
	}

	return &Answer{
		Text: strings.Join(lines, "\n"),
		Citations: []Citation{
			{
				Title:   "API Reference – Create Payout",
				URL:     r.docsBase + "/api#create-payout",
				Snippet: "POST /payouts",
			},
			{
				Title:   "Product Guide – Getting Started / Authentication",
				URL:     r.docsBase + "/docs/getting-started",
				Snippet: "Bearer token authentication",
			},
		},
	}
}

// payoutMethods lists the payout methods and channels for matched corridors.
func (r *Router) payoutMethods(query string) *Answer {
	normalized := strings.ToLower(query)
	if !strings.Contains(normalized, "payout") || !strings.Contains(normalized, "method") {
		return nil
	}
	if payinHints.containsAny(normalized) && !payoutHints.containsAny(normalized) {
		return nil
	}

	var results []string
	var citations []Citation
	seen := make(map[string]struct{})

	for _, c := range r.registry.Resolve(query) {
		schema, err := r.registry.Schema(c)
		if err != nil {
			continue
		}
		methods := corridor.Methods(schema)
		if len(methods) == 0 {
			continue
		}

		entries := make([]string, 0, len(methods))
		for _, methodName := range sortedMapKeys(methods) {
			block, _ := methods[methodName].(map[string]any)
			channels, _ := block["channels"].(map[string]any)
			if len(channels) > 0 {
				entries = append(entries, fmt.Sprintf("%s (%s)", methodName, strings.Join(sortedMapKeys(channels), ", ")))
			} else {
				entries = append(entries, methodName)
			}
		}

		key := c.Currency + "_" + c.Country
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		methodList := strings.Join(entries, ", ")
		results = append(results, fmt.Sprintf("%s/%s: %s", c.Currency, c.Country, methodList))
		citations = append(citations, r.schemaCitation(c, methodList))
	}

	if len(results) == 0 {
		return nil
	}

	lines := append([]string{"Available payout methods:"}, results...)
	return &Answer{Text: strings.Join(lines, "\n"), Citations: citations}
}

// proxyTypes lists supported proxy identifier types (mobile, UEN, VPA, ...)
// per corridor and channel.
func (r *Router) proxyTypes(query string) *Answer {
	normalized := strings.ToLower(query)
	if !strings.Contains(normalized, "proxy") {
		return nil
	}
	if payinHints.containsAny(normalized) && !payoutHints.containsAny(normalized) {
		return nil
	}

	corridors := r.registry.Resolve(query)
	tokens := letterTokens(normalized)

	// Narrow to an explicitly named country when the query has one.
	var specific []corridor.Corridor
	countryMentioned := false
	for _, c := range corridors {
		countryLower := strings.ToLower(c.Country)
		if strings.Contains(normalized, countryLower) {
			specific = append([]corridor.Corridor{c}, specific...)
			countryMentioned = true
		} else if corridorMentioned(c, normalized, tokens) {
			specific = append(specific, c)
			countryMentioned = true
		}
	}
	targets := corridors
	if countryMentioned && len(specific) > 0 {
		targets = specific[:1]
	}

	var results []string
	var citations []Citation
	seen := make(map[string]struct{})

	for _, c := range targets {
		for _, entry := range r.proxyTypesFromSchema(c) {
			key := c.Currency + "_" + c.Country + "_" + entry.channel
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			values := strings.Join(entry.options, ", ")
			if values == "" {
				values = "Not specified"
			}
			results = append(results, fmt.Sprintf("%s/%s (%s): %s", c.Currency, c.Country, entry.channel, values))
			citations = append(citations, r.schemaCitation(c, strings.Join(entry.options, ", ")))
		}
	}

	if len(results) == 0 {
		return nil
	}

	header := "Here are the proxy types supported for the matching corridors:"
	if countryMentioned && len(targets) == 1 {
		header = fmt.Sprintf("Here are the proxy types supported for %s:", targets[0].Country)
	}
	lines := append([]string{header}, results...)
	return &Answer{Text: strings.Join(lines, "\n"), Citations: citations}
}

type proxyEntry struct {
	channel string
	options []string
}

func (r *Router) proxyTypesFromSchema(c corridor.Corridor) []proxyEntry {
	schema, err := r.registry.Schema(c)
	if err != nil {
		return nil
	}
	methods := corridor.Methods(schema)
	proxyBlock, _ := methods["proxy"].(map[string]any)
	if proxyBlock == nil {
		return nil
	}
	channels, _ := proxyBlock["channels"].(map[string]any)

	var entries []proxyEntry
	for _, channelName := range sortedMapKeys(channels) {
		channelSchema, _ := channels[channelName].(map[string]any)
		if channelSchema == nil {
			continue
		}
		meta := propertyMeta(channelSchema, "proxy_type")
		var options []string
		if enum, ok := meta["enum"].([]any); ok {
			for _, item := range enum {
				options = append(options, fmt.Sprintf("%v", item))
			}
		} else {
			pattern, _ := meta["pattern"].(string)
			description, _ := meta["description"].(string)
			options = extractOptions(pattern, description)
		}
		if len(options) == 0 {
			continue
		}
		entries = append(entries, proxyEntry{channel: channelName, options: options})
	}
	return entries
}

// extractOptions mines option-like tokens out of schema pattern/description
// prose, skipping generic vocabulary.
func extractOptions(texts ...string) []string {
	seen := make(set)
	var options []string
	for _, text := range texts {
		if text == "" {
			continue
		}
		for _, token := range tokenRE.FindAllString(strings.ToUpper(text), -1) {
			if len(token) <= 1 {
				continue
			}
			if numberLikeRE.MatchString(token) {
				continue
			}
			if optionStopwords.has(token) {
				continue
			}
			if !seen.has(token) {
				seen[token] = struct{}{}
				options = append(options, token)
			}
		}
	}
	return options
}

func corridorMentioned(c corridor.Corridor, normalized string, tokens set) bool {
	for _, alias := range corridor.Aliases(c) {
		if tokens.has(alias) || strings.Contains(normalized, alias) {
			return true
		}
	}
	return false
}

// requiredFields answers "which fields are mandatory for <corridor>?" with
// the field list, a request template, and prerequisites.
func (r *Router) requiredFields(query string) *Answer {
	normalized := strings.ToLower(query)
	if !strings.Contains(normalized, "mandatory") && !strings.Contains(normalized, "required") {
		return nil
	}

	corridors := r.registry.Resolve(query)
	if len(corridors) == 0 {
		return nil
	}

	methodPref := corridor.DetectMethod(normalized)
	channelPref := corridor.DetectChannel(normalized)

	for _, c := range corridors {
		methodName, channelName, channelSchema := r.channelFor(c, methodPref, channelPref)
		if channelSchema == nil {
			continue
		}
		fields := requiredFieldList(channelSchema)
		if len(fields) == 0 {
			continue
		}

		lines := []string{fmt.Sprintf(
			"For %s/%s payouts using `%s` method (`%s` channel), the following fields are **mandatory**:",
			c.Currency, c.Country, methodName, channelName,
		)}
		for _, field := range fields {
			desc := propertyString(channelSchema, field, "description")
			if desc == "" {
				desc = "Required field"
			}
			if idx := strings.Index(strings.ToLower(desc), "should be"); idx >= 0 {
				if dot := strings.Index(desc, "."); dot > 0 {
					desc = desc[:dot+1]
				}
			}
			lines = append(lines, fmt.Sprintf("• `%s` - %s", field, annotateRoutingField(field, desc)))
		}

		request := r.buildTransferRequest(c, methodName, channelSchema, fields)
		lines = append(lines,
			"",
			"**Transfer Money API Request Format:**",
			"```json\nPOST /api/v1/client/{clientHashId}/customer/{customerHashId}/wallet/{walletHashId}/remittance\n\n"+renderJSON(request)+"\n```",
			"",
			"**Prerequisites:**",
			"1. Get FX quote first: `GET /lockExchangeRate` to obtain `audit_id`",
			"2. Ensure customer and wallet are created and active",
			"3. Validate purpose code for the corridor",
		)

		return &Answer{
			Text: strings.Join(lines, "\n"),
			Citations: []Citation{
				r.schemaCitation(c, truncate(strings.Join(fields, ", "), 200)),
				r.apiCitation(),
			},
		}
	}
	return nil
}

// annotateRoutingField tacks a short gloss onto routing code descriptions.
func annotateRoutingField(field, desc string) string {
	lower := strings.ToLower(field)
	upper := strings.ToUpper(desc)
	switch {
	case strings.Contains(lower, "routingcodetype"):
		switch {
		case strings.Contains(upper, "SWIFT"):
			return desc + " (Bank code identifier)"
		case strings.Contains(upper, "IFSC"):
			return desc + " (Bank IFSC code)"
		default:
			return desc + " (Routing/Bank code type)"
		}
	case strings.Contains(lower, "routingcodevalue"):
		switch {
		case strings.Contains(upper, "SWIFT"):
			return desc + " (Bank SWIFT/BIC code)"
		case strings.Contains(upper, "IFSC"):
			return desc + " (Bank IFSC code)"
		default:
			return desc + " (Bank routing code)"
		}
	}
	return desc
}

// mandatoryDifference compares the mandatory field sets of two corridors.
func (r *Router) mandatoryDifference(query string) *Answer {
	normalized := strings.ToLower(query)
	tokens := normalizeTokens(normalized)
	if len(tokens.intersect(diffHints)) == 0 && !diffHints.containsAny(normalized) {
		return nil
	}

	pair := r.registry.ComparisonPair(query, 2)
	if len(pair) < 2 {
		return nil
	}

	methodPref := corridor.DetectMethod(normalized)
	channelPref := corridor.DetectChannel(normalized)

	first, second := pair[0], pair[1]
	_, channelA, fieldsA := r.collectRequiredFields(first, methodPref, channelPref)
	_, channelB, fieldsB := r.collectRequiredFields(second, methodPref, channelPref)
	if len(fieldsA) == 0 || len(fieldsB) == 0 {
		return nil
	}

	var onlyA, onlyB []string
	for field := range fieldsA {
		if _, ok := fieldsB[field]; !ok {
			onlyA = append(onlyA, field)
		}
	}
	for field := range fieldsB {
		if _, ok := fieldsA[field]; !ok {
			onlyB = append(onlyB, field)
		}
	}
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	type fieldDiff struct {
		field, descA, descB string
	}
	var commonDiffs []fieldDiff
	var common []string
	for field := range fieldsA {
		if _, ok := fieldsB[field]; ok {
			common = append(common, field)
		}
	}
	sort.SliceStable(common, func(i, j int) bool {
		pi, pj := diffPriority(common[i]), diffPriority(common[j])
		if pi != pj {
			return pi < pj
		}
		return common[i] < common[j]
	})
	for _, field := range common {
		if fieldsA[field] != fieldsB[field] {
			commonDiffs = append(commonDiffs, fieldDiff{field: field, descA: fieldsA[field], descB: fieldsB[field]})
		}
	}

	summary := summarizeDifferences(first, second, onlyA, onlyB, fieldsA, fieldsB)
	lines := []string{summary}
	if strings.EqualFold(channelA, "local") && strings.EqualFold(channelB, "local") {
		lines = append(lines, "Core remitter and beneficiary fields remain aligned; see below for corridor-specific bank details.")
	}

	if len(onlyA) > 0 {
		lines = append(lines, fmt.Sprintf("• Required only for %s/%s:", first.Currency, first.Country))
		for _, field := range onlyA {
			lines = append(lines, formatFieldLine(field, fieldsA[field]))
		}
	}
	if len(onlyB) > 0 {
		lines = append(lines, fmt.Sprintf("• Required only for %s/%s:", second.Currency, second.Country))
		for _, field := range onlyB {
			lines = append(lines, formatFieldLine(field, fieldsB[field]))
		}
	}
	if len(commonDiffs) > 0 {
		lines = append(lines, "• Fields present in both but with different requirements:")
		for _, diff := range commonDiffs {
			descA, descB := diff.descA, diff.descB
			if descA == "" {
				descA = "see schema"
			}
			if descB == "" {
				descB = "see schema"
			}
			lines = append(lines, fmt.Sprintf("  - `%s` — %s/%s: %s | %s/%s: %s",
				diff.field, first.Currency, first.Country, descA, second.Currency, second.Country, descB))
		}
	}

	return &Answer{
		Text: strings.Join(lines, "\n"),
		Citations: []Citation{
			r.schemaCitation(first, truncate(strings.Join(onlyA, ", "), 200)),
			r.schemaCitation(second, truncate(strings.Join(onlyB, ", "), 200)),
		},
	}
}

func formatFieldLine(field, desc string) string {
	if desc != "" {
		return fmt.Sprintf("  - `%s` — %s", field, desc)
	}
	return fmt.Sprintf("  - `%s`", field)
}

func diffPriority(field string) int {
	lower := strings.ToLower(field)
	switch {
	case strings.Contains(lower, "routing"):
		return 0
	case strings.Contains(lower, "iban"):
		return 1
	case strings.Contains(lower, "account"):
		return 2
	case strings.Contains(lower, "remitter"):
		return 3
	}
	return 4
}

func (r *Router) collectRequiredFields(c corridor.Corridor, methodPref, channelPref string) (string, string, map[string]string) {
	methodName, channelName, channelSchema := r.channelFor(c, methodPref, channelPref)
	if channelSchema == nil {
		return methodName, channelName, nil
	}
	fields := make(map[string]string)
	for _, field := range requiredFieldList(channelSchema) {
		fields[field] = propertyString(channelSchema, field, "description")
	}
	return methodName, channelName, fields
}

func sortedMapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
