package intent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/corridorhq/copilot/corridor"
)

// remittanceTemplate builds a ready-to-edit remittance request body for the
// first corridor the query resolves to, with sample values for every
// mandatory field.
func (r *Router) remittanceTemplate(query string) *Answer {
	normalized := strings.ToLower(query)
	if !strings.Contains(normalized, "remittance") && !strings.Contains(normalized, "payout") {
		return nil
	}
	if payinHints.containsAny(normalized) && !payoutHints.containsAny(normalized) {
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

		template := r.buildRemittanceTemplate(c, methodName, channelName, channelSchema, true)

		payout, _ := template["payout"].(map[string]any)
		details, _ := payout["details"].(map[string]any)
		snippet, _ := json.Marshal(details)

		text := fmt.Sprintf(
			"Use the following remittance object for %s/%s %s (%s) payouts (inline beneficiary). Update placeholder values before calling the remittance API.\n```json\n%s\n```",
			c.Currency, c.Country, methodName, channelName, renderJSON(template),
		)
		return &Answer{
			Text:      text,
			Citations: []Citation{r.schemaCitation(c, truncate(string(snippet), 200))},
		}
	}
	return nil
}

func (r *Router) buildRemittanceTemplate(c corridor.Corridor, methodName, channelName string, channelSchema map[string]any, inlineBeneficiary bool) map[string]any {
	working := make(map[string]any)
	for _, field := range requiredFieldList(channelSchema) {
		working[field] = sampleValue(field, c, propertyMeta(channelSchema, field))
	}

	purposeCode := popString(working, "remitPurposeCode", "IR001")
	sourceOfFunds := popString(working, "remitterSourceOfIncome", "Salary")

	var beneficiary map[string]any
	if inlineBeneficiary {
		beneficiary = buildInlineBeneficiary(working, c, methodName)
	} else {
		beneficiary = map[string]any{"id": "beneficiary_hash_id"}
	}

	remitter := buildRemitterSection(working)

	template := map[string]any{
		"beneficiary": beneficiary,
		"payout": map[string]any{
			"swiftFeeType":        "OUR",
			"scheduledPayoutDate": "2024-06-30",
			"tradeOrderID":        "TR012345",
			"serviceTime":         "2024-06-30",
			"preScreening":        false,
			"auditId":             112,
			"sourceAmount":        1000,
			"sourceCurrency":      c.Currency,
			"destinationAmount":   0,
			"method":              methodName,
			"channel":             channelName,
			"details":             working,
		},
		"purposeCode":   purposeCode,
		"sourceOfFunds": sourceOfFunds,
		"exemptionCode": "01",
	}
	if len(remitter) > 0 {
		template["remitter"] = remitter
	}
	return template
}

func buildRemitterSection(details map[string]any) map[string]any {
	mapping := []struct{ from, to string }{
		{"remitterName", "name"},
		{"remitterBankAccountNumber", "bankAccountNumber"},
		{"remitterAccountType", "accountType"},
		{"remitterContactNumber", "contactNumber"},
		{"remitterDob", "dob"},
		{"remitterAddress", "address"},
		{"remitterCity", "city"},
		{"remitterPostcode", "postcode"},
		{"remitterState", "state"},
		{"remitterCountryCode", "countryCode"},
		{"remitterNationality", "nationality"},
		{"remitterIdentificationType", "identificationType"},
		{"remitterIdentificationNumber", "identificationNumber"},
	}
	remitter := make(map[string]any)
	for _, m := range mapping {
		value, ok := details[m.from]
		if !ok {
			continue
		}
		delete(details, m.from)
		if m.to == "accountType" {
			if s, ok := value.(string); ok {
				value = strings.ToUpper(s)
			}
		}
		remitter[m.to] = value
	}
	return remitter
}

func buildInlineBeneficiary(details map[string]any, c corridor.Corridor, methodName string) map[string]any {
	beneficiary := make(map[string]any)
	for _, m := range []struct{ from, to string }{
		{"beneficiaryName", "name"},
		{"remitterBeneficiaryRelationship", "remitterBeneficiaryRelationship"},
		{"beneficiaryAccountType", "accountType"},
	} {
		value, ok := details[m.from]
		if !ok {
			continue
		}
		delete(details, m.from)
		if m.to == "accountType" {
			if s, ok := value.(string); ok {
				value = strings.ToUpper(s)
			}
		}
		beneficiary[m.to] = value
	}

	address := map[string]any{"type": "BILLING"}
	addressPresent := false
	for _, m := range []struct{ from, to string }{
		{"beneficiaryAddress", "line1"},
		{"beneficiaryCity", "city"},
		{"beneficiaryState", "state"},
		{"beneficiaryPostcode", "postalCode"},
		{"beneficiaryCountryCode", "countryCode"},
	} {
		if value, ok := details[m.from]; ok {
			delete(details, m.from)
			address[m.to] = value
			addressPresent = true
		}
	}
	if addressPresent {
		beneficiary["addresses"] = []any{address}
	}

	countryCode := c.Currency[:2]
	if value, ok := address["countryCode"].(string); ok && value != "" {
		countryCode = value
	}

	for _, key := range []string{"beneficiaryContactNumber", "beneficiarycontactnumber"} {
		if value, ok := details[key]; ok {
			delete(details, key)
			beneficiary["contactNumber"] = map[string]any{
				"countryCode": countryCode,
				"number":      value,
			}
			break
		}
	}

	idType := popString(details, "beneficiaryIdentificationType", "")
	idValue := popString(details, "beneficiaryIdentificationValue", "")
	if idType != "" || idValue != "" {
		if idType == "" {
			idType = "ID"
		}
		if idValue == "" {
			idValue = "ID123456"
		}
		beneficiary["identification"] = map[string]any{"type": idType, "value": idValue}
	}

	paymentAccount := map[string]any{
		"payoutMethod":   methodNameToPayout(methodName),
		"payoutCurrency": c.Currency,
	}
	if value, ok := details["destinationCurrency"].(string); ok {
		paymentAccount["payoutCurrency"] = value
	}
	for _, m := range []struct{ from, to string }{
		{"beneficiaryBankAccountType", "accountType"},
		{"beneficiaryBankName", "bankName"},
		{"beneficiaryBankCode", "bankCode"},
		{"beneficiaryAccountNumber", "accountNumber"},
	} {
		value, ok := details[m.from]
		if !ok {
			continue
		}
		delete(details, m.from)
		if m.to == "accountType" {
			if s, ok := value.(string); ok {
				value = strings.ToUpper(s)
			}
		}
		paymentAccount[m.to] = value
	}

	routingType := normalizeRoutingType(popString(details, "routingCodeType1", ""))
	routingValue := popString(details, "routingCodeValue1", "")
	if routingType != "" || routingValue != "" {
		if routingType == "" {
			routingType = "TYPE"
		}
		if routingValue == "" {
			routingValue = "CODE123"
		}
		paymentAccount["routingCode"] = []any{map[string]any{"type": routingType, "value": routingValue}}
	}

	proxyType := popString(details, "proxy_type", "")
	if proxyType == "" {
		proxyType = popString(details, "proxyType", "")
	}
	proxyValue := popString(details, "proxy_value", "")
	if proxyValue == "" {
		proxyValue = popString(details, "proxyValue", "")
	}
	if proxyType != "" {
		paymentAccount["proxyType"] = proxyType
	}
	if proxyValue != "" {
		paymentAccount["proxyValue"] = proxyValue
	}

	return map[string]any{
		"beneficiary":    beneficiary,
		"paymentAccount": paymentAccount,
	}
}

func methodNameToPayout(methodName string) string {
	switch methodName {
	case "bank":
		return "BANK_TRANSFER"
	case "proxy":
		return "PROXY"
	case "card":
		return "CARD"
	case "cash":
		return "CASH"
	case "wallet":
		return "WALLET"
	}
	return strings.ToUpper(methodName)
}

func normalizeRoutingType(routingType string) string {
	if routingType == "" {
		return ""
	}
	upper := strings.TrimSpace(strings.ToUpper(routingType))
	mapping := map[string]string{
		"SWIFT":               "SWIFT",
		"SWIFT CODE":          "SWIFT",
		"LOCATION ID OR SWIFT": "SWIFT",
		"IFSC":                "IFSC",
		"SORT CODE":           "SORT_CODE",
		"TRANSIT NUMBER":      "TRANSIT",
		"ACH CODE":            "ACH",
		"ROUTING NUMBER":      "ACH",
		"BSB CODE":            "BSB",
		"BRANCH CODE":         "BRANCH",
	}
	if normalized, ok := mapping[upper]; ok {
		return normalized
	}
	return upper
}

// sampleValue invents a plausible placeholder for a required schema field.
func sampleValue(field string, c corridor.Corridor, meta map[string]any) any {
	fieldLower := strings.ToLower(field)
	pattern, _ := meta["pattern"].(string)

	switch {
	case strings.Contains(fieldLower, "currency"):
		return c.Currency
	case strings.Contains(fieldLower, "destinationamount"):
		return 0
	case strings.Contains(fieldLower, "amount"):
		return 1000
	case strings.Contains(fieldLower, "transaction"):
		return fmt.Sprintf("%s-%s-TXN-001", c.Currency, strings.ToUpper(field[:3]))
	case strings.Contains(fieldLower, "remitter") && strings.Contains(fieldLower, "name"):
		return "ACME Exporters"
	case strings.Contains(fieldLower, "beneficiary") && strings.Contains(fieldLower, "name"):
		return "ACME Recipient"
	case strings.Contains(fieldLower, "account") && strings.Contains(fieldLower, "type"):
		patternLower := strings.ToLower(pattern)
		if strings.Contains(patternLower, "company") {
			return "Company"
		}
		return "Individual"
	case strings.Contains(fieldLower, "account"):
		return "123456789012"
	case strings.Contains(fieldLower, "routingcodevalue"):
		return "CODE123"
	case strings.Contains(fieldLower, "routingcodetype"):
		if fields := strings.Fields(pattern); len(fields) > 0 {
			token := strings.Trim(fields[0], "'\"")
			return strings.ToUpper(token)
		}
		return "SWIFT"
	case strings.Contains(fieldLower, "countrycode"):
		return c.Currency[:2]
	case strings.Contains(fieldLower, "postcode"), strings.Contains(fieldLower, "postal"):
		return "560001"
	case strings.Contains(fieldLower, "city"):
		return "Bengaluru"
	case strings.Contains(fieldLower, "address"):
		return "221B Baker Street"
	case strings.Contains(fieldLower, "dob"), strings.Contains(fieldLower, "date"):
		return "1985-01-15"
	case strings.Contains(fieldLower, "contact"), strings.Contains(fieldLower, "phone"):
		return "+6512345678"
	case strings.Contains(fieldLower, "remitterbeneficiaryrelationship"):
		return "Business"
	case strings.Contains(fieldLower, "purpose"):
		return "IR001"
	case strings.Contains(fieldLower, "sourceoffunds"):
		return "Salary"
	case strings.Contains(fieldLower, "proxy_type"):
		return "MOBILE"
	case strings.Contains(fieldLower, "proxy_value"):
		return "+6591234567"
	}
	if fields := strings.Fields(pattern); len(fields) > 0 && strings.ContainsFunc(pattern, func(r rune) bool { return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' }) {
		example := strings.Trim(fields[0], "'\"")
		if example != "" && letterOnly(example) {
			return example
		}
	}
	return "value"
}

func letterOnly(text string) bool {
	for _, r := range text {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return len(text) > 0
}

func popString(details map[string]any, key, fallback string) string {
	value, ok := details[key]
	if !ok {
		return fallback
	}
	delete(details, key)
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

// buildTransferRequest reshapes a corridor's mandatory fields into the
// transfer money request body the public API expects.
func (r *Router) buildTransferRequest(c corridor.Corridor, methodName string, channelSchema map[string]any, fields []string) map[string]any {
	countryCode := "SG"
	if len(c.Country) >= 2 {
		countryCode = c.Country[:2]
	}

	beneficiaryDetail := make(map[string]any)
	payoutDetail := map[string]any{
		"payout_method":        strings.ToUpper(methodName),
		"destination_currency": c.Currency,
	}
	request := map[string]any{
		"payoutDetail": payoutDetail,
		"payout": map[string]any{
			"source_currency":    "USD",
			"destination_amount": 1000.00,
			"source_amount":      1000.00,
			"audit_id":           "[GET_FROM_FX_QUOTE]",
			"serviceTime":        "2024-01-15",
		},
		"deviceDetails": map[string]any{
			"countryIP":  "45.48.241.198",
			"deviceInfo": "Browser",
			"ipAddress":  "45.48.241.198",
			"sessionId":  "[GENERATE_SESSION_ID]",
		},
		"purposeCode":      "[REQUIRED]",
		"sourceOfFunds":    "Business Operations",
		"customerComments": "Transfer payment",
	}

	for _, field := range fields {
		lower := strings.ToLower(field)
		switch {
		case strings.Contains(lower, "beneficiary"):
			switch {
			case strings.Contains(lower, "name"):
				beneficiaryDetail["name"] = "[REQUIRED]"
			case strings.Contains(lower, "country"):
				beneficiaryDetail["country_code"] = countryCode
			case strings.Contains(lower, "account") && strings.Contains(lower, "type"):
				beneficiaryDetail["account_type"] = "Individual"
			case strings.Contains(lower, "account") && strings.Contains(lower, "number"):
				payoutDetail["account_number"] = "[REQUIRED]"
			case strings.Contains(lower, "address"):
				beneficiaryDetail["address"] = "[REQUIRED]"
			case strings.Contains(lower, "city"):
				beneficiaryDetail["city"] = "[REQUIRED]"
			case strings.Contains(lower, "postcode"):
				beneficiaryDetail["postcode"] = "[REQUIRED]"
			}
		case strings.Contains(lower, "remitter"):
			switch {
			case strings.Contains(lower, "name"):
				request["remitterName"] = "[REQUIRED]"
			case strings.Contains(lower, "country"):
				request["remitterCountryCode"] = countryCode
			case strings.Contains(lower, "account") && strings.Contains(lower, "type"):
				request["remitterAccountType"] = "Company"
			case strings.Contains(lower, "address"):
				request["remitterAddress"] = "[REQUIRED]"
			case strings.Contains(lower, "identification") && strings.Contains(lower, "type"):
				request["remitterIdType"] = "[REQUIRED]"
			case strings.Contains(lower, "identification") && strings.Contains(lower, "number"):
				request["remitterIdNumber"] = "[REQUIRED]"
			}
		case strings.Contains(lower, "routing"):
			if strings.Contains(lower, "type") {
				payoutDetail["routing_code_type_1"] = "SWIFT"
			} else if strings.Contains(lower, "value") {
				payoutDetail["routing_code_value_1"] = "[REQUIRED]"
			}
		case strings.Contains(lower, "proxy"):
			if strings.Contains(lower, "type") {
				proxyType := "MOBILE"
				if entries := r.proxyTypesFromSchema(c); len(entries) > 0 && len(entries[0].options) > 0 {
					proxyType = entries[0].options[0]
				}
				payoutDetail["proxy_type"] = proxyType
			} else if strings.Contains(lower, "value") {
				payoutDetail["proxy_value"] = "[REQUIRED]"
			}
		case strings.Contains(lower, "transaction") && strings.Contains(lower, "number"):
			request["externalId"] = "[REQUIRED]"
		case strings.Contains(lower, "purpose") && strings.Contains(lower, "code"):
			request["purposeCode"] = "[REQUIRED]"
		case strings.Contains(lower, "destination"):
			if strings.Contains(lower, "currency") {
				payoutDetail["destination_currency"] = c.Currency
			} else if strings.Contains(lower, "amount") {
				request["payout"].(map[string]any)["destination_amount"] = 1000.00
			}
		}
	}
	if len(beneficiaryDetail) > 0 {
		request["beneficiaryDetail"] = beneficiaryDetail
	}
	return request
}

// summarizeDifferences condenses two corridors' mandatory field gaps into a
// one or two sentence headline.
func summarizeDifferences(first, second corridor.Corridor, onlyA, onlyB []string, fieldsA, fieldsB map[string]string) string {
	var parts []string
	add := func(summary string) {
		if summary == "" {
			return
		}
		for _, existing := range parts {
			if existing == summary {
				return
			}
		}
		parts = append(parts, summary)
	}

	for _, field := range onlyA {
		add(routingFieldSummary(field, fieldsA[field], first))
	}
	for _, field := range onlyB {
		add(routingFieldSummary(field, fieldsB[field], second))
	}

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
	type pairDiff struct{ field, descA, descB string }
	var commonDiffs []pairDiff
	for _, field := range common {
		if fieldsA[field] != fieldsB[field] {
			commonDiffs = append(commonDiffs, pairDiff{field, fieldsA[field], fieldsB[field]})
			add(routingFieldSummary(field, fieldsA[field], first))
			add(routingFieldSummary(field, fieldsB[field], second))
		}
	}

	if len(parts) == 0 {
		for field := range fieldsA {
			if strings.EqualFold(field, "iban") {
				add(fmt.Sprintf("%s/%s relies on IBAN account format.", first.Currency, first.Country))
				break
			}
		}
	}
	if len(parts) > 0 {
		if len(parts) > 2 {
			parts = parts[:2]
		}
		return strings.Join(parts, " ")
	}

	if len(commonDiffs) > 0 {
		diff := commonDiffs[0]
		descA, descB := strings.ToLower(diff.descA), strings.ToLower(diff.descB)
		labelA := first.Currency + "/" + first.Country
		labelB := second.Currency + "/" + second.Country
		switch {
		case strings.Contains(descA, "swift") && strings.Contains(descB, "ifsc"):
			add(fmt.Sprintf("%s expects SWIFT, while %s uses IFSC for `%s`.", labelA, labelB, diff.field))
		case strings.Contains(descB, "swift") && strings.Contains(descA, "ifsc"):
			add(fmt.Sprintf("%s uses IFSC, whereas %s keeps SWIFT for `%s`.", labelA, labelB, diff.field))
		case strings.Contains(descB, "ach") && strings.Contains(descA, "ifsc"):
			add(fmt.Sprintf("%s requires IFSC while %s uses ACH routing.", labelA, labelB))
		case strings.Contains(descA, "ach") && strings.Contains(descB, "ifsc"):
			add(fmt.Sprintf("%s uses ACH routing whereas %s requires IFSC.", labelA, labelB))
		case strings.Contains(descA, "swift") && strings.Contains(descB, "ach"):
			add(fmt.Sprintf("%s requires SWIFT/BIC while %s relies on ACH routing.", labelA, labelB))
		case strings.Contains(descB, "swift") && strings.Contains(descA, "ach"):
			add(fmt.Sprintf("%s uses ACH routing whereas %s requires SWIFT/BIC.", labelA, labelB))
		}
	}

	if len(onlyA) > 0 {
		add(fmt.Sprintf("%s/%s adds `%s` to the mandatory list.", first.Currency, first.Country, onlyA[0]))
	}
	if len(onlyB) > 0 {
		add(fmt.Sprintf("%s/%s adds `%s` to the mandatory list.", second.Currency, second.Country, onlyB[0]))
	}
	if len(parts) == 0 {
		return "No differences in mandatory fields were found between these corridors."
	}
	return strings.Join(parts, " ")
}

func routingFieldSummary(field, desc string, c corridor.Corridor) string {
	fieldLower := strings.ToLower(field)
	descLower := strings.ToLower(desc)
	label := c.Currency + "/" + c.Country
	if strings.Contains(fieldLower, "routing") {
		switch {
		case strings.Contains(descLower, "ifsc"):
			return label + " requires IFSC routing (type/value)."
		case strings.Contains(descLower, "swift"), strings.Contains(descLower, "bic"):
			return label + " requires SWIFT/BIC routing (type/value)."
		case strings.Contains(descLower, "sort"), strings.Contains(descLower, "bsb"):
			return label + " expects local sort/BSB codes."
		}
	}
	if strings.Contains(descLower, "iban") || fieldLower == "iban" {
		return label + " relies on IBAN account format."
	}
	if strings.Contains(fieldLower, "accountnumber") && !strings.Contains(descLower, "iban") {
		return label + " needs the local account number."
	}
	if strings.Contains(fieldLower, "remittercity") {
		return label + " mandates remitter city."
	}
	if strings.Contains(fieldLower, "remitpurposecode") {
		return label + " requires a remit purpose code."
	}
	return ""
}

func renderJSON(value any) string {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
