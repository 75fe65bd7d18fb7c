package intent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/corridorhq/copilot/corridor"
	"github.com/corridorhq/copilot/validation"
)

func writeSchema(t *testing.T, dir, currency, country string, schema map[string]any) {
	t.Helper()
	data, err := json.Marshal(schema)
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}
	name := "schema_" + currency + "_" + country + ".json"
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
}

func bankChannel(required []any, properties map[string]any) map[string]any {
	return map[string]any{
		"default_channel": "local",
		"channels": map[string]any{
			"local": map[string]any{
				"type":       "object",
				"required":   required,
				"properties": properties,
			},
		},
	}
}

func testRouter(t *testing.T) *Router {
	t.Helper()
	dir := t.TempDir()

	writeSchema(t, dir, "SGD", "SINGAPORE", map[string]any{
		"payout_methods": map[string]any{
			"bank": bankChannel(
				[]any{"beneficiaryName", "beneficiaryAccountNumber", "routingCodeType1", "routingCodeValue1", "remitterName", "remitPurposeCode"},
				map[string]any{
					"beneficiaryName":          map[string]any{"type": "string", "description": "Full name of the beneficiary"},
					"beneficiaryAccountNumber": map[string]any{"type": "string", "pattern": "^[0-9]{8,12}$", "description": "Account number should be 8 to 12 digits. Must not contain spaces."},
					"routingCodeType1":         map[string]any{"type": "string", "pattern": "SWIFT", "description": "Routing code type should be SWIFT"},
					"routingCodeValue1":        map[string]any{"type": "string", "pattern": "^[A-Z0-9]{8,11}$", "description": "SWIFT code of the beneficiary bank"},
					"remitterName":             map[string]any{"type": "string", "description": "Name of the remitter"},
					"remitPurposeCode":         map[string]any{"type": "string", "description": "Purpose code for the remittance"},
				},
			),
			"proxy": map[string]any{
				"channels": map[string]any{
					"default": map[string]any{
						"type":     "object",
						"required": []any{"proxy_type", "proxy_value"},
						"properties": map[string]any{
							"proxy_type":  map[string]any{"type": "string", "enum": []any{"MOBILE", "UEN", "NRIC"}},
							"proxy_value": map[string]any{"type": "string", "description": "Proxy identifier value"},
						},
					},
				},
			},
		},
	})

	writeSchema(t, dir, "INR", "INDIA", map[string]any{
		"payout_methods": map[string]any{
			"bank": bankChannel(
				[]any{"beneficiaryName", "beneficiaryAccountNumber", "routingCodeType1", "routingCodeValue1", "remitterCity"},
				map[string]any{
					"beneficiaryName":          map[string]any{"type": "string", "description": "Full name of the beneficiary"},
					"beneficiaryAccountNumber": map[string]any{"type": "string", "pattern": "^[0-9]{9,18}$", "description": "Account number of the beneficiary"},
					"routingCodeType1":         map[string]any{"type": "string", "pattern": "IFSC", "description": "Routing code type should be IFSC"},
					"routingCodeValue1":        map[string]any{"type": "string", "pattern": "^[A-Z]{4}0[A-Z0-9]{6}$", "description": "IFSC code of the beneficiary bank"},
					"remitterCity":             map[string]any{"type": "string", "description": "City of the remitter"},
				},
			),
		},
	})

	writeSchema(t, dir, "AUD", "AUSTRALIA", map[string]any{
		"payout_methods": map[string]any{
			"bank": bankChannel(
				[]any{"beneficiaryName", "beneficiaryAccountNumber", "routingCodeType1", "routingCodeValue1"},
				map[string]any{
					"beneficiaryName":          map[string]any{"type": "string", "description": "Full name of the beneficiary"},
					"beneficiaryAccountNumber": map[string]any{"type": "string", "pattern": "^[0-9]{9,18}$", "description": "Account number of the beneficiary"},
					"routingCodeType1":         map[string]any{"type": "string", "pattern": "BSB CODE", "description": "Routing code type should be BSB CODE"},
					"routingCodeValue1":        map[string]any{"type": "string", "pattern": "^[0-9]{6}$", "description": "BSB code of the beneficiary bank should be 6 digits"},
				},
			),
		},
	})

	registry := corridor.NewRegistry(dir)
	return NewRouter(registry, validation.New(registry), "https://docs.corridorhq.com")
}

func TestRouteIgnoresEmptyAndUnmatchedQueries(t *testing.T) {
	r := testRouter(t)
	if answer := r.Route("   "); answer != nil {
		t.Fatalf("expected nil for blank query, got %+v", answer)
	}
	if answer := r.Route("hello there"); answer != nil {
		t.Fatalf("expected nil for small talk, got %q", answer.Text)
	}
}

func TestCreatePayoutAnswer(t *testing.T) {
	r := testRouter(t)
	answer := r.Route("How do I call the payout API?")
	if answer == nil {
		t.Fatal("expected a canned answer")
	}
	if !strings.Contains(answer.Text, "curl -X POST https://api.corridorhq.com/v1/payouts") {
		t.Fatalf("expected curl walkthrough, got:\n%s", answer.Text)
	}
	if len(answer.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(answer.Citations))
	}
	if answer.Citations[0].Title != "API Reference – Create Payout" {
		t.Fatalf("unexpected first citation: %q", answer.Citations[0].Title)
	}
}

func TestCreatePayoutRequiresPhrase(t *testing.T) {
	r := testRouter(t)
	if answer := r.createPayout("tell me about the payouts api schema"); answer != nil {
		t.Fatalf("expected nil without a create-payout phrase, got %q", answer.Text)
	}
}

func TestRequiredFieldsAnswer(t *testing.T) {
	r := testRouter(t)
	answer := r.Route("What fields are mandatory for SGD payouts?")
	if answer == nil {
		t.Fatal("expected an answer")
	}
	if !strings.Contains(answer.Text, "For SGD/SINGAPORE payouts using `bank` method (`local` channel)") {
		t.Fatalf("unexpected header:\n%s", answer.Text)
	}
	if !strings.Contains(answer.Text, "• `beneficiaryName` - Full name of the beneficiary") {
		t.Fatalf("expected field bullet:\n%s", answer.Text)
	}
	// "should be" descriptions are cut at the first sentence.
	if strings.Contains(answer.Text, "Must not contain spaces") {
		t.Fatalf("expected truncated description:\n%s", answer.Text)
	}
	if !strings.Contains(answer.Text, "**Transfer Money API Request Format:**") {
		t.Fatalf("expected request template:\n%s", answer.Text)
	}
	if !strings.Contains(answer.Text, "GET /lockExchangeRate") {
		t.Fatalf("expected prerequisites:\n%s", answer.Text)
	}
	if len(answer.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(answer.Citations))
	}
	if answer.Citations[0].Title != "schema_SGD_SINGAPORE.json" {
		t.Fatalf("unexpected schema citation: %q", answer.Citations[0].Title)
	}
	if answer.Citations[1].Title != "Create Payout API" {
		t.Fatalf("unexpected api citation: %q", answer.Citations[1].Title)
	}
}

func TestRequiredFieldsAnnotatesRoutingGlosses(t *testing.T) {
	r := testRouter(t)
	answer := r.requiredFields("mandatory fields for INR payouts")
	if answer == nil {
		t.Fatal("expected an answer")
	}
	if !strings.Contains(answer.Text, "(Bank IFSC code)") {
		t.Fatalf("expected IFSC gloss:\n%s", answer.Text)
	}
}

func TestMandatoryDifferenceAnswer(t *testing.T) {
	r := testRouter(t)
	answer := r.Route("How do INR payout required fields differ from AUD?")
	if answer == nil {
		t.Fatal("expected a comparison answer")
	}
	if !strings.Contains(answer.Text, "INR/INDIA mandates remitter city.") {
		t.Fatalf("expected remitter city summary:\n%s", answer.Text)
	}
	if !strings.Contains(answer.Text, "INR/INDIA requires IFSC routing (type/value).") {
		t.Fatalf("expected IFSC summary:\n%s", answer.Text)
	}
	if !strings.Contains(answer.Text, "Core remitter and beneficiary fields remain aligned") {
		t.Fatalf("expected aligned-channels note:\n%s", answer.Text)
	}
	if !strings.Contains(answer.Text, "• Required only for INR/INDIA:") {
		t.Fatalf("expected only-A section:\n%s", answer.Text)
	}
	if !strings.Contains(answer.Text, "• Fields present in both but with different requirements:") {
		t.Fatalf("expected common-diff section:\n%s", answer.Text)
	}
	if len(answer.Citations) != 2 {
		t.Fatalf("expected 2 schema citations, got %d", len(answer.Citations))
	}
}

func TestMandatoryDifferenceNeedsTwoCorridors(t *testing.T) {
	r := testRouter(t)
	if answer := r.mandatoryDifference("how does SGD differ?"); answer != nil {
		t.Fatalf("expected nil with a single corridor, got %q", answer.Text)
	}
}

func TestRemittanceTemplateAnswer(t *testing.T) {
	r := testRouter(t)
	answer := r.Route("Give me a remittance template for SGD to Singapore")
	if answer == nil {
		t.Fatal("expected a template answer")
	}
	if !strings.Contains(answer.Text, "Use the following remittance object for SGD/SINGAPORE bank (local) payouts (inline beneficiary).") {
		t.Fatalf("unexpected header:\n%s", answer.Text)
	}
	if !strings.Contains(answer.Text, `"payoutMethod": "BANK_TRANSFER"`) {
		t.Fatalf("expected inline beneficiary payment account:\n%s", answer.Text)
	}
	if !strings.Contains(answer.Text, `"name": "ACME Recipient"`) {
		t.Fatalf("expected sample beneficiary name:\n%s", answer.Text)
	}
	if !strings.Contains(answer.Text, `"purposeCode": "IR001"`) {
		t.Fatalf("expected purpose code default:\n%s", answer.Text)
	}
	if !strings.Contains(answer.Text, `"swiftFeeType": "OUR"`) {
		t.Fatalf("expected payout envelope:\n%s", answer.Text)
	}
	if len(answer.Citations) != 1 || answer.Citations[0].Title != "schema_SGD_SINGAPORE.json" {
		t.Fatalf("unexpected citations: %+v", answer.Citations)
	}
}

func TestRemittanceTemplateRequiresKeyword(t *testing.T) {
	r := testRouter(t)
	if answer := r.remittanceTemplate("deposit template for singapore"); answer != nil {
		t.Fatalf("expected nil without a payout keyword, got %q", answer.Text)
	}
}

func TestPayoutMethodsAnswer(t *testing.T) {
	r := testRouter(t)
	answer := r.payoutMethods("what payout methods are available for singapore?")
	if answer == nil {
		t.Fatal("expected a methods answer")
	}
	if !strings.Contains(answer.Text, "Available payout methods:") {
		t.Fatalf("unexpected header:\n%s", answer.Text)
	}
	if !strings.Contains(answer.Text, "SGD/SINGAPORE: bank (local), proxy (default)") {
		t.Fatalf("expected method listing:\n%s", answer.Text)
	}
}

func TestProxyTypesAnswer(t *testing.T) {
	r := testRouter(t)
	answer := r.Route("What proxy types does Singapore support?")
	if answer == nil {
		t.Fatal("expected a proxy types answer")
	}
	if !strings.Contains(answer.Text, "Here are the proxy types supported for SINGAPORE:") {
		t.Fatalf("unexpected header:\n%s", answer.Text)
	}
	if !strings.Contains(answer.Text, "SGD/SINGAPORE (default): MOBILE, UEN, NRIC") {
		t.Fatalf("expected enum options:\n%s", answer.Text)
	}
}

func TestRegexPatternsAnswer(t *testing.T) {
	r := testRouter(t)
	answer := r.regexPatterns("What regex pattern is used for the IFSC code in India?")
	if answer == nil {
		t.Fatal("expected a regex answer")
	}
	if !strings.Contains(answer.Text, "routingCodeValue1: `^[A-Z]{4}0[A-Z0-9]{6}$`") {
		t.Fatalf("expected IFSC pattern:\n%s", answer.Text)
	}
	if !strings.Contains(answer.Text, "INR/INDIA") {
		t.Fatalf("expected corridor label:\n%s", answer.Text)
	}
}

func TestRegexPatternsRequiresHint(t *testing.T) {
	r := testRouter(t)
	if answer := r.regexPatterns("what does the IFSC field look like in India?"); answer != nil {
		t.Fatalf("expected nil without regex hints, got %q", answer.Text)
	}
}

func TestValidatePayloadReportsIssues(t *testing.T) {
	r := testRouter(t)
	answer := r.Route(`Can you validate this payload for SGD payouts? {"beneficiaryName": "Jane"}`)
	if answer == nil {
		t.Fatal("expected a validation answer")
	}
	if !strings.Contains(answer.Text, "Not valid for SGD/SINGAPORE `bank` (`local`) payouts.") {
		t.Fatalf("unexpected header:\n%s", answer.Text)
	}
	if !strings.Contains(answer.Text, "missing `beneficiaryAccountNumber`") {
		t.Fatalf("expected missing field issue:\n%s", answer.Text)
	}
}

func TestValidatePayloadAcceptsValid(t *testing.T) {
	r := testRouter(t)
	query := `Please validate for SGD: {"beneficiaryName": "Jane", "beneficiaryAccountNumber": "123456789", "routingCodeType1": "SWIFT", "routingCodeValue1": "DBSSSGSG", "remitterName": "ACME", "remitPurposeCode": "IR001"}`
	answer := r.validatePayload(query)
	if answer == nil {
		t.Fatal("expected a validation answer")
	}
	if !strings.Contains(answer.Text, "The payload is valid for SGD/SINGAPORE `bank` (`local`) payouts.") {
		t.Fatalf("unexpected answer:\n%s", answer.Text)
	}
}

func TestValidatePayloadUnparsable(t *testing.T) {
	r := testRouter(t)
	answer := r.validatePayload("validate this for SGD { this is : not even close,,, }")
	if answer == nil {
		t.Fatal("expected a parse failure answer")
	}
	if !strings.Contains(answer.Text, "couldn't parse the payload") {
		t.Fatalf("unexpected answer:\n%s", answer.Text)
	}
}
