package intent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/corridorhq/copilot/corridor"
)

// validatePayload extracts a JSON-ish payload from the query, resolves the
// corridor, and runs it through the schema validator.
func (r *Router) validatePayload(query string) *Answer {
	normalized := strings.ToLower(query)
	if !validateHints.containsAny(normalized) {
		return nil
	}

	snippet := extractPayloadSnippet(query)
	if snippet == "" {
		return nil
	}

	payload, ok := coerceJSONLike(snippet)
	if !ok {
		return &Answer{Text: "I couldn't parse the payload. Please provide a valid JSON object."}
	}

	corridors := r.registry.Resolve(query)
	if len(corridors) == 0 {
		return nil
	}
	c := corridors[0]

	methodPref := corridor.DetectMethod(normalized)
	channelPref := corridor.DetectChannel(normalized)

	result, err := r.validator.Validate(payload, c.Currency, c.Country, methodPref, channelPref)
	if err != nil {
		return nil
	}

	citations := []Citation{
		r.schemaCitation(c, ""),
		r.apiCitation(),
	}

	methodUsed := firstNonEmpty(result.Method, methodPref, "bank")
	channelUsed := firstNonEmpty(result.Channel, channelPref, "default")

	if result.Valid {
		return &Answer{
			Text: fmt.Sprintf("The payload is valid for %s/%s `%s` (`%s`) payouts.",
				c.Currency, c.Country, methodUsed, channelUsed),
			Citations: citations,
		}
	}
	if len(result.Errors) == 0 {
		return &Answer{
			Text: fmt.Sprintf("Validation failed for %s/%s `%s` (`%s`), but no details were provided.",
				c.Currency, c.Country, methodUsed, channelUsed),
			Citations: citations,
		}
	}

	lines := []string{
		fmt.Sprintf("Not valid for %s/%s `%s` (`%s`) payouts.", c.Currency, c.Country, methodUsed, channelUsed),
		"Issues:",
	}
	shown := result.Errors
	if len(shown) > 10 {
		shown = shown[:10]
	}
	for _, fieldErr := range shown {
		field := fieldErr.Field
		if field == "" {
			field = fieldErr.Path
		}
		if field == "" {
			field = "<root>"
		}
		message := fieldErr.Message
		if message == "" {
			message = "Invalid value."
		}
		switch {
		case fieldErr.Keyword == "required" && fieldErr.Field != "":
			detail := fieldErr.Description
			if detail == "" {
				detail = "Field is required."
			}
			lines = append(lines, fmt.Sprintf("• missing `%s` — %s", field, detail))
		case fieldErr.Keyword == "pattern":
			var detailParts []string
			if fieldErr.Pattern != "" {
				detailParts = append(detailParts, fmt.Sprintf("must match `%s`", fieldErr.Pattern))
			}
			if fieldErr.Description != "" {
				detailParts = append(detailParts, fieldErr.Description)
			}
			detail := message
			if len(detailParts) > 0 {
				detail = strings.Join(detailParts, ". ")
			}
			lines = append(lines, fmt.Sprintf("• `%s` — %s", field, detail))
		default:
			lines = append(lines, fmt.Sprintf("• `%s` — %s", field, message))
		}
	}
	if len(result.Errors) > 10 {
		lines = append(lines, fmt.Sprintf("…and %d more issues.", len(result.Errors)-10))
	}

	return &Answer{Text: strings.Join(lines, "\n"), Citations: citations}
}

// extractPayloadSnippet pulls the braced (or parenthesised) payload text a
// user pasted into their question.
func extractPayloadSnippet(query string) string {
	start := strings.Index(query, "{")
	end := strings.LastIndex(query, "}")
	var snippet string
	switch {
	case start != -1 && end > start:
		snippet = query[start : end+1]
	default:
		parenStart := strings.Index(query, "(")
		parenEnd := strings.LastIndex(query, ")")
		if parenStart != -1 && parenEnd > parenStart {
			snippet = query[parenStart+1 : parenEnd]
		} else if parenStart != -1 {
			braceEnd := strings.LastIndex(query, "}")
			if braceEnd > parenStart {
				snippet = query[parenStart+1 : braceEnd+1]
			}
		}
	}
	trimmed := strings.TrimSpace(snippet)
	if trimmed == "" {
		return ""
	}
	if !strings.HasPrefix(trimmed, "{") {
		trimmed = "{" + strings.Trim(trimmed, "{}[]() ") + "}"
	}
	return trimmed
}

// coerceJSONLike parses strict JSON first, then retries after quoting bare
// keys and values the way people type payloads into chat.
func coerceJSONLike(snippet string) (map[string]any, bool) {
	snippet = strings.TrimSpace(snippet)
	if snippet == "" {
		return nil, false
	}
	for _, candidate := range []string{snippet, normalizeJSONLike(snippet)} {
		var payload map[string]any
		if err := json.Unmarshal([]byte(candidate), &payload); err == nil {
			return payload, true
		}
	}
	return nil, false
}

func normalizeJSONLike(text string) string {
	updated := strings.ReplaceAll(text, "'", `"`)
	updated = bareKeyRE.ReplaceAllString(updated, `$1"$2":`)
	updated = bareValueRE.ReplaceAllStringFunc(updated, func(match string) string {
		groups := bareValueRE.FindStringSubmatch(match)
		value, tail := groups[1], groups[2]
		switch {
		case strings.HasPrefix(value, `"`), strings.HasPrefix(value, "{"), strings.HasPrefix(value, "["):
			return ": " + value + tail
		case numberLikeRE.MatchString(value):
			return ": " + value + tail
		}
		lower := strings.ToLower(value)
		if lower == "true" || lower == "false" || lower == "null" {
			return ": " + lower + tail
		}
		return `: "` + value + `"` + tail
	})
	return updated
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
