package intent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/corridorhq/copilot/corridor"
)

var regexTokenWeights = map[string]int{
	"bsb":   4,
	"sort":  4,
	"ifsc":  4,
	"iban":  4,
	"swift": 3,
}

var routingKeyTokens = []string{"bsb", "sort", "ifsc", "swift", "iban"}

const complexityMarkers = `[]()^$\{}+*?|.`

type patternField struct {
	path []string
	node map[string]any
}

type patternMatch struct {
	score      int
	overlap    int
	complexity int
	corridor   corridor.Corridor
	field      patternField
}

// regexPatterns surfaces the validation regex for a field the query names,
// ranked by token overlap against the schema path and description.
func (r *Router) regexPatterns(query string) *Answer {
	normalized := strings.ToLower(query)
	if !regexHints.containsAny(normalized) {
		return nil
	}

	corridors := r.registry.Resolve(query)
	if len(corridors) == 0 {
		return nil
	}

	queryTokens := normalizeTokens(query).diff(queryStopwords)
	highQuery := queryTokens.diff(lowSignalTokens)

	var matches []patternMatch
	for _, c := range corridors {
		schema, err := r.registry.Schema(c)
		if err != nil {
			continue
		}
		corridorTokens := normalizeTokens(c.Country)
		corridorTokens[strings.ToLower(c.Currency)] = struct{}{}
		countryTokens := normalizeTokens(c.Country)

		for _, field := range collectPatternFields(schema, nil) {
			description, _ := field.node["description"].(string)
			fieldTokens := normalizeTokens(strings.Join(field.path, " ") + " " + description).diff(queryStopwords)
			highField := fieldTokens.diff(lowSignalTokens)
			keywordOverlap := highQuery.intersect(highField)
			baseOverlap := len(keywordOverlap)
			if baseOverlap == 0 {
				continue
			}
			lowOverlap := len(queryTokens.intersect(fieldTokens).diff(keywordOverlap))

			keywordScore := 0
			for token := range keywordOverlap {
				if corridorTokens.has(token) {
					keywordScore++
				} else if weight, ok := regexTokenWeights[token]; ok {
					keywordScore += weight
				} else {
					keywordScore += 2
				}
			}
			overlap := baseOverlap*2 + keywordScore
			if lowOverlap > 0 {
				overlap++
			}

			pattern, _ := field.node["pattern"].(string)
			complexity := 0
			if strings.ContainsAny(pattern, complexityMarkers) {
				complexity = 1
			}
			corridorBonus := 0
			if len(countryTokens.intersect(queryTokens)) > 0 {
				corridorBonus += 5
			}
			if queryTokens.has(strings.ToLower(c.Currency)) {
				corridorBonus += 3
			}

			matches = append(matches, patternMatch{
				score:      overlap*3 + complexity*10 + corridorBonus,
				overlap:    overlap,
				complexity: complexity,
				corridor:   c,
				field:      field,
			})
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		if matches[i].overlap != matches[j].overlap {
			return matches[i].overlap > matches[j].overlap
		}
		return matches[i].complexity > matches[j].complexity
	})

	best := matches[0].corridor
	var top []patternMatch
	for _, match := range matches {
		if match.corridor == best {
			top = append(top, match)
		}
	}

	// Prefer fields that talk about routing identifiers at all.
	var filtered []patternMatch
	for _, match := range top {
		pattern, _ := match.field.node["pattern"].(string)
		description, _ := match.field.node["description"].(string)
		combined := strings.ToLower(pattern + " " + description)
		for _, token := range routingKeyTokens {
			if strings.Contains(combined, token) {
				filtered = append(filtered, match)
				break
			}
		}
	}
	if len(filtered) > 0 {
		top = filtered
	}
	if len(top) > 3 {
		top = top[:3]
	}

	var lines []string
	var citations []Citation
	for _, match := range top {
		pattern, _ := match.field.node["pattern"].(string)
		if !strings.ContainsAny(pattern, regexMarkerSet) {
			continue
		}
		display := pattern
		if strings.Contains(pattern, ",") {
			var parts []string
			for _, part := range strings.Split(pattern, ",") {
				if part = strings.TrimSpace(part); part != "" {
					parts = append(parts, part)
				}
			}
			display = strings.Join(parts, " or ")
		}
		description, _ := match.field.node["description"].(string)
		detail := ""
		if description != "" {
			detail = " — " + description
		}
		lines = append(lines, fmt.Sprintf("%s/%s → %s: `%s`%s",
			match.corridor.Currency, match.corridor.Country,
			strings.Join(match.field.path, "."), display, detail))
		citations = append(citations, r.schemaCitation(match.corridor, pattern))
	}
	if len(lines) == 0 {
		return nil
	}
	return &Answer{Text: strings.Join(lines, "\n"), Citations: citations}
}

// collectPatternFields walks the schema depth-first, in key order, and
// returns every node carrying a string "pattern".
func collectPatternFields(node any, path []string) []patternField {
	var fields []patternField
	switch typed := node.(type) {
	case map[string]any:
		if pattern, ok := typed["pattern"].(string); ok && pattern != "" {
			fields = append(fields, patternField{path: append([]string(nil), path...), node: typed})
		}
		for _, key := range sortedMapKeys(typed) {
			if key == "pattern" {
				continue
			}
			child := typed[key]
			switch child.(type) {
			case map[string]any, []any:
				fields = append(fields, collectPatternFields(child, append(path, key))...)
			}
		}
	case []any:
		for index, item := range typed {
			fields = append(fields, collectPatternFields(item, append(path, fmt.Sprintf("%d", index)))...)
		}
	}
	return fields
}
