// Package corridor indexes the per-corridor validation schemas and resolves
// free-text queries to payout corridors.
package corridor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Corridor is a payout route identified by destination currency and country,
// backed by a validation schema file.
type Corridor struct {
	Currency string
	Country  string
	Path     string
}

// SchemaFile returns the schema file name used in citations.
func (c Corridor) SchemaFile() string {
	return fmt.Sprintf("schema_%s_%s.json", c.Currency, c.Country)
}

// Registry scans a directory of schema_<CURRENCY>_<COUNTRY>.json files and
// caches parsed schemas.
type Registry struct {
	dir string

	mu        sync.Mutex
	loaded    bool
	corridors []Corridor
	schemas   map[string]map[string]any
}

func NewRegistry(dir string) *Registry {
	return &Registry{
		dir:     dir,
		schemas: make(map[string]map[string]any),
	}
}

func (r *Registry) load() error {
	if r.loaded {
		return nil
	}

	matches, err := filepath.Glob(filepath.Join(r.dir, "schema_*.json"))
	if err != nil {
		return fmt.Errorf("scan schema directory: %w", err)
	}

	corridors := make([]Corridor, 0, len(matches))
	for _, path := range matches {
		name := strings.TrimSuffix(filepath.Base(path), ".json")
		parts := strings.SplitN(name, "_", 3)
		if len(parts) != 3 {
			continue
		}
		currency := strings.ToUpper(parts[1])
		if !currencyRE.MatchString(currency) {
			continue
		}
		corridors = append(corridors, Corridor{
			Currency: currency,
			Country:  strings.ToUpper(parts[2]),
			Path:     path,
		})
	}

	sort.Slice(corridors, func(i, j int) bool {
		if corridors[i].Currency != corridors[j].Currency {
			return corridors[i].Currency < corridors[j].Currency
		}
		return corridors[i].Country < corridors[j].Country
	})

	r.corridors = corridors
	r.loaded = true
	return nil
}

// Corridors returns every corridor known to the registry.
func (r *Registry) Corridors() ([]Corridor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(); err != nil {
		return nil, err
	}
	return append([]Corridor(nil), r.corridors...), nil
}

// Find returns the corridor for an exact currency/country pair.
func (r *Registry) Find(currency, country string) (Corridor, bool) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	country = strings.ToUpper(strings.TrimSpace(country))

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(); err != nil {
		return Corridor{}, false
	}
	for _, c := range r.corridors {
		if c.Currency == currency && c.Country == country {
			return c, true
		}
	}
	return Corridor{}, false
}

// Schema returns the parsed schema document for a corridor, caching the
// result.
func (r *Registry) Schema(c Corridor) (map[string]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := c.Currency + "_" + c.Country
	if cached, ok := r.schemas[key]; ok {
		return cached, nil
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, fmt.Errorf("read corridor schema: %w", err)
	}

	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("parse corridor schema %s: %w", c.SchemaFile(), err)
	}

	r.schemas[key] = schema
	return schema, nil
}

var (
	currencyCodeRE = regexp.MustCompile(`\b[A-Z]{3}\b`)
	currencyRE     = regexp.MustCompile(`^[A-Z]{3}$`)
	wordRE         = regexp.MustCompile(`[a-z]+`)
)

// preferredCountries breaks ties when a currency maps to several corridors,
// e.g. "USD" alone should pick the United States schema.
var preferredCountries = map[string][]string{
	"USD": {"UNITED STATES", "USA", "US"},
	"EUR": {"GERMANY", "EUROPE", "DE"},
	"GBP": {"UNITED KINGDOM", "UK", "GB"},
	"INR": {"INDIA"},
	"SGD": {"SINGAPORE"},
}

// CurrencyCodes returns the uppercase 3-letter codes in query order.
func CurrencyCodes(query string) []string {
	return currencyCodeRE.FindAllString(strings.ToUpper(query), -1)
}

func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range wordRE.FindAllString(strings.ToLower(text), -1) {
		tokens[tok] = struct{}{}
	}
	return tokens
}

// aliases builds the country name variants a query may use: individual
// words, joined/condensed forms, the last word, and an acronym.
func aliases(c Corridor) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(c.Country), -1)
	set := make(map[string]struct{}, len(words)+4)
	for _, w := range words {
		set[w] = struct{}{}
	}
	if len(words) > 0 {
		set[strings.Join(words, "")] = struct{}{}
		set[strings.Join(words, "-")] = struct{}{}
		set[strings.Join(words, " ")] = struct{}{}
		set[words[len(words)-1]] = struct{}{}
		if len(words) > 1 {
			acronym := ""
			for _, w := range words {
				acronym += w[:1]
			}
			set[acronym] = struct{}{}
			set[words[0]] = struct{}{}
		}
	}
	return set
}

// Aliases lists the lowercase name variants a query may use for the
// corridor's country.
func Aliases(c Corridor) []string {
	set := aliases(c)
	out := make([]string, 0, len(set))
	for alias := range set {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

func intersects(a, b map[string]struct{}) bool {
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}

// Resolve ranks corridors against a free-text query. Currency codes narrow
// the candidate set; country aliases score the candidates. When no currency
// code matches, country mentions alone select corridors.
func (r *Registry) Resolve(query string) []Corridor {
	corridors, err := r.Corridors()
	if err != nil {
		return nil
	}

	normalized := strings.ToLower(query)
	tokens := tokenize(normalized)
	condensed := strings.ReplaceAll(normalized, " ", "")

	currencies := make(map[string]struct{})
	for _, code := range CurrencyCodes(query) {
		currencies[code] = struct{}{}
	}

	type scored struct {
		score    int
		corridor Corridor
	}

	scoreCorridor := func(c Corridor) int {
		score := 0
		al := aliases(c)
		countryLower := strings.ToLower(c.Country)
		if strings.Contains(normalized, countryLower) {
			score += 6
		}
		if intersects(al, tokens) {
			score += 5
		}
		for alias := range al {
			if strings.Contains(condensed, alias) {
				score += 4
				break
			}
		}
		for alias := range al {
			if strings.Contains(normalized, "to "+alias) {
				score += 6
				break
			}
		}
		return score
	}

	var candidates []scored
	for _, c := range corridors {
		if _, ok := currencies[c.Currency]; ok {
			candidates = append(candidates, scored{score: scoreCorridor(c), corridor: c})
		}
	}

	if len(candidates) == 0 {
		for _, c := range corridors {
			al := aliases(c)
			countryLower := strings.ToLower(c.Country)
			mentioned := false
			if intersects(al, tokens) {
				mentioned = true
			} else {
				for alias := range al {
					if strings.Contains(condensed, alias) {
						mentioned = true
						break
					}
				}
			}
			if !mentioned {
				continue
			}
			score := 6
			if strings.Contains(normalized, countryLower) {
				score += 10
			}
			candidates = append(candidates, scored{score: score, corridor: c})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	resolved := make([]Corridor, 0, len(candidates))
	for _, cand := range candidates {
		resolved = append(resolved, cand.corridor)
	}
	return resolved
}

// ComparisonPair picks up to count corridors for a comparison query, walking
// the currency codes in query order and honoring preferred countries.
func (r *Registry) ComparisonPair(query string, count int) []Corridor {
	resolved := r.Resolve(query)
	if len(resolved) == 0 {
		return nil
	}

	selected := make([]Corridor, 0, count)
	seen := make(map[string]struct{})
	key := func(c Corridor) string { return c.Currency + "_" + c.Country }

	for _, code := range CurrencyCodes(query) {
		var candidates []Corridor
		for _, c := range resolved {
			if c.Currency != code {
				continue
			}
			if _, ok := seen[key(c)]; ok {
				continue
			}
			candidates = append(candidates, c)
		}
		if len(candidates) == 0 {
			continue
		}
		if prefs := preferredCountries[code]; len(prefs) > 0 {
			priority := func(c Corridor) int {
				upper := strings.ToUpper(c.Country)
				for idx, name := range prefs {
					if strings.Contains(upper, name) || strings.Contains(name, upper) {
						return idx
					}
				}
				return len(prefs)
			}
			sort.SliceStable(candidates, func(i, j int) bool {
				return priority(candidates[i]) < priority(candidates[j])
			})
		}
		selected = append(selected, candidates[0])
		seen[key(candidates[0])] = struct{}{}
		if len(selected) >= count {
			return selected[:count]
		}
	}

	for _, c := range resolved {
		if _, ok := seen[key(c)]; ok {
			continue
		}
		selected = append(selected, c)
		seen[key(c)] = struct{}{}
		if len(selected) >= count {
			break
		}
	}
	if len(selected) > count {
		selected = selected[:count]
	}
	return selected
}
