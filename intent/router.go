// Package intent short-circuits well-known query classes to canonical
// answers derived from the corridor validation schemas, ahead of retrieval.
package intent

import (
	"strings"

	"github.com/corridorhq/copilot/corridor"
	"github.com/corridorhq/copilot/validation"
)

type Citation struct {
	Title   string
	URL     string
	Snippet string
}

type Answer struct {
	Text      string
	Citations []Citation
}

type handlerFunc func(query string) *Answer

// Router walks an ordered list of handlers; the first non-nil answer wins.
type Router struct {
	registry  *corridor.Registry
	validator *validation.Validator
	docsBase  string
	handlers  []handlerFunc
}

func NewRouter(registry *corridor.Registry, validator *validation.Validator, docsBaseURL string) *Router {
	r := &Router{
		registry:  registry,
		validator: validator,
		docsBase:  strings.TrimRight(docsBaseURL, "/"),
	}
	r.handlers = []handlerFunc{
		r.createPayout,
		r.validatePayload,
		r.mandatoryDifference,
		r.requiredFields,
		r.remittanceTemplate,
		r.payoutMethods,
		r.regexPatterns,
		r.proxyTypes,
	}
	return r
}

func (r *Router) Route(query string) *Answer {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	for _, handle := range r.handlers {
		if answer := handle(query); answer != nil {
			if len(answer.Citations) > 3 {
				answer.Citations = answer.Citations[:3]
			}
			return answer
		}
	}
	return nil
}

func (r *Router) schemaCitation(c corridor.Corridor, snippet string) Citation {
	return Citation{
		Title:   c.SchemaFile(),
		URL:     c.SchemaFile(),
		Snippet: snippet,
	}
}

func (r *Router) apiCitation() Citation {
	return Citation{
		Title:   "Create Payout API",
		URL:     r.docsBase + "/api#create-payout",
		Snippet: "Request body fields",
	}
}
