// Package models defines the labeled query and gazetteer types shared across packages.
package models

import (
	"fmt"
	"sort"
	"strings"
)

// QueryEntity is one annotated entity span within a labeled query.
// Role is the slot label for the entity; empty means the annotation is unset.
type QueryEntity struct {
	Text string `json:"text"`
	Type string `json:"type"`
	Role string `json:"role,omitempty"`
}

// ProcessedQuery is a labeled training query: the raw text plus its entity annotations.
type ProcessedQuery struct {
	Text     string        `json:"text"`
	Domain   string        `json:"domain"`
	Intent   string        `json:"intent"`
	Entities []QueryEntity `json:"entities,omitempty"`
}

// Validate checks that the query has text and that every entity has a type.
func (q *ProcessedQuery) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("query text cannot be empty")
	}
	for i, e := range q.Entities {
		if e.Type == "" {
			return fmt.Errorf("entity %d of query %q has no type", i, q.Text)
		}
	}
	return nil
}

// Canonical returns a stable text representation of the query including its
// entity annotations, suitable for content hashing. Two queries differing
// only in an entity's role produce different canonical forms.
func (q ProcessedQuery) Canonical() string {
	var b strings.Builder
	b.WriteString(q.Text)
	for _, e := range q.Entities {
		b.WriteString("\x1f{")
		b.WriteString(e.Text)
		b.WriteByte('|')
		b.WriteString(e.Type)
		if e.Role != "" {
			b.WriteByte('|')
			b.WriteString(e.Role)
		}
		b.WriteByte('}')
	}
	return b.String()
}

// QueryTree groups labeled queries by domain, then intent.
type QueryTree map[string]map[string][]ProcessedQuery

// Add inserts a query under its domain and intent.
func (t QueryTree) Add(q ProcessedQuery) {
	intents, ok := t[q.Domain]
	if !ok {
		intents = make(map[string][]ProcessedQuery)
		t[q.Domain] = intents
	}
	intents[q.Intent] = append(intents[q.Intent], q)
}

// Flatten returns all queries in the tree in deterministic order:
// domains and intents sorted, queries in insertion order within a branch.
func (t QueryTree) Flatten() []ProcessedQuery {
	domains := make([]string, 0, len(t))
	for d := range t {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	var flat []ProcessedQuery
	for _, d := range domains {
		intents := make([]string, 0, len(t[d]))
		for i := range t[d] {
			intents = append(intents, i)
		}
		sort.Strings(intents)
		for _, i := range intents {
			flat = append(flat, t[d][i]...)
		}
	}
	return flat
}

// Gazetteer is a weighted entity vocabulary for one entity type.
type Gazetteer struct {
	Name       string             `json:"name"`
	EntityType string             `json:"entity_type"`
	Entries    map[string]float64 `json:"entries"`
}
