// Package ingest reads labeled query files and gazetteers from an
// application's source tree and loads them into storage.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Keshav04042001/mindmeld/internal/models"
)

// ParseMarkup parses one annotated query line. Entity spans are written
// inline as {text|type} or {text|type|role}; the returned query text has the
// markup stripped.
//
//	"open at {9 am|sys_time|open_time}" -> "open at 9 am"
func ParseMarkup(line string) (models.ProcessedQuery, error) {
	var q models.ProcessedQuery
	var text strings.Builder

	rest := line
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			break
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			return models.ProcessedQuery{}, fmt.Errorf("unterminated entity span in %q", line)
		}
		closing += open

		text.WriteString(rest[:open])
		span := rest[open+1 : closing]
		parts := strings.Split(span, "|")
		if len(parts) < 2 || len(parts) > 3 {
			return models.ProcessedQuery{}, fmt.Errorf("malformed entity span {%s} in %q", span, line)
		}
		ent := models.QueryEntity{
			Text: strings.TrimSpace(parts[0]),
			Type: strings.TrimSpace(parts[1]),
		}
		if len(parts) == 3 {
			ent.Role = strings.TrimSpace(parts[2])
		}
		if ent.Text == "" || ent.Type == "" {
			return models.ProcessedQuery{}, fmt.Errorf("entity span {%s} needs text and type in %q", span, line)
		}
		text.WriteString(ent.Text)
		q.Entities = append(q.Entities, ent)

		rest = rest[closing+1:]
	}
	text.WriteString(rest)

	q.Text = strings.TrimSpace(text.String())
	if q.Text == "" {
		return models.ProcessedQuery{}, fmt.Errorf("empty query text in %q", line)
	}
	return q, nil
}

// ParseQueryFile parses an annotated query file: one query per line, blank
// lines and lines starting with # skipped. Domain and intent are stamped on
// every parsed query.
func ParseQueryFile(r io.Reader, domain, intent string) ([]models.ProcessedQuery, error) {
	var queries []models.ProcessedQuery
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		q, err := ParseMarkup(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		q.Domain = domain
		q.Intent = intent
		queries = append(queries, q)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read query file: %w", err)
	}
	return queries, nil
}

// ParseGazetteerFile parses a gazetteer file: one entry per line, either
// "weight<TAB>entry" or a bare entry with weight 1. Entries are lowercased.
// Blank lines and # comments are skipped.
func ParseGazetteerFile(r io.Reader) (map[string]float64, error) {
	entries := make(map[string]float64)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		weight := 1.0
		entry := line
		if tab := strings.IndexByte(line, '\t'); tab >= 0 {
			w, err := strconv.ParseFloat(strings.TrimSpace(line[:tab]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad weight %q: %w", lineNo, line[:tab], err)
			}
			weight = w
			entry = strings.TrimSpace(line[tab+1:])
		}
		if entry == "" {
			return nil, fmt.Errorf("line %d: empty gazetteer entry", lineNo)
		}
		entries[strings.ToLower(entry)] = weight
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read gazetteer file: %w", err)
	}
	return entries, nil
}
