// Package cli provides output helpers for the command line interface.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Keshav04042001/mindmeld/internal/nlp"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a format flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch s {
	case "text", "":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteTrainResult writes one training outcome to w in the given format.
func WriteTrainResult(w io.Writer, domain, intent, entityType string, res nlp.TrainResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	slot := fmt.Sprintf("%s/%s/%s", domain, intent, entityType)
	switch {
	case res.Reused:
		fmt.Fprintf(w, "%s: reused previous model (hash %s)\n", slot, Truncate(res.Hash, 12))
	case res.Trained:
		fmt.Fprintf(w, "%s: trained on roles [%s] (hash %s)\n",
			slot, strings.Join(res.Roles, ", "), Truncate(res.Hash, 12))
	default:
		fmt.Fprintf(w, "%s: single role observed, nothing to train\n", slot)
	}
	return nil
}

// WritePrediction writes a predicted role to w in the given format.
func WritePrediction(w io.Writer, role string, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]string{"role": role})
	}
	if role == "" {
		fmt.Fprintln(w, "(no role)")
		return nil
	}
	fmt.Fprintln(w, role)
	return nil
}

// WriteStatus writes classifier slot statuses and the embedding cache size.
func WriteStatus(w io.Writer, slots []nlp.SlotStatus, cacheSize int, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]any{
			"classifiers":    slots,
			"encoding_cache": cacheSize,
		})
	}
	if len(slots) == 0 {
		fmt.Fprintln(w, "No classifiers loaded")
	}
	for _, s := range slots {
		state := "unready"
		switch {
		case s.Ready && s.Trained:
			state = "trained"
		case s.Ready:
			state = "ready (single role)"
		}
		fmt.Fprintf(w, "%s/%s/%s: %s", s.Domain, s.Intent, s.EntityType, state)
		if len(s.Roles) > 0 {
			fmt.Fprintf(w, " roles=[%s]", strings.Join(s.Roles, ", "))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Encoding cache: %d entries\n", cacheSize)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
