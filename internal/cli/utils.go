// Package cli formats results for the kotae command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retriever"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// previewLen is how much document content is shown per text result.
const previewLen = 200

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d %s results in %dms\n\n", len(response.Results), response.Mode, response.QueryTime)
	for _, result := range response.Results {
		writeOneResult(w, result)
	}
	return nil
}

func writeOneResult(w io.Writer, result *models.SearchResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	if result.Score > 0 {
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | Position: %d\n", result.Rank, result.Score, result.Position)
	} else {
		fmt.Fprintf(w, "Rank: %d | Distance: %.4f | Position: %d\n", result.Rank, result.Distance, result.Position)
	}
	if src := result.Document.Source(); src != "" {
		fmt.Fprintf(w, "Source: %s\n", src)
	}
	fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(result.Document.Content, previewLen))
}

// WriteAnswer writes an answer and its numbered sources.
func WriteAnswer(w io.Writer, response *models.AskResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nAnswer: %s\n", response.Answer)
	if len(response.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for i, src := range response.Sources {
			fmt.Fprintf(w, "%d. %s\n", i+1, sourceName(src))
		}
	}
	return nil
}

func sourceName(result *models.SearchResult) string {
	if name := result.Document.Source(); name != "" {
		return name
	}
	return fmt.Sprintf("document %d", result.Position)
}

// WriteStatus writes retriever statistics and disk usage.
func WriteStatus(w io.Writer, stats retriever.Stats, diskBytes int64, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, struct {
			retriever.Stats
			DiskUsageBytes int64 `json:"disk_usage_bytes"`
		}{stats, diskBytes})
	}
	fmt.Fprintf(w, "State:      %s\n", stats.State)
	fmt.Fprintf(w, "Backend:    %s\n", stats.Backend)
	fmt.Fprintf(w, "Documents:  %d\n", stats.Documents)
	fmt.Fprintf(w, "Vectors:    %d\n", stats.Vectors)
	fmt.Fprintf(w, "Dimension:  %d\n", stats.Dimension)
	fmt.Fprintf(w, "Keyword:    %t\n", stats.KeywordEnabled)
	fmt.Fprintf(w, "Disk usage: %s\n", FormatBytes(diskBytes))
	return nil
}

// WriteTemplates writes template names and descriptions sorted by name.
func WriteTemplates(w io.Writer, templates map[string]string, defaultName string) {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		marker := " "
		if name == defaultName {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-10s %s\n", marker, name, templates[name])
	}
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
