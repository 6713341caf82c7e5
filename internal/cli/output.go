// Package cli provides output formatting and a server client for the helpmate command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/helpmate/internal/models"
	"github.com/hyperjump/helpmate/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteHelpers writes a catalog page to w in the given format.
func WriteHelpers(w io.Writer, page *models.HelperPage, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, page)
	}
	fmt.Fprintf(w, "\nFound %d helpers (page %d of %d)\n\n", page.Total, page.Page, max(page.Pages, 1))
	for _, h := range page.Items {
		writeHelper(w, h)
	}
	return nil
}

func writeHelper(w io.Writer, h *models.HelperProfile) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "%s (%s), %d years old\n", h.Name, h.Nationality, h.Age)
	salary := "n/a"
	if h.ExpectedSalary != nil {
		salary = fmt.Sprintf("$%d", *h.ExpectedSalary)
	}
	availability := "available"
	if !h.Availability {
		availability = "not available"
	}
	fmt.Fprintf(w, "Experience: %d years | Expected salary: %s | %s\n", h.Experience, salary, availability)
	if len(h.Skills) > 0 {
		fmt.Fprintf(w, "Skills: %s\n", utils.Truncate(strings.Join(h.Skills, ", "), 120))
	}
	fmt.Fprintf(w, "ID: %s\n\n", h.ID)
}

// WriteStatus writes the knowledge base status to w in the given format.
func WriteStatus(w io.Writer, status *models.KnowledgeStatus, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "title:              %s\n", status.Title)
	fmt.Fprintf(w, "chunks:             %d   # stored chunks for this title\n", status.Chunks)
	fmt.Fprintf(w, "loaded_vectors:     %d   # vectors held by the running server\n", status.LoadedVectors)
	fmt.Fprintf(w, "ready:              %t\n", status.Ready)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d\n", *status.DiskUsageBytes)
	}
	if c := status.Config; c != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "storage_driver:     %s\n", c.StorageDriver)
		if c.DatabasePath != "" {
			fmt.Fprintf(w, "database_path:      %s\n", c.DatabasePath)
		}
		fmt.Fprintf(w, "embedding:          %s (%s, %d dims)\n", c.EmbeddingModel, c.EmbeddingProvider, c.EmbeddingDimensions)
		fmt.Fprintf(w, "chat_model:         %s\n", c.ChatModel)
		fmt.Fprintf(w, "chunk_size:         %d\n", c.ChunkSize)
		fmt.Fprintf(w, "chunk_overlap:      %d\n", c.ChunkOverlap)
		fmt.Fprintf(w, "top_k:              %d\n", c.TopK)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
