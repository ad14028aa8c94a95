// Package cli renders command output for the docrag CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/hyperjump/docrag/internal/models"
	"github.com/hyperjump/docrag/internal/search"
	"github.com/hyperjump/docrag/pkg/utils"
)

// OutputFormat selects how command results are printed.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// snippetLen bounds the chunk text shown per search result.
const snippetLen = 240

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	rule         = strings.Repeat("─", 57)
)

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type searchOutput struct {
	Query   string                 `json:"query"`
	Count   int                    `json:"count"`
	Results []*models.SearchResult `json:"results"`
}

// WriteSearchResults writes ranked results for query.
func WriteSearchResults(w io.Writer, query string, results []*models.SearchResult, format OutputFormat) error {
	if format == OutputJSON {
		if results == nil {
			results = []*models.SearchResult{}
		}
		return WriteJSON(w, searchOutput{Query: query, Count: len(results), Results: results})
	}
	fmt.Fprintf(w, "\n%s\n\n", headingStyle.Render(fmt.Sprintf("Found %d results for %q", len(results), query)))
	for i, r := range results {
		fmt.Fprintln(w, mutedStyle.Render(rule))
		fmt.Fprintf(w, "Rank: %d | Page: %d | Score: %s\n", i+1, r.Chunk.PageNumber, scoreStyle.Render(fmt.Sprintf("%.4f", r.Score)))
		if len(r.MatchedTerms) > 0 {
			fmt.Fprintf(w, "Matched: %s\n", strings.Join(r.MatchedTerms, ", "))
		}
		fmt.Fprintf(w, "\n%s\n\n", search.Snippet(utils.OneLine(r.Chunk.Text), r.MatchedTerms, snippetLen))
	}
	return nil
}

// WriteContext writes a retrieval context. In text mode only the context
// block and a one-line summary are printed.
func WriteContext(w io.Writer, rc *models.RetrievalContext, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, rc)
	}
	m := rc.Metadata
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%s | %d results | pages %s | top score %.4f",
		m.DocumentName, m.ResultCount, joinInts(m.Pages), m.TopScore)))
	fmt.Fprintln(w)
	fmt.Fprintln(w, rc.Context)
	return nil
}

func joinInts(xs []int) string {
	if len(xs) == 0 {
		return "-"
	}
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, ",")
}

// WriteDocuments writes a document listing.
func WriteDocuments(w io.Writer, docs []*models.DocumentSummary, format OutputFormat) error {
	if format == OutputJSON {
		if docs == nil {
			docs = []*models.DocumentSummary{}
		}
		return WriteJSON(w, docs)
	}
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents indexed.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCHUNKS\tPAGES\tCREATED")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", d.ID, utils.Truncate(d.Name, 40), d.TotalChunks, d.TotalPages,
			d.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

// WriteDocumentInfo writes the details of an indexed or loaded document.
func WriteDocumentInfo(w io.Writer, info *models.ActiveDocumentInfo, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, info)
	}
	fmt.Fprintf(w, "%s %s\n", headingStyle.Render(info.Name), mutedStyle.Render("("+info.ID+")"))
	fmt.Fprintf(w, "  chunks: %d  words: %d  pages: %d  terms: %d\n",
		info.TotalChunks, info.TotalWords, info.TotalPages, info.VocabularySize)
	return nil
}

// WriteStats writes store statistics.
func WriteStats(w io.Writer, stats *models.StoreStats, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, stats)
	}
	fmt.Fprintf(w, "Documents:        %d\n", stats.TotalDocuments)
	fmt.Fprintf(w, "Chunks:           %d\n", stats.TotalChunks)
	fmt.Fprintf(w, "Vocabulary terms: %d\n", stats.TotalVocabTerms)
	return nil
}

// ProgressPrinter returns a progress callback that prints one line per stage.
func ProgressPrinter(w io.Writer) models.ProgressFunc {
	return func(p models.Progress) {
		fmt.Fprintf(w, "[%3d%%] %-12s %s\n", p.Progress, p.Stage, p.Message)
	}
}
