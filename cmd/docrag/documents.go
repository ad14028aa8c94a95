package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/docrag/internal/cli"
	"github.com/hyperjump/docrag/internal/extract"
	"github.com/hyperjump/docrag/internal/models"
)

var (
	indexName  string
	indexQuiet bool
)

var indexCmd = &cobra.Command{
	Use:   "index <file>",
	Short: "Index a document",
	Long: `Extracts text from a file (txt, md, pdf, docx, xlsx, pptx, odt, odp,
ods, rtf), splits it into overlapping chunks and stores its index.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

var searchCmd = &cobra.Command{
	Use:   "search <doc-id> <query...>",
	Short: "Search one indexed document",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSearch,
}

var contextCmd = &cobra.Command{
	Use:   "context <doc-id> <question...>",
	Short: "Build the retrieval context for a question",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runContext,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <doc-id>",
	Short: "Delete an indexed document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show document store statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("docrag version %s\n", version)
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexName, "name", "", "document name (default: file name)")
	indexCmd.Flags().BoolVarP(&indexQuiet, "quiet", "q", false, "do not print progress")
	rootCmd.AddCommand(indexCmd, searchCmd, contextCmd, listCmd, deleteCmd, statsCmd, versionCmd)
}

// buildQuery joins positional words into a query.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	var progress models.ProgressFunc
	if !indexQuiet && !jsonOutput {
		progress = cli.ProgressPrinter(cmd.ErrOrStderr())
	}

	content, err := extract.NewExtractor().Extract(args[0])
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	name := indexName
	if name == "" {
		name = filepath.Base(args[0])
	}
	info, err := a.service.IndexText(ctx, content.Text, name, content.Pages, progress)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	return cli.WriteDocumentInfo(cmd.OutOrStdout(), info, outputFormat())
}

// loadActive opens the app and makes id the active document.
func loadActive(cmd *cobra.Command, id string) (*app, error) {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return nil, err
	}
	ok, err := a.service.LoadDocument(cmd.Context(), id)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load failed: %w", err)
	}
	if !ok {
		a.Close()
		return nil, fmt.Errorf("document not found: %s", id)
	}
	return a, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := buildQuery(args[1:])
	if query == "" {
		return errors.New("query is empty")
	}
	a, err := loadActive(cmd, args[0])
	if err != nil {
		return err
	}
	defer a.Close()

	return cli.WriteSearchResults(cmd.OutOrStdout(), query, a.service.Search(query), outputFormat())
}

func runContext(cmd *cobra.Command, args []string) error {
	question := buildQuery(args[1:])
	if question == "" {
		return errors.New("question is empty")
	}
	a, err := loadActive(cmd, args[0])
	if err != nil {
		return err
	}
	defer a.Close()

	rc, ok := a.service.GetRetrievalContext(question)
	if !ok {
		return errors.New("no active document")
	}
	return cli.WriteContext(cmd.OutOrStdout(), rc, outputFormat())
}

func runList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.service.ListDocuments(cmd.Context())
	if err != nil {
		return err
	}
	return cli.WriteDocuments(cmd.OutOrStdout(), docs, outputFormat())
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.service.DeleteDocument(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("deletion failed: %w", err)
	}
	cmd.Printf("Document deleted: %s\n", args[0])
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.service.GetStats(cmd.Context())
	if err != nil {
		return err
	}
	return cli.WriteStats(cmd.OutOrStdout(), stats, outputFormat())
}
