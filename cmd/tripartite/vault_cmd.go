package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tripartite-ai/consensus-core/internal/knowledge"
	"github.com/tripartite-ai/consensus-core/internal/watchfeed"
)

func vaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Index and search the local knowledge vault",
	}
	cmd.AddCommand(vaultIndexCmd())
	cmd.AddCommand(vaultSearchCmd())
	cmd.AddCommand(vaultDeleteCmd())
	cmd.AddCommand(vaultWatchCmd())
	return cmd
}

func vaultIndexCmd() *cobra.Command {
	var path, docType string
	cmd := &cobra.Command{
		Use:   "index [file]",
		Short: "Chunk, embed, and persist a document",
		Long: `Index reads the given file from disk, assigns it the provided logical
path (metadata only — the vault never re-opens this path itself), chunks
it, embeds each chunk, and persists document and chunks in one
transaction.

Example:
  tripartite vault index README.md --doc-type markdown`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVaultIndex(args[0], path, docType)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Logical path to record (defaults to the file argument)")
	cmd.Flags().StringVar(&docType, "doc-type", "other", "Document type: code, markdown, text, other")
	return cmd
}

func runVaultIndex(file, path, docType string) error {
	content, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	if path == "" {
		path = file
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	docID, err := a.vault.AddDocument(path, string(content), docType)
	if err != nil {
		return fmt.Errorf("index %s: %w", file, err)
	}
	fmt.Printf("indexed %s as document %d\n", path, docID)
	return nil
}

func vaultSearchCmd() *cobra.Command {
	var topK int
	var docType string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the knowledge vault",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := args[0]
			for _, a := range args[1:] {
				query += " " + a
			}
			return runVaultSearch(query, topK, docType, jsonOut)
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 5, "Number of results")
	cmd.Flags().StringVar(&docType, "doc-type", "", "Filter by document type")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func runVaultSearch(query string, topK int, docType string, jsonOut bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	vec, err := a.embedder.Embed(query)
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}

	var filter *knowledge.Filter
	if docType != "" {
		filter = &knowledge.Filter{DocType: docType}
	}

	results, err := a.vault.Search(vec, topK, filter)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if jsonOut {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%d. %s (score %.3f)\n   %.200s\n", i+1, r.DocPath, r.Score, r.Chunk.Content)
	}
	return nil
}

func vaultDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [path]",
		Short: "Delete a document and all its chunks by path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVaultDelete(args[0])
		},
	}
	return cmd
}

func runVaultDelete(path string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	docID, err := a.vault.DeleteDocumentByPath(path)
	if errors.Is(err, sql.ErrNoRows) {
		fmt.Printf("no document found at %s\n", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	fmt.Printf("deleted document %s (id %d)\n", path, docID)
	return nil
}

func vaultWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Watch a directory and keep the vault in sync",
		Long: `Watch watches dir and its subdirectories for writes, creates, renames,
and removals of eligible files, debouncing bursts of changes before
re-indexing. Files already present are not indexed until they change.
Runs until interrupted.

Example:
  tripartite vault watch ./notes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVaultWatch(args[0])
		},
	}
	return cmd
}

func runVaultWatch(dir string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	feed := watchfeed.New(a.vault, dir, watchfeed.DefaultDocTyper, slog.Default())
	return feed.Run(ctx)
}
