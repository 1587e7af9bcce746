package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect the document cache",
	Long: `Store lists the parsed documents in the cache: content hash, source
filename, and item count. Documents are keyed by the SHA-256 of their raw
text, so the same OCR output is only ever parsed once.`,
	RunE: runStoreList,
}

func runStoreList(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	docs, err := s.ListDocuments(context.Background())
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("No cached documents.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-16s  %-30s  %-6s  %s\n", "HASH", "FILENAME", "ITEMS", "CACHED")
	for _, doc := range docs {
		name := doc.Filename
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-16s  %-30s  %-6d  %s\n",
			doc.Hash[:16], name, doc.ItemCount, doc.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(storeCmd)
}
