package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hklex/lexharvest/internal/chunk"
)

var (
	rechunkDocType     string
	rechunkDocID       string
	rechunkSectionPath string
)

var rechunkCmd = &cobra.Command{
	Use:   "rechunk <file>",
	Short: "Chunk a plain-text document and print the chunks as JSON lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		var chunks []chunk.Chunk
		switch rechunkDocType {
		case "case":
			chunks = chunk.ChunkCaseWith(rechunkDocID, string(data), cfg.Chunking.MaxChars, cfg.Chunking.OverlapParagraphs)
		case "section":
			chunks = chunk.ChunkSection(rechunkDocID, string(data), rechunkSectionPath)
		default:
			return fmt.Errorf("unknown doc type %q (want case or section)", rechunkDocType)
		}

		enc := json.NewEncoder(os.Stdout)
		for _, c := range chunks {
			if err := enc.Encode(c); err != nil {
				return fmt.Errorf("encode chunk %d: %w", c.ChunkIndex, err)
			}
		}
		return nil
	},
}

func init() {
	rechunkCmd.Flags().StringVar(&rechunkDocType, "doc-type", "case", "document type: case or section")
	rechunkCmd.Flags().StringVar(&rechunkDocID, "id", "", "document identifier stamped on every chunk")
	rechunkCmd.Flags().StringVar(&rechunkSectionPath, "section-path", "", "structural path for section chunks")
	rootCmd.AddCommand(rechunkCmd)
}
