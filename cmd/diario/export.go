package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pbaille/diario/internal/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func exportCmd() *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every entry as JSON or YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			entries, err := s.Journal(owner()).CurrentEntries(cmd.Context())
			if err != nil {
				return err
			}

			var w io.Writer = os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				defer f.Close()
				w = f
			}
			return writeExport(w, entries, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format (json or yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func writeExport(w io.Writer, entries []domain.Entry, format string) error {
	if entries == nil {
		entries = []domain.Entry{}
	}
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}
