package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DjEugeny/contact-parser-sub001/internal/dedup"
	"github.com/DjEugeny/contact-parser-sub001/internal/model"
)

var (
	dedupeIn  string
	dedupeOut string
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Deduplicate a JSON file of contact records",
	Long:  "Reads a JSON array of contacts, merges exact and semantic duplicates, and writes the unique list. Stdin/stdout when no files are given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(dedupeIn)
		if err != nil {
			return err
		}

		var contacts []model.ContactRecord
		if err := json.Unmarshal(raw, &contacts); err != nil {
			return eris.Wrap(err, "parse contacts")
		}

		unique := dedup.New(dedupConfig()).Deduplicate(contacts)
		zap.L().Info("deduplication complete",
			zap.Int("input", len(contacts)),
			zap.Int("unique", len(unique)),
		)

		out, err := json.MarshalIndent(unique, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal contacts")
		}
		out = append(out, '\n')

		if dedupeOut == "" {
			_, err = os.Stdout.Write(out)
			return err
		}
		return eris.Wrapf(os.WriteFile(dedupeOut, out, 0o644), "write %s", dedupeOut)
	},
}

func readInput(path string) ([]byte, error) {
	if path == "" {
		raw, err := io.ReadAll(os.Stdin)
		return raw, eris.Wrap(err, "read stdin")
	}
	raw, err := os.ReadFile(path)
	return raw, eris.Wrapf(err, "read %s", path)
}

func init() {
	dedupeCmd.Flags().StringVar(&dedupeIn, "in", "", "input JSON file (default stdin)")
	dedupeCmd.Flags().StringVar(&dedupeOut, "out", "", "output JSON file (default stdout)")
	rootCmd.AddCommand(dedupeCmd)
}
