package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DjEugeny/contact-parser-sub001/internal/export"
	"github.com/DjEugeny/contact-parser-sub001/internal/model"
	"github.com/DjEugeny/contact-parser-sub001/internal/store"
)

var (
	exportRunID  string
	exportOut    string
	exportMinCfd float64
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored contacts to CSV or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		contacts, err := st.ListContacts(ctx, store.ContactFilter{
			RunID:         exportRunID,
			MinConfidence: exportMinCfd,
		})
		if err != nil {
			return err
		}

		out := exportOut
		if out == "" {
			out = filepath.Join(cfg.Export.Dir, "contacts."+cfg.Export.Format)
			if err := os.MkdirAll(cfg.Export.Dir, 0o755); err != nil {
				return eris.Wrapf(err, "create export dir %s", cfg.Export.Dir)
			}
		}
		if err := exportContacts(contacts, out); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("file", out),
			zap.Int("contacts", len(contacts)),
		)
		return nil
	},
}

// exportContacts picks the writer from the file extension.
func exportContacts(contacts []model.ContactRecord, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return export.WriteCSV(contacts, path)
	case ".xlsx":
		return export.WriteXLSX(contacts, path)
	default:
		return eris.Errorf("unsupported export format %q (use .csv or .xlsx)", filepath.Ext(path))
	}
}

func init() {
	exportCmd.Flags().StringVar(&exportRunID, "run", "", "export only this run id (default all)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file path (default from config)")
	exportCmd.Flags().Float64Var(&exportMinCfd, "min-confidence", 0, "drop contacts below this confidence")
	rootCmd.AddCommand(exportCmd)
}
