package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DjEugeny/contact-parser-sub001/internal/dedup"
	"github.com/DjEugeny/contact-parser-sub001/internal/model"
)

var (
	extractDir      string
	extractTestMode bool
	extractExport   string
	extractNoStore  bool
)

// emailFile is one ingested message: the exported plain text plus its
// optional sidecar metadata.
type emailFile struct {
	ID   string
	Text string
	Meta model.EmailMetadata
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract contacts from a directory of exported email text files",
	Long:  "Reads *.txt files (with optional *.meta.json sidecars) from a directory, extracts contacts through the configured providers, deduplicates, and persists the results.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("extract"); err != nil {
			return err
		}

		emails, err := loadEmailDir(ctx, extractDir)
		if err != nil {
			return err
		}
		if len(emails) == 0 {
			return eris.Errorf("no .txt files found in %s", extractDir)
		}

		ext, err := buildExtractor()
		if err != nil {
			return err
		}

		var all []model.ContactRecord
		failed := 0
		for _, email := range emails {
			meta := email.Meta
			if extractTestMode {
				meta = nil
			}
			result := ext.Extract(ctx, email.Text, meta)
			if !result.Success {
				failed++
				zap.L().Warn("extraction failed",
					zap.String("email", email.ID),
					zap.String("error", result.Error),
				)
				continue
			}
			for i := range result.Contacts {
				if result.Contacts[i].Source == "" {
					result.Contacts[i].Source = email.ID
				}
			}
			all = append(all, result.Contacts...)
			zap.L().Info("email processed",
				zap.String("email", email.ID),
				zap.String("provider", result.ProviderUsed),
				zap.Int("contacts", len(result.Contacts)),
				zap.Int("chunks", result.Chunks),
			)
		}

		unique := dedup.New(dedupConfig()).Deduplicate(all)

		zap.L().Info("extraction complete",
			zap.Int("emails", len(emails)),
			zap.Int("failed", failed),
			zap.Int("contacts_found", len(all)),
			zap.Int("contacts_unique", len(unique)),
		)

		run := model.Run{
			StartedAt:      time.Now().UTC(),
			Source:         extractDir,
			Emails:         len(emails),
			ContactsFound:  len(all),
			ContactsUnique: len(unique),
		}

		if !extractNoStore {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			saved, err := st.CreateRun(ctx, run)
			if err != nil {
				return err
			}
			if err := st.SaveContacts(ctx, saved.ID, unique); err != nil {
				return err
			}
			zap.L().Info("run persisted", zap.String("run_id", saved.ID))
		}

		if extractExport != "" {
			return exportContacts(unique, extractExport)
		}
		return nil
	},
}

// loadEmailDir reads every .txt file in dir concurrently. A sidecar
// <name>.meta.json becomes the message metadata; without one the message
// still carries non-nil metadata so extraction runs in live mode.
func loadEmailDir(ctx context.Context, dir string) ([]emailFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "read dir %s", dir)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	emails := make([]emailFile, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			text, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return eris.Wrapf(err, "read %s", name)
			}

			id := strings.TrimSuffix(name, ".txt")
			meta := model.EmailMetadata{}
			metaPath := filepath.Join(dir, id+".meta.json")
			if raw, err := os.ReadFile(metaPath); err == nil {
				if err := json.Unmarshal(raw, &meta); err != nil {
					return eris.Wrapf(err, "parse %s", metaPath)
				}
			}

			emails[i] = emailFile{ID: id, Text: string(text), Meta: meta}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return emails, nil
}

func init() {
	extractCmd.Flags().StringVar(&extractDir, "dir", ".", "directory of exported email .txt files")
	extractCmd.Flags().BoolVar(&extractTestMode, "test", false, "test mode: canned result, no provider calls")
	extractCmd.Flags().StringVar(&extractExport, "export", "", "also export results to this file (.csv or .xlsx)")
	extractCmd.Flags().BoolVar(&extractNoStore, "no-store", false, "skip persisting the run")
	rootCmd.AddCommand(extractCmd)
}
