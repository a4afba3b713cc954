package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DjEugeny/contact-parser-sub001/internal/extractor"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show the configured LLM provider roster",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfgs, err := extractor.LoadProviderConfigs(cfg.Providers.File)
		if err != nil {
			return err
		}
		formatProviders(os.Stdout, cfgs)
		return nil
	},
}

func formatProviders(w io.Writer, cfgs []extractor.ProviderConfig) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRIORITY\tID\tTYPE\tMODEL\tMAX FAILURES\tRPM\tKEY SET")
	for _, c := range cfgs {
		keySet := "no"
		if os.Getenv(c.APIKeyEnv) != "" {
			keySet = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%s\n",
			c.Priority, c.ID, c.Type, c.Model, c.MaxFailures, c.RPM, keySet,
		)
	}
	tw.Flush()
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
