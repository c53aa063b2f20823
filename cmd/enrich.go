package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/philippeb99/researcher-sub001/internal/auth"
)

var (
	enrichPhases []string
	enrichAsUser string
	enrichAsRole string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <job-id>",
	Short: "Run enrichment phases for a research job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		id := &auth.Identity{UserID: enrichAsUser, Role: enrichAsRole}
		summary, err := env.Orchestrator.Run(cmd.Context(), id, args[0], enrichPhases)
		if err != nil {
			return eris.Wrap(err, "enrich")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	enrichCmd.Flags().StringSliceVar(&enrichPhases, "phases", nil, "phases to run (company, linkedin, news, web); empty or 'all' runs every phase")
	enrichCmd.Flags().StringVar(&enrichAsUser, "as-user", "", "act as this user id")
	enrichCmd.Flags().StringVar(&enrichAsRole, "as-role", "admin", "act with this role")
	rootCmd.AddCommand(enrichCmd)
}
