package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/philippeb99/researcher-sub001/internal/model"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage research jobs",
}

var (
	jobUser    string
	jobCompany string
	jobWebsite string
	jobCountry string
	jobCity    string
	jobCEO     string
	jobExecs   []string
)

var jobsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a research job",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jobCompany == "" {
			return eris.New("--company is required")
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close() //nolint:errcheck

		job := &model.ResearchJob{
			UserID:      jobUser,
			CompanyName: jobCompany,
			Website:     jobWebsite,
			Country:     jobCountry,
			City:        jobCity,
			CEOName:     jobCEO,
		}
		if err := st.CreateJob(cmd.Context(), job); err != nil {
			return eris.Wrap(err, "create job")
		}

		// --exec "Jane Smith:CEO" seeds an executive row alongside the job.
		for _, spec := range jobExecs {
			name, position, _ := strings.Cut(spec, ":")
			exec := &model.Executive{JobID: job.ID, Name: strings.TrimSpace(name), Position: strings.TrimSpace(position)}
			if err := st.AddExecutive(cmd.Context(), exec); err != nil {
				return eris.Wrapf(err, "add executive %q", name)
			}
		}

		zap.L().Info("job created", zap.String("job_id", job.ID), zap.String("company", job.CompanyName))
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Print a research job with its executives and news",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close() //nolint:errcheck

		job, err := st.GetJob(cmd.Context(), args[0])
		if err != nil {
			return eris.Wrap(err, "get job")
		}
		execs, err := st.ListExecutives(cmd.Context(), job.ID)
		if err != nil {
			return eris.Wrap(err, "list executives")
		}

		out := struct {
			*model.ResearchJob
			Executives []model.Executive `json:"executives,omitempty"`
		}{job, execs}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	jobsCreateCmd.Flags().StringVar(&jobUser, "user", "", "owning user id")
	jobsCreateCmd.Flags().StringVar(&jobCompany, "company", "", "company name (required)")
	jobsCreateCmd.Flags().StringVar(&jobWebsite, "website", "", "company website URL")
	jobsCreateCmd.Flags().StringVar(&jobCountry, "country", "", "company country")
	jobsCreateCmd.Flags().StringVar(&jobCity, "city", "", "company city")
	jobsCreateCmd.Flags().StringVar(&jobCEO, "ceo", "", "CEO name")
	jobsCreateCmd.Flags().StringSliceVar(&jobExecs, "exec", nil, "executive as name:position, repeatable")

	jobsCmd.AddCommand(jobsCreateCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	rootCmd.AddCommand(jobsCmd)
}
