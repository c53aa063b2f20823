package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// credibilitySeed maps source domains to credibility weights in [0,1].
type credibilitySeed struct {
	Sources map[string]float64 `yaml:"sources"`
}

var credibilityCmd = &cobra.Command{
	Use:   "credibility",
	Short: "Manage source credibility weights",
}

var credibilityLoadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Load source credibility weights from a YAML file",
	Long:  "Reads a YAML file of the form {sources: {reuters.com: 0.9, ...}} and upserts the weights the validator uses to score news sources.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "read seed file")
		}
		var seed credibilitySeed
		if err := yaml.Unmarshal(raw, &seed); err != nil {
			return eris.Wrap(err, "parse seed file")
		}
		if len(seed.Sources) == 0 {
			return eris.New("seed file has no sources")
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close() //nolint:errcheck

		for domain, weight := range seed.Sources {
			if weight < 0 || weight > 1 {
				return eris.Errorf("weight for %q out of range [0,1]: %v", domain, weight)
			}
			if err := st.UpsertCredibility(cmd.Context(), domain, weight); err != nil {
				return eris.Wrapf(err, "upsert %q", domain)
			}
		}
		zap.L().Info("credibility weights loaded", zap.Int("sources", len(seed.Sources)))
		return nil
	},
}

func init() {
	credibilityCmd.AddCommand(credibilityLoadCmd)
	rootCmd.AddCommand(credibilityCmd)
}
