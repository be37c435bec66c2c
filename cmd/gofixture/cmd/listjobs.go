package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gofixture/internal/config"
)

var listJobsCmd = &cobra.Command{
	Use:   "list-jobs",
	Short: "List all jobs defined in configuration",
	Long: `List-jobs displays all extraction jobs defined in the configuration file
along with their basic settings.

Example:
  gofixture list-jobs --config gofixture.yaml`,
	RunE: runListJobs,
}

func init() {
	rootCmd.AddCommand(listJobsCmd)
}

func runListJobs(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	jobNames := cfg.ListJobs()
	if len(jobNames) == 0 {
		cmd.Printf("No jobs defined in %s\n", configFile)
		return nil
	}

	cmd.Printf("Jobs defined in %s:\n\n", configFile)

	for i, jobName := range jobNames {
		job, err := cfg.GetJob(jobName)
		if err != nil {
			return fmt.Errorf("failed to get job %q: %w", jobName, err)
		}

		cmd.Printf("%d. %s\n", i+1, jobName)
		if job.IsDeclared() {
			cmd.Printf("   Schema File:   %s\n", job.SchemaFile)
			cmd.Printf("   Split Files:   %v\n", job.SplitFiles)
		} else {
			cmd.Printf("   Root Model:    %s.%s\n", job.App, job.Model)
			filterKey := job.FilterKey
			if filterKey == "" {
				filterKey = "pk"
			}
			cmd.Printf("   Filter Key:    %s\n", filterKey)
		}

		if job.Extraction != nil {
			cmd.Printf("   Extraction:    Custom (output_dir=%s, max_depth=%d, deduplicate=%v)\n",
				job.Extraction.OutputDir, job.Extraction.MaxDepth, job.Extraction.Deduplicate)
		}

		if i < len(jobNames)-1 {
			cmd.Println()
		}
	}

	cmd.Printf("\nTotal: %d job(s)\n", len(jobNames))
	return nil
}
