package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"intigra/features/job"
)

func ingestCMD() *cobra.Command {
	var ingest = &cobra.Command{
		Use:   "ingest <path>",
		Short: "Ingest a file or directory and print the job report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			a, cleanup, err := build(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			j, err := a.Jobs.Submit(ctx, args[0])
			if err != nil {
				return err
			}
			a.Jobs.Wait()

			j, err = a.Jobs.Get(ctx, j.ID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(j); err != nil {
				return err
			}
			if j.Status != job.StatusCompleted {
				return fmt.Errorf("job %s ended %s", j.ID, j.Status)
			}
			return nil
		},
	}
	return ingest
}
