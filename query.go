package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"intigra/features/query"
)

func queryCMD() *cobra.Command {
	var topK int
	var documentID string

	var q = &cobra.Command{
		Use:   "query <text>",
		Short: "Answer a question from the ingested documents",
		Args:  cobra.MinimumNArgs(1),
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

			req := query.Request{Query: strings.Join(args, " "), DocumentID: documentID}
			if cmd.Flags().Changed("top-k") {
				req.TopK = &topK
			}
			resp, err := a.Query.Query(ctx, req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	q.Flags().IntVar(&topK, "top-k", 5, "number of passages to answer from (default DEFAULT_TOP_K)")
	q.Flags().StringVar(&documentID, "document-id", "", "restrict the search to one document")

	return q
}
