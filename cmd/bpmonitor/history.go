package main

import (
	"github.com/spf13/cobra"

	"github.com/pitabwire/bpmonitor/internal/history"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		req    history.Request
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List workflow instances with their consolidated status",
		Long: `List one page of workflow instances, newest first, exactly as the
history endpoint would return them.

Examples:
  bpmonitor history                         # first page
  bpmonitor history --status error          # failed or erroring instances
  bpmonitor history --search deal -n 20     # template name or id contains "deal"
  bpmonitor history --json                  # raw response body`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			page, err := s.history.List(cmd.Context(), req)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), page)
			}
			printPage(cmd.OutOrStdout(), page)
			return nil
		},
	}
	cmd.Flags().StringVarP(&req.Limit, "limit", "n", "", "page size (default from history.default_limit)")
	cmd.Flags().StringVar(&req.Offset, "offset", "", "rows to skip")
	cmd.Flags().StringVarP(&req.Status, "status", "s", "", "filter by status (running, completed, error)")
	cmd.Flags().StringVarP(&req.Search, "search", "q", "", "substring of the template name or instance id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the response as JSON")
	return cmd
}

func newCountsCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Show row counts of the audit tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			counts := s.history.Debug(cmd.Context())
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), counts)
			}
			printCounts(cmd.OutOrStdout(), counts)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the report as JSON")
	return cmd
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <instance-id>",
		Short: "Show one workflow instance with its tasks and full history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			detail, err := s.history.Detail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), detail)
			}
			printDetail(cmd.OutOrStdout(), detail)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the detail as JSON")
	return cmd
}

func newInitDBCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the audit tables if they are missing",
		Long: `Create the subset of the Bitrix24 business-process tables that bpmonitor
reads. Intended for local SQLite stores and fixtures; production replicas
already carry these tables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.store.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			okStyle.Fprintf(cmd.OutOrStdout(), "%s audit tables ready (%s)\n", checkmark, s.store.Driver())
			return nil
		},
	}
}
