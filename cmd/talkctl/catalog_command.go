package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tendant/talkonpaper/pkg/talkonpaper"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/config"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema to the DATABASE_URL store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			kind, _, err := cfg.Database.Parse()
			if err != nil {
				return err
			}
			if kind == config.DatabaseMemory {
				fmt.Fprintln(cmd.OutOrStdout(), "memory store needs no migration")
				return nil
			}
			defer ctx.close()
			if _, err := ctx.repository(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", kind)
			return nil
		},
	}
}

func newTalksCommand(ctx *commandContext) *cobra.Command {
	talksCmd := &cobra.Command{
		Use:   "talks",
		Short: "Inspect talks",
	}

	var query string
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List talks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			svc, err := ctx.service(cmd)
			if err != nil {
				return err
			}
			talks, err := svc.ListTalks(cmd.Context(), talkonpaper.ListTalksRequest{Query: query, Limit: limit})
			if err != nil {
				return err
			}
			if len(talks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no talks")
				return nil
			}

			rows := make([][]string, 0, len(talks))
			for _, t := range talks {
				rows = append(rows, []string{
					t.ID.String(),
					t.Title,
					t.AccessLevel,
					strconv.Itoa(t.DurationMinutes()),
					t.CreatedAt.Format("2006-01-02"),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Access", "Minutes", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	listCmd.Flags().StringVarP(&query, "query", "q", "", "Case-insensitive title search")
	listCmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of talks (0 for all)")

	talksCmd.AddCommand(listCmd)
	return talksCmd
}
