package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newSignCommand(ctx *commandContext) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "sign <object-key>",
		Short: "Print a signed URL for an object key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := ctx.resolver(cmd)
			if err != nil {
				return err
			}
			url, ok := resolver.Resolve(cmd.Context(), args[0], ttl)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "unavailable")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "URL lifetime (default SIGNED_URL_EXPIRATION)")
	return cmd
}

func newMetaCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "meta <object-key>",
		Short: "Print object metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := ctx.resolver(cmd)
			if err != nil {
				return err
			}
			meta := resolver.Meta(cmd.Context(), args[0])
			if meta.IsZero() {
				fmt.Fprintln(cmd.OutOrStdout(), "unavailable")
				return nil
			}
			rows := [][]string{
				{"key", args[0]},
				{"size", strconv.FormatInt(meta.Size, 10)},
				{"content_type", meta.ContentType},
				{"last_modified", meta.LastModified.UTC().Format(time.RFC3339)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
}
