package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/access"
)

func newAccessCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "access <content-tier> [viewer-tier]",
		Short: "Show the access decision for a content and viewer tier",
		Long: "Evaluates the tier policy. Tier names match exactly. Unknown content tiers " +
			"deny every viewer and report academic_premium as required; a missing or unknown " +
			"viewer tier counts as public.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := args[0]
			viewer := ""
			if len(args) == 2 {
				viewer = args[1]
			}

			d := access.Evaluate(content, viewer)
			rows := [][]string{
				{"content", content},
				{"required", string(d.Required)},
				{"viewer", string(access.ViewerTier(viewer))},
				{"has_access", strconv.FormatBool(d.HasAccess)},
				{"mode", string(d.Mode)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
}
