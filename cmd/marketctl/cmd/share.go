package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var shareCmd = &cobra.Command{
	Use:   "share <categories|users_inactive|products_inactive|posts_banned>",
	Short: "Snapshot a category into the archive and purge it from the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gdb, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB(gdb)

		_, res, err := archiveService(gdb).Share(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	rootCmd.AddCommand(shareCmd)
}
