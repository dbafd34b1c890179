package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Skotchmaster/marketfeed/internal/backup"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Full data exports",
}

var backupExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump every table and the archive meta as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		gdb, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB(gdb)

		exp := &backup.Exporter{DB: gdb, Archive: archiveService(gdb), PrimaryAdmin: viper.GetString("primary_admin_email")}
		d, err := exp.Export(cmd.Context())
		if err != nil {
			return err
		}
		d.Reason = "manual"
		payload, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return err
		}

		dir, _ := cmd.Flags().GetString("out")
		if dir == "" {
			_, err = cmd.OutOrStdout().Write(append(payload, '\n'))
			return err
		}
		name := fmt.Sprintf("data-%s.json", time.Now().UTC().Format("20060102T150405.000Z"))
		if err := (backup.FileSink{Dir: dir}).Send(cmd.Context(), name, payload); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", name)
		return nil
	},
}

func init() {
	backupExportCmd.Flags().String("out", "", "directory to write into; stdout when empty")
	backupCmd.AddCommand(backupExportCmd)
	rootCmd.AddCommand(backupCmd)
}
