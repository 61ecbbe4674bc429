package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/netchange/pkg/audit"
	"github.com/newtron-network/netchange/pkg/cli"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View audit logs",
	Long: `View the audit log of device outcomes.

Every device attempt of a backup, commit, rollback or verification run
is logged with its run ID, user, result and diff.

Examples:
  netchange audit list --device S1
  netchange audit list --last 24h --failures
  netchange audit list --run 4f6c... --json`,
}

var (
	auditDevice    string
	auditUser      string
	auditOperation string
	auditRun       string
	auditLast      string
	auditLimit     int
	auditFailures  bool
	auditJSON      bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := audit.Filter{
			Device:      auditDevice,
			User:        auditUser,
			Operation:   auditOperation,
			RunID:       auditRun,
			Limit:       auditLimit,
			FailureOnly: auditFailures,
		}

		// Parse --last duration
		if auditLast != "" {
			duration, err := time.ParseDuration(auditLast)
			if err != nil {
				return fmt.Errorf("invalid duration: %s", auditLast)
			}
			filter.StartTime = time.Now().Add(-duration)
		}

		logger, err := audit.NewFileLogger(userSettings.GetAuditLogPath(), audit.RotationConfig{})
		if err != nil {
			return err
		}
		defer logger.Close()

		events, err := logger.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		if auditJSON {
			return json.NewEncoder(os.Stdout).Encode(events)
		}
		if len(events) == 0 {
			fmt.Println("No audit events found")
			return nil
		}

		t := cli.NewTable(os.Stdout, "TIMESTAMP", "USER", "DEVICE", "OPERATION", "RESULT", "STATUS")
		for _, event := range events {
			status := cli.Green("ok")
			if !event.Success {
				status = cli.Red("failed")
			}
			t.Row(
				event.Timestamp.Format("2006-01-02 15:04:05"),
				event.User,
				event.Device,
				event.Operation,
				event.Result,
				status,
			)
		}
		t.Flush()
		return nil
	},
}

func init() {
	auditListCmd.Flags().StringVar(&auditDevice, "device", "", "Filter by device")
	auditListCmd.Flags().StringVar(&auditUser, "user", "", "Filter by user")
	auditListCmd.Flags().StringVar(&auditOperation, "operation", "", "Filter by operation (backup, commit, rollback-restore, rollback-merge, verify)")
	auditListCmd.Flags().StringVar(&auditRun, "run", "", "Filter by run ID")
	auditListCmd.Flags().StringVar(&auditLast, "last", "", "Show events from last duration (e.g., 24h)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum events to show")
	auditListCmd.Flags().BoolVar(&auditFailures, "failures", false, "Show only failed outcomes")
	auditListCmd.Flags().BoolVar(&auditJSON, "json", false, "Output as JSON")

	auditCmd.AddCommand(auditListCmd)
}
