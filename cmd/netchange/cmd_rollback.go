package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/netchange/pkg/changeset"
	"github.com/newtron-network/netchange/pkg/rollback"
	"github.com/newtron-network/netchange/pkg/util"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Reverse earlier changes",
	Long: `Reverse earlier changes.

  restore  Replace each switch's configuration with its pre snapshot.
           Routers cannot be restored in place: their running config is
           compared with the snapshot and nothing is pushed.
  merge    Apply a scoped merge changeset (for example "no vlan 50") to
           the switches in --scope only. Other devices are not contacted.

Examples:
  netchange rollback restore --simulate
  netchange rollback restore --devices S4
  netchange rollback merge --scope S4,S5,S6
  netchange rollback merge --changeset undo.cfg --scope S1 --yes`,
}

var (
	rollbackSimulate bool
	rollbackYes      bool
	rollbackNo       bool
	rollbackFile     string
	rollbackScope    string
)

var rollbackRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore devices to their pre snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, err := loadInventory()
		if err != nil {
			return err
		}
		o, err := newOrchestrator(approverFor(rollbackYes, rollbackNo))
		if err != nil {
			return err
		}
		report, err := rollback.New(o).Restore(cmd.Context(), inv, rollback.Options{Simulate: rollbackSimulate})
		if err != nil {
			return err
		}
		report.WriteSummary(os.Stdout)
		return nil
	},
}

var rollbackMergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Apply a scoped rollback changeset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		scope := util.SplitCommaSeparated(rollbackScope)
		if len(scope) == 0 {
			return fmt.Errorf("--scope requires at least one device name")
		}
		path := orDefault(rollbackFile, userSettings.GetRollbackChangeset())
		cs, err := changeset.Load(path, changeset.Merge)
		if err != nil {
			return err
		}

		inv, err := loadInventory()
		if err != nil {
			return err
		}
		o, err := newOrchestrator(approverFor(rollbackYes, rollbackNo))
		if err != nil {
			return err
		}
		report, err := rollback.New(o).Merge(cmd.Context(), inv, cs.WithScope(scope...), rollback.Options{Simulate: rollbackSimulate})
		if err != nil {
			return err
		}
		report.WriteSummary(os.Stdout)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{rollbackRestoreCmd, rollbackMergeCmd} {
		cmd.Flags().BoolVar(&rollbackSimulate, "simulate", false, "Diff and discard; never commit")
		addApprovalFlags(cmd, &rollbackYes, &rollbackNo)
		rollbackCmd.AddCommand(cmd)
	}
	rollbackMergeCmd.Flags().StringVar(&rollbackFile, "changeset", "", "Rollback changeset (default rollback_vlan.cfg)")
	rollbackMergeCmd.Flags().StringVar(&rollbackScope, "scope", "", "Comma-separated devices to roll back")
	rollbackMergeCmd.MarkFlagRequired("scope")
}
