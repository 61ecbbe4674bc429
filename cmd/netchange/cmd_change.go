package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/netchange/pkg/audit"
	"github.com/newtron-network/netchange/pkg/changeset"
	"github.com/newtron-network/netchange/pkg/inventory"
	"github.com/newtron-network/netchange/pkg/orchestrator"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Capture a pre snapshot of every device",
	Long: `Capture the running configuration of every device as its pre snapshot
without changing anything. The snapshot is the restore point used by
'netchange rollback restore'.

Examples:
  netchange backup
  netchange backup --devices S1,R1 --store bolt`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, err := loadInventory()
		if err != nil {
			return err
		}
		o, err := newOrchestrator(orchestrator.StaticApprover(orchestrator.DecisionDiscard))
		if err != nil {
			return err
		}
		report, err := o.Backup(cmd.Context(), inv)
		if err != nil {
			return err
		}
		report.WriteSummary(os.Stdout)
		return nil
	},
}

var (
	commitSwitchFile string
	commitRouterFile string
	commitDryRun     bool
	commitYes        bool
	commitNo         bool
)

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Apply changesets with review",
	Long: `Apply the switch changeset to switches and the router changeset to
routers. For every device a pre snapshot is taken, the change is staged
and diffed, and the diff is committed only after approval. A post
snapshot is taken after each commit.

Switches stage a real candidate and show the device's own diff. Routers
cannot stage: the planned lines are listed and the diff is computed
from the pre snapshot and those lines.

Examples:
  netchange commit
  netchange commit --switch-changeset vlan.cfg --devices S1,S2,S3
  netchange commit --dry-run
  netchange commit --yes`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, err := loadInventory()
		if err != nil {
			return err
		}

		plan := orchestrator.Plan{
			Operation:     audit.OpCommit,
			ChangeSets:    make(map[inventory.Role]*changeset.ChangeSet),
			DeviceOptions: orchestrator.DeviceOptions{Simulate: commitDryRun},
		}
		sw, err := loadChangeset(cmd, "switch-changeset", orDefault(commitSwitchFile, userSettings.GetSwitchChangeset()), changeset.Merge)
		if err != nil {
			return err
		}
		rt, err := loadChangeset(cmd, "router-changeset", orDefault(commitRouterFile, userSettings.GetRouterChangeset()), changeset.Merge)
		if err != nil {
			return err
		}
		if sw != nil {
			plan.ChangeSets[inventory.RoleSwitch] = sw
		}
		if rt != nil {
			plan.ChangeSets[inventory.RoleRouter] = rt
		}

		o, err := newOrchestrator(approverFor(commitYes, commitNo))
		if err != nil {
			return err
		}
		report, err := o.Run(cmd.Context(), inv, plan)
		if err != nil {
			return err
		}
		report.WriteSummary(os.Stdout)
		return nil
	},
}

func init() {
	commitCmd.Flags().StringVar(&commitSwitchFile, "switch-changeset", "", "Changeset for switches (default vlan.cfg)")
	commitCmd.Flags().StringVar(&commitRouterFile, "router-changeset", "", "Changeset for routers (default loopback.cfg)")
	commitCmd.Flags().BoolVar(&commitDryRun, "dry-run", false, "Stage and diff, then always discard")
	addApprovalFlags(commitCmd, &commitYes, &commitNo)
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
