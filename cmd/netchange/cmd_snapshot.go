package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/netchange/pkg/cli"
	"github.com/newtron-network/netchange/pkg/diff"
	"github.com/newtron-network/netchange/pkg/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect stored snapshots",
	Long: `Inspect the pre and post snapshots in the configured store.

Examples:
  netchange snapshot list
  netchange snapshot show S1 post
  netchange snapshot diff S1`,
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		snaps, err := st.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("No snapshots found")
			return nil
		}
		t := cli.NewTable(os.Stdout, "DEVICE", "TAG", "CAPTURED", "BYTES")
		for _, s := range snaps {
			t.Row(s.Device, string(s.Tag), s.CapturedAt.Format(time.DateTime), strconv.Itoa(len(s.Content)))
		}
		t.Flush()
		return nil
	},
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show <device> [pre|post]",
	Short: "Print a snapshot",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tag := snapshot.Pre
		if len(args) == 2 {
			var err error
			if tag, err = snapshot.ParseTag(args[1]); err != nil {
				return err
			}
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		snap, err := st.Load(cmd.Context(), args[0], tag)
		if err != nil {
			return err
		}
		fmt.Print(snap.Content)
		return nil
	},
}

var snapshotDiffCmd = &cobra.Command{
	Use:   "diff <device>",
	Short: "Diff a device's pre and post snapshots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		pre, err := st.Load(cmd.Context(), args[0], snapshot.Pre)
		if err != nil {
			return err
		}
		post, err := st.Load(cmd.Context(), args[0], snapshot.Post)
		if err != nil {
			return err
		}
		d, err := diff.Unified(pre.Content, post.Content, pre.Key(), post.Key())
		if err != nil {
			return err
		}
		if d.IsEmpty() {
			fmt.Println("No change")
			return nil
		}
		fmt.Print(d.Text)
		return nil
	},
}

func init() {
	snapshotCmd.AddCommand(snapshotListCmd, snapshotShowCmd, snapshotDiffCmd)
}
