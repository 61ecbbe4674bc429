// Netchange - network configuration change orchestration
//
// Drives the per-device change lifecycle over a device inventory:
//
//	pre snapshot -> stage candidate -> diff -> review -> commit or discard -> post snapshot
//
// Switches (transactional, NETCONF) stage a candidate and report a native
// diff. Routers (imperative, SSH CLI) cannot stage, so their diff is
// computed from the pre snapshot and the planned lines.
//
// Examples:
//
//	netchange backup                                   # pre snapshot of every device
//	netchange commit                                   # vlan.cfg to switches, loopback.cfg to routers
//	netchange commit --yes --devices S1,S2             # unattended, two devices
//	netchange rollback merge --scope S4,S5,S6          # apply rollback_vlan.cfg to S4-S6 only
//	netchange rollback restore --simulate              # compare every device to its pre snapshot
//	netchange verify                                   # judge the fleet against policy.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/netchange/pkg/cli"
	"github.com/newtron-network/netchange/pkg/settings"
	"github.com/newtron-network/netchange/pkg/util"
	"github.com/newtron-network/netchange/pkg/version"
)

var (
	// Global option flags (override settings)
	settingsPath  string
	inventoryPath string
	backupDir     string
	storeBackend  string
	devicesFlag   string
	callTimeout   time.Duration
	verbose       bool
	jsonLogs      bool
	noColor       bool

	// Global state
	userSettings *settings.Settings
	app          = &appState{}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	app.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "netchange",
	Short:             "Network configuration change orchestration",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Netchange applies reviewed configuration changes to a fleet of network
devices, one device at a time, with pre and post snapshots, rollback and
verification.

Every change is shown as a diff and committed only after approval.
Use --yes or --no for unattended runs.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}
		if jsonLogs {
			util.SetJSONFormat()
		}
		if noColor {
			cli.SetColor(false)
		}

		var err error
		userSettings, err = settings.LoadFrom(resolvedSettingsPath())
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}

		// Flags override persistent settings for this invocation
		if inventoryPath != "" {
			userSettings.Inventory = inventoryPath
		}
		if backupDir != "" {
			userSettings.BackupDir = backupDir
		}
		if storeBackend != "" {
			if err := userSettings.Set("store_backend", storeBackend); err != nil {
				return err
			}
		}
		if callTimeout > 0 {
			userSettings.CallTimeoutSeconds = int(callTimeout.Round(time.Second) / time.Second)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Settings file (default ~/.netchange/settings.json)")
	rootCmd.PersistentFlags().StringVarP(&inventoryPath, "inventory", "i", "", "Device inventory YAML")
	rootCmd.PersistentFlags().StringVar(&backupDir, "backup-dir", "", "Snapshot directory for the file store")
	rootCmd.PersistentFlags().StringVar(&storeBackend, "store", "", "Snapshot store: file, redis or bolt")
	rootCmd.PersistentFlags().StringVarP(&devicesFlag, "devices", "d", "", "Comma-separated device names to limit the run to")
	rootCmd.PersistentFlags().DurationVar(&callTimeout, "timeout", 0, "Timeout for each device call (default 30s)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Log in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "change", Title: "Change Operations:"},
		&cobra.Group{ID: "inspect", Title: "Inspection:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{backupCmd, commitCmd, rollbackCmd} {
		cmd.GroupID = "change"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{verifyCmd, snapshotCmd, auditCmd} {
		cmd.GroupID = "inspect"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{settingsCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if version.Version == "dev" {
			fmt.Println("netchange dev build (use 'make build' for version info)")
			return
		}
		fmt.Println(version.Info())
	},
}

func resolvedSettingsPath() string {
	if settingsPath != "" {
		return settingsPath
	}
	return settings.DefaultSettingsPath()
}
