package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/netchange/pkg/cli"
	"github.com/newtron-network/netchange/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent settings",
	Long: `Manage persistent settings stored in ~/.netchange/settings.json
(or the file named by --settings or NETCHANGE_SETTINGS).

Settings provide defaults for flags and file locations. Command-line
flags always take precedence.

Examples:
  netchange settings show
  netchange settings set inventory /etc/netchange/devices.yaml
  netchange settings set store_backend redis
  netchange settings set redis_addr 127.0.0.1:6379
  netchange settings clear`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.LoadFrom(resolvedSettingsPath())
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		fmt.Printf("Settings file: %s\n\n", resolvedSettingsPath())

		t := cli.NewTable(os.Stdout, "SETTING", "VALUE")
		for _, key := range settings.Keys() {
			value, _ := s.Get(key)
			if value == "" {
				value = cli.Dim("(not set)")
			}
			t.Row(key, value)
		}
		t.Flush()
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Set a setting value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolvedSettingsPath()
		s, err := settings.LoadFrom(path)
		if err != nil {
			s = &settings.Settings{}
		}
		if err := s.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := s.SaveTo(path); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Printf("%s set to: %s\n", args[0], args[1])
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <setting>",
	Short: "Get a setting value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.LoadFrom(resolvedSettingsPath())
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		value, err := s.Get(args[0])
		if err != nil {
			return err
		}
		if value == "" {
			fmt.Println("(not set)")
		} else {
			fmt.Println(value)
		}
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := &settings.Settings{}
		if err := s.SaveTo(resolvedSettingsPath()); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Println("Settings cleared")
		return nil
	},
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(resolvedSettingsPath())
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsGetCmd, settingsClearCmd, settingsPathCmd)
}
