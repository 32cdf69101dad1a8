package cli

import (
	"fmt"

	"github.com/felixgeelhaar/laigent/internal/config"
	"github.com/felixgeelhaar/laigent/internal/credential"
	"github.com/spf13/cobra"
)

func newConfigCmd(g *globals) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	configSetCmd := &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := args[1]

			s, err := getStore(config.Home(nil))
			if err != nil {
				return err
			}
			defer s.Close()

			creds, err := credential.NewManager()
			if err != nil {
				return err
			}
			if err := config.SaveSetting(s, creds, key, value); err != nil {
				return fmt.Errorf("failed to set config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved: %s\n", key)
			return nil
		},
	}

	var reveal bool
	configGetCmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			s, err := getStore(config.Home(nil))
			if err != nil {
				return err
			}
			defer s.Close()

			creds, err := credential.NewManager()
			if err != nil {
				return err
			}
			val, err := config.ReadSetting(s, creds, key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), display(key, val, reveal))
			return nil
		},
	}
	configGetCmd.Flags().BoolVar(&reveal, "reveal", false, "Print credentials unmasked")

	configListCmd := &cobra.Command{
		Use:   "list",
		Short: "List every known setting and where it can come from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore(config.Home(nil))
			if err != nil {
				return err
			}
			defer s.Close()

			creds, err := credential.NewManager()
			if err != nil {
				return err
			}
			for _, setting := range config.Settings {
				val, err := config.ReadSetting(s, creds, setting.StoreKey)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-24s %s\n", setting.StoreKey, setting.Env, display(setting.StoreKey, val, false))
			}
			return nil
		},
	}

	configCmd.AddCommand(configSetCmd, configGetCmd, configListCmd)
	return configCmd
}

func display(key, val string, reveal bool) string {
	switch {
	case val == "":
		return "(not set)"
	case credential.IsSecretKey(key) && !reveal:
		return credential.MaskSecret(val)
	default:
		return val
	}
}
