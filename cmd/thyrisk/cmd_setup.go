package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thyroid-risk-assessor/internal/setup"
)

func newSetupCommand() *cobra.Command {
	var (
		configPath string
		serverName string
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the MCP server with a desktop MCP client",
	}
	cmd.PersistentFlags().StringVar(&configPath, "client-config", "", "Client configuration file (default: desktop client location for this OS)")
	cmd.PersistentFlags().StringVar(&serverName, "name", setup.DefaultServerName, "Server name in the client configuration")

	resolve := func() (string, error) {
		if configPath != "" {
			return configPath, nil
		}
		return setup.DefaultClientConfigPath()
	}

	var opts setup.Options
	register := &cobra.Command{
		Use:   "register",
		Short: "Add or update the mcp-server-lite entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolve()
			if err != nil {
				return err
			}
			opts.ConfigPath = path
			opts.ServerName = serverName

			written, err := setup.Register(opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %q in %s\nRestart the client to load the server.\n", serverName, written)
			return nil
		},
	}
	register.Flags().StringVar(&opts.BinaryPath, "binary", "", "Path to mcp-server-lite (default: search PATH and common locations)")
	register.Flags().StringVar(&opts.DataDir, "data-dir", "", "Data directory passed as THYRISK_DATA_DIR")
	register.Flags().StringVar(&opts.BundleDir, "bundle", "", "Model bundle passed as THYRISK_BUNDLE_DIR")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the registered entry and any problems with it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolve()
			if err != nil {
				return err
			}
			st, err := setup.Check(path, serverName)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}

	cmd.AddCommand(register, status)
	return cmd
}
