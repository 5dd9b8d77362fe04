package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd はルートコマンドを作成します。サブコマンド省略時は serve と同じ動作です。
func NewRootCmd() *cobra.Command {
	serve := NewServeCmd()

	cmd := &cobra.Command{
		Use:          "account-api",
		Short:        "User account HTTP API",
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         serve.RunE,
	}
	cmd.Flags().AddFlagSet(serve.Flags())

	cmd.AddCommand(serve)
	cmd.AddCommand(NewMigrateCmd())
	return cmd
}
