// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// options holds the persistent flags shared by every command.
type options struct {
	server  string
	domain  string
	verbose bool
}

// NewRootCmd builds the portalctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "portalctl",
		Short: "WashPass portal CLI - session client",
		Long: `portalctl signs in to the WashPass customer and partner portals, keeps the
session in ~/.washpass/credentials.json and adopts hand-off links opened from
the mobile app.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", "", "Identity API base URL (overrides WASHPASS_IDENTITY_URL)")
	root.PersistentFlags().StringVar(&opts.domain, "domain", "customer", "Identity domain: customer or partner")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log session transitions to stderr")

	root.AddCommand(newLoginCmd(opts))
	root.AddCommand(newRegisterCmd(opts))
	root.AddCommand(newLogoutCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newHandoffCmd(opts))

	return root
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		pterm.Error.Println(err)
		stop()
		os.Exit(1)
	}
}
