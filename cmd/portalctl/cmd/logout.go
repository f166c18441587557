// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out of the selected domain",
		Long: `Removes the stored tokens of the selected domain. The identity API is told
on a best-effort basis; the local sign-out succeeds either way.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openPortal(opts)
			if err != nil {
				return err
			}
			defer release(p)

			m, err := opts.machine(p)
			if err != nil {
				return err
			}

			m.Logout(cmd.Context())
			pterm.Success.Printfln("Logged out of %s", m.Domain().Name)
			return nil
		},
	}
}
