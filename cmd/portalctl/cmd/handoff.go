// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cmd

import (
	"fmt"
	"net/url"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/taibuivan/washpass/internal/handoff"
)

func newHandoffCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "handoff <url>",
		Short: "Adopt the session token carried by a hand-off link",
		Long: `Stores the token found in the link's "token" query parameter for the domain
owning the link's path, validates it, and prints the link without the token.`,
		Example: `  portalctl handoff "https://app.washpass.vn/app/dashboard?token=eyJ..."`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link, err := url.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid link: %w", err)
			}

			p, err := openPortal(opts)
			if err != nil {
				return err
			}
			defer release(p)

			loc := &handoff.StaticLocation{Current: link}
			p.Mount(cmd.Context(), loc)
			p.Wait()

			fmt.Fprintln(cmd.OutOrStdout(), loc.Current.String())

			m := p.MachineFor(link.Path)
			snapshot := m.Snapshot()
			if !snapshot.Authenticated {
				return fmt.Errorf("the %s session in this link was not accepted", m.Domain().Name)
			}

			pterm.Success.Printfln("Signed in to %s as %s", m.Domain().Name, snapshot.Principal.Name)
			return nil
		},
	}
}
