// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cmd

import (
	"net/url"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/taibuivan/washpass/internal/handoff"
	"github.com/taibuivan/washpass/internal/portal"
	"github.com/taibuivan/washpass/internal/session"
)

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Validate the stored sessions and show who is signed in",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openPortal(opts)
			if err != nil {
				return err
			}
			defer release(p)

			p.Mount(cmd.Context(), &handoff.StaticLocation{Current: &url.URL{Path: "/"}})
			p.Wait()

			pterm.DefaultSection.Println("Sessions")
			return renderSessions(cmd, p)
		},
	}
}

// renderSessions prints one row per identity domain.
func renderSessions(cmd *cobra.Command, p *portal.Portal) error {
	table := pterm.TableData{{"DOMAIN", "STATE", "NAME", "EMAIL", "ROLE"}}
	for _, m := range []*session.Machine{p.Customer, p.Partner} {
		snapshot := m.Snapshot()
		row := []string{m.Domain().Name, snapshot.State.String(), "-", "-", "-"}
		if snapshot.Principal != nil {
			row[2] = snapshot.Principal.Name
			row[3] = snapshot.Principal.Email
			row[4] = string(snapshot.Principal.Role)
		}
		table = append(table, row)
	}

	return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(table).Render()
}
