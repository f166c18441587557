// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/taibuivan/washpass/internal/identity"
	"github.com/taibuivan/washpass/internal/platform/validate"
	"github.com/taibuivan/washpass/internal/session"
)

func newLoginCmd(opts *options) *cobra.Command {
	var input session.LoginInput

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the selected domain",
		Example: `  portalctl login --email mai@example.com
  portalctl login --domain partner --email owner@sparkle.vn --password ...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input.Password == "" {
				password, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password")
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				input.Password = password
			}

			v := &validate.Validator{}
			v.Required("email", input.Email).
				Email("email", input.Email).
				Required("password", input.Password)
			if err := v.Err(); err != nil {
				return err
			}

			p, err := openPortal(opts)
			if err != nil {
				return err
			}
			defer release(p)

			m, err := opts.machine(p)
			if err != nil {
				return err
			}

			snapshot, err := m.Login(cmd.Context(), input)
			if err != nil {
				return userFacing(err)
			}

			pterm.Success.Printfln("Signed in to %s as %s (%s)",
				m.Domain().Name, snapshot.Principal.Name, snapshot.Principal.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&input.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&input.Password, "password", "", "Account password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// userFacing reduces a sign-in failure to the message shown to the user.
// The cause is kept in the debug log.
func userFacing(err error) error {
	slog.Debug("sign_in_failed", slog.Any("error", err))
	if errors.Is(err, session.ErrSuperseded) {
		return err
	}
	return errors.New(identity.Message(err))
}
