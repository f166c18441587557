// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cmd

import (
	"errors"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/taibuivan/washpass/internal/platform/validate"
	"github.com/taibuivan/washpass/internal/session"
)

func newRegisterCmd(opts *options) *cobra.Command {
	var (
		input   session.RegisterInput
		vehicle session.Vehicle
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Example: `  portalctl register --name Mai --email mai@example.com --password ... --plate 51A-12345
  portalctl register --domain partner --name Lan --business-name "Sparkle Wash" --email ...`,
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

			partner := m.Domain().Name == session.PartnerDomain.Name
			if vehicle != (session.Vehicle{}) {
				if partner {
					return errors.New("vehicle flags are only accepted for customers")
				}
				input.Vehicle = &vehicle
			}

			v := &validate.Validator{}
			v.Required("name", input.Name).
				Required("email", input.Email).
				Email("email", input.Email).
				MinLen("password", input.Password, 8).
				Phone("phone", input.Phone)
			if partner {
				v.Required("business-name", input.BusinessName)
			}
			if err := v.Err(); err != nil {
				return err
			}

			snapshot, err := m.Register(cmd.Context(), input)
			if err != nil {
				return userFacing(err)
			}

			pterm.Success.Printfln("Registered and signed in to %s as %s",
				m.Domain().Name, snapshot.Principal.Name)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&input.Name, "name", "", "Full name")
	flags.StringVar(&input.Email, "email", "", "Account email")
	flags.StringVar(&input.Password, "password", "", "Account password")
	flags.StringVar(&input.Phone, "phone", "", "Phone number")
	flags.StringVar(&input.BusinessName, "business-name", "", "Car wash business name (partner only)")
	flags.StringVar(&vehicle.Plate, "plate", "", "Vehicle plate (customer only)")
	flags.StringVar(&vehicle.Make, "make", "", "Vehicle make (customer only)")
	flags.StringVar(&vehicle.Model, "model", "", "Vehicle model (customer only)")

	return cmd
}
