package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pior/telldus"
)

func sensorsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sensors",
		Short: "List sensors with their last readings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			sensors, err := client.Sensors(ctx)
			if err != nil {
				return fmt.Errorf("list sensors: %w", err)
			}

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROTOCOL\tMODEL\tID\tTYPE\tVALUE\tTIME")
			for _, s := range sensors {
				for _, typ := range s.DataTypes.Types() {
					v, err := client.SensorValue(ctx, s.Protocol, s.Model, s.ID, typ)
					if errors.Is(err, telldus.ErrMethodNotSupported) {
						continue
					}
					if err != nil {
						return fmt.Errorf("read sensor %s: %w", s, err)
					}
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
						s.Protocol, s.Model, s.ID, typ, v, v.Timestamp.Format("2006-01-02 15:04:05"))
				}
			}
			return w.Flush()
		},
	}
}

func controllersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "controllers",
		Short: "List controllers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			controllers, err := client.Controllers(ctx)
			if err != nil {
				return fmt.Errorf("list controllers: %w", err)
			}

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tNAME\tAVAILABLE")
			for _, c := range controllers {
				fmt.Fprintf(w, "%d\t%s\t%s\t%t\n", c.ID, c.Type, c.Name, c.Available)
			}
			return w.Flush()
		},
	}
}
