package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pior/telldus"
)

func onCmd(a *app) *cobra.Command {
	return deviceCmd(a, "on", "Turn a device on", (*telldus.Commands).TurnOn)
}

func offCmd(a *app) *cobra.Command {
	return deviceCmd(a, "off", "Turn a device off", (*telldus.Commands).TurnOff)
}

func deviceCmd(a *app, use, short string, fn func(*telldus.Commands, context.Context, int) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <device-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInt("device-id", args[0])
			if err != nil {
				return err
			}

			client, err := a.newClient()
			if err != nil {
				return err
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			if err := fn(client.Commands, ctx, id); err != nil {
				return fmt.Errorf("%s device %d: %w", use, id, err)
			}
			a.printf("device %d: %s\n", id, use)
			return nil
		},
	}
}

func dimCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dim <device-id> <level>",
		Short: "Dim a device to a level between 0 and 255",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInt("device-id", args[0])
			if err != nil {
				return err
			}
			level, err := parseInt("level", args[1])
			if err != nil {
				return err
			}
			if level < 0 || level > 255 {
				return fmt.Errorf("level must be between 0 and 255, got %d", level)
			}

			client, err := a.newClient()
			if err != nil {
				return err
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			if err := client.Dim(ctx, id, level); err != nil {
				return fmt.Errorf("dim device %d: %w", id, err)
			}
			a.printf("device %d: dim %d\n", id, level)
			return nil
		},
	}
}

func listCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List configured devices",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			devices, err := client.Devices(ctx)
			if err != nil {
				return fmt.Errorf("list devices: %w", err)
			}

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tPROTOCOL\tMODEL\tMETHODS")
			for _, d := range devices {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Type, d.Protocol, d.Model, d.Methods)
			}
			return w.Flush()
		},
	}
}

func parseInt(name, s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return v, nil
}
