package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pior/telldus/wire"
)

func rawCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "raw <function> [args...]",
		Short: "Call a remote function and print the reply fields",
		Long: `Call a remote function by name and print every field of the reply.

Arguments that parse as integers are sent as integers, anything else as
strings. Prefix an argument with "s:" or "i:" to force its kind.

Examples:
  tdctl raw tdGetNumberOfDevices
  tdctl raw tdGetName 3
  tdctl raw tdSetName 3 s:42`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := wire.NewMessage(args[0])
			for _, arg := range args[1:] {
				f, err := parseField(arg)
				if err != nil {
					return err
				}
				req.Add(f)
			}

			client, err := a.newClient()
			if err != nil {
				return err
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			a.logger.Debug().Stringer("request", req).Msg("calling")
			reply, err := client.Call(ctx, req)
			if err != nil {
				return err
			}

			fields, err := takeFields(reply)
			for _, f := range fields {
				a.printf("%s\n", f)
			}
			if err != nil {
				return fmt.Errorf("reply: %w (%d bytes left: %q)", err, reply.Len(), reply.Unread())
			}
			return nil
		},
	}
}

func parseField(arg string) (wire.Field, error) {
	switch {
	case strings.HasPrefix(arg, "s:"):
		return wire.String(arg[2:]), nil
	case strings.HasPrefix(arg, "i:"):
		v, err := strconv.Atoi(arg[2:])
		if err != nil {
			return wire.Field{}, fmt.Errorf("invalid integer argument %q", arg)
		}
		return wire.Int(v), nil
	}

	if v, err := strconv.Atoi(arg); err == nil {
		return wire.Int(v), nil
	}
	return wire.String(arg), nil
}

// takeFields decodes every field of b. The fields decoded before an error
// are returned with it.
func takeFields(b *wire.Buffer) ([]wire.Field, error) {
	var fields []wire.Field
	for b.Len() > 0 {
		f, err := wire.TakeField(b)
		if errors.Is(err, wire.ErrNeedMoreData) {
			return fields, fmt.Errorf("truncated field: %w", err)
		}
		if err != nil {
			return fields, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}
