package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yairfalse/shotty/internal/emitter"
	"github.com/yairfalse/shotty/internal/inventory"
)

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", emitter.FormatText,
		fmt.Sprintf("Output format (%s)", strings.Join(emitter.Formats, "|")))
}

// list runs fn against an inventory writing to the command's stdout.
func (a *app) list(cmd *cobra.Command, fn func(inv *inventory.Inventory) error) error {
	format, _ := cmd.Flags().GetString("output")
	out, err := emitter.New(cmd.OutOrStdout(), format)
	if err != nil {
		return err
	}

	if err := fn(inventory.New(a.compute, out)); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
