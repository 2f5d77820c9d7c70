package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GamesDoneQuick/agdq17-layouts/internal/config"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/link"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/serialport"
)

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports and whether they match the peripheral signature",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return listPorts(cmd.OutOrStdout(), serialport.Enumerator{}, cfg.Serial)
		},
	}
}

func listPorts(w io.Writer, enum link.Enumerator, sc config.Serial) error {
	ports, err := enum.Ports()
	if err != nil {
		return fmt.Errorf("enumerate serial ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Fprintln(w, "No serial ports found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PORT\tVID\tPID\tSERIAL\tPRODUCT\tMATCH")
	for _, p := range ports {
		match := ""
		switch {
		case sc.DevicePath != "" && p.Name == sc.DevicePath:
			match = "device_path"
		case sc.DevicePath == "" && sc.Signature.Matches(p):
			match = "signature"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Name, dash(p.VID), dash(p.PID), dash(p.SerialNumber), dash(p.Product), dash(match))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
