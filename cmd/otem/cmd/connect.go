package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/remote"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/variant"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Probe the desktop host and show session information",
	Long: `Connect to the desktop host (or the built-in simulator), read the
product version and the open project and design, and print them.

Examples:
  otem connect
  otem connect --host 192.168.1.40:52525
  otem connect --host bench-07 -C ~/projects/radar`,
	Args: cobra.NoArgs,
	RunE: runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := cmd.Context()

	verRes, err := s.inv.Invoke(ctx, remote.TargetDesktop, "GetVersion", variant.List())
	if err != nil {
		return fmt.Errorf("get version: %w", err)
	}
	hostVersion, _ := verRes.Item(0).AsString()

	info, err := s.inv.Invoke(ctx, remote.TargetDesktop, "GetSessionInfo", variant.List())
	if err != nil {
		return fmt.Errorf("get session info: %w", err)
	}
	project, _ := info.LookupString("Project")
	design, _ := info.LookupString("Design")

	host := "simulator"
	if !s.simulated() {
		host = s.conn.Addr()
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.SetStyle(table.StyleLight)
	tw.Style().Format.Header = text.FormatDefault
	tw.AppendHeader(table.Row{"Property", "Value"})
	tw.AppendRow(table.Row{"Host", host})
	tw.AppendRow(table.Row{"Version", hostVersion})
	tw.AppendRow(table.Row{"Project", orNone(project)})
	tw.AppendRow(table.Row{"Design", orNone(design)})
	tw.Render()
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
