package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/remote"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/variant"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive automation call console",
	Long: `Open an interactive console that sends raw automation calls to the
host and prints the replies.

Call lines name a target, a method and an optional Array(...) argument
list:

  otem> desktop.GetVersion
  Array("2026.1")
  otem> interference.Run Array("Link B", "Band0", "Link A", "Band0")
  Array(true, -10)

Examples:
  otem console
  otem console --host 192.168.1.40:52525`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

// consoleMethods seeds completion with the well known methods per target.
var consoleMethods = map[string][]string{
	remote.TargetDesktop: {"GetVersion", "GetSessionInfo"},
	remote.TargetProject: {"NewProject", "InsertDesign", "SaveProject"},
	remote.TargetEditor: {
		"CreateBox", "CreateCylinder", "CreateSphere", "CreateRectangle",
		"CreateCircle", "CreatePolyline", "InsertPolylineSegment",
		"DeletePolylinePoint", "CoverLines", "GetObjectIDByName",
		"GetMatchedObjectName", "GetFaceIDs", "GetEdgeIDsFromObject",
		"GetVertexIDsFromObject", "GetVertexIDsFromEdge", "GetVertexPosition",
		"GetFaceCenter", "GetPropertyValue", "ChangeProperty", "Delete",
		"AssignMaterial", "CreateRelativeCS", "SetWCS",
	},
	remote.TargetInterference: {
		"ListRevisions", "GetCurrentRevision", "LoadRevision",
		"GetReceiverNames", "GetInterfererNames", "GetBandNames",
		"GetActiveFrequencies", "GetBandSpan", "Run",
	},
	remote.TargetReport: {"CreateReport", "GetSolutionData", "DeleteReports"},
}

func consoleCompleter() *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, target := range remote.Targets() {
		for _, method := range consoleMethods[target] {
			items = append(items, readline.PcItem(target+"."+method))
		}
	}
	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".targets"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
	return readline.NewPrefixCompleter(items...)
}

func runConsole(cmd *cobra.Command, args []string) error {
	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := cmd.Context()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "otem> ",
		HistoryFile:     filepath.Join(configDir, ".otem_history"),
		AutoComplete:    consoleCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("initialize console: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	host := "simulator"
	if !s.simulated() {
		host = s.conn.Addr()
	}
	fmt.Fprintf(out, "OpenTraceEM console (%s)\n", host)
	fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	fmt.Fprintln(out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ".") {
			if quit := consoleDotCommand(cmd, line); quit {
				break
			}
			continue
		}
		if err := consoleCall(ctx, cmd, s, line); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	}
	return nil
}

func consoleDotCommand(cmd *cobra.Command, line string) (quit bool) {
	out := cmd.OutOrStdout()
	switch strings.ToLower(strings.Fields(line)[0]) {
	case ".quit", ".exit":
		return true
	case ".help":
		fmt.Fprintln(out, `
Call lines:
  <target>.<Method> [Array(...)]   Send one automation call

Commands:
  .help           Show this help message
  .targets        List call targets and their methods
  .quit / .exit   Exit the console

Tips:
  - Strings are quoted, numbers and true/false are bare
  - Array(...) nests for NAME: blocks
  - Use arrow keys for history, tab for completion`)
	case ".targets":
		for _, target := range remote.Targets() {
			fmt.Fprintf(out, "%s: %s\n", target, strings.Join(consoleMethods[target], ", "))
		}
	default:
		fmt.Fprintf(cmd.ErrOrStderr(), "Unknown command: %s (type .help for commands)\n", line)
	}
	return false
}

func consoleCall(ctx context.Context, cmd *cobra.Command, s *session, line string) error {
	head, rest, _ := strings.Cut(line, " ")
	target, method, ok := strings.Cut(head, ".")
	if !ok || target == "" || method == "" {
		return fmt.Errorf("want <target>.<Method> [Array(...)], got %q", line)
	}
	args := variant.List()
	if rest = strings.TrimSpace(rest); rest != "" {
		parsed, err := variant.DecodeString(rest)
		if err != nil {
			return err
		}
		// A bare scalar is shorthand for a one-element argument list.
		if parsed.Kind() != variant.KindList {
			parsed = variant.List(parsed)
		}
		args = parsed
	}
	res, err := s.inv.Invoke(ctx, target, method, args)
	if err != nil {
		return err
	}
	encoded, err := variant.EncodeString(res)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), encoded)
	return nil
}
