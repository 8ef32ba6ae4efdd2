package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/emc"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/report"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/simhost"
)

var emcCmd = &cobra.Command{
	Use:   "emc",
	Short: "RF interference analysis",
	Long:  `Commands that run the host's RF interference engine and classify its results`,
}

var (
	classifyKind     string
	classifyScenario string
	classifyRevision string
	classifyRadios   []string
	classifyCSVDir   string
	classifyDetails  bool
	classifyNoColor  bool
)

var emcClassifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify worst case interference between radio pairs",
	Long: `Run the interference engine over every transmit/receive radio pair of
the current revision and print the classification matrix: rows are
interferers, columns receivers, each cell the worst case label and
coupled power.

Interference classification buckets the worst pair against fundamental
and harmonic thresholds; protection classification buckets every pair
against damage, overload, intermodulation and desensitization levels.

Examples:
  otem emc classify
  otem emc classify --kind interference --no-color
  otem emc classify --scenario fleet.yaml --radios "Link A,Nav Rx"
  otem emc classify --csv out/ --details`,
	Args: cobra.NoArgs,
	RunE: runEMCClassify,
}

func init() {
	rootCmd.AddCommand(emcCmd)
	emcCmd.AddCommand(emcClassifyCmd)

	emcClassifyCmd.Flags().StringVarP(&classifyKind, "kind", "k", "both",
		"classification kind (interference, protection, both)")
	emcClassifyCmd.Flags().StringVar(&classifyScenario, "scenario", "",
		"simulator scenario YAML (simulator mode only)")
	emcClassifyCmd.Flags().StringVarP(&classifyRevision, "revision", "r", "",
		"revision to load before classifying (default: current)")
	emcClassifyCmd.Flags().StringSliceVar(&classifyRadios, "radios", nil,
		"restrict both axes to these radios")
	emcClassifyCmd.Flags().StringVar(&classifyCSVDir, "csv", "",
		"also write matrix CSV files into this directory")
	emcClassifyCmd.Flags().BoolVar(&classifyDetails, "details", false,
		"with --csv, also write one detail CSV per receiver")
	emcClassifyCmd.Flags().BoolVar(&classifyNoColor, "no-color", false,
		"disable colored cells")
}

func loadScenarioFile(path string) (*simhost.Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc simhost.Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if len(sc.Radios) == 0 {
		return nil, fmt.Errorf("scenario %s has no radios", path)
	}
	return &sc, nil
}

func runEMCClassify(cmd *cobra.Command, args []string) error {
	wantInterference := classifyKind == "both" || classifyKind == "interference"
	wantProtection := classifyKind == "both" || classifyKind == "protection"
	if !wantInterference && !wantProtection {
		return fmt.Errorf("unknown classification kind %q (interference, protection, both)", classifyKind)
	}

	var scenario *simhost.Scenario
	if classifyScenario != "" {
		if hostFlag != "sim" && hostFlag != "simulator" {
			return fmt.Errorf("--scenario only applies to the simulator, not host %q", hostFlag)
		}
		sc, err := loadScenarioFile(classifyScenario)
		if err != nil {
			return err
		}
		scenario = sc
	}

	s, err := openSession(scenario)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := cmd.Context()

	res, err := emc.NewResults(s.inv, s.logger)
	if err != nil {
		return err
	}
	var rev *emc.Revision
	if classifyRevision != "" {
		rev, err = res.Revision(ctx, classifyRevision)
	} else {
		rev, err = res.Current(ctx)
	}
	if err != nil {
		return err
	}

	if classifyNoColor {
		text.DisableColors()
		defer text.EnableColors()
	}

	opts := emc.Options{Radios: classifyRadios}
	var matrices []*emc.Matrix
	if wantInterference {
		m, err := emc.ClassifyInterference(ctx, rev, emc.DefaultInterferenceThresholds(), opts)
		if err != nil {
			return fmt.Errorf("classify interference: %w", err)
		}
		matrices = append(matrices, m)
	}
	if wantProtection {
		popts := opts
		popts.Kind = emc.KindPowerAtRx
		m, err := emc.ClassifyProtection(ctx, rev, emc.DefaultProtectionLevels(), popts)
		if err != nil {
			return fmt.Errorf("classify protection: %w", err)
		}
		matrices = append(matrices, m)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Revision: %s\n\n", rev.Name())
	for _, m := range matrices {
		report.RenderMatrix(out, m)
		fmt.Fprintln(out)
	}

	if classifyCSVDir != "" {
		if err := exportMatrices(classifyCSVDir, matrices); err != nil {
			return err
		}
		fmt.Fprintf(out, "CSV files written to %s\n", classifyCSVDir)
	}
	return nil
}

// exportMatrices writes one matrix CSV per kind and, with --details, one
// per-receiver detail CSV, fanning the files out concurrently.
func exportMatrices(dir string, matrices []*emc.Matrix) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	var g errgroup.Group
	g.SetLimit(8)
	for _, m := range matrices {
		name := strings.ToLower(string(m.Kind))
		g.Go(func() error {
			return writeMatrixCSV(filepath.Join(dir, name+".csv"), m)
		})
		if !classifyDetails {
			continue
		}
		for ri, rx := range m.RxRadios {
			g.Go(func() error {
				path := filepath.Join(dir, name+"_"+fileSafe(rx)+".csv")
				return writeReceiverCSV(path, m, ri)
			})
		}
	}
	return g.Wait()
}

func writeMatrixCSV(path string, m *emc.Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := report.RenderMatrixCSV(f, m); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// writeReceiverCSV writes one row per interferer for a single receiver
// column, with the full cell detail.
func writeReceiverCSV(path string, m *emc.Matrix, rx int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	fmt.Fprintln(f, "Interferer,Label,Severity,Power [dBm],In Band")
	for ti, tx := range m.TxRadios {
		c := m.Cells[ti][rx]
		if !c.Valid {
			fmt.Fprintf(f, "%s,%s,%s,,\n", tx, c.Label, c.Severity)
			continue
		}
		fmt.Fprintf(f, "%s,%s,%s,%g,%t\n", tx, c.Label, c.Severity, c.Power, c.InBand)
	}
	return nil
}

// fileSafe lowercases a radio name and replaces separators so it can be
// used as a file name.
func fileSafe(name string) string {
	mapper := func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '_'
	}
	return strings.Map(mapper, name)
}
