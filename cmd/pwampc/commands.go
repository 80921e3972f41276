package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/pwampc/internal/config"
	"github.com/san-kum/pwampc/internal/control"
	"github.com/san-kum/pwampc/internal/experiment"
	"github.com/san-kum/pwampc/internal/export"
	"github.com/san-kum/pwampc/internal/mpqp"
	"github.com/san-kum/pwampc/internal/sim"
	"github.com/san-kum/pwampc/internal/storage"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(36)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
)

func formatVec(v mat.Vector) string {
	parts := make([]string, v.Len())
	for i := range parts {
		parts[i] = strconv.FormatFloat(v.AtVec(i), 'g', 6, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func formatRows(m mat.Matrix) string {
	r, _ := m.Dims()
	rows := make([]string, r)
	for i := range rows {
		rows[i] = formatVec(m.(mat.RowViewer).RowView(i))
	}
	return strings.Join(rows, " ")
}

func stateArgs(args []string, prob *config.Problem) (sim.State, error) {
	nx := prob.System.Nx()
	switch {
	case len(args) == 0:
		return prob.X0, nil
	case len(args) == 1 && strings.Contains(args[0], ","):
		return parseState(args[0], nx)
	default:
		return parseState(strings.Join(args, ","), nx)
	}
}

func solveState(cmd *cobra.Command, args []string) error {
	_, prob, err := loadProblem()
	if err != nil {
		return err
	}
	x, err := stateArgs(args, prob)
	if err != nil {
		return err
	}

	mpc, err := prob.NewMPC(control.WithLogger(logger))
	if err != nil {
		return err
	}
	xv := mat.NewVecDense(len(x), x.Clone())

	start := time.Now()
	var plan *control.Plan
	if useExplicit {
		if regionsRun != "" {
			sol, err := storage.New(dataDir).LoadRegions(regionsRun, mpc.Program())
			if err != nil {
				return err
			}
			if err := mpc.UseExplicitSolution(sol); err != nil {
				return err
			}
		} else if err := mpc.StoreExplicitSolution(cmd.Context()); err != nil {
			return err
		}
		plan, err = mpc.FeedforwardExplicit(xv)
	} else {
		plan, err = mpc.Feedforward(xv)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Println(headerStyle.Render(fmt.Sprintf("%s at x = %s", prob.Name, formatVec(xv))))
	if plan == nil {
		fmt.Println(warnStyle.Render("infeasible: no input sequence satisfies the constraints"))
		return nil
	}
	for t, u := range plan.Inputs {
		fmt.Printf("  %s %s\n", labelStyle.Render(fmt.Sprintf("u(%d)", t)), valueStyle.Render(formatVec(u)))
	}
	fmt.Printf("  %s %s\n", labelStyle.Render("cost"), valueStyle.Render(strconv.FormatFloat(plan.Cost, 'g', 8, 64)))
	fmt.Println(dimStyle.Render(fmt.Sprintf("solved in %v", elapsed)))
	return nil
}

func computeExplicit(cmd *cobra.Command, args []string) error {
	_, prob, err := loadProblem()
	if err != nil {
		return err
	}
	mpc, err := prob.NewMPC(control.WithLogger(logger))
	if err != nil {
		return err
	}

	start := time.Now()
	if err := mpc.StoreExplicitSolution(cmd.Context()); err != nil {
		return err
	}
	elapsed := time.Since(start)
	sol := mpc.ExplicitSolution()

	fmt.Println(headerStyle.Render(fmt.Sprintf("%s: %d critical regions over |x_i| <= %g (%v)",
		prob.Name, len(sol.Regions()), sol.Bound(), elapsed)))
	printRegions(sol, mpc.InputDim())

	if svgPath != "" {
		svg, err := export.PartitionSVG(sol, export.WindowFor(sol, svgWindow), 600, 600, 150, nil)
		if err != nil {
			return err
		}
		if err := os.WriteFile(svgPath, []byte(svg), 0644); err != nil {
			return errors.Wrap(err, "could not write svg")
		}
		fmt.Printf("partition written to %s\n", svgPath)
	}

	if !saveRegions {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.SaveExplicit(storage.RunMetadata{
		Problem:    prob.Name,
		Controller: config.ControllerExplicit,
		Horizon:    prob.Horizon,
	}, sol)
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", runID)
	return nil
}

// printRegions shows the first-stage law u(0) = K·x + k of each region.
func printRegions(sol *mpqp.ExplicitSolution, nu int) {
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		cellStyle.Width(6).Render("#"),
		cellStyle.Width(16).Render("ACTIVE"),
		cellStyle.Width(8).Render("ROWS"),
		cellStyle.Render("FIRST INPUT GAIN / OFFSET"),
	)
	fmt.Println(dimStyle.Render(header))

	for i, r := range sol.Regions() {
		if maxRows > 0 && i >= maxRows {
			fmt.Println(dimStyle.Render(fmt.Sprintf("... %d more", len(sol.Regions())-maxRows)))
			break
		}
		k := r.K.Slice(0, nu, 0, r.K.RawMatrix().Cols)
		row := lipgloss.JoinHorizontal(lipgloss.Top,
			cellStyle.Width(6).Render(strconv.Itoa(i)),
			cellStyle.Width(16).Render(fmt.Sprint(r.ActiveSet)),
			cellStyle.Width(8).Render(strconv.Itoa(r.Region.Rows())),
			cellStyle.Render(formatRows(k)+" / "+formatVec(r.Offset.SliceVec(0, nu))),
		)
		fmt.Println(row)
	}
}

func parseX0s(prob *config.Problem) ([]sim.State, error) {
	if len(x0Flags) == 0 {
		return []sim.State{prob.X0}, nil
	}
	out := make([]sim.State, 0, len(x0Flags))
	for _, s := range x0Flags {
		x, err := parseState(s, prob.System.Nx())
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, prob, err := loadProblem()
	if err != nil {
		return err
	}
	ctrlCfg := cfg.Controller
	if controller != "" {
		ctrlCfg.Kind = controller
	}
	n := cfg.Simulation.Steps
	if steps > 0 {
		n = steps
	}
	x0s, err := parseX0s(prob)
	if err != nil {
		return err
	}

	exp := experiment.New(experiment.Config{
		Problem:    prob,
		Controller: ctrlCfg,
		Steps:      n,
		X0s:        x0s,
		Parallel:   parallel,
		Logger:     logger,
	}, nil)

	start := time.Now()
	if err := exp.Setup(cmd.Context()); err != nil {
		return err
	}
	logger.Info("controller ready", "kind", ctrlCfg.Kind, "elapsed", time.Since(start))

	results, err := exp.Run(cmd.Context())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	var st *storage.Store
	if !noSave {
		st = storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
	}

	for i, res := range results {
		meta := storage.RunMetadata{
			Problem:    prob.Name,
			Controller: ctrlCfg.Kind,
			Horizon:    prob.Horizon,
			X0:         x0s[i],
		}
		if st != nil {
			runID, err := st.Save(meta, res)
			if err != nil {
				return err
			}
			meta.ID = runID
			if mpc, ok := exp.Controller().(*control.MPC); ok && mpc.HasExplicitSolution() && i == 0 {
				if err := st.SaveRegions(runID, mpc.ExplicitSolution()); err != nil {
					return err
				}
			}
		}

		if jsonOut {
			if err := storage.ExportJSON(os.Stdout, meta, res); err != nil {
				return err
			}
			continue
		}
		printResult(meta, res)
		if plotAfter {
			plotStates(prob.Name, res.States)
		}
	}

	if !jsonOut {
		fmt.Println(dimStyle.Render(fmt.Sprintf("completed %d run(s) in %v", len(results), elapsed)))
	}
	return nil
}

func printResult(meta storage.RunMetadata, res *sim.Result) {
	title := fmt.Sprintf("%s / %s from x0 = %v", meta.Problem, meta.Controller, meta.X0)
	fmt.Println(headerStyle.Render(title))
	if meta.ID != "" {
		fmt.Printf("  %s %s\n", labelStyle.Render("run id"), valueStyle.Render(meta.ID))
	}
	fmt.Printf("  %s %s\n", labelStyle.Render("steps"), valueStyle.Render(strconv.Itoa(res.StepsTaken)))
	if len(res.States) > 0 {
		last := res.States[len(res.States)-1]
		fmt.Printf("  %s %s\n", labelStyle.Render("final state"), valueStyle.Render(fmt.Sprintf("%.4g", []float64(last))))
	}
	for _, name := range sortedKeys(res.Metrics) {
		fmt.Printf("  %s %s\n", labelStyle.Render(name), valueStyle.Render(strconv.FormatFloat(res.Metrics[name], 'g', 6, 64)))
	}
	for _, e := range res.Errors {
		fmt.Printf("  %s\n", warnStyle.Render(e.Error()))
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tPROBLEM\tTIME\tCTRL\tHORIZON\tSTEPS\tREGIONS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			run.ID,
			run.Kind,
			run.Problem,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Controller,
			run.Horizon,
			run.Steps,
			run.Regions,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	if meta.Kind == storage.KindExplicit {
		return errors.Errorf("run %s holds an explicit solution, not a trajectory", runID)
	}

	states, controls, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return errors.New("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("problem: %s\n", meta.Problem)
	fmt.Printf("controller: %s\n", meta.Controller)
	fmt.Printf("samples: %d\n\n", len(states))

	plotStates(meta.Problem, states)

	if svgPath != "" {
		raw := make([][]float64, len(states))
		for i, x := range states {
			raw[i] = x
		}
		pts := export.StatePoints(raw, 0, -1)
		if len(states[0]) > 1 {
			pts = export.StatePoints(raw, 0, 1)
		}
		if err := os.WriteFile(svgPath, []byte(export.TrajectoryToSVG(pts, 600, 400, "#00ff00")), 0644); err != nil {
			return errors.Wrap(err, "could not write svg")
		}
	}

	if len(controls) > 0 && controls[0] != nil {
		for i := range controls[0] {
			data := make([]float64, 0, len(controls))
			for _, u := range controls {
				if u != nil && i < len(u) {
					data = append(data, u[i])
				}
			}
			if len(data) == 0 {
				continue
			}
			fmt.Println(asciigraph.Plot(data,
				asciigraph.Height(6),
				asciigraph.Width(80),
				asciigraph.Caption(fmt.Sprintf("u%d vs step", i)),
			))
			fmt.Println()
		}
	}
	return nil
}

func plotStates(name string, states []sim.State) {
	if len(states) == 0 {
		return
	}
	numVars := len(states[0])
	maxPlots := 6
	if numVars > maxPlots {
		numVars = maxPlots
	}

	for varIdx := 0; varIdx < numVars; varIdx++ {
		data := make([]float64, len(states))
		for i := range states {
			if varIdx < len(states[i]) {
				data[i] = states[i][varIdx]
			}
		}

		caption := fmt.Sprintf("x%d vs step", varIdx)
		if strings.HasPrefix(name, "double_integrator") {
			if varIdx == 0 {
				caption = "position"
			} else if varIdx == 1 {
				caption = "velocity"
			}
		}

		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}
}
