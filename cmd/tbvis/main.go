// tbvis renders a combined comparison figure from TensorBoard logs.
//
// Scans the given directories for event files, merges same-named scalar
// metrics across runs and writes one PNG with a subplot per metric and a
// curve per run. One-shot batch tool: no watching, no serving.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/ZhBF/TB-Metrics-Visualizer/src/logging"
	"github.com/ZhBF/TB-Metrics-Visualizer/src/render"
	"github.com/ZhBF/TB-Metrics-Visualizer/src/series"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: tbvis [flags] <directory> [directory...]

Generate a combined visualization from TensorBoard logs.

Examples:
    tbvis ./run1 ./run2 ./run3
    tbvis ./experiments -o results.png --max-cols 4
    tbvis ./logs --x-axis walltime --smooth ema

Flags:
%s`, flag.CommandLine.FlagUsages())
}

func main() {
	var (
		output       string
		width        float64
		height       float64
		maxCols      int
		show         bool
		smoothMethod string
		smoothWindow int
		showBoth     bool
		xAxis        string
		maxStep      int64
		logLevel     string
	)
	flag.StringVarP(&output, "output", "o", "tensorboard_visualization.png", "Output image path")
	flag.Float64Var(&width, "width", 8, "Width of each subplot in inches")
	flag.Float64Var(&height, "height", 4, "Height of each subplot in inches")
	flag.IntVar(&maxCols, "max-cols", 3, "Maximum number of subplots per row")
	flag.BoolVar(&show, "show", false, "Open the saved image with the system viewer")
	flag.StringVar(&smoothMethod, "smooth", "", "Enable curve smoothing: ema (exponential) or ma (moving average)")
	flag.IntVar(&smoothWindow, "smooth-window", 10, "Smoothing window size")
	flag.BoolVar(&showBoth, "show-both", false, "Draw raw and smoothed curves together (requires --smooth)")
	flag.StringVar(&xAxis, "x-axis", render.XAxisStep, "X-axis type: step or walltime (hours)")
	flag.Int64Var(&maxStep, "max-step", series.NoStepLimit, "Maximum step value to include (negative = no limit)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	flag.Usage = usage
	flag.Parse()

	dirs := flag.Args()
	if len(dirs) == 0 {
		usage()
		os.Exit(2)
	}
	logging.SetLevel(logLevel)
	switch smoothMethod {
	case "", series.SmoothEMA, series.SmoothMA:
	default:
		fmt.Fprintf(os.Stderr, "invalid --smooth %q (want ema or ma)\n", smoothMethod)
		os.Exit(2)
	}
	switch xAxis {
	case render.XAxisStep, render.XAxisWallTime:
	default:
		fmt.Fprintf(os.Stderr, "invalid --x-axis %q (want step or walltime)\n", xAxis)
		os.Exit(2)
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("TensorBoard Visualization Tool")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Search directories: %v\n\n", dirs)

	start := time.Now()
	files := series.FindEventFiles(dirs)
	logging.TimeTrack(start, "scan")
	if len(files) == 0 {
		fmt.Println("No TensorBoard event files found")
		return
	}
	fmt.Printf("Found %d TensorBoard event files\n\n", len(files))

	start = time.Now()
	coll, results := series.Merge(files, dirs, maxStep)
	logging.TimeTrack(start, "merge")
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			logging.Errorf("skipping file: %v", r.Err)
			continue
		}
		logging.Infof("loaded %s (%d series)", r.Path, r.Records)
	}
	if failed > 0 {
		logging.Warnf("%d of %d files failed to load", failed, len(files))
	}
	if coll.Len() == 0 {
		fmt.Println("No scalar data loaded")
		return
	}
	fmt.Printf("Successfully loaded %d metrics\n\n", coll.Len())

	start = time.Now()
	sum, err := render.Compose(coll, render.Options{
		OutputPath:    output,
		SubplotWidth:  width,
		SubplotHeight: height,
		MaxCols:       maxCols,
		XAxis:         xAxis,
		SmoothMethod:  smoothMethod,
		SmoothWindow:  smoothWindow,
		ShowBoth:      showBoth,
	})
	logging.TimeTrack(start, "render")
	if errors.Is(err, render.ErrNoData) {
		fmt.Println("No data to visualize")
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "render: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Visualization saved to: %s\n", output)
	fmt.Printf("Figure size: %dx%d px\n", sum.Width, sum.Height)
	fmt.Printf("Total metrics plotted: %d\n", sum.Metrics)

	if show {
		if err := openCommand(runtime.GOOS, output).Start(); err != nil {
			logging.Warnf("failed to open image viewer: %v", err)
		}
	}
}

// openCommand builds the platform command that opens path with the default
// image viewer.
func openCommand(goos, path string) *exec.Cmd {
	switch goos {
	case "darwin":
		return exec.Command("open", path)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		return exec.Command("xdg-open", path)
	}
}
