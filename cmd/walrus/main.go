// Command walrus runs an exported function of a WebAssembly binary from the
// command line.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clover2123/walrus"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "walrus",
		Short: "walrus runs WebAssembly modules with a minimal numeric-only interpreter",
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(newRunCmd(&verbose))
	return root
}

func newRunCmd(verbose *bool) *cobra.Command {
	var signExt, satConv, multiValue bool

	cmd := &cobra.Command{
		Use:   "run <module.wasm> <export> [args...]",
		Short: "instantiate a module and call one of its exported functions",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(*verbose)
			if err != nil {
				return err
			}
			defer log.Sync()

			cfg := walrus.NewRuntimeConfig().
				WithLogger(log).
				WithFeatureSignExtensionOps(signExt).
				WithFeatureNonTrappingFloatToIntConversion(satConv).
				WithFeatureMultiValue(multiValue)

			return runModule(cfg, log, args[0], args[1], args[2:])
		},
	}
	cmd.Flags().BoolVar(&signExt, "feature-sign-extension-ops", false, "enable sign-extension instructions")
	cmd.Flags().BoolVar(&satConv, "feature-nontrapping-float-to-int", false, "enable saturating float-to-int conversions")
	cmd.Flags().BoolVar(&multiValue, "feature-multi-value", false, "allow function types with multiple results")
	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func runModule(cfg walrus.RuntimeConfig, log *zap.Logger, path, export string, rawArgs []string) error {
	bin, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("walrus: reading %s: %w", path, err)
	}

	r := walrus.NewRuntime(cfg)
	compiled, err := r.CompileModule(bin)
	if err != nil {
		return fmt.Errorf("walrus: compiling %s: %w", path, err)
	}

	instance, err := r.Instantiate("main", compiled)
	if err != nil {
		return fmt.Errorf("walrus: instantiating %s: %w", path, err)
	}

	fn, ok := instance.ExportedFunction(export)
	if !ok {
		return fmt.Errorf("walrus: %s has no exported function %q", path, export)
	}

	callArgs, err := parseArgs(rawArgs)
	if err != nil {
		return err
	}

	results, err := fn.Call(callArgs...)
	if err != nil {
		return fmt.Errorf("walrus: calling %s: %w", export, err)
	}

	for _, v := range results {
		fmt.Println(v)
	}
	return nil
}

// parseArgs interprets each command-line argument as an int32, falling back
// to int64 for values too large to fit. Float arguments are not supported
// from the command line since there is no unambiguous textual syntax to
// distinguish i32/i64/f32/f64 without a type annotation.
func parseArgs(raw []string) ([]interface{}, error) {
	out := make([]interface{}, len(raw))
	for i, s := range raw {
		if v, err := strconv.ParseInt(s, 10, 32); err == nil {
			out[i] = int32(v)
			continue
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("walrus: argument %q is not an integer", s)
		}
		out[i] = v
	}
	return out, nil
}
