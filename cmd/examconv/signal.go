package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dgallion1/examconv/internal/pipeline"
	"github.com/dgallion1/examconv/internal/signal"
)

var signalFormat string

var signalCmd = &cobra.Command{
	Use:   "signal FILE...",
	Short: "Print the extracted document signal without calling a generator",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if signalFormat != "json" && signalFormat != "yaml" {
			return fmt.Errorf("unknown format %q (json or yaml)", signalFormat)
		}
		inputs, err := readInputs(args)
		if err != nil {
			return err
		}

		runner := pipeline.NewRunner(nil, runnerOptions(cfg), logger)
		signals := make([]*signal.DocumentSignal, 0, len(inputs))
		for _, in := range inputs {
			sig, err := runner.Signal(cmd.Context(), in.Filename, in.Data)
			if sig == nil {
				return err
			}
			signals = append(signals, sig)
		}

		out := cmd.OutOrStdout()
		if signalFormat == "yaml" {
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(signals)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(signals)
	},
}

func init() {
	signalCmd.Flags().StringVar(&signalFormat, "format", "json", "output format: json or yaml")
}
