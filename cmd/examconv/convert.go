package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgallion1/examconv/internal/exam"
	"github.com/dgallion1/examconv/internal/export"
	"github.com/dgallion1/examconv/internal/pipeline"
)

var (
	convertCategory string
	convertOut      string
	convertFormat   string
)

var convertCmd = &cobra.Command{
	Use:   "convert FILE...",
	Short: "Convert exam files and export the questions",
	Long:  "Runs every file through the pipeline independently. The export is written only when every file produced valid questions.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := export.ParseFormat(convertFormat)
		if err != nil {
			return err
		}
		inputs, err := readInputs(args)
		if err != nil {
			return err
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		sess := pipeline.NewSession(convertCategory)
		results := e.Runner.ProcessBatch(cmd.Context(), inputs, convertCategory)
		sess.AddResults(results...)
		if sess.Category == "" {
			for _, r := range results {
				if r.Valid() && r.Category != "" {
					sess.Category = r.Category
					break
				}
			}
		}

		report(cmd.ErrOrStderr(), results)
		if conflicts := sess.Conflicts(); len(conflicts) > 0 {
			return eris.Errorf("convert: question numbers repeat across files; nothing exported\n%s", exam.Describe(conflicts))
		}
		if !sess.CanExport() {
			return eris.Errorf("convert: %d of %d files are not valid; nothing exported", countFailed(results), len(results))
		}

		var w io.Writer = cmd.OutOrStdout()
		if convertOut != "" && convertOut != "-" {
			f, err := os.Create(convertOut)
			if err != nil {
				return eris.Wrap(err, "convert: create output")
			}
			defer f.Close()
			w = f
		}
		if err := export.Write(w, sess, sess.Category, format); err != nil {
			return err
		}
		logger.Info("export written",
			zap.String("format", string(format)),
			zap.String("out", convertOut),
			zap.Int("questions", len(sess.Questions())))
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertCategory, "category", "", "category for every exported question")
	convertCmd.Flags().StringVarP(&convertOut, "out", "o", "", "output file (default stdout)")
	convertCmd.Flags().StringVar(&convertFormat, "format", "csv", "export format: csv or xlsx")
}

func readInputs(paths []string) ([]pipeline.Input, error) {
	inputs := make([]pipeline.Input, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, eris.Wrapf(err, "read %s", p)
		}
		inputs = append(inputs, pipeline.Input{Filename: filepath.Base(p), Data: data})
	}
	return inputs, nil
}

func report(w io.Writer, results []*pipeline.FileResult) {
	for _, r := range results {
		switch {
		case r.Valid():
			fmt.Fprintf(w, "ok      %s: %d questions", r.Filename, len(r.Questions))
			if r.Outcome != nil && r.Outcome.RepairAttempts > 0 {
				fmt.Fprintf(w, " (%d repairs)", r.Outcome.RepairAttempts)
			}
			fmt.Fprintln(w)
		case r.Err != nil:
			fmt.Fprintf(w, "failed  %s\n", r.Err)
		default:
			fmt.Fprintf(w, "failed  %s: no questions\n", r.Filename)
		}
		if r.DecodeFailure {
			fmt.Fprintf(w, "warning %s: %s\n", r.Filename, pipeline.DecodeFailure)
		}
	}
}

func countFailed(results []*pipeline.FileResult) int {
	n := 0
	for _, r := range results {
		if !r.Valid() {
			n++
		}
	}
	return n
}
