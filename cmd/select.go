package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hurou927/kin-subset/internal/cohort"
	"github.com/hurou927/kin-subset/internal/config"
	"github.com/hurou927/kin-subset/internal/ctxlog"
	"github.com/hurou927/kin-subset/internal/db"
	"github.com/hurou927/kin-subset/internal/graph"
	"github.com/hurou927/kin-subset/internal/report"
	"github.com/hurou927/kin-subset/internal/selection"
	"github.com/hurou927/kin-subset/internal/store"
	"github.com/hurou927/kin-subset/internal/tables"
)

func runSelect(cmd *cobra.Command, o *options) error {
	ctx := cmd.Context()
	logger := ctxlog.FromContext(ctx)
	started := time.Now()

	var files tables.Files
	defer files.Close()

	g, threshold, err := o.buildGraph(ctx, cmd, &files)
	if err != nil {
		return err
	}

	sel := selection.New(g, selection.Options{Workers: o.cfg.Workers})
	res, err := sel.Run(ctx)
	if err != nil {
		return err
	}

	if err := writeRetained(ctx, &files, o.outputPath, res); err != nil {
		return err
	}

	if o.cfg.Report != "" {
		if err := writeTo(ctx, &files, o.cfg.Report, func(w io.Writer) error {
			return report.WriteCSV(w, g, res)
		}); err != nil {
			return err
		}
	}

	sum, err := report.Stats(res)
	if err != nil {
		return fmt.Errorf("summarizing run: %w", err)
	}
	logger.Info("selection complete",
		"retained", len(res.Retained),
		"removed", len(res.Removed),
		"related_components", sum.RelatedComponents,
		"component_size_mean", sum.SizeMean,
		"component_size_median", sum.SizeMedian,
		"component_size_max", sum.SizeMax,
		"degree_mean", sum.DegreeMean,
		"degree_max", sum.DegreeMax,
		"removed_degree_mean", sum.RemovedDegreeMean,
		"elapsed", time.Since(started))

	if o.persist || o.sqlPath != "" {
		run := store.Run{
			ID:           store.NewRunID(started),
			StartedAt:    started,
			SamplesPath:  o.samplesPath,
			KinshipPath:  o.kinshipPath,
			Threshold:    threshold,
			CaseValue:    o.caseValue,
			ControlValue: o.cfg.ControlValue,
		}
		runRow := store.RunRow(run, g, res)
		decisions := store.DecisionRows(run.ID, g, res)

		if o.sqlPath != "" {
			if err := writeTo(ctx, &files, o.sqlPath, func(w io.Writer) error {
				return store.WriteSQL(w, runRow, decisions)
			}); err != nil {
				return err
			}
		}
		if o.persist {
			if err := persist(ctx, o.cfg, runRow, decisions); err != nil {
				return err
			}
		}
	}

	stderr := cmd.ErrOrStderr()
	fmt.Fprintln(stderr, "Selection complete:")
	for _, line := range sel.Summary(res) {
		fmt.Fprintln(stderr, line)
	}
	if o.outputPath != "-" {
		fmt.Fprintf(stderr, "Output written to: %s\n", o.outputPath)
	}
	return nil
}

// buildGraph reads the three input tables and builds the relatedness graph.
// It returns the kinship threshold the graph was built with.
func (o *options) buildGraph(ctx context.Context, cmd *cobra.Command, files *tables.Files) (*graph.Graph, float64, error) {
	logger := ctxlog.FromContext(ctx)

	flags := cmd.Flags()
	threshold, err := config.Threshold(o.pihat, flags.Changed("pihat"), o.kinship, flags.Changed("kinship_threshold"))
	if err != nil {
		return nil, 0, err
	}

	cls := cohort.Classifier{
		CaseValue:    o.caseValue,
		ControlValue: o.cfg.ControlValue,
		Missing:      o.cfg.MissingValue,
	}

	var samples []cohort.SampleRecord
	if err := readFrom(ctx, files, o.samplesPath, func(r io.Reader) (st tables.Stats, err error) {
		samples, st, err = tables.ReadSamples(r)
		return st, err
	}); err != nil {
		return nil, 0, err
	}

	var pheno map[string]string
	if err := readFrom(ctx, files, o.phenoPath, func(r io.Reader) (st tables.Stats, err error) {
		pheno, st, err = tables.ReadPhenotypes(r)
		return st, err
	}); err != nil {
		return nil, 0, err
	}
	if err := cls.CheckCodes(pheno); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	kinship, err := o.readKinship(ctx, files)
	if err != nil {
		return nil, 0, err
	}

	g, diag, err := graph.Build(samples, pheno, kinship, threshold, cls)
	if err != nil {
		return nil, 0, err
	}
	logDiagnostics(logger, diag)
	logger.Info("graph built",
		"individuals", len(g.Vertices),
		"related_pairs", g.EdgeCount(),
		"threshold", threshold)

	return g, threshold, nil
}

func (o *options) readKinship(ctx context.Context, files *tables.Files) ([]cohort.KinshipRecord, error) {
	var kinship []cohort.KinshipRecord

	if !strings.HasSuffix(strings.ToLower(o.kinshipPath), ".npy") {
		err := readFrom(ctx, files, o.kinshipPath, func(r io.Reader) (st tables.Stats, err error) {
			kinship, st, err = tables.ReadKinship(r)
			return st, err
		})
		return kinship, err
	}

	if o.npyIDsPath == "" {
		return nil, fmt.Errorf("%w: --npy_ids is required with a .npy kinship matrix", config.ErrConfiguration)
	}
	var ids []string
	if err := readFrom(ctx, files, o.npyIDsPath, func(r io.Reader) (st tables.Stats, err error) {
		ids, st, err = tables.ReadIDs(r)
		return st, err
	}); err != nil {
		return nil, err
	}
	err := readFrom(ctx, files, o.kinshipPath, func(r io.Reader) (st tables.Stats, err error) {
		kinship, st, err = tables.ReadKinshipMatrix(r, ids)
		return st, err
	})
	return kinship, err
}

// readFrom opens path, hands it to read, and logs the resulting table stats.
func readFrom(ctx context.Context, files *tables.Files, path string, read func(io.Reader) (tables.Stats, error)) error {
	logger := ctxlog.FromContext(ctx)

	rc, err := files.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer rc.Close()

	st, err := read(rc)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	logger.Info("table read",
		"table", st.Table,
		"path", path,
		"records", st.Records,
		"header", st.Header,
		"duplicates", st.Duplicates,
		"format_errors", st.FormatErrors)
	for _, e := range st.Examples {
		logger.Warn("skipped line", "error", e.Error())
	}
	return nil
}

// writeTo creates path, hands it to write, and closes it. The close error is
// returned since it finalizes gs:// uploads.
func writeTo(ctx context.Context, files *tables.Files, path string, write func(io.Writer) error) error {
	wc, err := files.Create(ctx, path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(wc); err != nil {
		wc.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

func writeRetained(ctx context.Context, files *tables.Files, path string, res *selection.Result) error {
	return writeTo(ctx, files, path, func(w io.Writer) error {
		return tables.NewWriter(w).WriteAll(res.Retained)
	})
}

func persist(ctx context.Context, cfg *config.Config, runRow []any, decisions [][]any) error {
	conn, err := cfg.Connection()
	if err != nil {
		return err
	}
	pool, err := db.NewPool(ctx, conn, cfg.Workers)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	return store.Save(ctx, pool, runRow, decisions)
}

func logDiagnostics(logger *slog.Logger, d graph.Diagnostics) {
	logger.Info("cohort resolved",
		"samples", d.Samples,
		"cases", d.Cases,
		"controls", d.Controls,
		"excluded", d.Excluded,
		"missing_phenotype", d.MissingPhenotype,
		"unrecognized_phenotype", d.UnrecognizedPheno,
		"duplicate_samples", d.DuplicateSamples)
	logger.Info("kinship resolved",
		"pairs", d.KinshipPairs,
		"below_threshold", d.BelowThreshold,
		"self_pairs", d.SelfPairs,
		"unresolved_pairs", d.UnresolvedPairs,
		"excluded_pairs", d.ExcludedPairs,
		"duplicate_edges", d.DuplicateEdges)
	if d.UnresolvedPairs > 0 {
		logger.Warn("kinship pairs reference individuals missing from the sample table", "count", d.UnresolvedPairs)
	}
}
