package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hurou927/kin-subset/internal/cohort"
	"github.com/hurou927/kin-subset/internal/config"
	"github.com/hurou927/kin-subset/internal/ctxlog"
)

// options holds every flag value of one command tree.
type options struct {
	cfgPath   string
	logLevel  string
	logFormat string

	phenoPath    string
	samplesPath  string
	kinshipPath  string
	npyIDsPath   string
	caseValue    string
	controlValue string
	missingValue string
	pihat        float64
	kinship      float64

	outputPath string
	reportPath string
	sqlPath    string
	persist    bool
	workers    int

	analyzeFormat string

	cfg *config.Config
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:   "kin-subset",
		Short: "Select a maximal unrelated subset of a case/control cohort",
		Long: `kin-subset builds a relatedness graph from a pairwise kinship table, splits it
into connected components, and removes individuals until no related pair remains.
Controls are removed before cases, the most-related individual first.
The retained individuals are written as a headerless "FID IID" table.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelect(cmd, o)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&o.cfgPath, "config", "", "path to YAML or TOML config file")
	pf.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	pf.StringVar(&o.logFormat, "log-format", "text", "log format: text or json")

	pf.StringVar(&o.phenoPath, "pheno", "", "phenotype table: FID IID value")
	pf.StringVar(&o.samplesPath, "samples", "", "sample table: FID IID")
	pf.StringVar(&o.kinshipPath, "kinship", "", "kinship table (IID1 IID2 kinship) or .npy kinship matrix")
	pf.StringVar(&o.npyIDsPath, "npy_ids", "", "IDs in .npy matrix order, one per line or .fam layout")
	pf.StringVar(&o.caseValue, "case_value", "", "phenotype value marking cases")
	pf.StringVar(&o.controlValue, "control_value", "", "phenotype value marking controls (default: any other non-missing value)")
	pf.StringVar(&o.missingValue, "missing_value", cohort.DefaultMissing, "phenotype value marking excluded individuals")
	pf.Float64Var(&o.pihat, "pihat", 0, "PI_HAT threshold; converted to kinship as pihat/2")
	pf.Float64Var(&o.kinship, "kinship_threshold", 0, "kinship coefficient threshold")

	for _, name := range []string{"pheno", "samples", "kinship", "case_value"} {
		_ = cmd.MarkPersistentFlagRequired(name)
	}
	cmd.MarkFlagsMutuallyExclusive("pihat", "kinship_threshold")
	cmd.MarkFlagsOneRequired("pihat", "kinship_threshold")

	f := cmd.Flags()
	f.StringVar(&o.outputPath, "output", "", "output path for retained individuals (- for stdout)")
	f.StringVar(&o.reportPath, "report", "", "write a per-individual decision CSV to this path")
	f.StringVar(&o.sqlPath, "sql", "", "write the run as a COPY-format SQL script to this path")
	f.BoolVar(&o.persist, "persist", false, "store the run in PostgreSQL (database section of config or PG* env)")
	f.IntVar(&o.workers, "workers", 0, "components solved in parallel (default: number of CPUs)")
	_ = cmd.MarkFlagRequired("output")

	cmd.AddCommand(newAnalyzeCmd(o))
	return cmd
}

// setup loads the config file, lets explicitly set flags override it, and
// puts the logger into the command context.
func (o *options) setup(cmd *cobra.Command) error {
	cfg := config.Default()
	if o.cfgPath != "" {
		var err error
		if cfg, err = config.Load(o.cfgPath); err != nil {
			return err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") || o.cfgPath == "" {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("log-format") || o.cfgPath == "" {
		cfg.LogFormat = o.logFormat
	}
	if flags.Changed("missing_value") || o.cfgPath == "" {
		cfg.MissingValue = o.missingValue
	}
	if flags.Changed("control_value") {
		cfg.ControlValue = o.controlValue
	}
	if f := flags.Lookup("workers"); f != nil && f.Changed {
		cfg.Workers = o.workers
	}
	if f := flags.Lookup("report"); f != nil && f.Changed {
		cfg.Report = o.reportPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := ctxlog.New(strings.ToLower(cfg.LogLevel), strings.ToLower(cfg.LogFormat), cmd.ErrOrStderr())
	cmd.SetContext(ctxlog.WithLogger(ctx, logger))
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
