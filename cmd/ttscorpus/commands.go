package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ttscorpus/pkg/audio"
	"ttscorpus/pkg/catalog"
	"ttscorpus/pkg/config"
	"ttscorpus/pkg/partition"
	"ttscorpus/pkg/report"
	"ttscorpus/pkg/verify"
	"ttscorpus/pkg/version"
)

func (a *app) splitCmd() *cobra.Command {
	var (
		percent   float64
		seed      uint64
		workers   int
		exts      []string
		format    string
		noCatalog bool
	)

	cmd := &cobra.Command{
		Use:   "split <source> <output>",
		Short: "Partition per-label recordings into a normalized train/test corpus",
		Long: `Split reads <source>/<label>/*.wav, shuffles each label and cuts it at the
train percentage, normalizes every file to the canonical profile and writes
<output>/{train,test}/{wav,lab}/<label>/. The previous train/ and test/
trees are replaced only once the new corpus is complete.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			cfg := a.cfg

			opts := partition.Options{
				TrainRatio:       cfg.Partition.TrainRatio(),
				Seed:             cfg.Partition.Seed,
				Workers:          cfg.Partition.Workers,
				SourceExtensions: cfg.Partition.SourceExtensions,
				AudioExt:         cfg.Corpus.AudioExt,
				LabelExt:         cfg.Corpus.LabelExt,
			}
			flags := cmd.Flags()
			if flags.Changed("train-percent") {
				opts.TrainRatio = percent / 100
			}
			if flags.Changed("seed") {
				opts.Seed = &seed
			}
			if flags.Changed("workers") {
				opts.Workers = workers
			}
			if flags.Changed("ext") {
				opts.SourceExtensions = exts
			}

			f, err := report.New(format, a.stdout)
			if err != nil {
				return err
			}

			norm, err := audio.NewNormalizer(audio.ProfileFromConfig(&cfg.Canonical), cfg.Resample.Quality, slog.Default())
			if err != nil {
				return err
			}
			p := partition.New(opts, norm, slog.Default())
			if err := p.Preflight(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			if err := a.logToFile(); err != nil {
				return err
			}
			// rebuilt so the run logs through the file handler too
			p = partition.New(opts, norm, slog.Default())
			p.SetMetrics(a.metrics)
			if cfg.Catalog.Enabled && !noCatalog {
				p.SetCatalog(catalogPath(cfg, args[1]), cfg.Catalog.KeepRuns)
			}

			s, err := p.Run(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if err := f.WriteSummary(s); err != nil {
				return err
			}
			if s.HasWarnings() {
				return errWarnings
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.Float64Var(&percent, "train-percent", 80, "share of each label assigned to train, in (0,100]")
	fl.Uint64Var(&seed, "seed", 0, "shuffle seed; omit for a random seed (echoed in the summary)")
	fl.IntVar(&workers, "workers", 0, "parallel normalizers; 0 uses one per CPU")
	fl.StringSliceVar(&exts, "ext", nil, "source extensions to include (default from config, .wav)")
	fl.StringVar(&format, "format", "text", "output format: text or json")
	fl.BoolVar(&noCatalog, "no-catalog", false, "do not record the run in the catalog")
	return cmd
}

func (a *app) verifyCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "verify <corpus>",
		Short: "Check wav/lab pairing and audio format of a corpus",
		Long: `Verify walks <corpus>/{train,test}, reports wav files without a .lab,
.lab files without a wav, and wav files whose sample rate or channel count
differs from the canonical profile. It never modifies the corpus.
Exit status is 2 when any problem is found.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			f, err := report.New(format, a.stdout)
			if err != nil {
				return err
			}

			profile := audio.ProfileFromConfig(&a.cfg.Canonical)
			v := verify.New(profile, a.cfg.Corpus.AudioExt, a.cfg.Corpus.LabelExt, slog.Default())
			v.SetMetrics(a.metrics)

			rep, err := v.Verify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := f.WriteReport(rep); err != nil {
				return err
			}
			if rep.HasWarnings() {
				return errWarnings
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}

func (a *app) statsCmd() *cobra.Command {
	var (
		format  string
		entries bool
	)

	cmd := &cobra.Command{
		Use:   "stats <catalog.db|output>",
		Short: "Show per-label counts and skipped files of the latest recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			f, err := report.New(format, a.stdout)
			if err != nil {
				return err
			}

			store, err := openCatalog(args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			st, err := catalog.LatestStats(cmd.Context(), store, entries)
			if err != nil {
				return err
			}
			return f.WriteStats(st)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	cmd.Flags().BoolVar(&entries, "entries", false, "also list every corpus entry with its source")
	return cmd
}

// openCatalog opens an existing catalog file, or the default one inside an
// output root. A missing catalog is an error, never created.
func openCatalog(path string) (catalog.Store, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, catalog.FileName)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("catalog not found: %w", err)
	}
	store, err := catalog.Open(path)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func (a *app) initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a default config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.GenerateDefault(path); err != nil {
				return fmt.Errorf("failed to generate config: %w", err)
			}
			fmt.Fprintf(a.stdout, "Config file generated: %s\n", path)
			return nil
		},
	}
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(a.stdout, version.Version)
		},
	}
}

// catalogPath resolves the configured catalog location for an output root.
func catalogPath(cfg *config.Config, out string) string {
	if cfg.Catalog.Path != "" {
		return cfg.Catalog.Path
	}
	return filepath.Join(out, catalog.FileName)
}
