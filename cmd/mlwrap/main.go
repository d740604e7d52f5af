package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ml-wrappers/internal/cfg"
	"ml-wrappers/internal/common"
	"ml-wrappers/internal/dataset"
	"ml-wrappers/internal/features"
	"ml-wrappers/internal/loader"
	"ml-wrappers/internal/metrics"
	"ml-wrappers/internal/ml"
	"ml-wrappers/internal/storage"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: mlwrap <command> [flags]

commands:
  featurize  fit the timestamp featurizer and write the transformed CSV
  import     load a CSV into the dataset catalog as train/test splits
  serve      serve a wrapped model behind HTTP with timestamp featurization
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(c.LogLevel)

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "featurize":
		err = runFeaturize(c, args)
	case "import":
		err = runImport(c, args)
	case "serve":
		err = runServe(c, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", cmd).Msg("command failed")
	}
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func loaderOptions(c cfg.Settings) loader.Options {
	return loader.Options{Layouts: c.TimeLayouts}
}

func initializeStorage(c cfg.Settings) (*storage.Store, error) {
	if err := os.MkdirAll(c.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data path: %w", err)
	}
	return storage.New(c.DataPath)
}

// loadInput reads a table from a CSV path or from a catalog entry name/split.
func loadInput(c cfg.Settings, path, name, split string) (*dataset.Table, error) {
	if path != "" {
		return loader.LoadCSV(path, loaderOptions(c))
	}
	if name == "" {
		return nil, errors.New("either a CSV path or a dataset name is required")
	}
	store, err := initializeStorage(c)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.GetTable(name, split)
}

func runFeaturize(c cfg.Settings, args []string) error {
	fs := flag.NewFlagSet("featurize", flag.ExitOnError)
	var (
		fitPath  = fs.String("fit", "", "CSV to fit on (default: the input)")
		inPath   = fs.String("in", "", "CSV to transform")
		name     = fs.String("dataset", "", "Catalog dataset to use instead of -in")
		fitSplit = fs.String("fit-split", common.SplitXTrain, "Catalog split to fit on")
		split    = fs.String("split", common.SplitXTrain, "Catalog split to transform")
		outPath  = fs.String("out", "", "Output CSV (default: stdout)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	input, err := loadInput(c, *inPath, *name, *split)
	if err != nil {
		return fmt.Errorf("load input: %w", err)
	}
	fitTable := input
	switch {
	case *fitPath != "":
		if fitTable, err = loader.LoadCSV(*fitPath, loaderOptions(c)); err != nil {
			return fmt.Errorf("load fit data: %w", err)
		}
	case *name != "" && *fitSplit != *split:
		if fitTable, err = loadInput(c, "", *name, *fitSplit); err != nil {
			return fmt.Errorf("load fit data: %w", err)
		}
	}

	m := metrics.New()
	f := features.NewTimestampFeaturizerWithMetrics(c.FeatureNames, metrics.NewWrapper(m))
	if err := f.Fit(fitTable); err != nil {
		return err
	}
	out, err := f.Transform(input)
	if err != nil {
		return err
	}
	X, err := dataset.ToDense(out)
	if err != nil {
		return err
	}

	w := os.Stdout
	if *outPath != "" {
		file, err := os.Create(*outPath)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	if err := loader.WriteCSV(w, f.OutputNames(input.Names()), X); err != nil {
		return err
	}

	rows, cols := X.Dims()
	log.Info().
		Strs("time_columns", f.TimeColumns()).
		Floats64("min_epoch_seconds", f.Minimums()).
		Int("rows", rows).
		Int("columns", cols).
		Msg("featurized dataset")
	return nil
}

func runImport(c cfg.Settings, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	var (
		inPath  = fs.String("in", "", "CSV to import")
		name    = fs.String("name", "", "Dataset name in the catalog")
		target  = fs.String("target", "", "Target column stored as the y splits")
		list    = fs.Bool("list", false, "List the catalog and exit")
		replace = fs.Bool("replace", false, "Drop every stored split of -name before importing")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := initializeStorage(c)
	if err != nil {
		return err
	}
	defer store.Close()

	if *list {
		entries, err := store.ListDatasets(*name)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s\t%s\t%d rows\t%v\n", e.Name, e.Split, e.Rows, e.Columns)
		}
		return nil
	}

	if *inPath == "" || *name == "" {
		return errors.New("-in and -name are required")
	}
	if err := clearDataset(store, *name, *replace); err != nil {
		return err
	}

	table, err := loader.LoadCSV(*inPath, loaderOptions(c))
	if err != nil {
		return err
	}

	train, test, err := loader.Split(table, c.TestFraction, c.SplitSeed)
	if err != nil {
		return err
	}

	splits := map[string]*dataset.Table{common.SplitXTrain: train, common.SplitXTest: test}
	if *target != "" {
		for _, s := range []struct {
			x, y string
			t    *dataset.Table
		}{
			{common.SplitXTrain, common.SplitYTrain, train},
			{common.SplitXTest, common.SplitYTest, test},
		} {
			X, y, err := separateTarget(s.t, *target)
			if err != nil {
				return err
			}
			splits[s.x], splits[s.y] = X, y
		}
	}

	for _, split := range common.Splits {
		t, ok := splits[split]
		if !ok {
			continue
		}
		if err := store.PutTable(*name, split, t); err != nil {
			return err
		}
		rows, _ := t.Dims()
		log.Info().Str("dataset", *name).Str("split", split).Int("rows", rows).Msg("stored split")
	}
	return nil
}

// clearDataset refuses to import over an existing dataset unless replace is
// set, in which case all of its splits are dropped so none go stale.
func clearDataset(store *storage.Store, name string, replace bool) error {
	existing, err := store.ListDatasets(name)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return nil
	}
	if !replace {
		return fmt.Errorf("dataset %q already has %d splits; use -replace to overwrite", name, len(existing))
	}
	removed, err := store.DeleteDataset(name)
	if err != nil {
		return fmt.Errorf("drop dataset %q: %w", name, err)
	}
	log.Info().Str("dataset", name).Int("splits", removed).Msg("dropped existing dataset")
	return nil
}

// separateTarget moves column target of t into its own table.
func separateTarget(t *dataset.Table, target string) (X, y *dataset.Table, err error) {
	if t.Index(target) < 0 {
		return nil, nil, fmt.Errorf("target column %q not found", target)
	}
	var cols []dataset.Column
	for _, col := range t.Columns() {
		if col.Name != target {
			cols = append(cols, *col)
		}
	}
	if X, err = dataset.NewTable(cols...); err != nil {
		return nil, nil, err
	}
	if y, err = dataset.NewTable(*t.Column(target)); err != nil {
		return nil, nil, err
	}
	return X, y, nil
}

func runServe(c cfg.Settings, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var (
		trainPath = fs.String("train", "", "Training CSV the featurizer is fitted on")
		name      = fs.String("dataset", "", "Catalog dataset whose x_train split is used instead of -train")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	train, err := loadInput(c, *trainPath, *name, common.SplitXTrain)
	if err != nil {
		return fmt.Errorf("load training data: %w", err)
	}

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	f := features.NewTimestampFeaturizerWithMetrics(c.FeatureNames, mw)
	examples, err := f.FitTransform(train)
	if err != nil {
		return fmt.Errorf("fit featurizer: %w", err)
	}

	backend, err := newBackend(c.Model)
	if err != nil {
		return err
	}
	task, err := ml.ParseTask(c.Model.Task)
	if err != nil {
		return err
	}
	model, err := ml.WrapModel(backend, examples, task)
	if err != nil {
		return fmt.Errorf("wrap model: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	startMetricsServer(ctx, &wg, c)

	server := ml.NewModelServer(ml.Instrument(model, mw), f, ml.ServerConfig{
		Port:    c.ServerPort,
		Columns: train.Names(),
		Options: loaderOptions(c),
	}, mw)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("model server failed")
			cancel()
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown model server")
		}
	}()

	log.Info().
		Str("task", string(ml.TaskOf(model))).
		Strs("time_columns", f.TimeColumns()).
		Floats64("min_epoch_seconds", f.Minimums()).
		Int("port", c.ServerPort).
		Msg("model server ready")

	waitForShutdown(ctx, cancel, &wg)
	return nil
}

func newBackend(m cfg.ModelSettings) (ml.Network, error) {
	switch m.Kind {
	case common.ModelKindRemote:
		return ml.NewRemoteModel(m.URL, m.Timeout, m.Retries), nil
	default:
		if m.Command == "" {
			return nil, errors.New("model command is required for the process backend")
		}
		return ml.NewProcessModel(m.Command, m.Args, m.Timeout)
	}
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(ctx context.Context, wg *sync.WaitGroup, c cfg.Settings) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to shutdown metrics server")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// waitForShutdown waits for shutdown signals and handles graceful shutdown
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all servers stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
