package app

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/latency-benchmark-common/output"
	"github.com/tunein/go-logging/v7/pkg/logger"
	"github.com/tunein/go-logging/v7/pkg/logger/logtypes"
	"github.com/tunein/go-logging/v7/pkg/rootcollector"
	"github.com/tunein/go-logging/v7/pkg/rootlogger"

	"github.com/RyanBlaney/genre-classifier/configs"
	"github.com/RyanBlaney/genre-classifier/internal/classify"
	"github.com/RyanBlaney/genre-classifier/internal/dataset"
	"github.com/RyanBlaney/genre-classifier/internal/experiment"
)

// metricsLogFile is where rootlogger mirrors collected run metrics
const metricsLogFile = "/tmp/genre-classifier.log"

// Context holds the application context and configuration
type Context struct {
	// CLI arguments
	ConfigFile     string // Application configuration file (optional)
	ExperimentFile string // Experiment overrides file (optional)
	OutputFile     string
	OutputFormat   string
	DataDir        string
	ModelPath      string
	Count          int   // Sample count override, 0 means resolved maximum
	Calls          int   // Training call override, -1 means use configuration
	Seed           int64 // Sampler seed, 0 means time-seeded
	Validation     bool  // Build the validation variant of a sample set
	Overwrite      bool
	NoProgress     bool
	Verbose        bool
	Quiet          bool

	// Runtime context
	Logger     logging.Logger
	Config     *configs.Config
	Experiment *experiment.Config
}

// App handles the classifier application lifecycle
type App struct {
	ctx        *Context
	config     *configs.Config
	experiment *experiment.Config
	logger     logging.Logger
}

// NewApp creates a new classifier application
func NewApp(ctx *Context) (*App, error) {
	// Set up logging
	logger := setupLogging(ctx)
	ctx.Logger = logger

	// Load configuration
	config, expConfig, err := loadAndMergeConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	ctx.Config = config
	ctx.Experiment = expConfig

	logger.Debug("Classifier application initialized", logging.Fields{
		"app_config_file": ctx.ConfigFile,
		"experiment_file": ctx.ExperimentFile,
		"output_format":   ctx.OutputFormat,
		"class_table":     config.Paths.ClassTable,
		"audio_dir":       config.Paths.AudioDir,
	})

	return &App{
		ctx:        ctx,
		config:     config,
		experiment: expConfig,
		logger:     logger,
	}, nil
}

// setupLogging configures logging based on context
func setupLogging(ctx *Context) logging.Logger {
	return logging.NewDefaultLogger()
}

// loadAndMergeConfig loads configuration from files and merges with CLI flags
func loadAndMergeConfig(ctx *Context) (*configs.Config, *experiment.Config, error) {
	// Load base configuration
	baseConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load base configuration: %w", err)
	}

	// Load experiment overrides from file
	var experimentFile *ExperimentFile
	if ctx.ExperimentFile != "" {
		experimentFile, err = loadExperimentFile(ctx.ExperimentFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load experiment configuration: %w", err)
		}
	}

	// CLI overrides on the application config
	if ctx.DataDir != "" {
		baseConfig.DataDir = ctx.DataDir
	}
	if ctx.ModelPath != "" {
		baseConfig.Model.Path = ctx.ModelPath
	}
	if ctx.OutputFormat != "" {
		baseConfig.OutputFormat = ctx.OutputFormat
	}
	resolvePaths(baseConfig)

	// Merge configurations
	mergedConfig := mergeExperimentConfig(buildExperimentConfig(baseConfig), experimentFile, ctx)

	// Validate the final run configuration
	if err := ValidateExperimentConfig(mergedConfig); err != nil {
		return nil, nil, fmt.Errorf("invalid experiment configuration: %w", err)
	}

	return baseConfig, mergedConfig, nil
}

// snapshotStore opens today's partition of the config snapshot store
func (app *App) snapshotStore() *experiment.Store {
	return experiment.NewStore(experiment.DatedDir(app.config.Paths.SnapshotDir, time.Now()), app.logger)
}

// modelDir returns today's partition of the model checkpoint directory
func (app *App) modelDir() string {
	return experiment.DatedDir(app.config.Paths.ModelDir, time.Now())
}

// loadTable reads the class table named by the configuration
func (app *App) loadTable() (*dataset.ClassTable, error) {
	table, err := dataset.LoadTable(app.config.Paths.ClassTable)
	if err != nil {
		return nil, err
	}

	app.logger.Info("Loaded class table", logging.Fields{
		"path":    app.config.Paths.ClassTable,
		"files":   table.Len(),
		"classes": strings.Join(table.Classes(), ", "),
	})
	return table, nil
}

// newBuilder wires a sample builder against the clean corpus
func (app *App) newBuilder(table *dataset.ClassTable) *dataset.Builder {
	return dataset.NewBuilder(dataset.BuilderConfig{
		Config:   app.experiment,
		Table:    table,
		AudioDir: app.config.Paths.AudioDir,
		Logger:   app.logger,
		Seed:     app.ctx.Seed,
		Progress: !app.ctx.NoProgress && !app.ctx.Quiet,
	})
}

// loadClassifier loads the trained model named by the configuration.
// TensorFlow Lite exports go through the tflite runtime, anything
// else is treated as a serialized softmax checkpoint.
func (app *App) loadClassifier() (classify.Classifier, func(), error) {
	path := app.config.Model.Path
	if path == "" {
		return nil, nil, fmt.Errorf("no model path configured")
	}

	switch filepath.Ext(path) {
	case ".tflite":
		model, err := classify.LoadTFLite(path, app.config.Model.Threads)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load tflite model: %w", err)
		}
		return model, model.Close, nil
	default:
		model, err := classify.LoadSoftmax(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load model checkpoint: %w", err)
		}
		return model, func() {}, nil
	}
}

// RunPredict scores the prediction corpus with the configured model
// and writes the annotated predictions export
func (app *App) RunPredict(ctx context.Context) error {
	started := time.Now()

	model, closeModel, err := app.loadClassifier()
	if err != nil {
		return err
	}
	defer closeModel()

	table, err := app.loadTable()
	if err != nil {
		return err
	}

	// Audit copy of the table beside today's model artifacts
	modelDir := app.modelDir()
	if err := os.MkdirAll(modelDir, 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	if err := table.WriteCopy(filepath.Join(modelDir, "classes.csv")); err != nil {
		return fmt.Errorf("failed to write table audit copy: %w", err)
	}

	cfg := app.experiment
	dataset.Resolve(cfg, table, app.logger)

	store := app.snapshotStore()
	_, state, err := store.Resume(cfg)
	if err != nil {
		return fmt.Errorf("failed to probe snapshot store: %w", err)
	}
	cfg.ID = experiment.Identity(cfg, experiment.ImportanceFields)

	predictor, err := classify.NewPredictor(classify.PredictorConfig{
		Config:  cfg,
		Table:   table,
		Builder: app.newBuilder(table),
		Logger:  app.logger,
	})
	if err != nil {
		return err
	}

	result, err := predictor.Run(model, cfg.MaxData)
	if err != nil {
		return fmt.Errorf("prediction run failed: %w", err)
	}

	classes := table.Classes()[:cfg.Categories]
	report, err := classify.NewMetricsCalculator(app.logger).Evaluate(result, classes)
	if err != nil {
		return fmt.Errorf("failed to score predictions: %w", err)
	}

	files, err := predictor.ByFile(result)
	if err != nil {
		return fmt.Errorf("failed to fold predictions onto files: %w", err)
	}

	predictionsPath, err := app.writePredictions(files)
	if err != nil {
		return err
	}

	outputData := map[string]any{
		"prediction_summary": map[string]any{
			"accuracy":        report.Accuracy,
			"windows_scored":  report.Total,
			"files_scored":    len(files),
			"mean_score":      report.MeanScore,
			"score_stats":     report.Scores,
			"per_class":       report.PerClass,
			"predictions_csv": predictionsPath,
		},
		"timestamp": time.Now(),
		"configuration": map[string]any{
			"id":            cfg.ID,
			"model":         app.config.Model.Path,
			"categories":    cfg.Categories,
			"max_data":      cfg.MaxData,
			"sample_length": cfg.SampleLength,
			"cache":         state.String(),
		},
	}
	if app.config.Verbose {
		outputData["confusion"] = report.Confusion
	}

	if err := app.outputResults(outputData); err != nil {
		return fmt.Errorf("failed to output results: %w", err)
	}

	app.collectRunMetrics("predict", cfg, runMetrics{
		samplesBuilt: result.Samples.Len(),
		cacheHit:     state == experiment.Resumed,
		accuracyPct:  report.Accuracy * 100,
		elapsed:      time.Since(started),
	})

	return nil
}

// RunTrain builds (or resumes) the sample sets and drives the
// training loop
func (app *App) RunTrain(ctx context.Context) error {
	started := time.Now()

	table, err := app.loadTable()
	if err != nil {
		return err
	}

	cfg := app.experiment
	dataset.Resolve(cfg, table, app.logger)

	store := app.snapshotStore()
	prior, state, err := store.Resume(cfg)
	if err != nil {
		return fmt.Errorf("failed to probe snapshot store: %w", err)
	}
	cfg.ID = experiment.Identity(cfg, experiment.ImportanceFields)

	snap := &experiment.Snapshot{}
	if state == experiment.Resumed {
		// Carry cached sample sets and the accumulated history so
		// curves continue across processes
		snap.Data = prior.Data
		snap.VData = prior.VData
		snap.History = prior.History
		cfg.Min = prior.Config.Min
		cfg.Max = prior.Config.Max
	}
	snap.Config = *cfg

	builder := app.newBuilder(table)
	built := 0

	if snap.Data == nil || snap.Data.Len() == 0 {
		set, err := app.buildSet(builder, cfg.MaxData, cfg.UseRandomFeatures)
		if err != nil {
			return fmt.Errorf("building training samples: %w", err)
		}
		cfg.Min = set.Min
		cfg.Max = set.Max
		snap.Config = *cfg
		snap.Data = set
		built += set.Len()
		if err := store.Save(snap); err != nil {
			return fmt.Errorf("saving training samples: %w", err)
		}
	} else {
		app.logger.Info("Reusing cached training samples", logging.Fields{
			"count": snap.Data.Len(),
		})
	}

	if cfg.ValidationDataMult > 0 && (snap.VData == nil || snap.VData.Len() == 0) {
		count := int(float64(cfg.MaxData) * cfg.ValidationDataMult)
		set, err := app.buildSet(builder, count, cfg.UseRandomValidation)
		if err != nil {
			return fmt.Errorf("building validation samples: %w", err)
		}
		snap.VData = set
		built += set.Len()
		if err := store.Save(snap); err != nil {
			return fmt.Errorf("saving validation samples: %w", err)
		}
	} else if snap.VData != nil {
		app.logger.Info("Reusing cached validation samples", logging.Fields{
			"count": snap.VData.Len(),
		})
	}

	model, err := app.newTrainableModel(snap.Data)
	if err != nil {
		return err
	}

	trainer, err := classify.NewTrainer(classify.TrainerConfig{
		Config:   cfg,
		Store:    store,
		ModelDir: app.modelDir(),
		ImageDir: app.config.Paths.ImageDir,
		Logger:   app.logger,
	})
	if err != nil {
		return err
	}

	fit, err := trainer.Fit(ctx, model, snap)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	summary := map[string]any{
		"calls_completed":    fit.Calls,
		"resumed_checkpoint": fit.Resumed,
		"training_samples":   snap.Data.Len(),
		"validation_samples": snap.VData.Len(),
		"checkpoint":         experiment.CheckpointPath(app.modelDir(), cfg.ID),
		"accuracy_curve":     classify.AccuracyImagePath(app.config.Paths.ImageDir, cfg.ID),
		"loss_curve":         classify.LossImagePath(app.config.Paths.ImageDir, cfg.ID),
	}
	accuracyPct := -1.0
	if n := len(snap.History.Acc); n > 0 {
		summary["final_accuracy"] = snap.History.Acc[n-1]
		summary["final_loss"] = snap.History.Loss[n-1]
		accuracyPct = snap.History.Acc[n-1] * 100
	}
	if n := len(snap.History.ValAcc); n > 0 {
		summary["final_val_accuracy"] = snap.History.ValAcc[n-1]
	}

	outputData := map[string]any{
		"training_summary": summary,
		"timestamp":        time.Now(),
		"configuration": map[string]any{
			"id":         cfg.ID,
			"calls":      cfg.Calls,
			"epochs":     cfg.Epochs,
			"batch_size": cfg.BatchSize,
			"cache":      state.String(),
		},
	}

	if err := app.outputResults(outputData); err != nil {
		return fmt.Errorf("failed to output results: %w", err)
	}

	app.collectRunMetrics("train", cfg, runMetrics{
		samplesBuilt: built,
		cacheHit:     state == experiment.Resumed,
		accuracyPct:  accuracyPct,
		elapsed:      time.Since(started),
	})

	return nil
}

// RunSamples materializes one sample set and caches it in the
// snapshot store without training anything
func (app *App) RunSamples(ctx context.Context) error {
	started := time.Now()

	table, err := app.loadTable()
	if err != nil {
		return err
	}

	cfg := app.experiment
	dataset.Resolve(cfg, table, app.logger)

	store := app.snapshotStore()
	prior, state, err := store.Resume(cfg)
	if err != nil {
		return fmt.Errorf("failed to probe snapshot store: %w", err)
	}
	cfg.ID = experiment.Identity(cfg, experiment.ImportanceFields)

	snap := &experiment.Snapshot{Config: *cfg}
	if state == experiment.Resumed {
		snap = prior
		snap.Config.ID = cfg.ID
	}

	count := cfg.MaxData
	random := cfg.UseRandomFeatures
	cached := snap.Data
	if app.ctx.Validation {
		count = int(float64(cfg.MaxData) * cfg.ValidationDataMult)
		random = cfg.UseRandomValidation
		cached = snap.VData
	}

	loaded := false
	var set *experiment.SampleSet
	if cached != nil && cached.Len() > 0 && !app.ctx.Overwrite {
		set = cached
		loaded = true
		app.logger.Info("Reusing cached sample set", logging.Fields{
			"count": set.Len(),
		})
	} else {
		set, err = app.buildSet(app.newBuilder(table), count, random)
		if err != nil {
			return fmt.Errorf("building samples: %w", err)
		}

		if app.ctx.Validation {
			snap.VData = set
		} else {
			snap.Config.Min = set.Min
			snap.Config.Max = set.Max
			snap.Data = set
		}
		if err := store.Save(snap); err != nil {
			return fmt.Errorf("saving samples: %w", err)
		}
	}

	shape := []int{0, 0}
	if set.Len() > 0 {
		shape = []int{len(set.X[0]), len(set.X[0][0])}
	}

	outputData := map[string]any{
		"sample_summary": map[string]any{
			"count":        set.Len(),
			"loaded_cache": loaded,
			"validation":   app.ctx.Validation,
			"random":       random,
			"min":          set.Min,
			"max":          set.Max,
			"window_shape": shape,
		},
		"timestamp": time.Now(),
		"configuration": map[string]any{
			"id":            cfg.ID,
			"categories":    cfg.Categories,
			"max_data":      cfg.MaxData,
			"sample_length": cfg.SampleLength,
		},
	}

	if err := app.outputResults(outputData); err != nil {
		return fmt.Errorf("failed to output results: %w", err)
	}

	app.collectRunMetrics("samples", cfg, runMetrics{
		samplesBuilt: set.Len(),
		cacheHit:     loaded,
		accuracyPct:  -1,
		elapsed:      time.Since(started),
	})

	return nil
}

// RunPrepare refactors the raw corpus into trimmed, resampled mono
// WAV files and rewrites the class table to match
func (app *App) RunPrepare(ctx context.Context) error {
	started := time.Now()

	table, err := app.loadTable()
	if err != nil {
		return err
	}

	preparer := dataset.NewPreparer(dataset.PreparerConfig{
		Config:    app.experiment,
		Table:     table,
		RawDir:    app.config.Paths.RawAudioDir,
		OutDir:    app.config.Paths.AudioDir,
		Logger:    app.logger,
		Progress:  !app.ctx.NoProgress && !app.ctx.Quiet,
		Overwrite: app.ctx.Overwrite,
	})

	result, err := preparer.Run()
	if err != nil {
		return fmt.Errorf("corpus preparation failed: %w", err)
	}

	// The table now describes the refactored corpus: failed files are
	// dropped, extensions become .wav
	if err := dataset.WriteEntries(app.config.Paths.ClassTable, result.Entries); err != nil {
		return fmt.Errorf("failed to rewrite class table: %w", err)
	}

	outputData := map[string]any{
		"prepare_summary": map[string]any{
			"processed":   result.Processed,
			"skipped":     result.Skipped,
			"failed":      result.Failed,
			"corpus_dir":  app.config.Paths.AudioDir,
			"class_table": app.config.Paths.ClassTable,
		},
		"timestamp": time.Now(),
		"configuration": map[string]any{
			"frame_rate":       app.experiment.FrameRate,
			"audio_startpoint": app.experiment.AudioStartpoint,
			"audio_length":     app.experiment.AudioLength,
		},
	}

	if err := app.outputResults(outputData); err != nil {
		return fmt.Errorf("failed to output results: %w", err)
	}

	app.collectRunMetrics("prepare", app.experiment, runMetrics{
		samplesBuilt: result.Processed,
		cacheHit:     false,
		accuracyPct:  -1,
		elapsed:      time.Since(started),
	})

	// Surface a hard failure when nothing could be prepared
	if result.Processed == 0 && result.Skipped == 0 {
		return fmt.Errorf("no corpus files could be prepared")
	}

	return nil
}

// RunCurves re-renders the training curves from a stored snapshot
func (app *App) RunCurves(ctx context.Context) error {
	table, err := app.loadTable()
	if err != nil {
		return err
	}

	cfg := app.experiment
	dataset.Resolve(cfg, table, app.logger)

	store := app.snapshotStore()
	snap, state, err := store.Resume(cfg)
	if err != nil {
		return fmt.Errorf("failed to probe snapshot store: %w", err)
	}
	if state == experiment.Fresh {
		return fmt.Errorf("no snapshot for this configuration, train first")
	}
	cfg.ID = experiment.Identity(cfg, experiment.ImportanceFields)

	if err := classify.Draw(snap.History, app.config.Paths.ImageDir, cfg.ID); err != nil {
		return fmt.Errorf("drawing training curves: %w", err)
	}

	outputData := map[string]any{
		"curves_summary": map[string]any{
			"epochs_recorded": len(snap.History.Acc),
			"accuracy_curve":  classify.AccuracyImagePath(app.config.Paths.ImageDir, cfg.ID),
			"loss_curve":      classify.LossImagePath(app.config.Paths.ImageDir, cfg.ID),
			"saved_at":        snap.SavedAt,
		},
		"timestamp": time.Now(),
		"configuration": map[string]any{
			"id": cfg.ID,
		},
	}

	return app.outputResults(outputData)
}

// buildSet builds one sample set in the requested mode
func (app *App) buildSet(builder *dataset.Builder, count int, random bool) (*experiment.SampleSet, error) {
	if random {
		return builder.Random(count)
	}
	return builder.Fixed(count)
}

// newTrainableModel creates a softmax model shaped after the first
// training sample
func (app *App) newTrainableModel(data *experiment.SampleSet) (classify.Trainable, error) {
	if data == nil || data.Len() == 0 {
		return nil, fmt.Errorf("no training samples to shape the model from")
	}

	rows := len(data.X[0])
	cols := len(data.X[0][0])
	model, err := classify.NewSoftmaxModel(rows, cols, app.experiment.Categories)
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}
	if rate := app.config.Training.LearningRate; rate > 0 {
		model.SetLearningRate(rate)
	}

	return model, nil
}

// writePredictions writes the dated, semicolon-delimited predictions
// export
func (app *App) writePredictions(files []classify.FilePrediction) (string, error) {
	rows := make([]dataset.PredictionRow, len(files))
	for i, f := range files {
		rows[i] = dataset.PredictionRow{
			FName:     f.FName,
			Label:     f.Label,
			Score:     f.Score,
			Probs:     dataset.FormatProbs(f.Probs),
			Predicted: f.PredictedLabel,
		}
	}

	dir := app.config.Paths.PredictionsDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create predictions directory: %w", err)
	}

	path := filepath.Join(dir, time.Now().Format("2006-01-02")+".csv")
	if err := dataset.WritePredictions(path, rows); err != nil {
		return "", err
	}

	app.logger.Info("Predictions written", logging.Fields{
		"path":  path,
		"files": len(rows),
	})
	return path, nil
}

// outputResults handles all result output
func (app *App) outputResults(outputData map[string]any) error {
	// Create formatter
	var formatter output.Formatter
	switch app.ctx.OutputFormat {
	case "json":
		formatter = &output.JSONFormatter{}
	case "yaml":
		formatter = &output.YAMLFormatter{}
	case "csv":
		formatter = &output.CSVFormatter{}
	case "table":
		formatter = &output.TableFormatter{}
	default:
		formatter = &output.JSONFormatter{}
	}

	// Format data
	formattedData, err := formatter.Format(outputData, true)
	if err != nil {
		// If JSON formatting fails due to infinite values, try to sanitize the data
		if strings.Contains(err.Error(), "unsupported value") {
			sanitizedData := sanitizeForJSON(outputData)
			formattedData, err = formatter.Format(sanitizedData, true)
		}
		if err != nil {
			return fmt.Errorf("failed to format output data: %w", err)
		}
	}

	// Write to file or stdout
	if app.ctx.OutputFile != "" {
		return app.writeToFile(formattedData)
	}

	if app.ctx.Quiet {
		return nil
	}

	_, err = os.Stdout.Write(formattedData)
	return err
}

// runMetrics carries the per-run measurements sent to rootcollector
type runMetrics struct {
	samplesBuilt int
	cacheHit     bool
	accuracyPct  float64 // negative when the run has no accuracy
	elapsed      time.Duration
}

// collectRunMetrics sends run metrics to rootcollector
func (app *App) collectRunMetrics(command string, cfg *experiment.Config, m runMetrics) {
	err := rootlogger.Configure(logger.LogOptions{
		Out:          metricsLogFile,
		ReopenSignal: syscall.SIGHUP,
		Level:        logtypes.InfoLevel,
	})
	if err != nil {
		logging.Error(err, "Failed configuring log writer")
	}

	tags := []string{
		"command:" + command,
		"config:" + strconv.FormatInt(cfg.ID, 10),
	}

	rootcollector.Metric("genre.classifier.samples.built", int64(m.samplesBuilt), tags)

	cacheHit := int64(0)
	if m.cacheHit {
		cacheHit = 1
	}
	rootcollector.Metric("genre.classifier.cache.hit", cacheHit, tags)

	if m.accuracyPct >= 0 {
		rootcollector.Metric("genre.classifier.accuracy.pct", int64(math.Round(m.accuracyPct)), tags)
	}

	rootcollector.Metric("genre.classifier.run.milliseconds", m.elapsed.Milliseconds(), tags)
}

// writeToFile writes data to the specified output file
func (app *App) writeToFile(data []byte) error {
	// Ensure directory exists
	dir := filepath.Dir(app.ctx.OutputFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if err := os.WriteFile(app.ctx.OutputFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	app.logger.Debug("Results written to file", logging.Fields{
		"output_file": app.ctx.OutputFile,
		"size_bytes":  len(data),
	})

	return nil
}

// sanitizeForJSON recursively cleans infinite and NaN values from any data structure
func sanitizeForJSON(data any) any {
	switch v := data.(type) {
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return 0.0
		}
		return v
	case float32:
		if math.IsInf(float64(v), 0) || math.IsNaN(float64(v)) {
			return float32(0.0)
		}
		return v
	case map[string]any:
		result := make(map[string]any)
		for k, val := range v {
			result[k] = sanitizeForJSON(val)
		}
		return result
	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			result[i] = sanitizeForJSON(val)
		}
		return result
	case []float64:
		result := make([]float64, len(v))
		for i, val := range v {
			if math.IsInf(val, 0) || math.IsNaN(val) {
				result[i] = 0.0
			} else {
				result[i] = val
			}
		}
		return result
	default:
		// Use reflection to handle structs and other complex types
		return sanitizeWithReflection(data)
	}
}

// sanitizeWithReflection uses reflection to sanitize struct fields
func sanitizeWithReflection(data any) any {
	if data == nil {
		return nil
	}

	val := reflect.ValueOf(data)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}

	switch val.Kind() {
	case reflect.Struct:
		result := make(map[string]any)
		typ := val.Type()
		for i := 0; i < val.NumField(); i++ {
			field := val.Field(i)
			fieldType := typ.Field(i)

			// Skip unexported fields
			if !field.CanInterface() {
				continue
			}

			fieldName := fieldType.Name
			if jsonTag := fieldType.Tag.Get("json"); jsonTag != "" && jsonTag != "-" {
				if name, _, _ := strings.Cut(jsonTag, ","); name != "" {
					fieldName = name
				}
			}

			result[fieldName] = sanitizeForJSON(field.Interface())
		}
		return result
	case reflect.Slice:
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			result[i] = sanitizeForJSON(val.Index(i).Interface())
		}
		return result
	case reflect.Map:
		result := make(map[string]any)
		for _, key := range val.MapKeys() {
			keyStr := fmt.Sprintf("%v", key.Interface())
			result[keyStr] = sanitizeForJSON(val.MapIndex(key).Interface())
		}
		return result
	case reflect.Float64, reflect.Float32:
		f := val.Float()
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return 0.0
		}
		return f
	default:
		return val.Interface()
	}
}
