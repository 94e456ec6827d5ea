package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	config "extjob/configs"
	"extjob/pkg/endpoint"
	"extjob/pkg/logger"
	"extjob/pkg/metrics"
	"extjob/pkg/models"
	tracing "extjob/pkg/observability"
	"extjob/pkg/reporter"
	"extjob/pkg/storage"
)

type postOptions struct {
	Host     string
	Port     int
	Job      string
	Result   int
	Duration int64
	LogRef   string
	Encoding string
	Timeout  time.Duration
	EnvFiles []string
}

func newRootCmd() *cobra.Command {
	var opts postOptions

	cmd := &cobra.Command{
		Use:   "postresult --job <name> --result <code> [--duration <ms>] [--log <path|-|s3://bucket/key>]",
		Short: "Report a finished build to a Hudson/Jenkins external job",
		Long: "Posts a <run> document to http://{host}:{port}/job/{job}/postBuildResult.\n" +
			"A CI server that cannot be reached is logged, not treated as an error.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.EnvFiles...)
			if err != nil {
				return err
			}
			applyFlags(cmd, &opts, cfg)
			if !cmd.Flags().Changed("result") {
				return errors.New("--result is required")
			}
			return run(cmd.Context(), cmd, opts, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Host, "host", "", "CI server host (env EXTJOB_HOST)")
	f.IntVar(&opts.Port, "port", endpoint.DefaultPort, "CI server port (env EXTJOB_PORT)")
	f.StringVar(&opts.Job, "job", "", "external job name (env EXTJOB_JOB)")
	f.IntVar(&opts.Result, "result", 0, "exit code of the run, 0 is success")
	f.Int64Var(&opts.Duration, "duration", 0, "run duration in milliseconds")
	f.StringVar(&opts.LogRef, "log", "", "console log: a file path, - for stdin, or s3://bucket/key")
	f.StringVar(&opts.Encoding, "encoding", string(models.EncodingHexBinary), "log encoding (env EXTJOB_ENCODING)")
	f.DurationVar(&opts.Timeout, "timeout", reporter.DefaultTimeout, "HTTP timeout for the post (env EXTJOB_TIMEOUT)")
	f.StringSliceVar(&opts.EnvFiles, "env-file", []string{".env"}, ".env files to load before reading the environment")

	return cmd
}

// applyFlags lets explicitly set flags win over the environment.
func applyFlags(cmd *cobra.Command, opts *postOptions, cfg *config.Config) {
	f := cmd.Flags()
	if !f.Changed("host") {
		opts.Host = cfg.Host
	}
	if !f.Changed("port") {
		opts.Port = cfg.Port
	}
	if !f.Changed("job") {
		opts.Job = cfg.Job
	}
	if !f.Changed("encoding") {
		opts.Encoding = cfg.Encoding
	}
	if !f.Changed("timeout") {
		opts.Timeout = cfg.Timeout
	}
}

func run(ctx context.Context, cmd *cobra.Command, opts postOptions, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log, err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		Encoding:   cfg.Log.Encoding,
		OutputPath: cfg.Log.Output,
		Service:    "extjob-postresult",
	})
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	tp, err := tracing.Init(ctx, tracing.Config{
		ServiceName:  "extjob-postresult",
		Endpoint:     cfg.Tracing.Endpoint,
		Insecure:     cfg.Tracing.Insecure,
		Enabled:      cfg.Tracing.Enabled,
		SamplingRate: cfg.Tracing.SamplingRate,
	})
	if err != nil {
		// Tracing is best-effort like the post itself.
		log.Warn("tracing disabled", zap.Error(err))
		tp, _ = tracing.Init(ctx, tracing.Config{})
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	rep, err := reporter.New(reporter.Config{
		Endpoint: endpoint.Config{Host: opts.Host, Port: opts.Port},
		Timeout:  opts.Timeout,
		Logger:   log,
		Tracer:   tp.Tracer(),
	})
	if err != nil {
		return err
	}

	report := models.RunReport{
		Result:   opts.Result,
		Encoding: models.Encoding(opts.Encoding),
	}
	if cmd.Flags().Changed("duration") {
		report.DurationMillis = models.Int64(opts.Duration)
	}
	if opts.LogRef != "" {
		text, err := readLog(ctx, cmd, opts.LogRef, cfg.S3)
		if err != nil {
			return err
		}
		report.Log = models.String(text)
	}

	if err := rep.Post(ctx, opts.Job, report); err != nil {
		return err
	}

	if err := metrics.Push(ctx, cfg.PushgatewayURL, opts.Job); err != nil {
		log.Warn("failed to push metrics", zap.Error(err))
	}
	return nil
}

func readLog(ctx context.Context, cmd *cobra.Command, ref string, s3cfg config.S3Config) (string, error) {
	src := &storage.Router{
		Files: storage.FileLogSource{Stdin: cmd.InOrStdin()},
		S3: func(ctx context.Context) (storage.LogSource, error) {
			return storage.NewS3LogSource(ctx, storage.S3Config{
				Region:          s3cfg.Region,
				Endpoint:        s3cfg.Endpoint,
				AccessKeyID:     s3cfg.AccessKeyID,
				SecretAccessKey: s3cfg.SecretAccessKey,
			})
		},
	}

	data, err := src.Retrieve(ctx, ref)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
