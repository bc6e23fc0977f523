// Command ingestkit runs, validates, and serves data movement jobs.
//
// Usage:
//
//	ingestkit run --job nightly [--env dev] [--trigger manual]
//	ingestkit validate [--env dev]
//	ingestkit list [--env dev]
//	ingestkit serve [--env dev] [--addr :8080]
//	ingestkit version
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/ingestkit/ingestkit/config"
	"github.com/ingestkit/ingestkit/engine"
	"github.com/ingestkit/ingestkit/logger"
	"github.com/ingestkit/ingestkit/notify"
	"github.com/ingestkit/ingestkit/observability"
	"github.com/ingestkit/ingestkit/orchestrator"
	"github.com/ingestkit/ingestkit/secrets"
	"github.com/ingestkit/ingestkit/trigger"
	"github.com/ingestkit/ingestkit/version"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = cmdRun(os.Args[2:])
	case "validate":
		err = cmdValidate(os.Args[2:])
	case "list":
		err = cmdList(os.Args[2:])
	case "serve":
		err = cmdServe(os.Args[2:])
	case "version":
		fmt.Println(version.String())
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "ingestkit:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ingestkit <run|validate|list|serve|version> [flags]")
}

// setup loads app config, initializes logging and observability, and
// builds the orchestrator. The returned shutdown func flushes telemetry.
func setup(ctx context.Context, env string) (*orchestrator.Orchestrator, *config.AppConfig, config.Environment, func(), error) {
	cfg, err := config.LoadApp()
	if err != nil {
		return nil, nil, "", nil, err
	}
	if env != "" {
		cfg.Environment = env
	}
	environment, err := config.ParseEnvironment(cfg.Environment)
	if err != nil {
		return nil, nil, "", nil, err
	}

	logger.Init(cfg.Logging)
	logger.RegisterDefaults("orchestrator", "engine", "runner", "scheduler", "webhook", "notify")

	shutdown := func() {}
	var metrics *observability.Metrics
	if cfg.Observability.Enabled {
		tracerCfg := observability.DefaultTracerConfig("ingestkit")
		tracerCfg.Environment = cfg.Environment
		if cfg.Observability.Endpoint != "" {
			tracerCfg.Endpoint = cfg.Observability.Endpoint
		}
		tracerCfg.SampleRate = cfg.Observability.SampleRate
		tp, err := observability.InitTracer(ctx, tracerCfg)
		if err != nil {
			return nil, nil, "", nil, err
		}

		meterCfg := observability.DefaultMeterConfig("ingestkit")
		meterCfg.Environment = cfg.Environment
		if cfg.Observability.Endpoint != "" {
			meterCfg.Endpoint = cfg.Observability.Endpoint
		}
		mp, err := observability.InitMeter(ctx, meterCfg)
		if err != nil {
			return nil, nil, "", nil, err
		}

		metrics, err = observability.NewMetrics(otel.Meter("ingestkit"))
		if err != nil {
			return nil, nil, "", nil, err
		}
		shutdown = func() {
			flushCtx := context.Background()
			_ = tp.Shutdown(flushCtx)
			_ = mp.Shutdown(flushCtx)
		}
	}

	o := orchestrator.New(cfg.ConfigRoot,
		orchestrator.WithMetrics(metrics),
		orchestrator.WithDispatcher(notify.NewDispatcher()),
	)
	return o, cfg, environment, shutdown, nil
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	job := fs.String("job", "", "job to run")
	env := fs.String("env", "", "environment (dev, staging, prod)")
	trig := fs.String("trigger", "manual", "trigger name recorded on the run")
	fs.Parse(args)

	if *job == "" {
		return fmt.Errorf("run: --job is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o, _, environment, shutdown, err := setup(ctx, *env)
	if err != nil {
		return err
	}
	defer shutdown()

	result, err := o.RunJob(ctx, *job, environment, *trig)
	if err != nil {
		return err
	}

	printResult(result)
	if result.Status != engine.StatusSucceeded {
		shutdown()
		os.Exit(1)
	}
	return nil
}

func cmdValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	env := fs.String("env", "", "environment (dev, staging, prod)")
	fs.Parse(args)

	o, _, environment, shutdown, err := setup(context.Background(), *env)
	if err != nil {
		return err
	}
	defer shutdown()

	if err := o.Validate(environment); err != nil {
		return err
	}
	fmt.Printf("configuration for %s is valid\n", environment)
	return nil
}

func cmdList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	env := fs.String("env", "", "environment (dev, staging, prod)")
	fs.Parse(args)

	o, _, environment, shutdown, err := setup(context.Background(), *env)
	if err != nil {
		return err
	}
	defer shutdown()

	names, err := o.JobNames(environment)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	env := fs.String("env", "", "environment (dev, staging, prod)")
	addr := fs.String("addr", "", "webhook listen address")
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o, cfg, environment, shutdown, err := setup(ctx, *env)
	if err != nil {
		return err
	}
	defer shutdown()

	snapshot, err := config.LoadSnapshot(cfg.ConfigRoot, environment)
	if err != nil {
		return err
	}

	scheduler := trigger.NewScheduler(o, environment)
	scheduler.Start(ctx, snapshot.Triggers)

	listenAddr := cfg.Server.Addr
	if *addr != "" {
		listenAddr = *addr
	}
	srv := trigger.NewServer(listenAddr, o, snapshot, secrets.EnvSource{}, cfg.ConfigRoot)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	scheduler.Wait()
	return srv.Stop(context.Background())
}

func printResult(result *engine.JobResult) {
	fmt.Printf("run %s: job %s %s in %s (%d rows)\n",
		result.RunID, result.Job, result.Status, result.Duration().Round(time.Millisecond), result.RowsProcessed())
	for _, o := range result.Outcomes {
		line := fmt.Sprintf("  %-24s %s", o.Pipeline, o.Status)
		if o.Attempts > 1 {
			line += fmt.Sprintf(" (attempts: %d)", o.Attempts)
		}
		if o.Err != nil {
			line += "  " + o.Err.Error()
		}
		fmt.Println(line)
	}
}
