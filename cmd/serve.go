package cmd

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/meetflow/pkg/llm"
	"github.com/otherjamesbrown/meetflow/pkg/metrics"
	"github.com/otherjamesbrown/meetflow/pkg/pipeline"
	"github.com/otherjamesbrown/meetflow/pkg/platform"
	"github.com/otherjamesbrown/meetflow/pkg/responder"
	"github.com/otherjamesbrown/meetflow/pkg/webhook"
	"github.com/otherjamesbrown/meetflow/pkg/workers"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var (
		cfgPath    string
		withWorker bool
	)

	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		Long: `Run the webhook HTTP server.

The server ingests platform webhook events, applies them to the meeting
state machine, and enqueues transcript pipeline jobs. With --with-worker
the pipeline worker pool runs inside the same process, which is the
single-binary deployment mode.

Examples:
  meetflow serve --config ./meetflow.yaml
  meetflow serve --config ./meetflow.yaml --with-worker`,
		RunE: func(c *cobra.Command, args []string) error {
			return runServe(c.Context(), cfgPath, withWorker)
		},
	}

	c.Flags().StringVar(&cfgPath, "config", "", "path to the configuration file")
	c.Flags().BoolVar(&withWorker, "with-worker", false, "run pipeline workers in-process")
	return c
}

func runServe(ctx context.Context, cfgPath string, withWorker bool) error {
	rt, err := newRuntime(ctx, cfgPath, "meetflow-serve")
	if err != nil {
		return err
	}
	defer rt.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	provider := llm.NewOpenAIProvider(rt.cfg.LLM)
	defer provider.Close()

	platformClient := platform.NewClient(rt.cfg.Platform, rt.logger)
	resp := responder.New(rt.store, platformClient, provider, m, rt.logger)
	handlers := webhook.NewHandlers(rt.store, platformClient, rt.queue, resp, rt.logger)
	router := webhook.NewRouter(handlers, m)
	verifier := webhook.NewVerifier(rt.cfg.Platform.APIKey, rt.cfg.Platform.APISecret)

	server := webhook.NewServer(rt.cfg.Server, verifier, router, rt.pool, rt.rdb, registry, rt.logger)

	if withWorker || rt.cfg.Server.WithWorker {
		processor := pipeline.NewProcessor(rt.store, provider, m, rt.logger)
		pool := startWorkerPool(rt, processor, m)
		defer pool.Stop()
	}

	return server.Start(ctx)
}

// startWorkerPool starts the pipeline worker pool. The pool reports the
// pending and dead letter queue depth gauges itself.
func startWorkerPool(rt *runtime, processor *pipeline.Processor, m *metrics.Metrics) *workers.Pool {
	workerCfg := workers.DefaultConfig()
	workerCfg.Count = rt.cfg.Pipeline.Workers
	if rt.cfg.Pipeline.VisibilityTimeout > 0 {
		workerCfg.VisibilityTimeout = rt.cfg.Pipeline.VisibilityTimeout
	}

	pool := workers.NewPool(workerCfg, rt.queue, processor.Handler(), m, rt.logger)
	pool.Start()
	return pool
}
