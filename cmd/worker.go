package cmd

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/meetflow/pkg/llm"
	"github.com/otherjamesbrown/meetflow/pkg/logging"
	"github.com/otherjamesbrown/meetflow/pkg/metrics"
	"github.com/otherjamesbrown/meetflow/pkg/pipeline"
)

// NewWorkerCommand creates the worker command.
func NewWorkerCommand() *cobra.Command {
	var cfgPath string

	c := &cobra.Command{
		Use:   "worker",
		Short: "Run the transcript pipeline workers",
		Long: `Run the transcript pipeline worker pool.

Workers consume queued transcript jobs: fetch and parse the transcript,
resolve speakers, summarize with the language model, and persist the
result. Failed jobs are retried with exponential backoff and eventually
dead-lettered.

Examples:
  meetflow worker --config ./meetflow.yaml`,
		RunE: func(c *cobra.Command, args []string) error {
			return runWorker(c.Context(), cfgPath)
		},
	}

	c.Flags().StringVar(&cfgPath, "config", "", "path to the configuration file")
	return c
}

func runWorker(ctx context.Context, cfgPath string) error {
	rt, err := newRuntime(ctx, cfgPath, "meetflow-worker")
	if err != nil {
		return err
	}
	defer rt.Close()

	m := metrics.New(prometheus.NewRegistry())

	provider := llm.NewOpenAIProvider(rt.cfg.LLM)
	defer provider.Close()

	processor := pipeline.NewProcessor(rt.store, provider, m, rt.logger)
	pool := startWorkerPool(rt, processor, m)

	<-ctx.Done()
	rt.logger.Info("shutting down workers")
	pool.Stop()

	processed, failed := pool.Stats()
	rt.logger.Info("worker pool drained",
		logging.F("processed", processed),
		logging.F("failed", failed))
	return nil
}
