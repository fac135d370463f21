package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/agent-mux/agent-mux/mux"
	"github.com/agent-mux/agent-mux/mux/middleware"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "agent-mux",
	Short: "In-process agent message routing and middleware engine",
	Long: `agent-mux routes structured messages to handler agents through
priority-ordered rules and a composable middleware pipeline.

The demo command assembles a router from a YAML config, routes sample
traffic, and prints the analytics report and trace export.`,
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Route sample traffic through a configured router",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDemo()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	demoCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to router config YAML")
	rootCmd.AddCommand(demoCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDemo() error {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg := defaultDemoConfig()
	if configPath != "" {
		loaded, err := mux.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	builder := mux.NewRouterBuilder().
		WithLogger(logger).
		WithClock(mux.SystemClock())
	attachments := middleware.FromConfig(cfg.Middleware, builder)
	defer attachments.Close()

	builder.
		RegisterAgent(newDemoAgent("tech", "Technical Support")).
		RegisterAgent(newDemoAgent("cs", "Customer Service")).
		AddRoutingRule("technical", "technical support",
			func(c mux.RoutingContext) bool { return c.CategoryIs("TechnicalSupport") }, "tech", 100).
		AddRoutingRule("catch-all", "catch all",
			func(c mux.RoutingContext) bool { return true }, "cs", 1)
	if cfg.Router.DefaultAgent != "" {
		builder.WithDefaultAgent(cfg.Router.DefaultAgent)
	}

	router := builder.Build()
	router.OnUnroutable(func(msg *mux.Message, reason string) {
		logger.Warnf("unroutable: %s (%s)", msg.ID, reason)
	})

	ctx := context.Background()
	for _, sample := range sampleMessages() {
		res, err := router.Route(ctx, sample)
		if err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{
			"subject":  sample.Subject,
			"receiver": sample.ReceiverID,
			"success":  res.Success,
			"response": res.Response,
		}).Info("routed")
	}

	if attachments.Analytics != nil {
		fmt.Println(attachments.Analytics.GenerateReport())
	}
	if attachments.Metrics != nil {
		snap := attachments.Metrics.Snapshot()
		fmt.Printf("Processed %d messages, %.0f%% success\n",
			snap.TotalMessages, snap.SuccessRate*100)
	}
	if attachments.Tracing != nil {
		fmt.Println(attachments.Tracing.ExportJaegerFormat())
	}
	fmt.Printf("Rule hits: %v\n", router.RoutingMetrics())
	return nil
}

func sampleMessages() []*mux.Message {
	samples := []*mux.Message{
		mux.NewMessage("alice", "Server down", "Our production server crashed with an error"),
		mux.NewMessage("bob", "Invoice question", "I was charged twice, please refund"),
		mux.NewMessage("carol", "Hello", "How do I upgrade my plan?"),
	}
	samples[0].Category = "TechnicalSupport"
	return samples
}

func defaultDemoConfig() *mux.Config {
	return &mux.Config{
		Middleware: mux.MiddlewareConfig{
			Validation: true,
			Logging:    true,
			Enrichment: true,
			Metrics:    true,
			Analytics:  true,
			Tracing:    &mux.TracingConfig{ServiceName: "agent-mux-demo"},
		},
	}
}
