package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/tasktonic/tasktonic/examples/hello"
	"github.com/tasktonic/tasktonic/examples/trafficlight"
	"github.com/tasktonic/tasktonic/pkg/bootstrap"
	"github.com/tasktonic/tasktonic/pkg/log"
	"github.com/tasktonic/tasktonic/pkg/logcollector"
	"github.com/tasktonic/tasktonic/pkg/metrics"
)

// Version is set via ldflags during build.
var Version = "dev"

func main() {
	metrics.SetVersion(Version)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "tasktonic",
	Short:   "TaskTonic - an in-process actor-style runtime",
	Long:    `TaskTonic runs a ledger, a reactive config store, one or more catalysts, and the tonics they dispatch sparkles to, all in a single process.`,
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to a formula overrides YAML file")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Address to serve /metrics, /health, /ready, /live on (disabled if empty)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(helloCmd)
	rootCmd.AddCommand(trafficLightCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// serveMetrics starts the process's /metrics, /health, /ready, /live HTTP
// endpoints on addr in the background; a blank addr leaves them disabled.
func serveMetrics(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
		}
	}()
	fmt.Printf("Metrics endpoint:  http://%s/metrics\n", addr)
	fmt.Printf("Health endpoints:  http://%s/health, /ready, /live\n", addr)
}

var helloCmd = &cobra.Command{
	Use:   "hello",
	Short: "Run the hello-chain demo tonic",
	Long:  `hello spawns one tonic that chains five tick sparkles and finishes, then exits once the main catalyst's fleet empties.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		serveMetrics(metricsAddr)
		f := &bootstrap.Formula{
			ConfigPath: configPath,
			Registerer: prometheus.NewRegistry(),
			Build: func(rt *bootstrap.Runtime, collector logcollector.Collector) error {
				_, err := hello.New(rt.Main, collector)
				return err
			},
		}
		_, err := f.Run()
		return err
	},
}

var trafficLightCmd = &cobra.Command{
	Use:   "trafficlight",
	Short: "Run the traffic-light state-machine demo",
	Long:  `trafficlight spawns one tonic that cycles red, green, and yellow once, arming a timer on each state entry, then exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		red, _ := cmd.Flags().GetDuration("red")
		green, _ := cmd.Flags().GetDuration("green")
		yellow, _ := cmd.Flags().GetDuration("yellow")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		serveMetrics(metricsAddr)

		f := &bootstrap.Formula{
			ConfigPath: configPath,
			Registerer: prometheus.NewRegistry(),
			Build: func(rt *bootstrap.Runtime, collector logcollector.Collector) error {
				_, err := trafficlight.New(rt.Main, collector, red, green, yellow)
				return err
			},
		}
		_, err := f.Run()
		return err
	},
}

func init() {
	trafficLightCmd.Flags().Duration("red", 5*time.Second, "red light duration")
	trafficLightCmd.Flags().Duration("green", 5*time.Second, "green light duration")
	trafficLightCmd.Flags().Duration("yellow", 2*time.Second, "yellow light duration")
}
