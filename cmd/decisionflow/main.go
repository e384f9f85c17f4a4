package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/decisionflow/ai/agents"
	"github.com/hrygo/decisionflow/ai/core/llm"
	"github.com/hrygo/decisionflow/ai/metrics"
	"github.com/hrygo/decisionflow/ai/pipeline"
	"github.com/hrygo/decisionflow/ai/prompt"
	"github.com/hrygo/decisionflow/ai/validation"
	"github.com/hrygo/decisionflow/internal/profile"
	"github.com/hrygo/decisionflow/internal/version"
	"github.com/hrygo/decisionflow/server"
)

var rootCmd = &cobra.Command{
	Use:   "decisionflow",
	Short: `A structured decision analysis service. Turns a decision request into a scored, bias-checked recommendation through a deterministic agent pipeline.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Only load .env for direct binary execution (not when running as systemd service)
		if !isRunningAsSystemdService() {
			// Try to load .env file from current directory (ignore error if file doesn't exist)
			_ = godotenv.Load()
		}
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Version: version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if dir := viper.GetString("prompt-dir"); dir != "" {
			instanceProfile.PromptDir = dir
		}
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid configuration", "error", err)
			os.Exit(1)
		}
		setupLogger(instanceProfile)
		if !instanceProfile.IsDev() && !version.IsVersionGreaterOrEqualThan(version.Version, "0.1.0") {
			slog.Warn("running an unreleased build in prod mode", "version", version.String())
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		prompts := prompt.NewLoader(instanceProfile.PromptDir, instanceProfile.PromptVersion)
		exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())

		gateway := llm.NewGateway(llm.Config{
			Model:         instanceProfile.LLMModel,
			APIKey:        instanceProfile.LLMAPIKey,
			BaseURL:       instanceProfile.LLMBaseURL,
			MaxTokens:     instanceProfile.LLMMaxTokens,
			Temperature:   float32(instanceProfile.LLMTemperature),
			Timeout:       time.Duration(instanceProfile.LLMTimeout) * time.Second,
			MaxConcurrent: int64(instanceProfile.LLMMaxConcurrent),
			Retry: llm.RetryConfig{
				MaxRetries: instanceProfile.LLMMaxRetries,
				BaseDelay:  time.Second,
				MaxDelay:   10 * time.Second,
			},
		}, prompts, exporter)
		slog.Info("LLM gateway initialized",
			"provider", instanceProfile.LLMProvider,
			"model", instanceProfile.LLMModel,
		)

		validator := validation.NewService(gateway)
		pipe := pipeline.New(
			agents.NewClarifier(gateway, validator),
			agents.NewCriteriaBuilder(gateway, validator),
			agents.NewBiasChecker(gateway, validator),
			agents.NewOptionEvaluator(gateway, validator),
			agents.NewDecisionSynthesizer(gateway, validator),
			exporter,
		)
		runner := pipeline.NewRunner(pipe,
			instanceProfile.APIVersion,
			instanceProfile.LogicVersion,
			instanceProfile.SchemaVersion,
		)

		s, err := server.NewServer(ctx, instanceProfile, runner, prompts, exporter.Handler())
		if err != nil {
			slog.Error("failed to create server", "error", err)
			return
		}

		c := make(chan os.Signal, 1)
		// Trigger graceful shutdown on SIGINT or SIGTERM.
		// The default signal sent by the `kill` command is SIGTERM,
		// which is taken as the graceful shutdown signal for many systems, eg., Kubernetes, Gunicorn.
		signal.Notify(c, terminationSignals...)

		go func() {
			if err := s.Start(ctx); err != nil {
				if !errors.Is(err, http.ErrServerClosed) {
					slog.Error("failed to start server", "error", err)
					cancel()
				}
			}
		}()

		printGreetings(instanceProfile)

		go func() {
			<-c
			s.Shutdown(ctx)
			cancel()
		}()

		// Wait for CTRL-C.
		<-ctx.Done()
	},
}

func init() {
	rootCmd.Version = version.StringFull()

	viper.SetDefault("mode", "dev")
	viper.SetDefault("port", 28090)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28090, "port of server")
	rootCmd.PersistentFlags().String("prompt-dir", "", "directory holding versioned prompt templates")

	if err := viper.BindPFlag("mode", rootCmd.PersistentFlags().Lookup("mode")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("addr", rootCmd.PersistentFlags().Lookup("addr")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("prompt-dir", rootCmd.PersistentFlags().Lookup("prompt-dir")); err != nil {
		panic(err)
	}

	viper.SetEnvPrefix("decisionflow")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setupLogger installs the process-wide slog handler: human-readable debug
// output in dev, JSON at info level otherwise.
func setupLogger(profile *profile.Profile) {
	var handler slog.Handler
	if profile.IsDev() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("DecisionFlow %s started successfully!\n", profile.Version)

	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
	}

	fmt.Printf("Mode: %s\n", profile.Mode)
	fmt.Printf("LLM provider: %s\n", profile.LLMProvider)
	fmt.Printf("Prompt bundle: %s (%s)\n", profile.PromptVersion, profile.PromptDir)

	if len(profile.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", profile.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", profile.Addr, profile.Port)
	}
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
