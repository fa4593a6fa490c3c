package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hupe1980/agentpay"
	"github.com/hupe1980/agentpay/agent"
	"github.com/hupe1980/agentpay/engine"
	"github.com/hupe1980/agentpay/httpapi"
	"github.com/hupe1980/agentpay/logging"
	"github.com/hupe1980/agentpay/model"
	anthropicmodel "github.com/hupe1980/agentpay/model/anthropic"
	geminimodel "github.com/hupe1980/agentpay/model/gemini"
	openaimodel "github.com/hupe1980/agentpay/model/openai"
	"github.com/hupe1980/agentpay/payment"
	"github.com/hupe1980/agentpay/policy"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "agentpay",
		Short: "AgentPay - autonomous agent-to-agent service negotiation",
		Long: `AgentPay runs agents that negotiate, pay for and deliver services
without human involvement. A provider quotes prices and verifies payment
proofs; a requester evaluates quotes against its budget and pays.`,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(simulateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var (
		addr      string
		modelName string
		logFormat string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a provider agent behind an HTTP endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewSlogLogger(logging.LogLevelInfo, logFormat, false)

			text, err := buildModel(cmd.Context(), modelName)
			if err != nil {
				return err
			}

			provider := newFridge(text, logger)

			if err := provider.Init(cmd.Context()); err != nil {
				return err
			}

			srv := httpapi.NewServer(provider, func(o *httpapi.ServerOptions) {
				o.Addr = addr
				o.Logger = logger
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			fmt.Printf("%s provider %s listening on %s\n",
				color.New(color.FgGreen).Sprint("●"), provider.ID(), addr)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}

			return provider.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8001", "listen address")
	cmd.Flags().StringVar(&modelName, "model", "none", "text model: none, anthropic, openai or gemini")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	return cmd
}

func simulateCmd() *cobra.Command {
	var (
		service   string
		budget    float64
		retries   int
		modelName string
		logFormat string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a full in-process negotiation between a requester and a provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewSlogLogger(logging.LogLevelInfo, logFormat, false)

			text, err := buildModel(cmd.Context(), modelName)
			if err != nil {
				return err
			}

			provider := newFridge(text, logger)

			payments := payment.NewSimClient(func(o *payment.SimClientOptions) {
				o.PrivateKey = os.Getenv("BUYER_PRIVATE_KEY")
			})

			requester := agent.NewRequester("home_hub_001", "Home Hub", policy.Threshold(budget), payments, func(o *agent.RequesterOptions) {
				o.MaxPaymentRetries = retries
				o.TextModel = text
				o.Logger = logger
			})

			pay := agentpay.New(func(o *agentpay.Options) {
				o.EngineConfig = engine.Config{
					QueueSize:      100,
					PollInterval:   100 * time.Millisecond,
					EnqueueTimeout: 5 * time.Second,
				}
				o.Logger = logger
			})

			if err := pay.RegisterAgent(provider); err != nil {
				return err
			}
			if err := pay.RegisterAgent(requester); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if err := pay.StartBackground(ctx); err != nil {
				return err
			}

			fmt.Printf("%s %s requests %q from %s (budget %.2f)\n",
				color.New(color.FgCyan).Sprint("▶"), requester.ID(), service, provider.ID(), budget)

			if err := pay.Enqueue(ctx, requester.RequestService(provider.ID(), service)); err != nil {
				return err
			}

			// The negotiation is settled once the requester has no open
			// transactions and the queue is drained.
			settled := waitSettled(ctx, pay.Engine(), requester)

			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()

			if err := pay.Shutdown(shutdownCtx); err != nil {
				return err
			}

			if !settled {
				fmt.Println(color.New(color.FgRed).Sprint("✗"), "negotiation did not settle in time")
				return fmt.Errorf("simulation timed out")
			}

			fmt.Printf("%s negotiation settled, %d %s remaining in inventory\n",
				color.New(color.FgGreen).Sprint("✔"), provider.InventoryCount(service), service)

			return nil
		},
	}

	cmd.Flags().StringVar(&service, "service", "soda", "service to request")
	cmd.Flags().Float64Var(&budget, "budget", policy.DefaultThreshold, "maximum acceptable price")
	cmd.Flags().IntVar(&retries, "retries", 0, "payment retries after an invalid proof")
	cmd.Flags().StringVar(&modelName, "model", "none", "text model: none, anthropic, openai or gemini")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	return cmd
}

// newFridge builds the demo provider with soda added to the stock.
func newFridge(text model.Model, logger logging.Logger) *agent.Provider {
	return agent.NewProvider("smart_fridge_001", "Smart Fridge", payment.NewSimVerifier(), func(o *agent.ProviderOptions) {
		o.Inventory = map[string]int{"soda": 100, "coke": 50, "pepsi": 30, "water": 20}
		o.Prices = map[string]float64{"soda": 0.1, "coke": 0.1, "pepsi": 0.1, "water": 0.05}
		o.PayoutAddress = os.Getenv("SELLER_ADDRESS")
		o.TextModel = text
		o.Logger = logger
	})
}

func waitSettled(ctx context.Context, e *engine.Engine, r *agent.Requester) bool {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if r.Tracker().Len() == 0 && e.QueueLen() == 0 {
				return true
			}
		}
	}
}

// buildModel resolves the --model flag. API keys come from the providers'
// usual environment variables.
func buildModel(ctx context.Context, name string) (model.Model, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "anthropic":
		return anthropicmodel.NewModel(), nil
	case "openai":
		return openaimodel.NewModel(), nil
	case "gemini":
		return geminimodel.NewModel(ctx, func(o *geminimodel.Options) {
			o.APIKey = os.Getenv("GEMINI_API_KEY")
		})
	case "mock":
		return model.NewMock("mock", "local"), nil
	default:
		return nil, fmt.Errorf("unknown model %q", name)
	}
}
