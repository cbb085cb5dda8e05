package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/config"
	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/middleware"
	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/models"
	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/services"
)

type flags struct {
	rpcURL      string
	interval    time.Duration
	metricsAddr string
	once        bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		f   flags
		cfg *config.Config
	)

	root := &cobra.Command{
		Use:           "baseflip-bot",
		Short:         "Standalone resolution bots and claim scanner",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil {
				log.Debug("No .env file found, using environment variables")
			}
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			// flags win over the environment
			if cmd.Flags().Changed("rpc") {
				loaded.RPCURL = f.rpcURL
			}
			if cmd.Flags().Changed("interval") {
				loaded.BotInterval = f.interval
			}
			if cmd.Flags().Changed("metrics-addr") {
				loaded.MetricsAddr = f.metricsAddr
			}
			config.SetupLogging(loaded)
			cfg = loaded
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.rpcURL, "rpc", "", "JSON-RPC endpoint (overrides RPC_URL)")
	pf.DurationVar(&f.interval, "interval", 0, "poll interval (overrides BOT_INTERVAL)")
	pf.StringVar(&f.metricsAddr, "metrics-addr", "", "metrics listen address, empty disables (overrides METRICS_ADDR)")

	roundsCmd := &cobra.Command{
		Use:   "rounds",
		Short: "Declare winners for locked single-pool rounds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.RoundsContract == "" {
				return fmt.Errorf("ROUNDS_CONTRACT is required")
			}
			return runBot(cmd.Context(), cfg, f.once, func(chain *services.ChainClient) services.BotController {
				return services.NewRoundResolver(cfg, chain.Rounds(cfg.RoundsContract))
			})
		},
	}

	eliminationCmd := &cobra.Command{
		Use:   "elimination",
		Short: "Start full lobbies and resolve elimination rounds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.EliminationContract == "" {
				return fmt.Errorf("ELIMINATION_CONTRACT is required")
			}
			return runBot(cmd.Context(), cfg, f.once, func(chain *services.ChainClient) services.BotController {
				return services.NewEliminationResolver(cfg, chain.Elimination(cfg.EliminationContract))
			})
		},
	}

	for _, c := range []*cobra.Command{roundsCmd, eliminationCmd} {
		c.Flags().BoolVar(&f.once, "once", false, "run a single tick and exit")
	}

	scanCmd := &cobra.Command{
		Use:   "scan <address>",
		Short: "List unclaimed winnings for an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), cmd, cfg, args[0])
		},
	}

	var (
		subject string
		ttl     time.Duration
	)
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin bearer token for the bot control endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.AdminJWTSecret == "" {
				return fmt.Errorf("ADMIN_JWT_SECRET is required")
			}
			token, err := middleware.IssueAdminToken(cfg.AdminJWTSecret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	tokenCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	root.AddCommand(roundsCmd, eliminationCmd, scanCmd, tokenCmd)
	return root
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func runBot(parent context.Context, cfg *config.Config, once bool, build func(*services.ChainClient) services.BotController) error {
	if err := cfg.RequireChain(true); err != nil {
		return err
	}
	ctx, stop := signalContext(parent)
	defer stop()

	chain, err := services.DialChain(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer chain.Close()

	bot := build(chain)
	if once {
		return bot.Tick(ctx)
	}

	services.ServeMetrics(cfg.MetricsAddr)
	bot.Start(ctx)
	<-ctx.Done()
	bot.Stop()

	status := bot.Status()
	log.WithFields(log.Fields{
		"bot":         status.Name,
		"ticks":       status.Ticks,
		"submissions": status.Submissions,
		"failures":    status.Failures,
	}).Info("Bot exiting")
	return nil
}

func runScan(parent context.Context, cmd *cobra.Command, cfg *config.Config, address string) error {
	if err := cfg.RequireChain(false); err != nil {
		return err
	}
	ctx, stop := signalContext(parent)
	defer stop()

	chain, err := services.DialChain(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer chain.Close()

	var (
		rounds services.RoundStakeReader
		games  services.GamePlayerReader
	)
	if cfg.RoundsContract != "" {
		rounds = chain.Rounds(cfg.RoundsContract)
	}
	if cfg.EliminationContract != "" {
		games = chain.Elimination(cfg.EliminationContract)
	}
	scanner := services.NewClaimScanner(cfg, rounds, games, chain.Events(cfg.RoundsContract, cfg.EliminationContract))

	claims, err := scanner.Scan(ctx, address)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(claims) == 0 {
		fmt.Fprintln(out, "nothing to claim")
		return nil
	}
	for _, claim := range claims {
		fmt.Fprintf(out, "%-12s %6d  %s ETH\n", claim.GameType, claim.ID, models.FormatEther(claim.Amount))
	}
	return nil
}
