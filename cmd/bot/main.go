package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"dicebot/internal/analytics"
	"dicebot/internal/bcdice"
	"dicebot/internal/bot"
	"dicebot/internal/config"
	"dicebot/internal/misskey"
	"dicebot/internal/prefs"
	"dicebot/internal/scheduler"
	"dicebot/internal/storage"
)

func main() {
	// .env is optional; real deployments set the environment directly
	envErr := godotenv.Load(".env")

	root := newRootCmd()
	root.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		if envErr != nil && !os.IsNotExist(envErr) {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: .env not loaded: %v\n", envErr)
		}
	}
	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "dicebot",
		Short:        "Misskey bot that rolls dice through a BCDice API server",
		SilenceUsage: true,
		RunE:         runBot,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Listen to the Misskey stream and answer mentions",
			Args:  cobra.NoArgs,
			RunE:  runBot,
		},
		&cobra.Command{
			Use:   "systems",
			Short: "Print the game systems offered by the dice engine",
			Args:  cobra.NoArgs,
			RunE:  runSystems,
		},
		newRollCmd(),
	)
	return root
}

func newRollCmd() *cobra.Command {
	var system string
	cmd := &cobra.Command{
		Use:   "roll COMMAND...",
		Short: "Roll once with the dice engine and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewEngine()
			if err != nil {
				return err
			}
			log := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			client := bcdice.New(cfg.BCDiceAPIURL, cfg.HTTPTimeout)
			res, err := client.Roll(cmd.Context(), strings.Join(args, " "), system)
			if err != nil {
				log.Error().Err(err).Msg("dice engine request failed")
				return err
			}
			if !res.OK {
				return fmt.Errorf("engine rejected command: %s", res.Reason)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			return nil
		},
	}
	cmd.Flags().StringVarP(&system, "system", "s", prefs.DefaultSystem, "game system id")
	return cmd
}

func runSystems(cmd *cobra.Command, _ []string) error {
	cfg, err := config.NewEngine()
	if err != nil {
		return err
	}
	log := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	client := bcdice.New(cfg.BCDiceAPIURL, cfg.HTTPTimeout)
	systems, err := client.ListSystems(cmd.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch system list")
		return err
	}
	for _, s := range systems {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", s.ID, s.Name)
	}
	return nil
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	log := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := newPrefsRepository(cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to init preference store")
		return err
	}
	defer closeRepo()

	prefsSvc := prefs.NewService(repo)
	if err := prefsSvc.Load(ctx); err != nil {
		log.Error().Err(err).Msg("failed to load user systems")
		return err
	}
	log.Info().Int("users", len(prefsSvc.Snapshot())).Str("backend", string(cfg.StoreBackend)).Msg("user systems loaded")

	var rec storage.Recorder
	if cfg.RollLogPath != "" {
		fr, err := storage.NewDailyFileLog(cfg.RollLogPath)
		if err != nil {
			log.Warn().Err(err).Msg("failed to init roll log, continuing without it")
		} else {
			rec = fr
		}
	}

	var visibility []misskey.Option
	if cfg.NoteVisibility != "" {
		visibility = append(visibility, misskey.WithVisibility(cfg.NoteVisibility))
	}
	api := misskey.NewClient(cfg.MisskeyAPIURL, cfg.MisskeyToken, cfg.HTTPTimeout, visibility...)
	dice := bcdice.New(cfg.BCDiceAPIURL, cfg.HTTPTimeout)

	b := bot.New(cfg.BotUserID, api, dice, prefsSvc,
		bot.WithRecorder(rec),
		bot.WithLogger(log.With().Str("component", "bot").Logger()),
	)

	if sched := newReportScheduler(cfg, rec, api, log); sched != nil {
		defer sched.Stop()
	}

	stream := misskey.NewStream(cfg.MisskeyAPIURL, cfg.MisskeyToken, cfg.StreamChannel,
		misskey.WithMaxInflight(cfg.MaxInflight),
		misskey.WithLogger(log.With().Str("component", "stream").Logger()),
	)
	log.Info().Str("host", cfg.MisskeyAPIURL).Str("bot_id", cfg.BotUserID).Msg("✅ dicebot starting")
	if err := stream.Listen(ctx, b.HandleNote); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("stream stopped")
		return err
	}
	log.Info().Msg("dicebot stopped")
	return nil
}

func newPrefsRepository(cfg *config.Config) (prefs.Repository, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return prefs.NewRedisRepository(rdb, cfg.RedisKey), func() { _ = rdb.Close() }, nil
	default:
		repo, err := prefs.NewFileRepository(cfg.SystemsFilePath)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {}, nil
	}
}

func newReportScheduler(cfg *config.Config, rec storage.Recorder, api *misskey.Client, log zerolog.Logger) *scheduler.Scheduler {
	if rec == nil || cfg.ReportCron == "" {
		return nil
	}
	var poster analytics.Poster
	if cfg.ReportNote {
		poster = api
	}
	rlog := log.With().Str("component", "scheduler").Logger()
	reporter := analytics.NewReporter(rec, poster, rlog)
	sched := scheduler.New(cfg.ReportCron, rlog)
	sched.SetReportFunction(reporter.Run)
	if err := sched.Start(); err != nil {
		log.Warn().Err(err).Msg("daily report disabled")
		return nil
	}
	return sched
}
