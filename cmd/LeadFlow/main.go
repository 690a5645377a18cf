package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/CasaLindaMX/LeadFlow/internal/advisor"
	"github.com/CasaLindaMX/LeadFlow/internal/api"
	"github.com/CasaLindaMX/LeadFlow/internal/audit"
	"github.com/CasaLindaMX/LeadFlow/internal/creditflow"
	"github.com/CasaLindaMX/LeadFlow/internal/dispatch"
	"github.com/CasaLindaMX/LeadFlow/internal/genai"
	"github.com/CasaLindaMX/LeadFlow/internal/lockfile"
	"github.com/CasaLindaMX/LeadFlow/internal/messaging"
	"github.com/CasaLindaMX/LeadFlow/internal/recovery"
	"github.com/CasaLindaMX/LeadFlow/internal/scheduler"
	"github.com/CasaLindaMX/LeadFlow/internal/session"
	"github.com/CasaLindaMX/LeadFlow/internal/store"
	"github.com/CasaLindaMX/LeadFlow/internal/twiliowhatsapp"
	"github.com/CasaLindaMX/LeadFlow/internal/whatsapp"
	"github.com/joho/godotenv"
)

const (
	// DefaultStateDir holds the lockfile and file-based databases.
	DefaultStateDir = "/var/lib/leadflow"
	// DefaultDBFileName is the SQLite database filename inside the
	// state directory.
	DefaultDBFileName = "leadflow.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(config, flags); err != nil {
		slog.Error("LeadFlow failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("LeadFlow exited successfully")
}

// Config holds environment configuration.
type Config struct {
	DatabaseURL  string
	WhatsAppDSN  string
	StateDir     string
	OpenAIKey    string
	APIAddr      string
	OpsPhone     string
	ReminderCron string
	TwilioSID    string
	TwilioToken  string
	TwilioFrom   string
}

// Flags holds command line flag values.
type Flags struct {
	qrOutput     *string
	numeric      *bool
	stateDir     *string
	dbDSN        *string
	apiAddr      *string
	opsPhone     *string
	reminderCron *string
}

func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from the environment and an
// optional .env file.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	config := Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		WhatsAppDSN:  os.Getenv("WHATSAPP_DB_DSN"),
		StateDir:     os.Getenv("LEADFLOW_STATE_DIR"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		APIAddr:      os.Getenv("API_ADDR"),
		OpsPhone:     os.Getenv("OPS_PHONE"),
		ReminderCron: os.Getenv("REMINDER_CRON"),
		TwilioSID:    os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:   os.Getenv("TWILIO_FROM_NUMBER"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "path", config.DatabaseURL)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, "whatsmeow.db")
	}
	if config.ReminderCron == "" {
		config.ReminderCron = scheduler.DefaultReminderCron
	}

	slog.Debug("environment loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"LEADFLOW_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"TWILIO_SET", config.TwilioSID != "")

	return config
}

func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:     flag.String("qr-output", "", "path to write the WhatsApp login QR code"),
		numeric:      flag.Bool("numeric-code", false, "use a numeric WhatsApp pairing code instead of a QR"),
		stateDir:     flag.String("state-dir", config.StateDir, "state directory (overrides $LEADFLOW_STATE_DIR)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseURL, "database DSN (overrides $DATABASE_URL)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		opsPhone:     flag.String("ops-phone", config.OpsPhone, "operations phone for critical alerts (overrides $OPS_PHONE)"),
		reminderCron: flag.String("reminder-cron", config.ReminderCron, "cron expression for the appointment reminder sweep (overrides $REMINDER_CRON)"),
	}
	flag.Parse()
	return flags
}

func run(config Config, flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := store.NewStore(*flags.dbDSN)
	if err != nil {
		return err
	}

	svc, err := buildMessagingService(config, flags)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	var gen genai.Generator
	if config.OpenAIKey != "" {
		client, err := genai.NewClient()
		if err != nil {
			slog.Error("GenAI client init failed, continuing without AI fallback", "error", err)
		} else {
			gen = client
		}
	} else {
		slog.Info("No OPENAI_API_KEY set, AI fallback disabled")
	}

	sessions := session.NewManager(st)
	sink := audit.NewSlogSink()
	escalator := advisor.NewEscalator(st, svc, sink, *flags.opsPhone)
	engine := creditflow.NewEngine(st, sessions, escalator, sink)
	resolver := dispatch.NewResolver(sessions)
	router := messaging.NewRouter(svc, st, sessions, resolver, engine, gen)

	resumed, abandoned := recovery.NewManager(st, engine).Run(ctx)
	slog.Info("Startup recovery done", "resumed", resumed, "abandoned", abandoned)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	reminders := scheduler.NewReminderJob(st, svc)
	if err := sched.AddJob(*flags.reminderCron, func() { reminders.Run(ctx) }); err != nil {
		slog.Error("Failed to schedule reminder sweep", "error", err, "cron", *flags.reminderCron)
	}

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(st, svc, router, engine, apiOpts...)
	if err := server.Start(ctx); err != nil {
		return err
	}
	defer server.Stop()

	router.Run(ctx)
	return nil
}

// buildMessagingService prefers Twilio when its credentials are set and
// falls back to a paired WhatsApp device otherwise.
func buildMessagingService(config Config, flags Flags) (messaging.Service, error) {
	if config.TwilioSID != "" && config.TwilioToken != "" {
		slog.Info("Using Twilio WhatsApp transport")
		client, err := twiliowhatsapp.NewClient(
			twiliowhatsapp.WithAccountSID(config.TwilioSID),
			twiliowhatsapp.WithAuthToken(config.TwilioToken),
			twiliowhatsapp.WithFromWhats(config.TwilioFrom),
		)
		if err != nil {
			return nil, err
		}
		return messaging.NewTwilioService(client), nil
	}

	slog.Info("Using whatsmeow WhatsApp transport")
	waOpts := []whatsapp.Option{whatsapp.WithDBDSN(config.WhatsAppDSN)}
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	client, err := whatsapp.NewClient(waOpts...)
	if err != nil {
		return nil, err
	}
	return messaging.NewWhatsAppService(client), nil
}
