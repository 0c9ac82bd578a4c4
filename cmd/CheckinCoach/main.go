package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/HabitLoop/CheckinCoach/internal/api"
	"github.com/HabitLoop/CheckinCoach/internal/checkin"
	"github.com/HabitLoop/CheckinCoach/internal/coach"
	"github.com/HabitLoop/CheckinCoach/internal/genai"
	"github.com/HabitLoop/CheckinCoach/internal/messaging"
	"github.com/HabitLoop/CheckinCoach/internal/store"
	"github.com/HabitLoop/CheckinCoach/internal/twiliowhatsapp"
	"github.com/HabitLoop/CheckinCoach/internal/util"
	"github.com/HabitLoop/CheckinCoach/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for CheckinCoach state data
	DefaultStateDir = "/var/lib/checkincoach"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "checkincoach.db"
	// BackendTwilio selects the webhook-driven Twilio transport
	BackendTwilio = "twilio"
	// BackendWhatsApp selects the direct whatsmeow session transport
	BackendWhatsApp = "whatsapp"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	ai, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		slog.Error("Failed to initialize GenAI client", "error", err)
		os.Exit(1)
	}

	msgService, err := buildMessagingService(flags)
	if err != nil {
		slog.Error("Failed to initialize messaging service", "error", err)
		os.Exit(1)
	}

	srv := api.NewServer(st, msgService, checkin.NewExtractor(ai), coach.NewGenerator(ai), buildAPIOptions(flags)...)

	slog.Info("Bootstrapping CheckinCoach with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "",
		"api_addr", *flags.apiAddr, "backend", *flags.backend, "reminders", *flags.reminders)
	if err := srv.Run(context.Background()); err != nil {
		slog.Error("CheckinCoach failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("CheckinCoach exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	StateDir    string
	OpenAIKey   string
	APIAddr     string
	Backend     string
	Reminders   bool
}

// Flags holds command line flag values
type Flags struct {
	qrOutput  *string
	numeric   *bool
	stateDir  *string
	dbDSN     *string
	openaiKey *string
	apiAddr   *string
	backend   *string
	reminders *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("COACH_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		APIAddr:     os.Getenv("API_ADDR"),
		Backend:     util.GetEnvDefault("MESSAGING_BACKEND", BackendTwilio),
		Reminders:   util.ParseBoolEnv("REMINDERS_ENABLED", true),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No COACH_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"COACH_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"MESSAGING_BACKEND", config.Backend,
		"REMINDERS_ENABLED", config.Reminders)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:  flag.String("qr-output", "", "path to write WhatsApp login QR code (whatsapp backend)"),
		numeric:   flag.Bool("numeric-code", false, "use numeric login code instead of QR code (whatsapp backend)"),
		stateDir:  flag.String("state-dir", config.StateDir, "state directory for CheckinCoach data (overrides $COACH_STATE_DIR)"),
		dbDSN:     flag.String("db-dsn", config.DatabaseURL, "database DSN for the store (overrides $DATABASE_URL)"),
		openaiKey: flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:   flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		backend:   flag.String("messaging-backend", config.Backend, "messaging backend, twilio or whatsapp (overrides $MESSAGING_BACKEND)"),
		reminders: flag.Bool("reminders", config.Reminders, "enable the reminder sweep endpoint (overrides $REMINDERS_ENABLED)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"backend", *flags.backend,
		"reminders", *flags.reminders)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildStore constructs the store backend by DSN detection.
func buildStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildMessagingService constructs the messaging transport selected by the
// backend flag: Twilio (webhook-driven, default) or a direct whatsmeow
// session feeding the same pipeline.
func buildMessagingService(flags Flags) (messaging.Service, error) {
	switch *flags.backend {
	case BackendWhatsApp:
		waOpts := buildWhatsAppOptions(flags)
		waClient, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, err
		}
		return messaging.NewWhatsAppService(waClient), nil
	default:
		twClient, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, err
		}
		return messaging.NewTwilioService(twClient), nil
	}
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	// The whatsmeow session lives beside the store database.
	waOpts = append(waOpts, whatsapp.WithDBDSN(filepath.Join(*flags.stateDir, "whatsmeow.db")))
	return waOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	apiOpts = append(apiOpts, api.WithRemindersEnabled(*flags.reminders))
	return apiOpts
}
