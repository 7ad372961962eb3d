package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nourselim0/http-process-wrapper/internal/core/repository"
	"github.com/nourselim0/http-process-wrapper/internal/core/service"
	"github.com/nourselim0/http-process-wrapper/internal/infrastructure/sqlite"
	"github.com/nourselim0/http-process-wrapper/internal/supervisor"
	"github.com/nourselim0/http-process-wrapper/pkg/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "procwrap",
	Short: "procwrap - HTTP-supervised command-line processes",
	Long: `procwrap supervises command-line processes and exposes their lifecycle
and I/O over a REST API.

It provides:
- Start, stop and restart of registered processes
- Bounded capture of stdout/stderr with resumable polling by sequence
- Live output streaming to any number of subscribers
- Forwarding of input to process stdin
- A persisted lifecycle audit trail
- OAuth2 / API key authentication`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		// Load configuration
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/procwrap/config.yml)")
}

func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

// initServices initializes all services
func initServices(ctx context.Context) (*Services, error) {
	// Initialize database
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	log := newLogger()

	// Initialize repositories
	userRepo := sqlite.NewUserRepository(db)
	clientRepo := sqlite.NewClientRepository(db)
	authCodeRepo := sqlite.NewAuthCodeRepository(db)
	eventRepo := sqlite.NewEventRepository(db)

	// Initialize services
	authService := service.NewAuthService(userRepo, clientRepo, authCodeRepo, cfg.JWTSecretKey, cfg.JWTAlgorithm)
	eventRecorder := service.NewEventRecorder(eventRepo, log)
	sup := supervisor.New(cfg, eventRecorder, log)

	return &Services{
		DB:            db,
		Log:           log,
		UserRepo:      userRepo,
		ClientRepo:    clientRepo,
		AuthService:   authService,
		EventRecorder: eventRecorder,
		Supervisor:    sup,
	}, nil
}

// Services holds all initialized services
type Services struct {
	DB            *sqlite.DB
	Log           zerolog.Logger
	UserRepo      repository.UserRepository
	ClientRepo    repository.ClientRepository
	AuthService   *service.AuthService
	EventRecorder *service.EventRecorder
	Supervisor    *supervisor.Supervisor
}

// Close closes all resources
func (s *Services) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
}
