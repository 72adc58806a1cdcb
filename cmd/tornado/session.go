package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/g3/tornado/internal/adapters/server/common"
	"github.com/g3/tornado/internal/adapters/storage/postgres"
	"github.com/g3/tornado/internal/adapters/storage/sqlite"
	"github.com/g3/tornado/internal/app"
	"github.com/g3/tornado/internal/config"
	"github.com/g3/tornado/internal/domain"
	"github.com/g3/tornado/internal/platform"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// defaultUserID is the CLI identity when neither config nor --as names one.
const defaultUserID = "local"

// store is the repository plus the lifecycle hooks the CLI needs.
type store interface {
	app.Repository
	Ping(context.Context) error
	Close() error
}

// session holds everything one command invocation opened.
type session struct {
	flags   *rootFlags
	paths   platform.Paths
	cfg     config.Config
	logger  *runtimeLogger
	repo    store
	svc     *app.Service
	tracker *common.AppServiceAdapter
	actor   domain.ActorContext
	closers []func() error
}

// openSession resolves paths and config, starts logging, and opens storage.
func openSession(cmd *cobra.Command, flags *rootFlags) (*session, error) {
	paths, err := resolvePaths(flags)
	if err != nil {
		return nil, err
	}
	configPath := paths.ConfigPath
	if strings.TrimSpace(flags.configPath) != "" {
		configPath = flags.configPath
	}
	cfg, err := config.Resolve(configPath, flags.envFile, config.Default(paths.DBPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if strings.TrimSpace(flags.dbPath) != "" {
		cfg.Database.Driver = config.DriverSQLite
		cfg.Database.Path = flags.dbPath
	}

	logger, err := newRuntimeLogger(cmd.ErrOrStderr(), appNameOf(flags), cfg.Logging, paths.LogPath)
	if err != nil {
		return nil, err
	}
	s := &session{
		flags:   flags,
		paths:   paths,
		cfg:     cfg,
		logger:  logger,
		closers: []func() error{logger.Close},
	}
	logger.Debug("command flow start", "command", cmd.CommandPath(), "config", configPath, "driver", cfg.Database.Driver)

	repo, err := openStore(cfg.Database)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.repo = repo
	s.closers = append(s.closers, repo.Close)
	return s, nil
}

// openStore opens the configured storage driver.
func openStore(cfg config.DatabaseConfig) (store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", config.DriverSQLite:
		repo, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %q: %w", cfg.Path, err)
		}
		return repo, nil
	case config.DriverPostgres:
		repo, err := postgres.Open(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// start builds the service with opts and wraps it in the transport adapter.
func (s *session) start(opts ...app.ServiceOption) {
	companies := s.cfg.CompanyIDs()
	known := make([]domain.CompanyID, 0, len(companies))
	for _, id := range companies {
		known = append(known, domain.CompanyID(id))
	}
	s.svc = app.NewService(s.repo, uuid.NewString, time.Now, app.ServiceConfig{
		DefaultCadenceDays: s.cfg.Tasks.DefaultCadenceDays,
		IssueThresholds: domain.IssueThresholds{
			CriticalOverdueDays:     s.cfg.Issues.CriticalOverdueDays,
			CloseRequestWarningDays: s.cfg.Issues.CloseRequestWarningDays,
			InactiveDays:            s.cfg.Issues.InactiveDays,
		},
		KnownCompanies:     known,
		ScreenshotURLTTL:   s.cfg.ScreenshotURLTTL(),
		MaxScreenshotBytes: s.cfg.Storage.MaxScreenshotBytes,
	}, opts...)
	s.tracker = common.NewAppServiceAdapter(s.svc)
}

// userID names the identity the CLI acts as.
func (s *session) userID() string {
	if id := strings.TrimSpace(s.flags.userID); id != "" {
		return id
	}
	if id := strings.TrimSpace(s.cfg.Identity.UserID); id != "" {
		return id
	}
	return defaultUserID
}

// actAs provisions the CLI identity and returns ctx carrying its actor. The
// first user of an empty database becomes an admin.
func (s *session) actAs(ctx context.Context) (context.Context, error) {
	if s.svc == nil {
		s.start()
	}
	userID := s.userID()
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	in := domain.UserInput{ID: userID}
	if len(users) == 0 {
		in.Role = domain.RoleAdmin
		s.logger.Info("provisioning first user as admin", "user_id", userID)
	}
	if _, err := s.svc.ProvisionUser(ctx, in); err != nil {
		return nil, fmt.Errorf("provision %q: %w", userID, err)
	}
	actor, err := s.svc.ResolveActor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve actor %q: %w", userID, err)
	}
	s.actor = actor
	return common.WithActor(ctx, actor), nil
}

// Close releases everything the session opened, newest first.
func (s *session) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// withActor opens a session, acts as the CLI identity, and runs fn.
func withActor(cmd *cobra.Command, flags *rootFlags, fn func(ctx context.Context, s *session) error) error {
	s, err := openSession(cmd, flags)
	if err != nil {
		return err
	}
	defer func() {
		_ = s.Close()
	}()
	s.start()
	ctx, err := s.actAs(cmd.Context())
	if err != nil {
		return err
	}
	if err := fn(ctx, s); err != nil {
		s.logger.Error("command flow failed", "command", cmd.CommandPath(), "err", err)
		return err
	}
	s.logger.Debug("command flow complete", "command", cmd.CommandPath())
	return nil
}
