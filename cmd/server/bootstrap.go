package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/fratpos/internal/api"
	"github.com/charlesng35/fratpos/internal/app"
	"github.com/charlesng35/fratpos/internal/app/maintenance"
	iauth "github.com/charlesng35/fratpos/internal/auth"
	"github.com/charlesng35/fratpos/internal/database"
	"github.com/charlesng35/fratpos/internal/monitoring"
	"github.com/charlesng35/fratpos/internal/realtime"
	"github.com/charlesng35/fratpos/internal/repository"
	"github.com/charlesng35/fratpos/internal/seeding"
	"github.com/charlesng35/fratpos/internal/services"
	"github.com/charlesng35/fratpos/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Hub       *realtime.Hub
	Services  *api.Services
	Scheduler *maintenance.Scheduler
	Router    *gin.Engine
}

// bootstrapRuntime opens the database, seeds reference data and builds the HTTP router.
// Seeding completes before the router exists, so no request can observe a partially
// seeded store.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = prepareStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.TokenConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Hub = realtime.NewHub(realtime.WithAllowedOrigins(cfg.Realtime.AllowedOrigins...))

	stack.Services, err = api.NewServices(stack.DB, jwtSvc, cfg, stack.Hub)
	if err != nil {
		return nil, fmt.Errorf("initialise services: %w", err)
	}

	if err := ensureAdmin(ctx, stack.Services.Users, cfg, log); err != nil {
		return nil, err
	}

	if cfg.Maintenance.Enabled {
		stack.Scheduler = maintenance.NewScheduler(stack.Services.Assignments, stack.Services.Audit,
			maintenance.WithObligationSchedule(cfg.Maintenance.ObligationSchedule),
			maintenance.WithAuditSchedule(cfg.Maintenance.AuditSchedule),
			maintenance.WithAuditRetentionDays(cfg.Maintenance.AuditRetentionDays),
		)
		if err := stack.Scheduler.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	health := api.DefaultHealth(stack.DB, stack.Hub)
	if stack.Scheduler != nil {
		health.AddReadiness(monitoring.JobsProbe(stack.Scheduler, 0, nil))
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:       stack.DB,
		JWT:      jwtSvc,
		Config:   cfg,
		Services: stack.Services,
		Hub:      stack.Hub,
		Health:   health,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Hub != nil {
		s.Hub.Close()
	}

	if s.Scheduler != nil {
		select {
		case <-s.Scheduler.Stop().Done():
		case <-ctx.Done():
			log.Warn("maintenance jobs still running at shutdown", zap.Error(ctx.Err()))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

// prepareStore opens and migrates the database and seeds reference data. The
// returned handle is closed again when seeding fails.
func prepareStore(ctx context.Context, cfg *app.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := seedReferenceData(ctx, db, cfg, log); err != nil {
		closeDatabase(db, log)
		return nil, err
	}
	return db, nil
}

// seedReferenceData provisions the permission catalog and the default roles.
// Any persistence failure aborts startup.
func seedReferenceData(ctx context.Context, db *gorm.DB, cfg *app.Config, log *zap.Logger) error {
	role := strings.TrimSpace(cfg.POS.Role)

	opts := []seeding.Option{seeding.WithLogger(logger.WithModule("seeding"))}
	if cfg.Seed.BackfillPermissions {
		opts = append(opts, seeding.WithPermissionBackfill())
	}

	seeder := seeding.New(repository.NewPermissionRepository(db), repository.NewRoleRepository(db), opts...)
	if err := seeder.Seed(ctx, role); err != nil {
		return fmt.Errorf("seed reference data: %w", err)
	}

	// Recorded after seeding so that a failed run leaves the previous role in place.
	previous, err := database.RecordOperationalRole(ctx, db, role)
	if err != nil {
		return fmt.Errorf("record operational role: %w", err)
	}
	if previous != "" && previous != role {
		log.Warn("operational role changed; the previous role is left untouched",
			zap.String("previous", previous),
			zap.String("current", role),
		)
	}
	return nil
}

// ensureAdmin creates the configured administrator when it does not exist yet.
func ensureAdmin(ctx context.Context, users *services.UserService, cfg *app.Config, log *zap.Logger) error {
	if !cfg.Admin.Enabled() {
		return nil
	}

	created, err := users.EnsureAdmin(ctx, adminInput(cfg), seeding.RolesRole, cfg.POS.Role)
	if err != nil {
		return fmt.Errorf("ensure admin user: %w", err)
	}
	if created {
		log.Info("administrator created", zap.String("email", strings.ToLower(strings.TrimSpace(cfg.Admin.Email))))
	}
	return nil
}

func adminInput(cfg *app.Config) services.AdminInput {
	return services.AdminInput{
		Email:     cfg.Admin.Email,
		Password:  cfg.Admin.Password,
		FirstName: cfg.Admin.FirstName,
		LastName:  cfg.Admin.LastName,
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		closeDatabase(db, logger.WithModule("database"))
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver:          strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:            strings.TrimSpace(cfg.Database.Path),
		DSN:             strings.TrimSpace(cfg.Database.DSN),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		SlowQuery:       cfg.Database.SlowQuery,
	}

	var remote *app.DBAuthConfig
	switch dbCfg.Driver {
	case "", "sqlite", "sqlite3":
		dbCfg.Driver = database.DriverSQLite
	case "postgres", "postgresql":
		dbCfg.Driver = database.DriverPostgres
		remote = &cfg.Database.Postgres
	case "mysql", "mariadb":
		dbCfg.Driver = database.DriverMySQL
		remote = &cfg.Database.MySQL
	}

	if remote != nil {
		dbCfg.Host = strings.TrimSpace(remote.Host)
		dbCfg.Port = remote.Port
		dbCfg.Name = strings.TrimSpace(remote.Database)
		dbCfg.User = strings.TrimSpace(remote.Username)
		dbCfg.Password = remote.Password
		dbCfg.Options = remote.Options
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	if err := database.Close(db); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
