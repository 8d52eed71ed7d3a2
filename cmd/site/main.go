package main

import (
	"context"
	stdlog "log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/equitraccion/site/pkg/api"
	"github.com/equitraccion/site/pkg/audit"
	"github.com/equitraccion/site/pkg/cli"
	"github.com/equitraccion/site/pkg/config"
	"github.com/equitraccion/site/pkg/mail"
	"github.com/equitraccion/site/pkg/newsletter"
	"github.com/equitraccion/site/pkg/ratelimit"
	"github.com/equitraccion/site/pkg/session"
	"github.com/equitraccion/site/pkg/store"
	"github.com/equitraccion/site/pkg/validation"
	"github.com/equitraccion/site/pkg/version"
)

func main() {
	cliConfig := cli.Parse()

	zl := setupLogger(cliConfig.Debug)
	defer func() { _ = zl.Sync() }()
	log := zl.Sugar()
	log.With("version", version.Version).Info("Starting site server")
	cliConfig.Print(log)

	cfg, err := loadConfig(cliConfig)
	if err != nil {
		log.Fatalf("Error loading site configuration: %v", err)
	}
	warnInsecureDefaults(log, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, zl, cfg, cliConfig); err != nil {
		log.Fatalf("Site server stopped with error: %v", err)
	}
	log.Info("Site server stopped")
}

// loadConfig reads .env, the config file and the environment, then applies
// command line overrides.
func loadConfig(cliConfig *cli.Config) (config.Config, error) {
	if err := config.LoadDotEnv(cliConfig.EnvFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(cliConfig.ConfigPath)
	if err != nil {
		return cfg, err
	}
	if cliConfig.ListenAddress != "" {
		cfg.Server.ListenAddress = cliConfig.ListenAddress
	}
	if cliConfig.DisableEmail {
		cfg.Mail.Disabled = true
	}
	return cfg, cfg.Validate()
}

func warnInsecureDefaults(log *zap.SugaredLogger, cfg config.Config) {
	if cfg.UsesInsecureSecret() {
		log.Warn("JWT_SECRET is not set; sessions are signed with the built-in development secret")
	}
	if cfg.UsesInsecureCronToken() {
		log.Warn("NEWSLETTER_CRON_TOKEN is not set; the newsletter trigger accepts the built-in development token")
	}
	if cfg.Admin.Email == "" || cfg.Admin.Password == "" {
		log.Warn("No administrator account configured; the back office login is disabled")
	}
}

func run(ctx context.Context, zl *zap.Logger, cfg config.Config, cliConfig *cli.Config) error {
	log := zl.Sugar()

	db, err := store.Open(store.Options{
		Driver:      cfg.Database.Driver,
		DSN:         cfg.Database.DSN,
		AutoMigrate: cfg.Database.AutoMigrate,
		Debug:       cliConfig.Debug,
	})
	if err != nil {
		return err
	}
	repo := store.New(db, log)
	defer func() {
		if err := repo.Close(); err != nil {
			log.Warnw("Failed to close database", "error", err)
		}
	}()

	auditor, err := audit.NewFromConfig(cfg.Audit, zl)
	if err != nil {
		return err
	}

	// background services below are drained in reverse order on the way out
	shutdownTimeout := cliConfig.ParseShutdownTimeout(log)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		auditor.Emit(closeCtx, &audit.Event{Type: audit.EventSystemShutdown, Actor: audit.Actor{User: "system"}})
		if err := auditor.Close(closeCtx); err != nil {
			log.Warnw("Failed to flush audit events", "error", err)
		}
	}()

	sweep, err := cfg.SweepInterval()
	if err != nil {
		return err
	}
	limits := ratelimit.NewStore(ratelimit.WithSweepInterval(sweep))
	limits.Start()
	defer limits.Stop()
	apiWindow, err := cfg.APIWindow()
	if err != nil {
		return err
	}

	var sender mail.Sender
	if cfg.Mail.Disabled {
		sender = mail.NewDisabledSender(log)
	} else {
		sender = mail.NewSender(cfg.Mail, log)
	}
	mailer := mail.NewService(mail.Site{
		Name:              cfg.Site.Name,
		BaseURL:           cfg.Site.BaseURL,
		NotificationEmail: cfg.Site.NotificationEmail,
	}, mail.NewQueue(sender, log, mail.QueueOptions{
		MaxAttempts:      cfg.Mail.RetryCount,
		InitialBackoffMs: cfg.Mail.RetryBackoffMs,
		MaxQueueSize:     cfg.Mail.QueueSize,
	}), log)
	mailer.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := mailer.Stop(stopCtx); err != nil {
			log.Warnw("Mail queue did not drain", "error", err)
		}
	}()

	interval, err := cfg.NewsletterInterval()
	if err != nil {
		return err
	}
	campaign := newsletter.NewCampaign(repo,
		newsletter.NewDispatcher(sender, cfg.Newsletter.Workers, interval, log),
		newsletter.CampaignConfig{SiteName: cfg.Site.Name, BaseURL: cfg.Site.BaseURL}, log)

	gate, err := api.NewSessionGateFromConfig(cfg, auditor, log)
	if err != nil {
		return err
	}
	admission := api.NewAdmission(ratelimit.NewPolicies(limits, cfg.RateLimit.APIMax, apiWindow), auditor, log)
	gate.WithAdmission(admission)
	creds := session.NewAuthenticator(session.Credentials{Email: cfg.Admin.Email, Password: cfg.Admin.Password}, log)
	v := validation.New()

	server := api.NewServer(zl, cfg, cliConfig.Debug, gate).WithHealthCheck(repo)
	err = server.RegisterAll([]api.APIController{
		api.NewAuthController(gate, creds, admission, v, auditor, log),
		api.NewNewsletterController(repo, mailer, campaign, cfg.Newsletter.CronToken, admission, v, auditor, log),
		api.NewContactController(repo, mailer, admission, v, auditor, log),
		api.NewAdminController(repo, v, auditor, log),
	})
	if err != nil {
		return err
	}
	err = server.RegisterRoot([]api.APIController{
		api.NewPagesController(gate, repo, cfg.Site.Name, log),
		api.NewSitemapController(repo, cfg.Site.BaseURL, log),
	})
	if err != nil {
		return err
	}

	auditor.Emit(ctx, &audit.Event{
		Type:    audit.EventSystemStartup,
		Actor:   audit.Actor{User: "system"},
		Details: map[string]interface{}{"version": version.Version, "environment": cfg.Environment},
	})

	return server.Listen(ctx, shutdownTimeout)
}

func setupLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	// Disable automatic stacktraces for non-fatal levels to avoid noisy traces in WARN/INFO logs
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		stdlog.Fatalf("failed to set up logger: %v", err)
	}
	return logger
}
