package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/org/barrel/internal/api"
	"github.com/org/barrel/internal/audit"
	"github.com/org/barrel/internal/auth"
	"github.com/org/barrel/internal/authz"
	"github.com/org/barrel/internal/directory"
	"github.com/org/barrel/internal/keys"
	"github.com/org/barrel/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type jwtConfig struct {
	Issuer            string `yaml:"issuer"`
	ExpirationMinutes int    `yaml:"expiration_minutes"`
	RenewalMinutes    int    `yaml:"renewal_expiration_minutes"`
	RenewalAttribute  string `yaml:"renewal_attribute"`
	Prefix            string `yaml:"prefix"`
	PrivateKeyFile    string `yaml:"private_key"`
	PublicKeyFile     string `yaml:"public_key"`
}

type ldapConfig struct {
	Addr                string `yaml:"addr"`
	BindDN              string `yaml:"bind_dn"`
	BindPassword        string `yaml:"bind_password"`
	UserSearchBase      string `yaml:"user_search_base"`
	UserAttr            string `yaml:"user_attr"`
	GroupSearchBase     string `yaml:"group_search_base"`
	GroupMemberAttr     string `yaml:"group_member_attr"`
	GroupRoleAttr       string `yaml:"group_role_attr"`
	RegisterSearchBase  string `yaml:"register_search_base"`
	RegisterObjectClass string `yaml:"register_object_class"`
}

type config struct {
	ListenAddr    string `yaml:"listen_addr"`
	TLSCertFile   string `yaml:"tls_cert"`
	TLSKeyFile    string `yaml:"tls_key"`
	DBUrl         string `yaml:"db_url"`
	MigrationsDir string `yaml:"migrations_dir"`
	LogLevel      string `yaml:"log_level"`
	LoginPath     string `yaml:"login_path"`
	Realm         string `yaml:"realm"`

	LDAP  ldapConfig    `yaml:"ldap"`
	JWT   jwtConfig     `yaml:"jwt"`
	Roles authz.RoleMap `yaml:"roles"`
}

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load config
	cfgFile := "config.yaml"
	if v := os.Getenv("BARREL_CONFIG"); v != "" {
		cfgFile = v
	}

	cfg := config{
		ListenAddr:    ":8400",
		MigrationsDir: "migrations",
		LogLevel:      "info",
		LoginPath:     "/selfservice/login",
		Realm:         "Barrel",
		JWT: jwtConfig{
			Issuer:            "Barrel",
			ExpirationMinutes: 10,
			RenewalMinutes:    60 * 24 * 7,
			RenewalAttribute:  "ren",
			Prefix:            "Bearer",
		},
		Roles: authz.DefaultRoleMap(),
	}

	if data, err := os.ReadFile(cfgFile); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatal().Err(err).Msg("failed to parse config")
		}
	} else {
		log.Warn().Str("file", cfgFile).Msg("config file not found, using defaults")
	}

	// Env overrides
	if v := os.Getenv("BARREL_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DBUrl = v
	}
	if v := os.Getenv("BARREL_LDAP_ADDR"); v != "" {
		cfg.LDAP.Addr = v
	}
	if v := os.Getenv("BARREL_LDAP_BIND_PASSWORD"); v != "" {
		cfg.LDAP.BindPassword = v
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.DBUrl == "" {
		log.Fatal().Msg("db_url must be configured (or DATABASE_URL env var)")
	}
	if cfg.LDAP.Addr == "" {
		log.Fatal().Msg("ldap.addr must be configured (or BARREL_LDAP_ADDR env var)")
	}
	if cfg.JWT.PrivateKeyFile == "" || cfg.JWT.PublicKeyFile == "" {
		log.Fatal().Msg("jwt.private_key and jwt.public_key must be configured")
	}

	ctx := context.Background()

	// Connect to database
	store, err := storage.NewPostgresBackend(ctx, cfg.DBUrl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer store.Close()

	// Run migrations
	if err := storage.RunMigrations(cfg.DBUrl, cfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Msg("migrations applied")

	// Signing keys, reloaded from disk when the files change
	keyProvider, err := keys.NewProvider(cfg.JWT.PrivateKeyFile, cfg.JWT.PublicKeyFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load signing keys")
	}

	// Directory client
	dir := directory.New(directory.Config{
		Addr:                cfg.LDAP.Addr,
		BindDN:              cfg.LDAP.BindDN,
		BindPassword:        cfg.LDAP.BindPassword,
		UserSearchBase:      cfg.LDAP.UserSearchBase,
		UserAttr:            cfg.LDAP.UserAttr,
		GroupSearchBase:     cfg.LDAP.GroupSearchBase,
		GroupMemberAttr:     cfg.LDAP.GroupMemberAttr,
		GroupRoleAttr:       cfg.LDAP.GroupRoleAttr,
		RegisterSearchBase:  cfg.LDAP.RegisterSearchBase,
		RegisterObjectClass: cfg.LDAP.RegisterObjectClass,
	})
	defer dir.Close()

	tokens := auth.NewTokenService(auth.Config{
		Issuer:       cfg.JWT.Issuer,
		AccessTTL:    time.Duration(cfg.JWT.ExpirationMinutes) * time.Minute,
		RenewalTTL:   time.Duration(cfg.JWT.RenewalMinutes) * time.Minute,
		RenewalClaim: cfg.JWT.RenewalAttribute,
		Prefix:       cfg.JWT.Prefix,
	}, keyProvider, dir)

	auditor := audit.NewLogger(store)

	// Create server
	srv := api.NewServer(store, dir, tokens, cfg.Roles, auditor, api.Config{
		ListenAddr:  cfg.ListenAddr,
		TLSCertFile: cfg.TLSCertFile,
		TLSKeyFile:  cfg.TLSKeyFile,
		LoginPath:   cfg.LoginPath,
		Realm:       cfg.Realm,
	})

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	log.Info().Str("addr", cfg.ListenAddr).Msg("server started")
	<-quit

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("server stopped")
}
