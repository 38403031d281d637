package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"janitor" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" default:"janitor" description:"Database password (required)" required:"true"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"newsloom" description:"Database name"`

	// Retention policy
	RetentionHours     int    `long:"retention-hours" env:"RETENTION_HOURS" default:"168" description:"Retention window in hours; news published before now minus this window expires"`
	RetentionMode      string `long:"retention-mode" env:"RETENTION_MODE" default:"preserve-published" choice:"preserve-published" choice:"unconditional" description:"Published-content policy: preserve-published keeps expired news with live published records, unconditional cascades through them"`
	GracePeriodMinutes int    `long:"grace-period-minutes" env:"GRACE_PERIOD_MINUTES" default:"15" description:"Files younger than this are never treated as orphan candidates"`
	Schedule           string `long:"schedule" env:"SCHEDULE" default:"0 4 * * *" description:"Cron expression for scheduled retention passes (empty disables scheduling)"`
	JobTimeoutMinutes  int    `long:"job-timeout-minutes" env:"JOB_TIMEOUT_MINUTES" default:"10" description:"Timeout for a single retention pass"`

	// Invocation
	RunOnce bool `long:"run-once" env:"RUN_ONCE" description:"Run a single retention pass and exit"`
	DryRun  bool `long:"dry-run" env:"DRY_RUN" description:"Resolve and report the deletion plan without executing it"`

	// HTTP surface
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for the trigger endpoints (optional)"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBHost:             raw.DBHost,
		DBPort:             raw.DBPort,
		DBUser:             raw.DBUser,
		DBPassword:         raw.DBPassword,
		DBName:             raw.DBName,
		RetentionHours:     raw.RetentionHours,
		RetentionMode:      raw.RetentionMode,
		GracePeriodMinutes: raw.GracePeriodMinutes,
		Schedule:           raw.Schedule,
		JobTimeoutMinutes:  raw.JobTimeoutMinutes,
		RunOnce:            raw.RunOnce,
		DryRun:             raw.DryRun,
		Port:               raw.Port,
		APIAccessKey:       raw.APIAccessKey,
		Timezone:           raw.Timezone,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if cfg.RetentionHours <= 0 {
		return nil, fmt.Errorf("retention window must be positive, got %d hours", cfg.RetentionHours)
	}
	if cfg.GracePeriodMinutes < 0 {
		return nil, fmt.Errorf("grace period must not be negative, got %d minutes", cfg.GracePeriodMinutes)
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
