// Package config loads server configuration from the environment.
//
// A .env file in the working directory is read first when present; real
// environment variables always win over it. Command-line flags in
// cmd/server override both.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds server configuration.
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Payroll   PayrollConfig
	Scheduler SchedulerConfig
}

// AppConfig holds HTTP and logging configuration.
type AppConfig struct {
	Port     int
	LogLevel slog.Level
}

// DatabaseConfig holds the SQLite location.
type DatabaseConfig struct {
	Path string
}

// PayrollConfig holds calculation settings.
type PayrollConfig struct {
	RuleTablesDir string // empty = load the demo tables
	Workers       int
	PayslipDir    string
}

// SchedulerConfig controls the monthly payroll run scheduler.
type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	var problems []string

	port, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil || port <= 0 {
		problems = append(problems, fmt.Sprintf("invalid APP_PORT %q", os.Getenv("APP_PORT")))
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		problems = append(problems, fmt.Sprintf("invalid LOG_LEVEL %q", os.Getenv("LOG_LEVEL")))
	}

	workers, err := strconv.Atoi(getEnv("PAYROLL_WORKERS", "4"))
	if err != nil || workers <= 0 {
		problems = append(problems, fmt.Sprintf("invalid PAYROLL_WORKERS %q", os.Getenv("PAYROLL_WORKERS")))
	}

	enabled, err := strconv.ParseBool(getEnv("SCHEDULER_ENABLED", "false"))
	if err != nil {
		problems = append(problems, fmt.Sprintf("invalid SCHEDULER_ENABLED %q", os.Getenv("SCHEDULER_ENABLED")))
	}

	interval, err := time.ParseDuration(getEnv("SCHEDULER_INTERVAL", "1h"))
	if err != nil || interval <= 0 {
		problems = append(problems, fmt.Sprintf("invalid SCHEDULER_INTERVAL %q", os.Getenv("SCHEDULER_INTERVAL")))
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return &Config{
		App:      AppConfig{Port: port, LogLevel: level},
		Database: DatabaseConfig{Path: getEnv("DB_PATH", "payroll.db")},
		Payroll: PayrollConfig{
			RuleTablesDir: os.Getenv("RULE_TABLES_DIR"),
			Workers:       workers,
			PayslipDir:    getEnv("PAYSLIP_DIR", "payslips"),
		},
		Scheduler: SchedulerConfig{Enabled: enabled, Interval: interval},
	}, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
