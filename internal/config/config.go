package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment selects the default executor for episodes.
type Environment string

const (
	EnvMock Environment = "mock"
	EnvReal Environment = "real"
)

// IntelSource selects the analytics backend the scheduler refreshes from.
type IntelSource string

const (
	IntelMock IntelSource = "mock"
	IntelDune IntelSource = "dune"
)

// BudgetMode controls whether the per-tick expensive cap is enforced.
type BudgetMode string

const (
	BudgetHard BudgetMode = "hard"
	BudgetSoft BudgetMode = "soft"
)

type Config struct {
	Environment   Environment
	ForceMock     bool
	LearnFromMock bool
	IntelSource   IntelSource

	// Seed of 0 means "generate per run".
	Seed int64

	BaseDir     string
	ActivePools []string
	ActivePairs []string

	Scheduler SchedulerConfig
	Validator ValidatorConfig
	Backend   BackendConfig
	Gateway   GatewayConfig
	Server    ServerConfig
	Tracing   TracingConfig
	Agent     AgentConfig
	Log       LogConfig
}

type SchedulerConfig struct {
	PoolCap          int
	WorkerCount      int
	TickInterval     time.Duration
	JobTimeout       time.Duration
	DrainGrace       time.Duration
	TriggerHorizon   time.Duration
	QueueCap         int
	ExpensivePerTick int
	ExpensiveMode    BudgetMode
	ConfigFile       string // optional YAML overlay (active pools, query toggles)
}

type ValidatorConfig struct {
	DisablePoolValidation bool
	RiskAcknowledged      bool
	DegradeToMock         bool
	GasCeiling            int64
}

type BackendConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	RPS     float64
	Burst   int
}

type GatewayConfig struct {
	URL     string
	Timeout time.Duration
}

type ServerConfig struct {
	HealthPort int
}

type TracingConfig struct {
	Enabled  bool
	Endpoint string
	Insecure bool
}

type AgentConfig struct {
	// Command is the external agent argv; empty selects the built-in
	// proposer.
	Command []string
	Version string
	Timeout time.Duration
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Environment:   Environment(getEnv("ENVIRONMENT", "mock")),
		ForceMock:     getEnvBool("FORCE_MOCK", false),
		LearnFromMock: getEnvBool("LEARN_FROM_MOCK", false),
		IntelSource:   IntelSource(getEnv("INTEL_SOURCE", "mock")),
		Seed:          int64(getEnvInt("SEED", 0)),
		BaseDir:       getEnv("BASE_DIR", "./data"),
		Scheduler: SchedulerConfig{
			PoolCap:          getEnvInt("POOL_CAP", 3),
			WorkerCount:      getEnvInt("WORKER_COUNT", 3),
			TickInterval:     time.Duration(getEnvInt("TICK_INTERVAL_SECONDS", 60)) * time.Second,
			JobTimeout:       time.Duration(getEnvInt("JOB_TIMEOUT_SECONDS", 30)) * time.Second,
			DrainGrace:       time.Duration(getEnvInt("DRAIN_GRACE_SECONDS", 30)) * time.Second,
			TriggerHorizon:   time.Duration(getEnvInt("TRIGGER_HORIZON_SECONDS", 600)) * time.Second,
			QueueCap:         getEnvInt("SCHEDULER_QUEUE_CAP", 64),
			ExpensivePerTick: getEnvInt("EXPENSIVE_BUDGET_PER_TICK", 1),
			ExpensiveMode:    BudgetMode(getEnv("EXPENSIVE_BUDGET_MODE", "hard")),
			ConfigFile:       getEnv("SCHEDULER_CONFIG_FILE", ""),
		},
		Validator: ValidatorConfig{
			DisablePoolValidation: getEnvBool("DISABLE_POOL_VALIDATION", false),
			RiskAcknowledged:      getEnvBool("RISK_ACK", false),
			DegradeToMock:         getEnvBool("DEGRADE_TO_MOCK", false),
			GasCeiling:            int64(getEnvInt("GAS_CEILING", 1_000_000)),
		},
		Backend: BackendConfig{
			URL:     getEnv("DUNE_API_URL", "https://api.dune.com/api/v1"),
			APIKey:  getEnv("DUNE_API_KEY", ""),
			Timeout: time.Duration(getEnvInt("DUNE_TIMEOUT_SECONDS", 30)) * time.Second,
			RPS:     getEnvFloat("DUNE_RPS", 2.0),
			Burst:   getEnvInt("DUNE_BURST", 4),
		},
		Gateway: GatewayConfig{
			URL:     getEnv("GATEWAY_URL", "http://localhost:15888"),
			Timeout: time.Duration(getEnvInt("GATEWAY_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Server: ServerConfig{
			HealthPort: getEnvInt("HEALTH_PORT", 8080),
		},
		Tracing: TracingConfig{
			Enabled:  getEnvBool("TRACING_ENABLED", false),
			Endpoint: getEnv("TRACING_ENDPOINT", ""),
			Insecure: getEnvBool("TRACING_INSECURE", true),
		},
		Agent: AgentConfig{
			Version: getEnv("AGENT_VERSION", "v1.0"),
			Timeout: time.Duration(getEnvInt("AGENT_TIMEOUT_SECONDS", 120)) * time.Second,
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if cmd := getEnv("AGENT_CMD", ""); cmd != "" {
		cfg.Agent.Command = strings.Fields(cmd)
	}
	cfg.ActivePools = splitCSV(getEnv("ACTIVE_POOLS", ""))
	cfg.ActivePairs = splitCSV(getEnv("ACTIVE_PAIRS", ""))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Environment {
	case EnvMock, EnvReal:
	default:
		return fmt.Errorf("ENVIRONMENT must be mock or real, got %q", c.Environment)
	}
	switch c.IntelSource {
	case IntelMock, IntelDune:
	default:
		return fmt.Errorf("INTEL_SOURCE must be mock or dune, got %q", c.IntelSource)
	}
	switch c.Scheduler.ExpensiveMode {
	case BudgetHard, BudgetSoft:
	default:
		return fmt.Errorf("EXPENSIVE_BUDGET_MODE must be hard or soft, got %q", c.Scheduler.ExpensiveMode)
	}
	if c.Scheduler.PoolCap <= 0 {
		return fmt.Errorf("POOL_CAP must be positive, got %d", c.Scheduler.PoolCap)
	}
	if c.Scheduler.WorkerCount <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive, got %d", c.Scheduler.WorkerCount)
	}
	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL_SECONDS must be positive")
	}
	if c.BaseDir == "" {
		return fmt.Errorf("BASE_DIR is required")
	}
	if c.IntelSource == IntelDune && c.Backend.APIKey == "" {
		return fmt.Errorf("DUNE_API_KEY is required when INTEL_SOURCE=dune")
	}
	return nil
}

// ExecReal reports whether episodes should attempt the live executor.
func (c *Config) ExecReal() bool {
	return !c.ForceMock && c.Environment == EnvReal
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}
