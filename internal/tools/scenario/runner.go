package scenario

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/seralith/wartable/internal/client"
)

// Config controls scenario execution.
type Config struct {
	Addr       string
	CampaignID string
	Grant      string
	UserID     string
	Timeout    time.Duration
	Assertions AssertionMode
	Verbose    bool
	Logger     *log.Logger
}

// DefaultConfig returns default runner configuration.
func DefaultConfig() Config {
	return Config{
		Addr:       "http://localhost:8080",
		CampaignID: "demo",
		UserID:     "scenario-gm",
		Timeout:    10 * time.Second,
		Assertions: AssertionStrict,
	}
}

// Runner executes Lua scenarios against the map authority as a GM session.
type Runner struct {
	session    *client.Session
	authority  client.Authority
	assertions Assertions
	logger     *log.Logger
	verbose    bool
	timeout    time.Duration
	penHeld    bool
}

// NewRunner builds a runner talking to a live authority over HTTP.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Addr == "" {
		return nil, errors.New("authority address is required")
	}
	if cfg.Grant == "" {
		return nil, errors.New("table grant is required")
	}
	authority := client.NewClient(cfg.Addr, cfg.CampaignID, cfg.Grant)
	return newRunnerWithAuthority(cfg, authority)
}

// newRunnerWithAuthority builds a Runner from a pre-built authority.
// Config defaults (logger, timeout, user) are applied here so they are
// testable.
func newRunnerWithAuthority(cfg Config, authority client.Authority) (*Runner, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	userID := cfg.UserID
	if userID == "" {
		userID = "scenario-gm"
	}

	assertions := Assertions{Mode: cfg.Assertions, Logger: logger}

	return &Runner{
		session:    client.NewSession(authority, userID, true),
		authority:  authority,
		assertions: assertions,
		logger:     logger,
		verbose:    cfg.Verbose,
		timeout:    timeout,
	}, nil
}

// RunFile loads and executes a scenario file.
func RunFile(ctx context.Context, cfg Config, path string) error {
	runner, err := NewRunner(cfg)
	if err != nil {
		return err
	}

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		return err
	}
	return runner.RunScenario(ctx, scenario)
}

// RunScenario joins the table and executes the scenario steps in order.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) error {
	if scenario == nil {
		return errors.New("scenario is required")
	}
	joinCtx, cancel := context.WithTimeout(ctx, r.timeout)
	err := r.session.Join(joinCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("join table: %w", err)
	}

	r.logf("scenario start: %s (%d steps)", scenario.Name, len(scenario.Steps))
	for index, step := range scenario.Steps {
		stepNumber := index + 1
		r.logf("step %d/%d start: %s", stepNumber, len(scenario.Steps), step.Kind)
		stepStart := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.runStep(stepCtx, step)
		cancel()
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", stepNumber, step.Kind, err)
		}
		r.logf("step %d/%d done: %s (%s)", stepNumber, len(scenario.Steps), step.Kind, time.Since(stepStart))
	}
	r.logf("scenario done: %s", scenario.Name)
	return nil
}

func (r *Runner) logf(format string, args ...any) {
	if !r.verbose || r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}
