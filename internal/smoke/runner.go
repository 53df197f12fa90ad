// Package smoke runs the client-side scenario suite against a live server.
package smoke

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/paramapi/pkg/logger"
)

// Run checks service health, then executes the selected scenarios
// concurrently with cfg.Workers workers. It returns the report and
// ErrScenariosFailed when any scenario failed.
func Run(ctx context.Context, cfg *Config, log logger.Logger) (*Report, error) {
	if log == nil {
		log = logger.Nop()
	}
	scenarios, err := selectScenarios(cfg.Only)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
	}
	ctx = logger.WithRequestID(ctx, report.RunID)
	client := newHTTPClient(cfg.BaseURL, report.RunID, timeoutOrDefault(cfg.Timeout))

	log.Info(ctx, "starting smoke run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("scenarios", len(scenarios)),
		logger.Int("workers", cfg.Workers),
		logger.String("timeout", cfg.Timeout.String()))

	if err := checkServiceHealth(ctx, client); err != nil {
		return report, err
	}

	report.Results = runScenarios(ctx, cfg, client, scenarios, log)
	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(report.StartTime)

	failed := report.Failed()
	log.Info(ctx, "smoke run finished",
		logger.Int("passed", len(report.Results)-len(failed)),
		logger.Int("failed", len(failed)),
		logger.String("duration", report.Duration.String()))

	if len(failed) > 0 {
		return report, fmt.Errorf("%w: %d of %d", ErrScenariosFailed, len(failed), len(report.Results))
	}
	return report, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	resp, err := client.Get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if resp.Status != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.Status)
	}
	return nil
}

type job struct {
	index    int
	scenario Scenario
}

// runScenarios fans scenarios out to a worker pool. Results keep the
// scenario order.
func runScenarios(ctx context.Context, cfg *Config, client *HTTPClient, scenarios []Scenario, log logger.Logger) []Result {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	results := make([]Result, len(scenarios))
	jobs := make(chan job, len(scenarios))
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				start := time.Now()
				err := ctx.Err()
				if err == nil {
					err = j.scenario.Run(ctx, client)
				}
				res := Result{Name: j.scenario.Name, Err: err, Duration: time.Since(start)}
				results[j.index] = res

				switch {
				case !res.Passed():
					log.Error(ctx, "scenario failed", logger.String("scenario", res.Name), logger.Error(res.Err))
				case cfg.Verbose:
					log.Info(ctx, "scenario passed",
						logger.String("scenario", res.Name),
						logger.String("duration", res.Duration.String()))
				}
			}
		}()
	}

	for i, s := range scenarios {
		jobs <- job{index: i, scenario: s}
	}
	close(jobs)
	wg.Wait()
	return results
}
