// Package health serves liveness, readiness and dependency probes
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"

	// DefaultCheckTimeout bounds a single probe
	DefaultCheckTimeout = 2 * time.Second
)

// PingFunc reports whether a dependency is reachable
type PingFunc func(ctx context.Context) error

type check struct {
	name     string
	ping     PingFunc
	required bool
}

// Checker probes registered dependencies. A failing required check makes the service
// unhealthy; a failing optional one only degrades it.
type Checker struct {
	mu        sync.RWMutex
	checks    []check
	version   string
	startTime time.Time
	timeout   time.Duration
	ready     atomic.Bool
}

func NewChecker(version string) *Checker {
	return &Checker{
		version:   version,
		startTime: time.Now(),
		timeout:   DefaultCheckTimeout,
	}
}

// AddCheck registers a dependency the service cannot work without
func (c *Checker) AddCheck(name string, ping PingFunc) {
	c.add(check{name: name, ping: ping, required: true})
}

// AddOptionalCheck registers a dependency whose loss only disables a side feature
func (c *Checker) AddOptionalCheck(name string, ping PingFunc) {
	c.add(check{name: name, ping: ping})
}

func (c *Checker) add(chk check) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.checks {
		if c.checks[i].name == chk.name {
			c.checks[i] = chk
			return
		}
	}
	c.checks = append(c.checks, chk)
}

func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

func (c *Checker) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/health", c.Health)
	e.GET("/api/v1/health/live", c.Live)
	e.GET("/api/v1/health/ready", c.Ready)
}

// Report is the body of the health endpoint
type Report struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Uptime     string            `json:"uptime"`
	Checks     map[string]*Probe `json:"checks"`
	ReportedAt time.Time         `json:"reported_at"`
}

// Probe is the outcome of one dependency check
type Probe struct {
	Status   string `json:"status"`
	Required bool   `json:"required"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency,omitempty"`
}

// Check probes every dependency concurrently and summarizes the result.
func (c *Checker) Check(ctx context.Context) *Report {
	c.mu.RLock()
	checks := make([]check, len(c.checks))
	copy(checks, c.checks)
	c.mu.RUnlock()

	probes := make([]*Probe, len(checks))
	var wg sync.WaitGroup
	for i, chk := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			probes[i] = c.probe(ctx, chk)
		}()
	}
	wg.Wait()

	report := &Report{
		Status:     StatusHealthy,
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Checks:     make(map[string]*Probe, len(checks)),
		ReportedAt: time.Now().UTC(),
	}
	for i, chk := range checks {
		p := probes[i]
		report.Checks[chk.name] = p
		if p.Status == StatusHealthy {
			continue
		}
		if chk.required {
			report.Status = StatusUnhealthy
		} else if report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}
	return report
}

func (c *Checker) probe(ctx context.Context, chk check) *Probe {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := chk.ping(ctx)
	p := &Probe{Status: StatusHealthy, Required: chk.required, Latency: time.Since(start).String()}
	if err != nil {
		p.Status = StatusUnhealthy
		p.Message = err.Error()
	}
	return p
}

func (c *Checker) Health(ctx echo.Context) error {
	report := c.Check(ctx.Request().Context())

	code := http.StatusOK
	if report.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, report)
}

func (c *Checker) Live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Ready is true once the server marked itself ready and no required check fails.
func (c *Checker) Ready(ctx echo.Context) error {
	if !c.ready.Load() {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "starting"})
	}
	if c.Check(ctx.Request().Context()).Status == StatusUnhealthy {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
