// Package coordinator runs the analysis pipeline for one threat signal:
// context assembly, the five-analyst fan-out, false-positive scoring,
// response planning, timeline construction, synthesis, and publication.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edgewatch/vigil/pkg/analysis"
	"github.com/edgewatch/vigil/pkg/analyst"
	"github.com/edgewatch/vigil/pkg/config"
	"github.com/edgewatch/vigil/pkg/models"
	"github.com/edgewatch/vigil/pkg/store"
)

// KnowledgeStore is the read side of the knowledge base the pipeline
// assembles context from. The ok flag reports lookup success; an empty
// result with ok=true is a successful lookup.
type KnowledgeStore interface {
	SimilarIncidents(threatType models.ThreatType, customerName string) ([]models.Incident, bool)
	CustomerConfig(customerName string) (models.CustomerConfig, bool)
	RecentInfraEvents(window time.Duration) ([]models.InfraEvent, bool)
	RelevantIntel(keywords []string) ([]models.IntelItem, bool)
}

// infraEventWindow is how far back the devops analyst's infrastructure
// context reaches.
const infraEventWindow = 60 * time.Minute

// Coordinator orchestrates the full analysis of one signal. It is
// stateless between requests and safe for concurrent use.
type Coordinator struct {
	cfg       config.CoordinatorConfig
	analysts  map[string]*analyst.Analyst
	knowledge KnowledgeStore
	fp        *analysis.FPAnalyzer
	responses *analysis.ResponseEngine
	timelines *analysis.TimelineBuilder
	store     store.SharedStore
}

// New wires the pipeline. All collaborators are required.
func New(
	cfg config.CoordinatorConfig,
	analysts map[string]*analyst.Analyst,
	knowledgeStore KnowledgeStore,
	fp *analysis.FPAnalyzer,
	responses *analysis.ResponseEngine,
	timelines *analysis.TimelineBuilder,
	sharedStore store.SharedStore,
) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		analysts:  analysts,
		knowledge: knowledgeStore,
		fp:        fp,
		responses: responses,
		timelines: timelines,
		store:     sharedStore,
	}
}

// signalContext is the assembled knowledge for one signal, plus which
// lookups succeeded.
type signalContext struct {
	incidents    []models.Incident
	customerCfg  *models.CustomerConfig
	infraEvents  []models.InfraEvent
	intel        []models.IntelItem
	anySucceeded bool
}

// Analyze runs the whole pipeline and returns the published record.
// The record is returned only after SaveAndPublish succeeded: callers
// never observe a record that was not announced.
func (c *Coordinator) Analyze(ctx context.Context, signal models.ThreatSignal) (*models.EnhancedAnalysisRecord, error) {
	start := time.Now()

	signal.Normalize()
	if err := signal.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.TotalTimeout)
	defer cancel()

	sigCtx, err := c.assembleContext(ctx, signal)
	if err != nil {
		return nil, err
	}

	findings := c.fanOut(ctx, signal, sigCtx)
	if err := pipelineCtxErr(ctx); err != nil {
		return nil, err
	}

	severity := decideSeverity(findings)
	fpScore := c.fp.Analyze(signal, findings, sigCtx.incidents)
	plan := c.responses.GeneratePlan(signal, severity, fpScore, sigCtx.customerCfg, findings)
	timeline := c.timelines.Build(signal, findings, fpScore, plan, severity)

	review, reason := reviewDecision(severity, fpScore, plan)
	tactics, techniques := mitreFor(signal.ThreatType)

	record := &models.EnhancedAnalysisRecord{
		Signal:                signal,
		Findings:              findings,
		FPScore:               fpScore,
		Plan:                  plan,
		Timeline:              timeline,
		Severity:              severity,
		ExecutiveSummary:      executiveSummary(signal, findings, fpScore, severity),
		CustomerNarrative:     customerNarrative(signal, fpScore, plan),
		MitreTactics:          tactics,
		MitreTechniques:       techniques,
		RequiresHumanReview:   review,
		ReviewReason:          reason,
		TotalProcessingTimeMs: time.Since(start).Milliseconds(),
		AnalyzedAt:            time.Now().UTC(),
	}

	if err := c.store.SaveAndPublish(ctx, record); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	slog.Info("Signal analyzed",
		"signal_id", signal.ID,
		"threat_type", signal.ThreatType,
		"customer", signal.CustomerName,
		"severity", severity,
		"fp_score", fpScore.Score,
		"requires_review", review,
		"duration_ms", record.TotalProcessingTimeMs)
	return record, nil
}

// assembleContext runs the four knowledge lookups concurrently. A failed
// lookup degrades to empty context; only all four failing aborts.
func (c *Coordinator) assembleContext(ctx context.Context, signal models.ThreatSignal) (*signalContext, error) {
	sigCtx := &signalContext{}
	var mu sync.Mutex
	markSuccess := func() {
		mu.Lock()
		sigCtx.anySucceeded = true
		mu.Unlock()
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		if incidents, ok := c.knowledge.SimilarIncidents(signal.ThreatType, signal.CustomerName); ok {
			sigCtx.incidents = incidents
			markSuccess()
		}
		return nil
	})
	g.Go(func() error {
		if cfg, ok := c.knowledge.CustomerConfig(signal.CustomerName); ok {
			sigCtx.customerCfg = &cfg
			markSuccess()
		}
		return nil
	})
	g.Go(func() error {
		if events, ok := c.knowledge.RecentInfraEvents(infraEventWindow); ok {
			sigCtx.infraEvents = events
			markSuccess()
		}
		return nil
	})
	g.Go(func() error {
		keywords := []string{signal.CustomerName, string(signal.ThreatType)}
		if intel, ok := c.knowledge.RelevantIntel(keywords); ok {
			sigCtx.intel = intel
			markSuccess()
		}
		return nil
	})
	_ = g.Wait()

	if !sigCtx.anySucceeded {
		return nil, fmt.Errorf("%w: all knowledge lookups failed for signal %s", ErrContextUnavailable, signal.ID)
	}
	return sigCtx, nil
}

// contextBag builds the variant-specific context for one analyst. Each
// analyst sees only its own context slice.
func contextBag(name string, sigCtx *signalContext) analyst.Context {
	switch name {
	case models.AgentHistorical:
		return analyst.Context{Incidents: sigCtx.incidents}
	case models.AgentConfig:
		return analyst.Context{CustomerConfig: sigCtx.customerCfg}
	case models.AgentDevops:
		return analyst.Context{InfraEvents: sigCtx.infraEvents}
	case models.AgentContext:
		return analyst.Context{Intel: sigCtx.intel}
	default:
		return analyst.Context{}
	}
}

// fanOut runs all five analysts concurrently under per-analyst deadlines.
// A deadline expiry discards the analyst's eventual result and records
// the sentinel finding; fanOut itself never fails.
func (c *Coordinator) fanOut(ctx context.Context, signal models.ThreatSignal, sigCtx *signalContext) map[string]models.AgentFinding {
	findings := make(map[string]models.AgentFinding, len(c.analysts))
	var mu sync.Mutex

	var g errgroup.Group
	for name, a := range c.analysts {
		g.Go(func() error {
			finding := c.runAnalyst(ctx, a, signal, contextBag(name, sigCtx))
			mu.Lock()
			findings[name] = finding
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return findings
}

// runAnalyst enforces the per-analyst deadline from the outside: even an
// analyst ignoring ctx cannot delay the pipeline past its slot.
func (c *Coordinator) runAnalyst(ctx context.Context, a *analyst.Analyst, signal models.ThreatSignal, bag analyst.Context) models.AgentFinding {
	actx, cancel := context.WithTimeout(ctx, c.cfg.AnalystTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan models.AgentFinding, 1)
	go func() {
		done <- a.Analyze(actx, signal, bag)
	}()

	select {
	case finding := <-done:
		return finding
	case <-actx.Done():
		slog.Warn("Analyst deadline expired",
			"agent", a.Name(), "signal_id", signal.ID, "elapsed", time.Since(start))
		return models.NewSentinelFinding(a.Name(), time.Since(start).Milliseconds())
	}
}

// pipelineCtxErr classifies an expired pipeline context.
func pipelineCtxErr(ctx context.Context) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: total pipeline deadline expired", ErrTimeout)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return nil
	}
}

// Ready reports whether the pipeline can accept signals.
func (c *Coordinator) Ready(ctx context.Context) bool {
	return len(c.analysts) == len(models.AgentNames) && c.store.Ready(ctx)
}
