// Package engine orchestrates one tick of the index pipeline: C1 (history
// append) through C6 (publication gate), run atomically by a single
// goroutine per spec.md §5. Grounded on the teacher's
// internal/indengine/service.go Service (New/Run/shutdown, optional
// ambient sinks that log-and-continue on failure) and consumer.go's
// processLoop (fetch, compute, record metrics, all inline in one loop
// iteration).
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"metalindexd/internal/history"
	"metalindexd/internal/logger"
	"metalindexd/internal/metrics"
	"metalindexd/internal/model"
	"metalindexd/internal/publish"
	"metalindexd/internal/regime"
	"metalindexd/internal/risk"
	"metalindexd/internal/volatility"
	"metalindexd/internal/weights"
)

// QuoteSource fetches a single metal's spot price.
type QuoteSource interface {
	FetchSpotUSDPerOunce(ctx context.Context, metal model.Metal) (float64, error)
}

// OracleSink publishes the composite index and per-metal prices, and
// exposes the sink's published state for the post-publish confirmation
// read in Tick.
type OracleSink interface {
	SetPriceWithMetals(ctx context.Context, index float64, pricesPerGram map[model.Metal]float64) error
	GetPricePerOzE6(ctx context.Context) (int64, error)
	LastUpdateAt(ctx context.Context) (int64, error)
}

// Engine owns all per-tick mutable state: history, the regime classifier,
// current weights, and the last correlation matrix.
type Engine struct {
	quotes QuoteSource
	sink   OracleSink

	store      *history.Store
	classifier *regime.Classifier
	gate       *publish.Gate
	metrics    *metrics.Metrics
	reportCh   chan<- model.TickReport

	weights        model.WeightVector
	lastCorrMatrix volatility.Matrix
}

// Config bundles an Engine's dependencies.
type Config struct {
	Quotes         QuoteSource
	Sink           OracleSink
	Metrics        *metrics.Metrics
	DiscoveryPhase bool
	PublishHours   map[int]struct{}
	// ReportCh, if non-nil, receives every tick's report for the ambient
	// audit/telemetry consumers. Sends are non-blocking: a full channel
	// drops the report rather than stalling the tick.
	ReportCh chan<- model.TickReport
}

// New creates an Engine with cold-start defaults: initial weights from
// model.InitialWeights and the classifier starting in LOW, per spec.md §8
// scenario 1.
func New(cfg Config) *Engine {
	return &Engine{
		quotes:     cfg.Quotes,
		sink:       cfg.Sink,
		store:      history.NewStore(),
		classifier: regime.NewClassifier(),
		gate:       publish.NewGate(cfg.DiscoveryPhase, cfg.PublishHours),
		metrics:    cfg.Metrics,
		reportCh:   cfg.ReportCh,
		weights:    model.WeightVector(model.InitialWeights).Clone(),
	}
}

// Tick runs one full C1→C6 pass. now is the wall-clock time driving both
// history timestamps and the publication gate.
func (e *Engine) Tick(ctx context.Context, now time.Time) model.TickReport {
	start := time.Now()
	traceID := logger.GenerateTraceID("tick", logger.NextTickSeq(), now)
	ctx = logger.WithTraceID(ctx, traceID)
	ctx = logger.WithRegime(ctx, e.classifier.Current().String())

	report := model.TickReport{TraceID: traceID, TS: now}

	pricesPerOz, err := e.fetchAll(ctx)
	if err != nil {
		report.TickErr = err.Error()
		e.emit(report)
		if e.metrics != nil {
			e.metrics.TicksTotal.Inc()
			e.metrics.TickDuration.Observe(time.Since(start).Seconds())
		}
		return report
	}

	nowMs := now.UnixMilli()
	pricesPerGram := make(map[model.Metal]float64, len(model.Metals))
	for _, m := range model.Metals {
		perGram := model.PerGram(pricesPerOz[m])
		pricesPerGram[m] = perGram
		e.store.RecordPrice(m, nowMs, perGram)
	}
	report.Prices = pricesPerGram

	histories := make(map[model.Metal][]model.PricePoint, len(model.Metals))
	sigma := make(map[model.Metal]float64, len(model.Metals))
	for _, m := range model.Metals {
		h := e.store.History(m)
		histories[m] = h
		sigma[m] = volatility.Sigma(m, h)
	}
	report.Volatility = sigma

	corrMatrix := volatility.BuildMatrix(histories)
	liquidityStress := volatility.LiquidityStress(sigma)

	aggDaily := regime.Aggregate(sigma)
	e.classifier.Advance(aggDaily)
	report.Regime = e.classifier.Current()
	report.RegimeDuration = e.classifier.Duration()

	riskParams, riskGates := risk.Moderate(risk.Inputs{
		IndexSeries:     e.store.IndexSeries(),
		CorrMatrix:      corrMatrix,
		PrevCorrMatrix:  e.lastCorrMatrix,
		LiquidityStress: liquidityStress,
		Weights:         e.weights,
		Regime:          e.classifier.Current(),
		RegimeDuration:  e.classifier.Duration(),
		RegimeLocked:    e.classifier.Locked(),
	})
	report.Risk = riskParams
	e.lastCorrMatrix = corrMatrix

	newWeights, index := weights.Solve(e.weights, sigma, riskParams, pricesPerGram)
	e.weights = newWeights
	report.Weights = newWeights.Clone()
	report.Index = index
	e.store.RecordIndex(index)

	if e.gate.ShouldPublish(now) {
		if err := e.sink.SetPriceWithMetals(ctx, index, pricesPerGram); err != nil {
			report.PublishErr = err.Error()
			if e.metrics != nil {
				e.metrics.PublishRejectedTotal.Inc()
			}
			slog.Warn("oracle publish rejected", append(logger.Fields(ctx), "error", err)...)
		} else {
			report.Published = true
			if e.metrics != nil {
				e.metrics.PublishTotal.Inc()
			}
			e.confirmPublish(ctx, index)
		}
	}

	e.recordMetrics(report, riskParams, riskGates.Drawdown)
	if e.metrics != nil {
		e.metrics.TicksTotal.Inc()
		e.metrics.TickDuration.Observe(time.Since(start).Seconds())
	}
	e.emit(report)
	return report
}

// fetchAll fetches all four metals in the fixed order XAU,XAG,XPT,XPD. A
// failure on any metal abandons the tick with no history mutation, per
// spec.md §5's ordering guarantee.
func (e *Engine) fetchAll(ctx context.Context) (map[model.Metal]float64, error) {
	out := make(map[model.Metal]float64, len(model.Metals))
	for _, m := range model.Metals {
		price, err := e.quotes.FetchSpotUSDPerOunce(ctx, m)
		if err != nil {
			if e.metrics != nil {
				e.metrics.FetchFailuresTotal.WithLabelValues(m.String()).Inc()
			}
			return nil, fmt.Errorf("fetch %s: %w", m, err)
		}
		out[m] = price
	}
	return out, nil
}

// confirmPublish performs the post-publish read-back spec.md §7 calls for
// under "Oracle read failure after publish": a best-effort GetPricePerOzE6
// + LastUpdateAt against the sink to confirm the write landed. Failures are
// logged and otherwise ignored — the publish itself already succeeded, so
// this cannot retroactively fail the tick.
func (e *Engine) confirmPublish(ctx context.Context, publishedIndex float64) {
	fields := logger.Fields(ctx)
	valueE6, err := e.sink.GetPricePerOzE6(ctx)
	if err != nil {
		slog.Warn("oracle post-publish read failed", append(fields, "query", "getPricePerOzE6", "error", err)...)
		return
	}
	if _, err := e.sink.LastUpdateAt(ctx); err != nil {
		slog.Warn("oracle post-publish read failed", append(fields, "query", "lastUpdateAt", "error", err)...)
		return
	}
	slog.Debug("oracle post-publish read confirmed", append(fields, "published_index_usd_per_gram", publishedIndex, "sink_value_e6", valueE6)...)
}

func (e *Engine) recordMetrics(r model.TickReport, rp model.RiskAdjustedParams, drawdown float64) {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexPriceUSD.Set(r.Index)
	e.metrics.Regime.Set(float64(r.Regime))
	e.metrics.DriftCap.Set(rp.DriftCap)
	e.metrics.WeightSpeed.Set(rp.WeightSpeed)
	e.metrics.Drawdown.Set(drawdown)
	for _, m := range model.Metals {
		e.metrics.Weight.WithLabelValues(m.String()).Set(r.Weights[m])
		e.metrics.Volatility.WithLabelValues(m.String()).Set(r.Volatility[m])
	}
}

// emit sends the report to the ambient consumers channel without blocking
// the tick when the channel is full or unset.
func (e *Engine) emit(r model.TickReport) {
	if e.reportCh == nil {
		return
	}
	select {
	case e.reportCh <- r:
	default:
	}
}
