package observability

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/docsentinel-backend/internal/domain"
	"github.com/yungbote/docsentinel-backend/internal/pkg/envutil"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
)

type Metrics struct {
	apiRequests   *CounterVec
	apiLatency    *HistogramVec
	apiInflight   *Gauge
	llmRequests   *CounterVec
	llmLatency    *HistogramVec
	llmTokens     *CounterVec
	extractions   *CounterVec
	extractChars  *HistogramVec
	findings      *CounterVec
	jobs          *CounterVec
	jobLatency    *HistogramVec
	respIssues    *CounterVec
	queueDepth    *GaugeVec
	documentState *GaugeVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current returns the process metrics, or nil when disabled. All methods accept a nil receiver.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("metrics initialized")
		}
	})
	return instance
}

// NewMetrics builds an unregistered set, used directly by tests.
func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("ds_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec("ds_api_request_duration_seconds", "API request latency in seconds.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}),
		apiInflight: NewGauge("ds_api_inflight_requests", "In-flight API requests."),
		llmRequests: NewCounterVec("ds_llm_requests_total", "Reasoning backend calls by model/status.", []string{"model", "status"}),
		llmLatency: NewHistogramVec("ds_llm_request_duration_seconds", "Reasoning backend latency in seconds.",
			[]string{"model", "status"},
			[]float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120}),
		llmTokens:    NewCounterVec("ds_llm_tokens_total", "Reasoning backend tokens by model/direction.", []string{"model", "direction"}),
		extractions:  NewCounterVec("ds_extractions_total", "Text extractions by kind/method/parser.", []string{"kind", "method", "parser"}),
		extractChars: NewHistogramVec("ds_extraction_chars", "Extracted characters per document.", []string{"kind"}, []float64{100, 1000, 10000, 50000, 100000, 500000}),
		findings:     NewCounterVec("ds_findings_total", "Findings persisted by type/severity/source.", []string{"type", "severity", "source"}),
		jobs:         NewCounterVec("ds_jobs_total", "Processing jobs finished by type/status.", []string{"job_type", "status"}),
		jobLatency: NewHistogramVec("ds_job_duration_seconds", "Processing job wall time in seconds.",
			[]string{"job_type", "status"},
			[]float64{1, 5, 10, 30, 60, 120, 300, 600}),
		respIssues:    NewCounterVec("ds_backend_response_issues_total", "Backend response problems by analysis type/issue.", []string{"analysis_type", "issue"}),
		queueDepth:    NewGaugeVec("ds_job_queue_depth", "Processing jobs by status.", []string{"status"}),
		documentState: NewGaugeVec("ds_documents", "Documents by processing status.", []string{"status"}),
	}
}

func scrapeInterval() time.Duration {
	return envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second)
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.extractions, m.extractChars, m.findings,
		m.jobs, m.jobLatency, m.respIssues, m.queueDepth, m.documentState,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	method = orUnknown(method)
	route = orUnknown(route)
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveLLMRequest(model string, statusCode int, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	model = orUnknown(model)
	status := strconv.Itoa(statusCode)
	m.llmRequests.Inc(model, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), model, status)
	}
	if inputTokens > 0 {
		m.llmTokens.Add(float64(inputTokens), model, "input")
	}
	if outputTokens > 0 {
		m.llmTokens.Add(float64(outputTokens), model, "output")
	}
}

func (m *Metrics) ObserveExtraction(kind, method, parser string, chars int) {
	if m == nil {
		return
	}
	m.extractions.Inc(orUnknown(kind), orUnknown(method), orUnknown(parser))
	m.extractChars.Observe(float64(chars), orUnknown(kind))
}

func (m *Metrics) IncFinding(findingType, severity, source string) {
	if m == nil {
		return
	}
	m.findings.Inc(orUnknown(findingType), orUnknown(severity), orUnknown(source))
}

func (m *Metrics) ObserveJob(jobType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobs.Inc(orUnknown(jobType), orUnknown(status))
	m.jobLatency.Observe(dur.Seconds(), orUnknown(jobType), orUnknown(status))
}

func (m *Metrics) IncResponseIssue(analysisType, issue string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.respIssues.Add(float64(n), orUnknown(analysisType), orUnknown(issue))
}

// StartQueueCollector periodically samples job and document status counts.
func (m *Metrics) StartQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(scrapeInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.collectStatusCounts(ctx, log, db)
			}
		}
	}()
}

func (m *Metrics) collectStatusCounts(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	type row struct {
		Status string
		Count  int64
	}
	var jobs []row
	if err := db.WithContext(ctx).Model(&types.ProcessingJob{}).
		Select("status, count(*) as count").Group("status").Scan(&jobs).Error; err != nil {
		if log != nil {
			log.Warn("metrics: job queue depth query failed", "error", err)
		}
	} else {
		for _, s := range types.JobStatuses {
			m.queueDepth.Set(0, string(s))
		}
		for _, r := range jobs {
			m.queueDepth.Set(float64(r.Count), orUnknown(r.Status))
		}
	}

	var docs []row
	if err := db.WithContext(ctx).Model(&types.Document{}).
		Select("processing_status as status, count(*) as count").Group("processing_status").Scan(&docs).Error; err != nil {
		if log != nil {
			log.Warn("metrics: document status query failed", "error", err)
		}
		return
	}
	for _, r := range docs {
		m.documentState.Set(float64(r.Count), orUnknown(r.Status))
	}
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}
