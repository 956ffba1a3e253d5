package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/docsentinel-backend/internal/pkg/ctxutil"
	"github.com/yungbote/docsentinel-backend/internal/pkg/envutil"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
)

// ResponseIssues summarises what the repair layer did to one backend response.
type ResponseIssues struct {
	ParseFailed      bool
	SchemaViolations []string
	Repairs          []string
	Fallback         string
}

func (r ResponseIssues) counts() map[string]int {
	out := map[string]int{}
	if r.ParseFailed {
		out["parse_failure"] = 1
	}
	if n := len(r.SchemaViolations); n > 0 {
		out["schema_violation"] = n
	}
	if n := len(r.Repairs); n > 0 {
		out["repaired_field"] = n
	}
	if r.Fallback != "" {
		out["fallback_"+r.Fallback] = 1
	}
	return out
}

type responseAlertState struct {
	mu   sync.Mutex
	last map[string]time.Time
}

var responseAlerts responseAlertState

// ReportResponseQuality counts and logs backend response problems and, when
// RESPONSE_QUALITY_ALERT_WEBHOOK_URL is set, posts a rate-limited alert.
func ReportResponseQuality(ctx context.Context, log *logger.Logger, analysisType string, issues ResponseIssues, meta map[string]any) {
	counts := issues.counts()
	if len(counts) == 0 {
		return
	}
	analysisType = strings.TrimSpace(analysisType)
	if analysisType == "" {
		analysisType = "unknown"
	}
	if meta == nil {
		meta = map[string]any{}
	}
	if td := ctxutil.GetTraceData(ctx); td != nil {
		if td.TraceID != "" {
			meta["trace_id"] = td.TraceID
		}
		if td.RequestID != "" {
			meta["request_id"] = td.RequestID
		}
	}

	m := Current()
	for issue, n := range counts {
		m.IncResponseIssue(analysisType, issue, n)
	}

	samples := issues.SchemaViolations
	if len(samples) > 3 {
		samples = samples[:3]
	}
	if log != nil {
		log.Warn("backend response repaired",
			"analysis_type", analysisType,
			"issues", counts,
			"sample_violations", samples,
			"meta", meta,
		)
	}
	// A fallback alone is normal for clean documents.
	if issues.ParseFailed || len(issues.SchemaViolations) > 0 {
		sendResponseAlert(analysisType, counts, samples, meta, log)
	}
}

func sendResponseAlert(analysisType string, counts map[string]int, samples []string, meta map[string]any, log *logger.Logger) {
	webhook := envutil.String("RESPONSE_QUALITY_ALERT_WEBHOOK_URL", "")
	if webhook == "" {
		return
	}
	responseAlerts.mu.Lock()
	if responseAlerts.last == nil {
		responseAlerts.last = map[string]time.Time{}
	}
	last := responseAlerts.last[analysisType]
	minInterval := envutil.Seconds("RESPONSE_QUALITY_ALERT_MIN_INTERVAL_SECONDS", 5*time.Minute)
	if !last.IsZero() && time.Since(last) < minInterval {
		responseAlerts.mu.Unlock()
		return
	}
	responseAlerts.last[analysisType] = time.Now()
	responseAlerts.mu.Unlock()

	body, _ := json.Marshal(map[string]any{
		"title":             "Backend response quality issue",
		"analysis_type":     analysisType,
		"issues":            counts,
		"sample_violations": samples,
		"meta":              meta,
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
	})
	req, err := http.NewRequest(http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		if log != nil {
			log.Warn("response quality alert request build failed", "error", err)
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		if log != nil {
			log.Warn("response quality alert post failed", "error", err)
		}
		return
	}
	_ = resp.Body.Close()
	if log != nil {
		log.Info("response quality alert sent", "analysis_type", analysisType, "status", resp.StatusCode)
	}
}
