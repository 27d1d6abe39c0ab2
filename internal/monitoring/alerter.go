package monitoring

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hdx-tools/pcode-detector/internal/config"
	"github.com/hdx-tools/pcode-detector/internal/notify"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertUndeterminedRate AlertType = "undetermined_rate"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and posts
// breaches to the notification sink.
type Alerter struct {
	cfg  config.MonitorConfig
	sink notify.Sink
}

// NewAlerter creates a new Alerter. A nil sink logs alerts.
func NewAlerter(cfg config.MonitorConfig, sink notify.Sink) *Alerter {
	if sink == nil {
		sink = notify.LogSink{}
	}
	return &Alerter{cfg: cfg, sink: sink}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// Windows with fewer than MinClassified verdicts never alert.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert

	if snap.Total > 0 && snap.Total >= a.cfg.MinClassified && snap.UndeterminedRate > a.cfg.UndeterminedRateWarn {
		alerts = append(alerts, Alert{
			Type:     AlertUndeterminedRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Undetermined rate %.1f%% exceeds threshold %.1f%% (%d of %d resources in last %dh)",
				snap.UndeterminedRate*100, a.cfg.UndeterminedRateWarn*100,
				snap.Undetermined, snap.Total, snap.LookbackHours,
			),
			Details: map[string]any{
				"undetermined_rate": snap.UndeterminedRate,
				"threshold":         a.cfg.UndeterminedRateWarn,
				"undetermined":      snap.Undetermined,
				"total":             snap.Total,
			},
			Timestamp: time.Now().UTC(),
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the sink and returns how many were sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	for _, alert := range alerts {
		a.sink.Notify(ctx, alert.Message)
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
	}
	return len(alerts)
}
