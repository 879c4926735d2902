// Package alert turns bad quality assessments into notifications, with a
// cooldown so a persistently dirty source does not flood the recipient.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chongyong/aquaview/internal/quality"
	"github.com/chongyong/aquaview/internal/reading"
)

// DefaultCooldown is the minimum gap between notifications.
const DefaultCooldown = time.Hour

// Sender delivers one alert message.
type Sender interface {
	Send(ctx context.Context, subject, body string) error
}

// Record is one audit entry appended to the alert log.
type Record struct {
	Timestamp string   `json:"timestamp"`
	Location  string   `json:"location"`
	Turbidity *float64 `json:"turbidity,omitempty"`
	Score     int      `json:"score"`
	Status    string   `json:"status"`
	Issues    []string `json:"issues"`
	AlertSent bool     `json:"alert_sent"`
}

// Notifier evaluates assessments and fires alerts for poor or critical
// water, respecting the cooldown. Every triggered alert is appended to the
// JSONL audit log whether or not the notification went out.
type Notifier struct {
	sender   Sender
	log      *zap.SugaredLogger
	cooldown time.Duration
	logPath  string
	now      func() time.Time

	mu       sync.Mutex
	lastSent time.Time
}

// Options tunes a Notifier.
type Options struct {
	Cooldown time.Duration
	LogPath  string
	Now      func() time.Time
}

// New constructs a Notifier.
func New(sender Sender, log *zap.SugaredLogger, opts Options) *Notifier {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Notifier{
		sender:   sender,
		log:      log,
		cooldown: opts.Cooldown,
		logPath:  opts.LogPath,
		now:      opts.Now,
	}
}

// Evaluate fires when the assessment reaches poor or critical. It reports
// whether a notification was actually sent.
func (n *Notifier) Evaluate(ctx context.Context, r reading.Reading, a quality.Assessment) bool {
	if a.Status != quality.StatusPoor && a.Status != quality.StatusCritical {
		return false
	}

	sent := n.trySend(ctx, r, a)
	n.appendRecord(r, a, sent)
	return sent
}

func (n *Notifier) trySend(ctx context.Context, r reading.Reading, a quality.Assessment) bool {
	n.mu.Lock()
	now := n.now()
	if !n.lastSent.IsZero() && now.Sub(n.lastSent) < n.cooldown {
		remaining := n.cooldown - now.Sub(n.lastSent)
		n.mu.Unlock()
		n.log.Infow("alert cooldown active", "remaining", remaining)
		return false
	}
	n.mu.Unlock()

	subject := fmt.Sprintf("Water Quality Alert - %s", r.Location)
	if err := n.sender.Send(ctx, subject, n.body(r, a)); err != nil {
		n.log.Errorw("alert send failed", "error", err)
		return false
	}

	n.mu.Lock()
	n.lastSent = now
	n.mu.Unlock()
	n.log.Infow("alert sent", "location", r.Location, "status", a.Status)
	return true
}

func (n *Notifier) body(r reading.Reading, a quality.Assessment) string {
	var b strings.Builder
	b.WriteString("Water Quality Alert\n==================\n")
	fmt.Fprintf(&b, "Time: %s\nLocation: %s\n\n", r.CanonicalTimestamp(), r.Location)
	fmt.Fprintf(&b, "Status: %s (score %d)\n", a.Status, a.Score)
	if r.Turbidity != nil {
		fmt.Fprintf(&b, "Turbidity: %.2f NTU\n", *r.Turbidity)
	}
	if r.Spectrum != nil && r.Spectrum.Average != nil {
		fmt.Fprintf(&b, "Spectral average: %.2f\n", *r.Spectrum.Average)
	}
	b.WriteString("\nIssues Detected:\n")
	for _, issue := range a.Issues {
		fmt.Fprintf(&b, "- %s\n", issue)
	}
	b.WriteString("\nThis is an automated alert from the water quality monitoring system.\n")
	return b.String()
}

// appendRecord writes one JSONL audit entry. Failures are logged, never
// propagated.
func (n *Notifier) appendRecord(r reading.Reading, a quality.Assessment, sent bool) {
	if n.logPath == "" {
		return
	}

	record := Record{
		Timestamp: r.CanonicalTimestamp(),
		Location:  r.Location,
		Turbidity: a.Turbidity,
		Score:     a.Score,
		Status:    string(a.Status),
		Issues:    a.Issues,
		AlertSent: sent,
	}
	line, err := json.Marshal(record)
	if err != nil {
		n.log.Warnw("could not marshal alert record", "error", err)
		return
	}

	f, err := os.OpenFile(n.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		n.log.Warnw("could not open alert log", "path", n.logPath, "error", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		n.log.Warnw("could not write alert log", "path", n.logPath, "error", err)
	}
}
