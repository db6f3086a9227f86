package kintobridge

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

var (
	requestsTotal  = metrics.GetOrCreateCounter(`kinto_bridge_requests_total`)
	attemptsTotal  = metrics.GetOrCreateCounter(`kinto_bridge_attempts_total`)
	retriesTotal   = metrics.GetOrCreateCounter(`kinto_bridge_retries_total`)
	timeoutsTotal  = metrics.GetOrCreateCounter(`kinto_bridge_timeouts_total`)
	requestSeconds = metrics.GetOrCreateHistogram(`kinto_bridge_request_duration_seconds`)
)

func observeStatus(status int) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`kinto_bridge_responses_total{status="%d"}`, status)).Inc()
}

func observeSignal(name string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`kinto_bridge_signals_total{signal=%q}`, name)).Inc()
}

func observeDuration(start time.Time) {
	requestSeconds.UpdateDuration(start)
}
