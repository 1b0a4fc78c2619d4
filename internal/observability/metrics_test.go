package observability

import (
	"testing"
	"time"

	"github.com/rs/zerolog/log"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("GET", "/health", 200, 12*time.Millisecond)
	RecordMarkerSubmission("MobiMarkerStream", true)
	RecordMarkerPush("MobiMarkerStream", "sent")
	RecordStatusReport("MobiMarkerStream")
	SetStreamReady("MobiMarkerStream", true)
	SetStreamReady("MobiMarkerStream", false)

	log.Info().Msg("observability/metrics: registration idempotent and recording paths executed")
}
