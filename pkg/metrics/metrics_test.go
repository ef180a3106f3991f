package metrics_test

import (
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/upbeatlab/chatrelay/pkg/metrics"
)

var _ = Describe("Metrics", func() {
	var m *metrics.Metrics

	BeforeEach(func() {
		m = metrics.New()
	})

	It("counts streams by strategy and outcome", func() {
		m.ObserveStream("proxied", "completed", false, 3, time.Second)
		m.ObserveStream("proxied", "completed", false, 1, time.Second)
		m.ObserveStream("buffered", "error", true, 1, time.Second)

		expected := `
# HELP relay_streams_total Relayed chat streams by transport strategy and outcome
# TYPE relay_streams_total counter
relay_streams_total{outcome="completed",strategy="proxied"} 2
relay_streams_total{outcome="error",strategy="buffered"} 1
`
		Expect(testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "relay_streams_total")).To(Succeed())
	})

	It("counts fallbacks only for fallen back streams", func() {
		m.ObserveStream("proxied", "completed", false, 1, time.Second)
		m.ObserveStream("buffered", "completed", true, 1, time.Second)

		expected := `
# HELP relay_fallbacks_total Streams served by the buffered fallback after the primary failed to open
# TYPE relay_fallbacks_total counter
relay_fallbacks_total 1
`
		Expect(testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "relay_fallbacks_total")).To(Succeed())
	})

	It("observes snapshots and durations", func() {
		m.ObserveStream("direct", "completed", false, 4, 2*time.Second)

		Expect(testutil.CollectAndCount(m.Registry, "relay_snapshots_per_stream")).To(Equal(1))
		Expect(testutil.CollectAndCount(m.Registry, "relay_stream_duration_seconds")).To(Equal(1))
	})

	It("counts dropped and failed transcripts", func() {
		m.TranscriptDropped()
		m.TranscriptDropped()
		m.TranscriptFailed()

		expected := `
# HELP relay_transcripts_dropped_total Transcripts dropped because the persistence queue was full or closed
# TYPE relay_transcripts_dropped_total counter
relay_transcripts_dropped_total 2
# HELP relay_transcripts_failed_total Transcripts the storage driver failed to persist
# TYPE relay_transcripts_failed_total counter
relay_transcripts_failed_total 1
`
		Expect(testutil.GatherAndCompare(m.Registry, strings.NewReader(expected),
			"relay_transcripts_dropped_total", "relay_transcripts_failed_total")).To(Succeed())
	})

	It("is safe to use when nil", func() {
		var nilMetrics *metrics.Metrics
		Expect(func() {
			nilMetrics.ObserveStream("direct", "completed", false, 1, time.Second)
			nilMetrics.TranscriptDropped()
			nilMetrics.TranscriptFailed()
		}).NotTo(Panic())
	})
})
