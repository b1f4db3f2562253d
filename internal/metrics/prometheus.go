package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics for the voice pipeline. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	// Capture metrics
	CaptureSessions prometheus.Counter
	CaptureFailures *prometheus.CounterVec
	FramesSent      prometheus.Counter
	FramesDropped   prometheus.Counter
	SamplesOverrun  prometheus.Counter
	InputLevel      prometheus.Gauge
	UtterancesEnded prometheus.Counter
	UtteranceLength prometheus.Histogram

	// Synthesis metrics
	SynthesisRequests prometheus.Counter
	SynthesisFailures prometheus.Counter
	SynthesisBytes    prometheus.Counter
	QueueRejections   prometheus.Counter

	// Playback metrics
	PlaybackSessions prometheus.Counter
	PlaybackStartLag prometheus.Histogram
}

// NewMetrics creates and registers the pipeline metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CaptureSessions: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_capture_sessions_total",
			Help: "Total number of capture sessions started",
		}),
		CaptureFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_capture_failures_total",
			Help: "Total number of capture failures by kind",
		}, []string{"kind"}),
		FramesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_transcription_frames_sent_total",
			Help: "Total number of PCM frames handed to the transcription link",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_transcription_frames_dropped_total",
			Help: "Total number of PCM frames dropped because the link was inactive or congested",
		}),
		SamplesOverrun: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_capture_samples_overrun_total",
			Help: "Total number of captured samples lost because the capture ring was full",
		}),
		InputLevel: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voice_capture_input_level",
			Help: "Normalized input level of the latest captured frame",
		}),
		UtterancesEnded: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_utterances_total",
			Help: "Total number of utterances emitted",
		}),
		UtteranceLength: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_utterance_length_chars",
			Help:    "Length of emitted utterances in characters",
			Buckets: prometheus.ExponentialBuckets(4, 2, 10), // 4 to ~2000 characters
		}),

		SynthesisRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_synthesis_requests_total",
			Help: "Total number of text chunks sent for synthesis",
		}),
		SynthesisFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_synthesis_failures_total",
			Help: "Total number of failed synthesis requests",
		}),
		SynthesisBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_synthesis_bytes_total",
			Help: "Total number of synthesized audio bytes appended for playback",
		}),
		QueueRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_synthesis_queue_rejections_total",
			Help: "Total number of text chunks rejected because the synthesis queue was full",
		}),

		PlaybackSessions: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_playback_sessions_total",
			Help: "Total number of playback sessions created",
		}),
		PlaybackStartLag: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_playback_start_lag_seconds",
			Help:    "Time from playback session creation to first audible audio",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
	}
}

// RecordCaptureStarted increments the capture sessions counter
func (m *Metrics) RecordCaptureStarted() {
	if m == nil {
		return
	}
	m.CaptureSessions.Inc()
}

// RecordCaptureFailure counts a failed capture start by kind
func (m *Metrics) RecordCaptureFailure(kind string) {
	if m == nil {
		return
	}
	m.CaptureFailures.WithLabelValues(kind).Inc()
}

// RecordFrame counts a frame as sent or dropped
func (m *Metrics) RecordFrame(sent bool) {
	if m == nil {
		return
	}
	if sent {
		m.FramesSent.Inc()
	} else {
		m.FramesDropped.Inc()
	}
}

func (m *Metrics) RecordOverrun(samples int) {
	if m == nil || samples <= 0 {
		return
	}
	m.SamplesOverrun.Add(float64(samples))
}

func (m *Metrics) SetInputLevel(level float64) {
	if m == nil {
		return
	}
	m.InputLevel.Set(level)
}

// RecordUtterance records an emitted utterance
func (m *Metrics) RecordUtterance(text string) {
	if m == nil {
		return
	}
	m.UtterancesEnded.Inc()
	m.UtteranceLength.Observe(float64(len(text)))
}

// RecordSynthesis records a finished synthesis request
func (m *Metrics) RecordSynthesis(bytes int, failed bool) {
	if m == nil {
		return
	}
	m.SynthesisRequests.Inc()
	if failed {
		m.SynthesisFailures.Inc()
		return
	}
	m.SynthesisBytes.Add(float64(bytes))
}

func (m *Metrics) RecordQueueRejection() {
	if m == nil {
		return
	}
	m.QueueRejections.Inc()
}

func (m *Metrics) RecordPlaybackSession() {
	if m == nil {
		return
	}
	m.PlaybackSessions.Inc()
}

func (m *Metrics) RecordPlaybackStarted(lagSeconds float64) {
	if m == nil {
		return
	}
	m.PlaybackStartLag.Observe(lagSeconds)
}
