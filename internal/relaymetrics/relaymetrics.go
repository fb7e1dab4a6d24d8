// Package relaymetrics exposes the server's and client's counters as
// prometheus instruments, in the style runZeroInc-sockstats wires
// github.com/prometheus/client_golang around its socket statistics
// (cmd/prom-metrics-gen). ServerMetrics and ClientMetrics hold the
// prometheus instruments directly; there is no separate snapshot struct.
package relaymetrics

import "github.com/prometheus/client_golang/prometheus"

// ServerMetrics collects the server engine's live counters.
// DuplicatesDropped is registered, but nothing in this module increments
// it: the framing layer drops duplicate datagrams without reporting them.
type ServerMetrics struct {
	FramesReceived   prometheus.Counter
	FramesSent       prometheus.Counter
	BytesSent        prometheus.Counter
	SlotsAllocated   prometheus.Counter
	SlotsPurged      prometheus.Counter
	SlotPoolExhausted prometheus.Counter
	SandboxRejections prometheus.Counter
	StatCacheHits    prometheus.Counter
	StatCacheMisses  prometheus.Counter
	DuplicatesDropped prometheus.Counter
	ActiveSlots      prometheus.Gauge
}

// NewServerMetrics registers and returns the server's metric set on
// reg. Pass prometheus.NewRegistry() for an isolated test registry, or
// prometheus.DefaultRegisterer for the process-wide one.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	m := &ServerMetrics{
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filerelay_server_frames_received_total",
			Help: "Frames received by the server dispatch loop.",
		}),
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filerelay_server_frames_sent_total",
			Help: "Frames sent by the server.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filerelay_server_bytes_sent_total",
			Help: "Payload bytes sent by the server, excluding frame headers.",
		}),
		SlotsAllocated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filerelay_server_slots_allocated_total",
			Help: "Transaction slots allocated.",
		}),
		SlotsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filerelay_server_slots_purged_total",
			Help: "Transaction slots reclaimed by age-based purge.",
		}),
		SlotPoolExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filerelay_server_slot_pool_exhausted_total",
			Help: "Allocation attempts that found no free slot even after a purge pass.",
		}),
		SandboxRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filerelay_server_sandbox_rejections_total",
			Help: "Paths rejected by sandbox resolution.",
		}),
		StatCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filerelay_server_stat_cache_hits_total",
			Help: "Stat lookups served from the cache.",
		}),
		StatCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filerelay_server_stat_cache_misses_total",
			Help: "Stat lookups that required a fresh syscall.",
		}),
		DuplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filerelay_server_duplicate_frames_dropped_total",
			Help: "Duplicate datagrams suppressed at the framing layer.",
		}),
		ActiveSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "filerelay_server_active_slots",
			Help: "Transaction slots currently holding a buffered response or open file.",
		}),
	}
	reg.MustRegister(
		m.FramesReceived, m.FramesSent, m.BytesSent,
		m.SlotsAllocated, m.SlotsPurged, m.SlotPoolExhausted,
		m.SandboxRejections, m.StatCacheHits, m.StatCacheMisses,
		m.DuplicatesDropped, m.ActiveSlots,
	)
	return m
}

// ClientMetrics collects the client engine's live counters.
type ClientMetrics struct {
	RequestsSent    prometheus.Counter
	BytesReceived   prometheus.Counter
	Timeouts        prometheus.Counter
	ProtocolErrors  prometheus.Counter
	ApplicationErrs prometheus.Counter
}

// NewClientMetrics registers and returns the client's metric set on reg.
func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	m := &ClientMetrics{
		RequestsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filerelay_client_requests_sent_total",
			Help: "Commands sent by the client.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filerelay_client_bytes_received_total",
			Help: "Payload bytes received by the client across all delivery styles.",
		}),
		Timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filerelay_client_timeouts_total",
			Help: "Requests that ended in TransportTimeout.",
		}),
		ProtocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filerelay_client_protocol_errors_total",
			Help: "Requests that ended in ProtocolViolation.",
		}),
		ApplicationErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filerelay_client_application_errors_total",
			Help: "Requests that ended in an application-level z response.",
		}),
	}
	reg.MustRegister(m.RequestsSent, m.BytesReceived, m.Timeouts, m.ProtocolErrors, m.ApplicationErrs)
	return m
}
