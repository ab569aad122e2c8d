// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesTotal counts decoded wire frames by message type
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zbridge_frames_total",
			Help: "Total number of wire frames decoded from the serial link",
		},
		[]string{"type"},
	)

	// ResyncBytesTotal counts bytes discarded to regain frame synchronization
	ResyncBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zbridge_resync_bytes_total",
			Help: "Total number of bytes discarded while resynchronizing the serial stream",
		},
	)

	// ResyncEventsTotal counts resynchronization steps
	ResyncEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zbridge_resync_events_total",
			Help: "Total number of resynchronization steps on the serial stream",
		},
	)

	// MacDecodeErrorsTotal counts MAC frames that failed to decode, by reason
	MacDecodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zbridge_mac_decode_errors_total",
			Help: "Total number of radio packets whose MAC frame failed to decode",
		},
		[]string{"reason"},
	)

	// MacFramesTotal counts decoded MAC frames by frame type
	MacFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zbridge_mac_frames_total",
			Help: "Total number of decoded MAC frames",
		},
		[]string{"frame_type"},
	)

	// QueueDropsTotal counts radio packets dropped because the queue was full
	QueueDropsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zbridge_queue_drops_total",
			Help: "Total number of radio packets dropped on a full packet queue",
		},
	)

	// QueueOccupancyBytes tracks bytes committed to the packet queue and not yet released
	QueueOccupancyBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zbridge_queue_occupancy_bytes",
			Help: "Bytes currently held in the packet queue",
		},
	)

	// RadioErrorsTotal counts failed radio receptions
	RadioErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zbridge_radio_errors_total",
			Help: "Total number of radio receptions that failed",
		},
	)

	// SerialReadErrorsTotal counts failed reads on an open serial port
	SerialReadErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zbridge_serial_read_errors_total",
			Help: "Total number of serial read errors other than timeouts",
		},
	)

	// SerialBytesTotal counts bytes moved over the serial link by direction
	SerialBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zbridge_serial_bytes_total",
			Help: "Total number of bytes transferred over the serial link",
		},
		[]string{"direction"},
	)

	// CapturedPacketsTotal counts packets written to the pcap sink
	CapturedPacketsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zbridge_captured_packets_total",
			Help: "Total number of radio packets written to the capture file",
		},
	)
)

// Serial byte directions.
const (
	DirectionRx = "rx"
	DirectionTx = "tx"
)
