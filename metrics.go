package iec104

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	linkFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iec104",
			Subsystem: "link",
			Name:      "frames_total",
			Help:      "APDUs sent and received.",
		},
		[]string{"direction", "format"},
	)
	linkResets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iec104",
			Subsystem: "link",
			Name:      "resets_total",
			Help:      "Link resets by reason.",
		},
		[]string{"reason"},
	)
	asduDecodeErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "iec104",
			Subsystem: "asdu",
			Name:      "decode_errors_total",
			Help:      "ASDUs that could not be decoded.",
		},
	)
	linkConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "iec104",
			Subsystem: "link",
			Name:      "connections",
			Help:      "Links by state.",
		},
		[]string{"state"},
	)
)

//RegisterMetrics 注册到prometheus默认registry,可重复调用
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(linkFrames, linkResets, asduDecodeErrors, linkConnections)
	})
}

func recordFrame(direction string, f Frame) {
	linkFrames.WithLabelValues(direction, formatName(f)).Inc()
}

func recordReset(reason error) {
	linkResets.WithLabelValues(reasonLabel(reason)).Inc()
}

//recordState closed状态不计数
func recordState(from, to State) {
	if from != "" && from != StateClosed {
		linkConnections.WithLabelValues(string(from)).Dec()
	}
	if to != "" && to != StateClosed {
		linkConnections.WithLabelValues(string(to)).Inc()
	}
}

var reasonLabels = []struct {
	err   error
	label string
}{
	{ErrClosed, "closed"},
	{ErrEstablishmentTimeout, "t0"},
	{ErrAckTimeout, "t1_ack"},
	{ErrConfirmTimeout, "t1_confirm"},
	{ErrSequence, "sequence"},
	{ErrInvalidAck, "invalid_ack"},
	{ErrUnexpectedFrame, "unexpected_frame"},
	{ErrInvalidStartByte, "framing"},
	{ErrLengthMismatch, "framing"},
	{ErrUnknownControl, "framing"},
}

//reasonLabel 链路重置原因的指标标签
func reasonLabel(reason error) string {
	for _, r := range reasonLabels {
		if errors.Is(reason, r.err) {
			return r.label
		}
	}
	return "transport"
}
