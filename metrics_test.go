package iec104

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestReasonLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrClosed, "closed"},
		{fmt.Errorf("%w: 2个I帧未确认", ErrAckTimeout), "t1_ack"},
		{fmt.Errorf("%w: STARTDT_ACT", ErrConfirmTimeout), "t1_confirm"},
		{ErrEstablishmentTimeout, "t0"},
		{fmt.Errorf("读取: %w", ErrInvalidStartByte), "framing"},
		{ErrSequence, "sequence"},
		{ErrInvalidAck, "invalid_ack"},
		{ErrUnexpectedFrame, "unexpected_frame"},
		{fmt.Errorf("写入: broken pipe"), "transport"},
	}
	for _, tt := range tests {
		if got := reasonLabel(tt.err); got != tt.want {
			t.Errorf("%v: got %s want %s", tt.err, got, tt.want)
		}
	}
}

func TestRegisterMetricsTwice(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()
	recordFrame("tx", UFrame{Function: TestFrAct})
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "iec104_link_frames_total" {
			return
		}
	}
	t.Fatalf("iec104_link_frames_total not registered")
}
