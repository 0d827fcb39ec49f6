package iec104

import "go.uber.org/atomic"

//Stats 链路统计
type Stats struct {
	FramesSent      uint64
	FramesReceived  uint64
	IFramesSent     uint64
	IFramesReceived uint64
	DecodeErrors    uint64
	Resets          uint64
}

//linkStats 事件循环写,其他协程读
type linkStats struct {
	framesSent      atomic.Uint64
	framesReceived  atomic.Uint64
	iFramesSent     atomic.Uint64
	iFramesReceived atomic.Uint64
	decodeErrors    atomic.Uint64
	resets          atomic.Uint64
}

func (s *linkStats) sent(f Frame) {
	s.framesSent.Inc()
	if _, ok := f.(IFrame); ok {
		s.iFramesSent.Inc()
	}
	recordFrame("tx", f)
}

func (s *linkStats) received(f Frame) {
	s.framesReceived.Inc()
	if _, ok := f.(IFrame); ok {
		s.iFramesReceived.Inc()
	}
	recordFrame("rx", f)
}

func (s *linkStats) snapshot() Stats {
	return Stats{
		FramesSent:      s.framesSent.Load(),
		FramesReceived:  s.framesReceived.Load(),
		IFramesSent:     s.iFramesSent.Load(),
		IFramesReceived: s.iFramesReceived.Load(),
		DecodeErrors:    s.decodeErrors.Load(),
		Resets:          s.resets.Load(),
	}
}
