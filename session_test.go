package iec104

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

var epoch = time.Unix(1700000000, 0)

//newTestSession 返回已建立连接、数据传输未启动的会话
func newTestSession(t *testing.T, role Role, mutate func(*Config)) *session {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	if err := cfg.Valid(); err != nil {
		t.Fatalf("config: %v", err)
	}
	s := newSession(cfg, role, newEntry(nil, role, "test"), &linkStats{})
	if err := s.connect(epoch); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.established(epoch); err != nil {
		t.Fatalf("established: %v", err)
	}
	_, events := s.drain()
	if !reflect.DeepEqual(events, []Event{LinkEstablished{}}) {
		t.Fatalf("expected LinkEstablished, got %v", events)
	}
	return s
}

//start 启动数据传输并清空输出
func start(t *testing.T, s *session) {
	t.Helper()
	if s.role == RoleClient {
		if err := s.startDataTransfer(epoch); err != nil {
			t.Fatalf("start: %v", err)
		}
		if err := s.receive(UFrame{Function: StartDtCon}, epoch); err != nil {
			t.Fatalf("startdt con: %v", err)
		}
	} else if err := s.receive(UFrame{Function: StartDtAct}, epoch); err != nil {
		t.Fatalf("startdt act: %v", err)
	}
	if s.current() != StateStarted {
		t.Fatalf("state %s after start", s.current())
	}
	s.drain()
}

func mustEncode(t *testing.T, asdu *ASDU) []byte {
	t.Helper()
	raw, err := asdu.Encode(ParamsWide)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return raw
}

func expectFrames(t *testing.T, s *session, want ...Frame) []Event {
	t.Helper()
	out, events := s.drain()
	if len(want) == 0 && len(out) == 0 {
		return events
	}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("frames: got %v want %v", out, want)
	}
	return events
}

func expectReset(t *testing.T, s *session, err error, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
	if s.current() != StateClosed {
		t.Fatalf("state %s after reset", s.current())
	}
	out, events := s.drain()
	if len(out) != 0 {
		t.Fatalf("frames queued after reset: %v", out)
	}
	if len(events) == 0 {
		t.Fatalf("no LinkReset event")
	}
	r, ok := events[len(events)-1].(LinkReset)
	if !ok || !errors.Is(r.Reason, target) {
		t.Fatalf("last event %v", events[len(events)-1])
	}
	if s.seq.SendSeq() != 0 || s.seq.RecvSeq() != 0 {
		t.Fatalf("sequence state kept after reset")
	}
	if _, armed := s.timers.Next(); armed {
		t.Fatalf("timers armed after reset")
	}
}

func TestClientStartDataTransfer(t *testing.T) {
	s := newTestSession(t, RoleClient, nil)
	if err := s.send(NewInterrogation(1, QOIStation), epoch); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("send before start: expected ErrNotStarted, got %v", err)
	}
	if err := s.startDataTransfer(epoch); err != nil {
		t.Fatalf("start: %v", err)
	}
	expectFrames(t, s, UFrame{Function: StartDtAct})
	if err := s.startDataTransfer(epoch); !errors.Is(err, ErrPending) {
		t.Fatalf("second start: expected ErrPending, got %v", err)
	}
	if s.current() != StateStopped {
		t.Fatalf("started before confirmation")
	}

	if err := s.receive(UFrame{Function: StartDtCon}, epoch); err != nil {
		t.Fatalf("startdt con: %v", err)
	}
	if s.current() != StateStarted {
		t.Fatalf("state %s", s.current())
	}
	events := expectFrames(t, s)
	if !reflect.DeepEqual(events, []Event{LinkStarted{}}) {
		t.Fatalf("events %v", events)
	}
	if s.timers.Armed(T1) {
		t.Fatalf("t1 still armed after confirmation")
	}

	asdu := NewInterrogation(1, QOIStation)
	if err := s.send(asdu, epoch); err != nil {
		t.Fatalf("send: %v", err)
	}
	expectFrames(t, s, IFrame{Send: 0, Recv: 0, ASDU: mustEncode(t, asdu)})
	if err := s.startDataTransfer(epoch); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestServerAcksWithWindowOne(t *testing.T) {
	s := newTestSession(t, RoleServer, func(c *Config) { c.W = 1 })
	if err := s.receive(UFrame{Function: StartDtAct}, epoch); err != nil {
		t.Fatalf("startdt act: %v", err)
	}
	events := expectFrames(t, s, UFrame{Function: StartDtCon})
	if !reflect.DeepEqual(events, []Event{LinkStarted{}}) {
		t.Fatalf("events %v", events)
	}

	raw := mustEncode(t, NewInterrogation(1, QOIStation))
	if err := s.receive(IFrame{Send: 0, Recv: 0, ASDU: raw}, epoch); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if s.seq.RecvSeq() != 1 {
		t.Fatalf("V(R)=%d", s.seq.RecvSeq())
	}
	events = expectFrames(t, s, SFrame{Recv: 1})
	if len(events) != 1 {
		t.Fatalf("events %v", events)
	}
	rx, ok := events[0].(Received)
	if !ok || rx.ASDU.TypeID != CIcNa1 {
		t.Fatalf("event %v", events[0])
	}
	if s.timers.Armed(T2) {
		t.Fatalf("t2 armed after immediate ack")
	}
}

func TestSendWindowFull(t *testing.T) {
	s := newTestSession(t, RoleClient, nil)
	start(t, s)
	asdu := NewInterrogation(1, QOIStation)
	for i := 0; i < DefaultK; i++ {
		if err := s.send(asdu, epoch); err != nil {
			t.Fatalf("send %d: %v", i+1, err)
		}
	}
	if err := s.send(asdu, epoch); !errors.Is(err, ErrWindowFull) {
		t.Fatalf("send 13: expected ErrWindowFull, got %v", err)
	}
	if s.current() != StateStarted {
		t.Fatalf("window full reset the link")
	}
	out, _ := s.drain()
	if len(out) != DefaultK {
		t.Fatalf("%d frames emitted", len(out))
	}
	for i, f := range out {
		if f.(IFrame).Send != uint16(i) {
			t.Fatalf("frame %d has send seq %d", i, f.(IFrame).Send)
		}
	}

	//确认后窗口重新打开
	if err := s.receive(SFrame{Recv: 1}, epoch); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if _, events := s.drain(); !reflect.DeepEqual(events, []Event{WindowOpen{}}) {
		t.Fatalf("expected WindowOpen, got %v", events)
	}
	if err := s.receive(SFrame{Recv: 12}, epoch); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if _, events := s.drain(); len(events) != 0 {
		t.Fatalf("WindowOpen repeated: %v", events)
	}
	if err := s.send(asdu, epoch); err != nil {
		t.Fatalf("send after ack: %v", err)
	}
}

func TestWindowOpenOnlyAfterRefusal(t *testing.T) {
	s := newTestSession(t, RoleClient, nil)
	start(t, s)
	if err := s.send(NewInterrogation(1, QOIStation), epoch); err != nil {
		t.Fatalf("send: %v", err)
	}
	s.drain()
	if err := s.receive(SFrame{Recv: 1}, epoch); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if _, events := s.drain(); len(events) != 0 {
		t.Fatalf("unexpected events %v", events)
	}
}

func TestTestFrameAnsweredWhileStopped(t *testing.T) {
	for _, role := range []Role{RoleClient, RoleServer} {
		t.Run(role.String(), func(t *testing.T) {
			s := newTestSession(t, role, nil)
			if err := s.receive(UFrame{Function: TestFrAct}, epoch); err != nil {
				t.Fatalf("testfr act: %v", err)
			}
			expectFrames(t, s, UFrame{Function: TestFrCon})
			if s.current() != StateStopped {
				t.Fatalf("state %s", s.current())
			}
		})
	}
}

func TestAckTimeout(t *testing.T) {
	s := newTestSession(t, RoleClient, nil)
	start(t, s)
	if err := s.send(NewInterrogation(1, QOIStation), epoch); err != nil {
		t.Fatalf("send: %v", err)
	}
	s.drain()
	if err := s.tick(epoch.Add(DefaultT1 - time.Millisecond)); err != nil {
		t.Fatalf("early tick: %v", err)
	}
	err := s.tick(epoch.Add(DefaultT1))
	expectReset(t, s, err, ErrAckTimeout)
}

func TestAckCancelsT1(t *testing.T) {
	s := newTestSession(t, RoleClient, nil)
	start(t, s)
	s.send(NewInterrogation(1, QOIStation), epoch)
	s.send(NewInterrogation(1, QOIStation), epoch.Add(5*time.Second))
	s.drain()

	//只确认第一帧,t1从第二帧开始计时
	if err := s.receive(SFrame{Recv: 1}, epoch.Add(6*time.Second)); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if d, _ := s.timers.Deadline(T1); !d.Equal(epoch.Add(5*time.Second + DefaultT1)) {
		t.Fatalf("t1 deadline %v", d)
	}
	if err := s.tick(epoch.Add(DefaultT1)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if err := s.receive(SFrame{Recv: 2}, epoch.Add(16*time.Second)); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if s.timers.Armed(T1) {
		t.Fatalf("t1 armed with nothing outstanding")
	}
}

func TestEstablishmentTimeout(t *testing.T) {
	cfg := DefaultConfig()
	s := newSession(cfg, RoleClient, newEntry(nil, RoleClient, ""), &linkStats{})
	if err := s.connect(epoch); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if s.current() != StateConnecting {
		t.Fatalf("state %s", s.current())
	}
	err := s.tick(epoch.Add(DefaultT0))
	expectReset(t, s, err, ErrEstablishmentTimeout)
}

func TestStartConfirmTimeout(t *testing.T) {
	s := newTestSession(t, RoleClient, nil)
	s.startDataTransfer(epoch)
	s.drain()
	err := s.tick(epoch.Add(DefaultT1))
	expectReset(t, s, err, ErrConfirmTimeout)
}

func TestDelayedAckT2(t *testing.T) {
	s := newTestSession(t, RoleServer, nil)
	start(t, s)
	raw := mustEncode(t, NewInterrogation(1, QOIStation))
	s.receive(IFrame{Send: 0, Recv: 0, ASDU: raw}, epoch)
	s.receive(IFrame{Send: 1, Recv: 0, ASDU: raw}, epoch.Add(time.Second))
	expectFrames(t, s)
	if d, _ := s.timers.Deadline(T2); !d.Equal(epoch.Add(DefaultT2)) {
		t.Fatalf("t2 deadline %v", d)
	}
	if err := s.tick(epoch.Add(DefaultT2)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	expectFrames(t, s, SFrame{Recv: 2})
}

func TestAckBatching(t *testing.T) {
	s := newTestSession(t, RoleServer, nil)
	start(t, s)
	raw := mustEncode(t, NewInterrogation(1, QOIStation))
	for i := uint16(0); i < DefaultW; i++ {
		if err := s.receive(IFrame{Send: i, Recv: 0, ASDU: raw}, epoch); err != nil {
			t.Fatalf("receive %d: %v", i, err)
		}
		if i < DefaultW-1 {
			expectFrames(t, s)
		}
	}
	expectFrames(t, s, SFrame{Recv: DefaultW})
}

func TestOutgoingIFrameCarriesAck(t *testing.T) {
	s := newTestSession(t, RoleServer, nil)
	start(t, s)
	req := NewInterrogation(1, QOIStation)
	s.receive(IFrame{Send: 0, Recv: 0, ASDU: mustEncode(t, req)}, epoch)
	s.drain()
	con := req.Reply(CauseActivationCon, false)
	if err := s.send(con, epoch); err != nil {
		t.Fatalf("send: %v", err)
	}
	expectFrames(t, s, IFrame{Send: 0, Recv: 1, ASDU: mustEncode(t, con)})
	if s.timers.Armed(T2) || s.seq.Pending() != 0 {
		t.Fatalf("I-frame did not count as acknowledgement")
	}
}

func TestIdleTestFrame(t *testing.T) {
	s := newTestSession(t, RoleClient, nil)
	if err := s.tick(epoch.Add(DefaultT3)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	expectFrames(t, s, UFrame{Function: TestFrAct})
	if err := s.receive(UFrame{Function: TestFrCon}, epoch.Add(DefaultT3+time.Second)); err != nil {
		t.Fatalf("testfr con: %v", err)
	}
	if s.timers.Armed(T1) || s.testing {
		t.Fatalf("test frame still outstanding")
	}

	//对端不再应答
	next, _ := s.timers.Deadline(T3)
	s.tick(next)
	expectFrames(t, s, UFrame{Function: TestFrAct})
	err := s.tick(next.Add(DefaultT1))
	expectReset(t, s, err, ErrConfirmTimeout)
}

func TestStopDataTransfer(t *testing.T) {
	s := newTestSession(t, RoleClient, nil)
	start(t, s)
	raw := mustEncode(t, &ASDU{TypeID: MSpNa1, Cause: CauseSpontaneous, CommonAddr: 1, Objects: []InfoObject{{Address: 1, Value: SinglePoint(true)}}})
	s.receive(IFrame{Send: 0, Recv: 0, ASDU: raw}, epoch)
	s.drain()

	if err := s.stopDataTransfer(epoch); err != nil {
		t.Fatalf("stop: %v", err)
	}
	expectFrames(t, s, SFrame{Recv: 1}, UFrame{Function: StopDtAct})
	if err := s.send(NewInterrogation(1, QOIStation), epoch); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("send while stopping: expected ErrNotStarted, got %v", err)
	}
	if err := s.receive(UFrame{Function: StopDtCon}, epoch); err != nil {
		t.Fatalf("stopdt con: %v", err)
	}
	events := expectFrames(t, s)
	if s.current() != StateStopped || !reflect.DeepEqual(events, []Event{LinkStopped{}}) {
		t.Fatalf("state %s events %v", s.current(), events)
	}
	if err := s.stopDataTransfer(epoch); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
}

func TestServerStopDataTransfer(t *testing.T) {
	s := newTestSession(t, RoleServer, nil)
	start(t, s)
	raw := mustEncode(t, NewInterrogation(1, QOIStation))
	s.receive(IFrame{Send: 0, Recv: 0, ASDU: raw}, epoch)
	s.drain()
	if err := s.receive(UFrame{Function: StopDtAct}, epoch); err != nil {
		t.Fatalf("stopdt act: %v", err)
	}
	events := expectFrames(t, s, SFrame{Recv: 1}, UFrame{Function: StopDtCon})
	if s.current() != StateStopped || !reflect.DeepEqual(events, []Event{LinkStopped{}}) {
		t.Fatalf("state %s events %v", s.current(), events)
	}
}

func TestProtocolViolations(t *testing.T) {
	raw := []byte{0x64, 0x01, 0x06, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x14}
	tests := []struct {
		name    string
		role    Role
		started bool
		frame   Frame
		want    error
	}{
		{"i frame while stopped", RoleServer, false, IFrame{Send: 0, Recv: 0, ASDU: raw}, ErrUnexpectedFrame},
		{"client receives startdt act", RoleClient, false, UFrame{Function: StartDtAct}, ErrUnexpectedFrame},
		{"send sequence gap", RoleServer, true, IFrame{Send: 1, Recv: 0, ASDU: raw}, ErrSequence},
		{"ack beyond sent", RoleClient, true, SFrame{Recv: 5}, ErrInvalidAck},
		{"i frame ack beyond sent", RoleServer, true, IFrame{Send: 0, Recv: 3, ASDU: raw}, ErrInvalidAck},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t, tt.role, nil)
			if tt.started {
				start(t, s)
			}
			err := s.receive(tt.frame, epoch)
			expectReset(t, s, err, tt.want)
		})
	}
}

func TestDecodeErrorKeepsLink(t *testing.T) {
	s := newTestSession(t, RoleServer, nil)
	start(t, s)
	if err := s.receive(IFrame{Send: 0, Recv: 0, ASDU: []byte{0x7F, 0x01, 0x06, 0x00, 0x01, 0x00}}, epoch); err != nil {
		t.Fatalf("receive: %v", err)
	}
	events := expectFrames(t, s)
	if len(events) != 1 {
		t.Fatalf("events %v", events)
	}
	de, ok := events[0].(DecodeError)
	if !ok || !errors.Is(de.Err, ErrUnsupportedType) {
		t.Fatalf("event %v", events[0])
	}
	if s.current() != StateStarted || s.seq.RecvSeq() != 1 {
		t.Fatalf("state %s V(R)=%d", s.current(), s.seq.RecvSeq())
	}
	if s.stats.decodeErrors.Load() != 1 {
		t.Fatalf("decode error not counted")
	}
}

func TestUnsolicitedConfirmationsIgnored(t *testing.T) {
	s := newTestSession(t, RoleClient, nil)
	for _, fn := range []UFunction{StartDtCon, StopDtCon, TestFrCon} {
		if err := s.receive(UFrame{Function: fn}, epoch); err != nil {
			t.Fatalf("%v: %v", fn, err)
		}
	}
	if s.current() != StateStopped {
		t.Fatalf("state %s", s.current())
	}
}

func TestCloseSession(t *testing.T) {
	s := newTestSession(t, RoleClient, nil)
	start(t, s)
	if err := s.close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if s.current() != StateClosing {
		t.Fatalf("state %s", s.current())
	}
	if err := s.send(NewInterrogation(1, QOIStation), epoch); !errors.Is(err, ErrClosed) {
		t.Fatalf("send while closing: expected ErrClosed, got %v", err)
	}
	s.finish()
	if s.current() != StateClosed {
		t.Fatalf("state %s", s.current())
	}
	_, events := s.drain()
	if !reflect.DeepEqual(events, []Event{LinkReset{Reason: ErrClosed}}) {
		t.Fatalf("events %v", events)
	}
	if err := s.close(); !errors.Is(err, ErrClosed) {
		t.Fatalf("close after finish: %v", err)
	}
}

func TestSessionStats(t *testing.T) {
	s := newTestSession(t, RoleServer, nil)
	start(t, s)
	raw := mustEncode(t, NewInterrogation(1, QOIStation))
	s.receive(IFrame{Send: 0, Recv: 0, ASDU: raw}, epoch)
	s.send(NewInterrogation(1, QOIStation).Reply(CauseActivationCon, false), epoch)
	got := s.stats.snapshot()
	want := Stats{FramesSent: 2, FramesReceived: 2, IFramesSent: 1, IFramesReceived: 1}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}
