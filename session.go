package iec104

import (
	"context"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"
)

//State 链路状态
type State string

//链路状态
const (
	StateClosed     State = "closed"     //未连接
	StateConnecting State = "connecting" //正在建立连接
	StateStopped    State = "stopped"    //已连接,数据传输未启动
	StateStarted    State = "started"    //数据传输已启动
	StateClosing    State = "closing"    //正在关闭
)

//Role 主站或子站
type Role int

//角色
const (
	RoleClient Role = iota //控制站
	RoleServer             //被控站
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

//状态机事件
const (
	evConnect   = "connect"
	evEstablish = "establish"
	evStart     = "start"
	evStop      = "stop"
	evClose     = "close"
	evReset     = "reset"
	evFinish    = "finish"
)

func newLinkFSM(callbacks fsm.Callbacks) *fsm.FSM {
	closed, connecting := string(StateClosed), string(StateConnecting)
	stopped, started, closing := string(StateStopped), string(StateStarted), string(StateClosing)
	return fsm.NewFSM(
		closed,
		fsm.Events{
			{Name: evConnect, Src: []string{closed}, Dst: connecting},
			{Name: evEstablish, Src: []string{connecting}, Dst: stopped},
			{Name: evStart, Src: []string{stopped}, Dst: started},
			{Name: evStop, Src: []string{started}, Dst: stopped},
			{Name: evClose, Src: []string{connecting, stopped, started}, Dst: closing},
			{Name: evReset, Src: []string{connecting, stopped, started, closing}, Dst: closed},
			{Name: evFinish, Src: []string{closing}, Dst: closed},
		},
		callbacks,
	)
}

//session 单条链路的协议状态,只能在一个协程中调用
//
//所有方法都以now作为当前时间,输出的帧和事件由drain取走
type session struct {
	cfg    Config
	role   Role
	log    *logrus.Entry
	state  *fsm.FSM
	seq    *Sequence
	timers Timers
	stats  *linkStats

	sentAt  []time.Time //未被确认的I帧发送时间
	ctrl    UFunction   //等待确认的STARTDT/STOPDT
	ctrlAt  time.Time
	testing bool //等待TESTFR确认
	testAt  time.Time
	blocked bool //发送因窗口已满被拒绝,确认后通知WindowOpen

	out    []Frame
	events []Event
}

func newSession(cfg Config, role Role, log *logrus.Entry, stats *linkStats) *session {
	s := &session{
		cfg:   cfg,
		role:  role,
		log:   log,
		seq:   NewSequence(cfg.K, cfg.W),
		stats: stats,
	}
	s.state = newLinkFSM(fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			s.log.Infof("链路状态 %s -> %s", e.Src, e.Dst)
			recordState(State(e.Src), State(e.Dst))
		},
	})
	return s
}

func (s *session) current() State {
	return State(s.state.Current())
}

func (s *session) transition(event string) error {
	if err := s.state.Event(context.Background(), event); err != nil {
		return fmt.Errorf("%s: %w", s.current(), err)
	}
	return nil
}

func (s *session) connected() bool {
	st := s.current()
	return st == StateStopped || st == StateStarted
}

//drain 取出待发送的帧和待通知的事件
func (s *session) drain() ([]Frame, []Event) {
	out, events := s.out, s.events
	s.out, s.events = nil, nil
	return out, events
}

func (s *session) emit(f Frame, now time.Time) {
	s.out = append(s.out, f)
	s.timers.Arm(T3, now.Add(s.cfg.T3))
	s.stats.sent(f)
	s.log.Debugf("发送%v", f)
}

func (s *session) notify(e Event) {
	s.events = append(s.events, e)
}

//connect Closed -> Connecting,启动t0
func (s *session) connect(now time.Time) error {
	if err := s.transition(evConnect); err != nil {
		return err
	}
	s.timers.Arm(T0, now.Add(s.cfg.T0))
	return nil
}

//established Connecting -> Connected-Stopped,序号从0开始
func (s *session) established(now time.Time) error {
	if err := s.transition(evEstablish); err != nil {
		return err
	}
	s.timers.Cancel(T0)
	s.seq.Reset()
	s.timers.Arm(T3, now.Add(s.cfg.T3))
	s.notify(LinkEstablished{})
	return nil
}

//startDataTransfer 发送STARTDT激活,收到确认后进入started
func (s *session) startDataTransfer(now time.Time) error {
	switch s.current() {
	case StateStopped:
	case StateStarted:
		return ErrAlreadyStarted
	default:
		return ErrNotConnected
	}
	if s.ctrl != 0 {
		return fmt.Errorf("%w: %v", ErrPending, s.ctrl)
	}
	s.ctrl, s.ctrlAt = StartDtAct, now
	s.emit(UFrame{Function: StartDtAct}, now)
	s.rearmT1()
	return nil
}

//stopDataTransfer 确认已收到的I帧后发送STOPDT激活
func (s *session) stopDataTransfer(now time.Time) error {
	switch s.current() {
	case StateStarted:
	case StateStopped:
		return ErrNotStarted
	default:
		return ErrNotConnected
	}
	if s.ctrl != 0 {
		return fmt.Errorf("%w: %v", ErrPending, s.ctrl)
	}
	if s.seq.Pending() > 0 {
		s.sendAck(now)
	}
	s.ctrl, s.ctrlAt = StopDtAct, now
	s.emit(UFrame{Function: StopDtAct}, now)
	s.rearmT1()
	return nil
}

//send 发送I帧,窗口已满时返回ErrWindowFull,链路不受影响
func (s *session) send(asdu *ASDU, now time.Time) error {
	switch s.current() {
	case StateStarted:
	case StateStopped:
		return ErrNotStarted
	case StateClosing:
		return ErrClosed
	default:
		return ErrNotConnected
	}
	if s.ctrl == StopDtAct {
		return fmt.Errorf("%w: 正在停止", ErrNotStarted)
	}
	raw, err := asdu.Encode(&s.cfg.Params)
	if err != nil {
		return err
	}
	ssn, err := s.seq.OnSendInfo()
	if err != nil {
		s.blocked = true
		return err
	}
	rsn := s.seq.AckSent()
	s.timers.Cancel(T2)
	s.emit(IFrame{Send: ssn, Recv: rsn, ASDU: raw}, now)
	s.sentAt = append(s.sentAt, now)
	s.rearmT1()
	return nil
}

//sendAck 发送S帧确认全部已收到的I帧
func (s *session) sendAck(now time.Time) {
	rsn := s.seq.AckSent()
	s.timers.Cancel(T2)
	s.emit(SFrame{Recv: rsn}, now)
}

//rearmT1 t1从最早一个未确认的帧开始计时
func (s *session) rearmT1() {
	var oldest time.Time
	pick := func(t time.Time) {
		if oldest.IsZero() || t.Before(oldest) {
			oldest = t
		}
	}
	if len(s.sentAt) > 0 {
		pick(s.sentAt[0])
	}
	if s.ctrl != 0 {
		pick(s.ctrlAt)
	}
	if s.testing {
		pick(s.testAt)
	}
	if oldest.IsZero() {
		s.timers.Cancel(T1)
		return
	}
	s.timers.Arm(T1, oldest.Add(s.cfg.T1))
}

//acknowledge 处理对端的接收序号
func (s *session) acknowledge(recv uint16) error {
	n, err := s.seq.OnReceiveAck(recv)
	if err != nil {
		return err
	}
	if n > len(s.sentAt) {
		n = len(s.sentAt)
	}
	s.sentAt = s.sentAt[n:]
	s.rearmT1()
	if n > 0 && s.blocked {
		s.blocked = false
		s.notify(WindowOpen{})
	}
	return nil
}

//receive 处理收到的帧,返回非nil时链路已重置
func (s *session) receive(f Frame, now time.Time) error {
	if !s.connected() {
		s.log.Debugf("%s状态丢弃%v", s.current(), f)
		return nil
	}
	s.stats.received(f)
	s.log.Debugf("接收%v", f)
	s.timers.Arm(T3, now.Add(s.cfg.T3))
	switch v := f.(type) {
	case IFrame:
		return s.receiveI(v, now)
	case SFrame:
		if err := s.acknowledge(v.Recv); err != nil {
			return s.fail(err)
		}
	case UFrame:
		return s.receiveU(v.Function, now)
	}
	return nil
}

func (s *session) receiveI(f IFrame, now time.Time) error {
	if s.current() != StateStarted {
		return s.fail(fmt.Errorf("%w: %s状态收到I帧", ErrUnexpectedFrame, s.current()))
	}
	if err := s.seq.OnReceiveInfo(f.Send); err != nil {
		return s.fail(err)
	}
	if err := s.acknowledge(f.Recv); err != nil {
		return s.fail(err)
	}
	s.timers.ArmIfIdle(T2, now.Add(s.cfg.T2))

	asdu, err := DecodeASDU(&s.cfg.Params, f.ASDU)
	if err != nil {
		s.stats.decodeErrors.Inc()
		asduDecodeErrors.Inc()
		s.log.Warnf("解析ASDU[% X]异常: %v", f.ASDU, err)
		s.notify(DecodeError{Raw: f.ASDU, Err: err})
	} else {
		s.notify(Received{ASDU: asdu})
	}

	if s.seq.NeedsAck() {
		s.sendAck(now)
	}
	return nil
}

func (s *session) receiveU(fn UFunction, now time.Time) error {
	switch fn {
	case TestFrAct:
		s.emit(UFrame{Function: fn.confirmation()}, now)
	case TestFrCon:
		if !s.testing {
			s.log.Warnln("收到未请求的测试确认帧")
			return nil
		}
		s.testing = false
		s.rearmT1()
	case StartDtAct:
		if s.role == RoleClient {
			return s.fail(fmt.Errorf("%w: 控制站收到启动激活帧", ErrUnexpectedFrame))
		}
		s.emit(UFrame{Function: fn.confirmation()}, now)
		if s.current() == StateStopped {
			if err := s.transition(evStart); err != nil {
				return s.fail(err)
			}
			s.notify(LinkStarted{})
		}
	case StartDtCon:
		if s.ctrl != StartDtAct {
			s.log.Warnln("收到未请求的启动确认帧")
			return nil
		}
		s.ctrl = 0
		s.rearmT1()
		if err := s.transition(evStart); err != nil {
			return s.fail(err)
		}
		s.notify(LinkStarted{})
	case StopDtAct:
		if s.seq.Pending() > 0 {
			s.sendAck(now)
		}
		s.emit(UFrame{Function: fn.confirmation()}, now)
		if s.current() == StateStarted {
			if err := s.transition(evStop); err != nil {
				return s.fail(err)
			}
			s.notify(LinkStopped{})
		}
	case StopDtCon:
		if s.ctrl != StopDtAct {
			s.log.Warnln("收到未请求的停止确认帧")
			return nil
		}
		s.ctrl = 0
		s.rearmT1()
		if err := s.transition(evStop); err != nil {
			return s.fail(err)
		}
		s.notify(LinkStopped{})
	}
	return nil
}

//tick 处理now时到期的定时器,返回非nil时链路已重置
func (s *session) tick(now time.Time) error {
	for _, id := range s.timers.Poll(now) {
		switch id {
		case T0:
			if s.current() == StateConnecting {
				return s.fail(ErrEstablishmentTimeout)
			}
		case T1:
			if len(s.sentAt) > 0 && !now.Before(s.sentAt[0].Add(s.cfg.T1)) {
				return s.fail(fmt.Errorf("%w: %d个I帧未确认", ErrAckTimeout, len(s.sentAt)))
			}
			if s.ctrl != 0 && !now.Before(s.ctrlAt.Add(s.cfg.T1)) {
				return s.fail(fmt.Errorf("%w: %v", ErrConfirmTimeout, s.ctrl))
			}
			if s.testing && !now.Before(s.testAt.Add(s.cfg.T1)) {
				return s.fail(fmt.Errorf("%w: %v", ErrConfirmTimeout, TestFrAct))
			}
			s.rearmT1()
		case T2:
			if s.connected() && s.seq.Pending() > 0 {
				s.sendAck(now)
			}
		case T3:
			if !s.connected() {
				continue
			}
			if s.testing {
				s.timers.Arm(T3, now.Add(s.cfg.T3))
				continue
			}
			s.log.Debugln("t3超时,发送测试激活帧")
			s.testing, s.testAt = true, now
			s.emit(UFrame{Function: TestFrAct}, now)
			s.rearmT1()
		}
	}
	return nil
}

//close 进入closing,不再接受发送
func (s *session) close() error {
	switch s.current() {
	case StateClosed:
		return ErrClosed
	case StateClosing:
		return nil
	}
	if err := s.transition(evClose); err != nil {
		return err
	}
	s.timers.CancelAll()
	return nil
}

//finish 传输层已关闭,Closing -> Closed
func (s *session) finish() {
	if s.current() != StateClosing {
		return
	}
	if err := s.transition(evFinish); err != nil {
		s.log.Errorf("关闭链路: %v", err)
	}
	s.discard()
	s.stats.resets.Inc()
	recordReset(ErrClosed)
	s.notify(LinkReset{Reason: ErrClosed})
}

//fail 致命错误,丢弃全部序号状态并回到closed
func (s *session) fail(reason error) error {
	if s.current() == StateClosed {
		return reason
	}
	if err := s.transition(evReset); err != nil {
		s.log.Errorf("重置链路: %v", err)
	}
	s.discard()
	s.out = nil
	s.stats.resets.Inc()
	recordReset(reason)
	s.log.Errorf("链路重置: %v", reason)
	s.notify(LinkReset{Reason: reason})
	return reason
}

func (s *session) discard() {
	s.timers.CancelAll()
	s.seq.Reset()
	s.sentAt = nil
	s.ctrl = 0
	s.testing = false
	s.blocked = false
}
