package iec104

import "fmt"

//Sequence 发送序号V(S)、接收序号V(R)和确认序号V(A)的滑动窗口
type Sequence struct {
	k, w    uint16
	ssn     uint16 //V(S)
	rsn     uint16 //V(R)
	ack     uint16 //V(A)
	unacked uint16 //已发送未被确认的I帧数
	pending uint16 //已接收未确认的I帧数
}

//NewSequence k为最大未确认I帧数,w为最迟确认的I帧数
func NewSequence(k, w uint16) *Sequence {
	return &Sequence{k: k, w: w}
}

//seqDiff (a-b) mod 2^15
func seqDiff(a, b uint16) uint16 {
	return (a - b) % seqModulo
}

//OnSendInfo 分配发送序号,窗口已满时返回ErrWindowFull
func (s *Sequence) OnSendInfo() (uint16, error) {
	if s.unacked >= s.k {
		return 0, fmt.Errorf("%w: k=%d", ErrWindowFull, s.k)
	}
	ssn := s.ssn
	s.ssn = (s.ssn + 1) % seqModulo
	s.unacked++
	return ssn, nil
}

//OnReceiveInfo 校验对端I帧的发送序号
func (s *Sequence) OnReceiveInfo(send uint16) error {
	if send != s.rsn {
		return fmt.Errorf("%w: 期望%d,收到%d", ErrSequence, s.rsn, send)
	}
	s.rsn = (s.rsn + 1) % seqModulo
	s.pending++
	return nil
}

//OnReceiveAck 处理I帧或S帧中的接收序号,返回本次新确认的I帧数
func (s *Sequence) OnReceiveAck(recv uint16) (int, error) {
	if recv >= seqModulo || seqDiff(recv, s.ack) > seqDiff(s.ssn, s.ack) {
		return 0, fmt.Errorf("%w: %d不在[%d,%d]内", ErrInvalidAck, recv, s.ack, s.ssn)
	}
	n := seqDiff(recv, s.ack)
	s.ack = recv
	s.unacked -= n
	return int(n), nil
}

//NeedsAck 已接收未确认的I帧达到w
func (s *Sequence) NeedsAck() bool {
	return s.pending >= s.w
}

//AckSent 发出确认后调用,返回确认用的V(R)
func (s *Sequence) AckSent() uint16 {
	s.pending = 0
	return s.rsn
}

//Reset 链路重建时从0开始
func (s *Sequence) Reset() {
	s.ssn, s.rsn, s.ack = 0, 0, 0
	s.unacked, s.pending = 0, 0
}

//SendSeq V(S)
func (s *Sequence) SendSeq() uint16 { return s.ssn }

//RecvSeq V(R)
func (s *Sequence) RecvSeq() uint16 { return s.rsn }

//AckSeq V(A)
func (s *Sequence) AckSeq() uint16 { return s.ack }

//Unacked 已发送未确认的I帧数
func (s *Sequence) Unacked() int { return int(s.unacked) }

//Pending 已接收未确认的I帧数
func (s *Sequence) Pending() int { return int(s.pending) }
