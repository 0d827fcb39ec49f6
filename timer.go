package iec104

import "time"

//TimerID 协议定时器
type TimerID int

//四个定时器
const (
	T0 TimerID = iota //建立连接超时
	T1                //发送或测试APDU的超时
	T2                //无数据报文时确认的超时,t2<t1
	T3                //长期空闲状态下发送测试帧的超时
	timerCount
)

func (id TimerID) String() string {
	switch id {
	case T0:
		return "t0"
	case T1:
		return "t1"
	case T2:
		return "t2"
	case T3:
		return "t3"
	}
	return "t?"
}

//Timers 定时器状态,只记录截止时间,由调用方轮询
type Timers struct {
	deadline [timerCount]time.Time
	armed    [timerCount]bool
}

//Arm 设置截止时间,已启动的定时器会被重置
func (t *Timers) Arm(id TimerID, deadline time.Time) {
	t.deadline[id] = deadline
	t.armed[id] = true
}

//ArmIfIdle 定时器未启动时才设置
func (t *Timers) ArmIfIdle(id TimerID, deadline time.Time) {
	if !t.armed[id] {
		t.Arm(id, deadline)
	}
}

//Cancel 停止定时器
func (t *Timers) Cancel(id TimerID) {
	t.armed[id] = false
	t.deadline[id] = time.Time{}
}

//CancelAll 停止全部定时器
func (t *Timers) CancelAll() {
	for id := T0; id < timerCount; id++ {
		t.Cancel(id)
	}
}

//Armed 定时器是否启动
func (t *Timers) Armed(id TimerID) bool {
	return t.armed[id]
}

//Deadline 截止时间
func (t *Timers) Deadline(id TimerID) (time.Time, bool) {
	return t.deadline[id], t.armed[id]
}

//Poll 返回now时已到期的定时器,到期的定时器被停止
func (t *Timers) Poll(now time.Time) []TimerID {
	var fired []TimerID
	for id := T0; id < timerCount; id++ {
		if t.armed[id] && !now.Before(t.deadline[id]) {
			t.Cancel(id)
			fired = append(fired, id)
		}
	}
	return fired
}

//Next 最近的截止时间
func (t *Timers) Next() (time.Time, bool) {
	var next time.Time
	found := false
	for id := T0; id < timerCount; id++ {
		if t.armed[id] && (!found || t.deadline[id].Before(next)) {
			next = t.deadline[id]
			found = true
		}
	}
	return next, found
}
