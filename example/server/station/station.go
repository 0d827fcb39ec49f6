package station

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/9d77v/iec104/v2"
)

//点表起始地址
const (
	SinglePointBase uint32 = 1
	FloatBase       uint32 = 16385
	CounterBase     uint32 = 25601
)

//Station 模拟被控站,维护遥信、遥测和电度
type Station struct {
	CommonAddr uint16
	Logger     *logrus.Logger
	//Timeout 单次发送的超时
	Timeout time.Duration

	lock     sync.RWMutex
	singles  []bool
	floats   []float32
	counters []int32
	rng      *rand.Rand
}

//New 初始化点表
func New(ca uint16, singles, floats, counters int, logger *logrus.Logger) *Station {
	s := &Station{
		CommonAddr: ca,
		Logger:     logger,
		Timeout:    5 * time.Second,
		singles:    make([]bool, singles),
		floats:     make([]float32, floats),
		counters:   make([]int32, counters),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for i := range s.floats {
		s.floats[i] = 220 + float32(i)
	}
	return s
}

//OnEvent 实现iec104.Handler
func (s *Station) OnEvent(conn *iec104.Conn, e iec104.Event) {
	switch ev := e.(type) {
	case iec104.LinkStarted:
		s.Logger.Infof("%s启动数据传输", conn.RemoteAddr())
		go s.send(conn, &iec104.ASDU{
			TypeID:     iec104.MEiNa1,
			Cause:      iec104.CauseInitialized,
			CommonAddr: s.CommonAddr,
			Objects:    []iec104.InfoObject{{Value: iec104.EndOfInit{}}},
		})
	case iec104.Received:
		go s.handle(conn, ev.ASDU)
	case iec104.DecodeError:
		s.Logger.Warnf("%s发来无法解析的ASDU: %v", conn.RemoteAddr(), ev.Err)
	case iec104.LinkReset:
		s.Logger.Infof("%s断开: %v", conn.RemoteAddr(), ev.Reason)
	}
}

func (s *Station) send(conn *iec104.Conn, asdus ...*iec104.ASDU) {
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()
	for _, asdu := range asdus {
		if err := conn.SendWait(ctx, asdu); err != nil {
			s.Logger.Warnf("发送%v失败: %v", asdu, err)
			return
		}
	}
}

//handle 处理控制方向的报文
func (s *Station) handle(conn *iec104.Conn, asdu *iec104.ASDU) {
	s.Logger.Debugf("收到%v", asdu)
	if asdu.CommonAddr != s.CommonAddr && asdu.CommonAddr != 0xFFFF {
		s.send(conn, asdu.Reply(iec104.CauseUnknownCommonAddress, true))
		return
	}
	if asdu.Cause != iec104.CauseActivation {
		s.send(conn, asdu.Reply(iec104.CauseUnknownCause, true))
		return
	}
	switch asdu.TypeID {
	case iec104.CIcNa1:
		replies := []*iec104.ASDU{asdu.Reply(iec104.CauseActivationCon, false)}
		replies = append(replies, s.interrogate()...)
		replies = append(replies, asdu.Reply(iec104.CauseActivationTerm, false))
		s.send(conn, replies...)
	case iec104.CCiNa1:
		s.send(conn,
			asdu.Reply(iec104.CauseActivationCon, false),
			s.counterInterrogate(),
			asdu.Reply(iec104.CauseActivationTerm, false),
		)
	case iec104.CCsNa1:
		r := asdu.Reply(iec104.CauseActivationCon, false)
		r.Objects[0].Value = iec104.ClockSync{Time: time.Now()}
		s.send(conn, r)
	case iec104.CScNa1:
		s.singleCommand(conn, asdu)
	case iec104.CSeNc1:
		s.setpoint(conn, asdu)
	default:
		s.send(conn, asdu.Reply(iec104.CauseUnknownType, true))
	}
}

//interrogate 响应站召唤,遥信连续地址上送
func (s *Station) interrogate() []*iec104.ASDU {
	s.lock.RLock()
	defer s.lock.RUnlock()
	var asdus []*iec104.ASDU
	if len(s.singles) > 0 {
		sp := &iec104.ASDU{
			TypeID:     iec104.MSpNa1,
			Sequence:   true,
			Cause:      iec104.CauseInterrogatedStation,
			CommonAddr: s.CommonAddr,
		}
		for i, v := range s.singles {
			sp.Objects = append(sp.Objects, iec104.InfoObject{
				Address: SinglePointBase + uint32(i),
				Value:   iec104.SinglePoint(v),
			})
		}
		asdus = append(asdus, sp)
	}
	if len(s.floats) > 0 {
		me := &iec104.ASDU{
			TypeID:     iec104.MMeNc1,
			Cause:      iec104.CauseInterrogatedStation,
			CommonAddr: s.CommonAddr,
		}
		for i, v := range s.floats {
			me.Objects = append(me.Objects, iec104.InfoObject{
				Address: FloatBase + uint32(i),
				Value:   iec104.ShortFloat(v),
			})
		}
		asdus = append(asdus, me)
	}
	return asdus
}

func (s *Station) counterInterrogate() *iec104.ASDU {
	s.lock.RLock()
	defer s.lock.RUnlock()
	it := &iec104.ASDU{
		TypeID:     iec104.MItNa1,
		Cause:      iec104.CauseCounterInterrogated,
		CommonAddr: s.CommonAddr,
	}
	for i, v := range s.counters {
		it.Objects = append(it.Objects, iec104.InfoObject{
			Address: CounterBase + uint32(i),
			Value:   iec104.BinaryCounter{Value: v, Sequence: byte(i & 0x1F)},
		})
	}
	return it
}

func (s *Station) singleCommand(conn *iec104.Conn, asdu *iec104.ASDU) {
	obj := asdu.Objects[0]
	cmd, ok := obj.Value.(iec104.SingleCommand)
	idx := int(obj.Address) - int(SinglePointBase)
	if !ok || idx < 0 || idx >= len(s.singles) {
		s.send(conn, asdu.Reply(iec104.CauseUnknownObjectAddress, true))
		return
	}
	if cmd.Select {
		s.send(conn, asdu.Reply(iec104.CauseActivationCon, false))
		return
	}
	s.lock.Lock()
	s.singles[idx] = cmd.Value
	s.lock.Unlock()
	s.Logger.Infof("遥控%d -> %v", obj.Address, cmd.Value)
	s.send(conn,
		asdu.Reply(iec104.CauseActivationCon, false),
		&iec104.ASDU{
			TypeID:     iec104.MSpNa1,
			Cause:      iec104.CauseReturnRemote,
			CommonAddr: s.CommonAddr,
			Objects:    []iec104.InfoObject{{Address: obj.Address, Value: iec104.SinglePoint(cmd.Value)}},
		},
		asdu.Reply(iec104.CauseActivationTerm, false),
	)
}

func (s *Station) setpoint(conn *iec104.Conn, asdu *iec104.ASDU) {
	obj := asdu.Objects[0]
	sp, ok := obj.Value.(iec104.SetpointFloat)
	idx := int(obj.Address) - int(FloatBase)
	if !ok || idx < 0 || idx >= len(s.floats) {
		s.send(conn, asdu.Reply(iec104.CauseUnknownObjectAddress, true))
		return
	}
	if !sp.Select {
		s.lock.Lock()
		s.floats[idx] = sp.Value
		s.lock.Unlock()
		s.Logger.Infof("设点%d -> %v", obj.Address, sp.Value)
	}
	s.send(conn, asdu.Reply(iec104.CauseActivationCon, false))
}

//Simulate 定时变化遥测和电度并突发上送,直到ctx取消
func (s *Station) Simulate(ctx context.Context, srv *iec104.Server, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			asdu := s.step()
			if asdu == nil {
				continue
			}
			sendCtx, cancel := context.WithTimeout(ctx, s.Timeout)
			if err := srv.Broadcast(sendCtx, asdu); err != nil {
				s.Logger.Warnf("突发上送: %v", err)
			}
			cancel()
		}
	}
}

func (s *Station) step() *iec104.ASDU {
	s.lock.Lock()
	defer s.lock.Unlock()
	for i := range s.counters {
		s.counters[i] += int32(s.rng.Intn(10))
	}
	if len(s.floats) == 0 {
		return nil
	}
	i := s.rng.Intn(len(s.floats))
	s.floats[i] += float32(s.rng.NormFloat64())
	return &iec104.ASDU{
		TypeID:     iec104.MMeTf1,
		Cause:      iec104.CauseSpontaneous,
		CommonAddr: s.CommonAddr,
		Objects: []iec104.InfoObject{{
			Address: FloatBase + uint32(i),
			Value:   iec104.ShortFloat(s.floats[i]),
			Time:    iec104.Timestamp{Time: time.Now()},
		}},
	}
}

//Point 点表中的一个点
type Point struct {
	Address uint32  `json:"address"`
	Kind    string  `json:"kind"`
	Value   float64 `json:"value"`
}

//Points 当前点表,按地址排序
func (s *Station) Points() []Point {
	s.lock.RLock()
	defer s.lock.RUnlock()
	points := make([]Point, 0, len(s.singles)+len(s.floats)+len(s.counters))
	for i, v := range s.singles {
		p := Point{Address: SinglePointBase + uint32(i), Kind: "single"}
		if v {
			p.Value = 1
		}
		points = append(points, p)
	}
	for i, v := range s.floats {
		points = append(points, Point{Address: FloatBase + uint32(i), Kind: "float", Value: float64(v)})
	}
	for i, v := range s.counters {
		points = append(points, Point{Address: CounterBase + uint32(i), Kind: "counter", Value: float64(v)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Address < points[j].Address })
	return points
}
