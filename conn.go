package iec104

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

//Conn 一条104链路
//
//协议状态只在run协程中修改,读、写协程和API调用都通过inbox进入事件循环
type Conn struct {
	cfg    Config
	role   Role
	remote *atomic.String
	log    *logrus.Entry
	sess   *session
	stats  linkStats

	transport io.ReadWriteCloser
	dial      DialFunc
	dialStop  context.CancelFunc

	inbox      chan interface{}
	sendChan   chan []byte
	sendClosed bool
	writerDone chan struct{}
	events     chan Event
	queue      []Event

	windowLock sync.Mutex
	windowCh   chan struct{} //收到WindowOpen时关闭并替换

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	closed *atomic.Bool
}

type cmdOp int

const (
	opStart cmdOp = iota
	opStop
	opSend
	opClose
)

type request struct {
	op    cmdOp
	asdu  *ASDU
	reply chan error
}

type (
	dialed struct {
		transport io.ReadWriteCloser
		err       error
	}
	received   struct{ frame Frame }
	readFailed struct{ err error }
	//writeFailed 写协程退出
	writeFailed struct{ err error }
)

func newConn(ctx context.Context, cfg Config, role Role, remote string, logger *logrus.Logger) *Conn {
	ctx, cancel := context.WithCancel(ctx)
	c := &Conn{
		cfg:        cfg,
		role:       role,
		remote:     atomic.NewString(remote),
		log:        newEntry(logger, role, remote),
		inbox:      make(chan interface{}, 16),
		sendChan:   make(chan []byte, cfg.SendQueueSize),
		writerDone: make(chan struct{}),
		events:     make(chan Event, cfg.EventBufferSize),
		windowCh:   make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		closed:     atomic.NewBool(false),
	}
	c.sess = newSession(cfg, role, c.log, &c.stats)
	return c
}

//Dial 以控制站身份建立链路,立即返回;
//连接成功后Events收到LinkEstablished,t0内未连接成功收到LinkReset
func Dial(ctx context.Context, cfg Config, dial DialFunc, logger *logrus.Logger) (*Conn, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	if dial == nil {
		return nil, fmt.Errorf("%w: dial为空", ErrInvalidConfig)
	}
	c := newConn(ctx, cfg, RoleClient, "", logger)
	c.dial = dial
	if err := c.sess.connect(time.Now()); err != nil {
		return nil, err
	}
	dialCtx, stop := context.WithCancel(c.ctx)
	c.dialStop = stop
	go c.dialTransport(dialCtx)
	go c.run()
	return c, nil
}

//Accept 以被控站身份在已建立的传输层上运行链路
func Accept(ctx context.Context, cfg Config, t io.ReadWriteCloser, remote string, logger *logrus.Logger) (*Conn, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	c := newConn(ctx, cfg, RoleServer, remote, logger)
	now := time.Now()
	if err := c.sess.connect(now); err != nil {
		return nil, err
	}
	c.attach(t, now)
	go c.run()
	return c, nil
}

func (c *Conn) dialTransport(ctx context.Context) {
	c.log.Infoln("开始连接服务器")
	t, err := c.dial(ctx)
	if err != nil {
		c.log.Infof("连接服务器失败: %v", err)
	} else {
		c.log.Infoln("连接服务器成功")
	}
	if !c.post(dialed{transport: t, err: err}) && t != nil {
		t.Close()
	}
}

//attach 启动读写协程,进入Connected-Stopped
func (c *Conn) attach(t io.ReadWriteCloser, now time.Time) {
	c.transport = t
	if c.remote.Load() == "" {
		if ra, ok := t.(interface{ RemoteAddr() net.Addr }); ok && ra.RemoteAddr() != nil {
			c.remote.Store(ra.RemoteAddr().String())
			c.log = c.log.WithField("remote", c.remote.Load())
			c.sess.log = c.log
		}
	}
	go c.read(t)
	go c.write(t)
	if err := c.sess.established(now); err != nil {
		c.log.Errorf("建立链路: %v", err)
	}
}

//post 向事件循环投递消息,循环已退出时返回false
func (c *Conn) post(msg interface{}) bool {
	select {
	case c.inbox <- msg:
		return true
	case <-c.done:
		return false
	}
}

//read 读协程
func (c *Conn) read(r io.Reader) {
	c.log.Debugln("socket读协程启动")
	defer c.log.Debugln("socket读协程停止")
	for {
		raw, err := ReadFrame(r)
		if err != nil {
			c.post(readFailed{err: err})
			return
		}
		c.log.Debugf("收到原始数据: [% X]", raw)
		f, err := Decode(raw)
		if err != nil {
			c.post(readFailed{err: err})
			return
		}
		if !c.post(received{frame: f}) {
			return
		}
	}
}

//write 写协程,sendChan关闭后退出
//
//传输层支持写超时时每次写入限时t1,对端不读时链路在t1后重置
func (c *Conn) write(w io.Writer) {
	c.log.Debugln("socket写协程启动")
	defer func() {
		close(c.writerDone)
		c.log.Debugln("socket写协程停止")
	}()
	deadline, _ := w.(interface{ SetWriteDeadline(time.Time) error })
	for {
		select {
		case data, ok := <-c.sendChan:
			if !ok {
				return
			}
			if deadline != nil {
				deadline.SetWriteDeadline(time.Now().Add(c.cfg.T1))
			}
			if _, err := w.Write(data); err != nil {
				//run可能正阻塞在flush,先关闭writerDone再投递
				go c.post(writeFailed{err: err})
				return
			}
		case <-c.done:
			return
		}
	}
}

//run 事件循环
func (c *Conn) run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	defer c.teardown()
	for {
		c.flush()
		if c.sess.current() == StateClosed {
			return
		}
		c.resetTimer(timer)
		var out chan<- Event
		var head Event
		if len(c.queue) > 0 {
			out, head = c.events, c.queue[0]
		}
		select {
		case out <- head:
			c.queue[0] = nil
			c.queue = c.queue[1:]
		case msg := <-c.inbox:
			c.handle(msg)
		case <-timer.C:
			c.sess.tick(time.Now())
		case <-c.ctx.Done():
			c.shutdown()
		}
	}
}

func (c *Conn) resetTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	if next, ok := c.sess.timers.Next(); ok {
		t.Reset(time.Until(next))
	}
}

func (c *Conn) handle(msg interface{}) {
	now := time.Now()
	switch m := msg.(type) {
	case dialed:
		if m.err != nil {
			c.sess.fail(fmt.Errorf("连接失败: %w", m.err))
			return
		}
		if c.sess.current() != StateConnecting {
			m.transport.Close()
			return
		}
		c.attach(m.transport, now)
	case received:
		c.sess.receive(m.frame, now)
	case readFailed:
		if c.sess.current() == StateClosing {
			return
		}
		c.sess.fail(fmt.Errorf("读取: %w", m.err))
	case writeFailed:
		c.sess.fail(fmt.Errorf("写入: %w", m.err))
	case request:
		var err error
		switch m.op {
		case opStart:
			err = c.sess.startDataTransfer(now)
		case opStop:
			err = c.sess.stopDataTransfer(now)
		case opSend:
			err = c.sess.send(m.asdu, now)
		case opClose:
			c.shutdown()
		}
		m.reply <- err
	}
}

//shutdown 发出已排队的帧后关闭传输层
func (c *Conn) shutdown() {
	if err := c.sess.close(); err != nil {
		return
	}
	c.log.Infoln("断开连接")
	c.flush()
	if c.dialStop != nil {
		c.dialStop()
	}
	if c.transport != nil {
		if !c.sendClosed {
			c.sendClosed = true
			close(c.sendChan)
		}
		select {
		case <-c.writerDone:
		case <-time.After(c.cfg.T1):
			c.log.Warnln("等待写协程超时")
		}
		c.transport.Close()
	}
	c.sess.finish()
}

//flush 把会话输出交给写协程,事件进入队列由run投递
func (c *Conn) flush() {
	frames, events := c.sess.drain()
	for _, f := range frames {
		if c.transport == nil || c.sendClosed {
			break
		}
		data, err := Encode(f)
		if err != nil {
			c.log.Errorf("编码%v: %v", f, err)
			continue
		}
		select {
		case c.sendChan <- data:
		case <-c.writerDone:
		}
	}
	for _, e := range events {
		if _, ok := e.(WindowOpen); ok {
			c.windowOpened()
		}
	}
	c.queue = append(c.queue, events...)
}

//windowOpened 唤醒等待窗口的SendWait
func (c *Conn) windowOpened() {
	c.windowLock.Lock()
	defer c.windowLock.Unlock()
	close(c.windowCh)
	c.windowCh = make(chan struct{})
}

func (c *Conn) windowWait() <-chan struct{} {
	c.windowLock.Lock()
	defer c.windowLock.Unlock()
	return c.windowCh
}

func (c *Conn) teardown() {
	c.closed.Store(true)
	close(c.done)
	if c.transport != nil {
		c.transport.Close()
	}
	//通道有空位时先投递,ctx取消后只丢弃放不下的事件
	for _, e := range c.queue {
		select {
		case c.events <- e:
			continue
		default:
		}
		select {
		case c.events <- e:
		case <-c.ctx.Done():
			c.log.Warnf("丢弃事件%v", e)
		}
	}
	c.queue = nil
	c.cancel()
	close(c.events)
}

func (c *Conn) do(ctx context.Context, cmd request) error {
	if c.closed.Load() {
		return ErrClosed
	}
	cmd.reply = make(chan error, 1)
	select {
	case c.inbox <- cmd:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-c.done:
		select {
		case err := <-cmd.reply:
			return err
		default:
			return ErrClosed
		}
	}
}

//StartDataTransfer 发送STARTDT激活,确认后Events收到LinkStarted
func (c *Conn) StartDataTransfer(ctx context.Context) error {
	return c.do(ctx, request{op: opStart})
}

//StopDataTransfer 发送STOPDT激活,确认后Events收到LinkStopped
func (c *Conn) StopDataTransfer(ctx context.Context) error {
	return c.do(ctx, request{op: opStop})
}

//Send 发送ASDU,窗口已满时返回ErrWindowFull
func (c *Conn) Send(ctx context.Context, asdu *ASDU) error {
	return c.do(ctx, request{op: opSend, asdu: asdu})
}

//SendWait 窗口已满时等待对端确认后重发,直到ctx取消
func (c *Conn) SendWait(ctx context.Context, asdu *ASDU) error {
	for {
		opened := c.windowWait()
		err := c.Send(ctx, asdu)
		if !errors.Is(err, ErrWindowFull) {
			return err
		}
		select {
		case <-opened:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", err, ctx.Err())
		case <-c.done:
			return ErrClosed
		}
	}
}

//Close 关闭链路并等待事件循环退出
func (c *Conn) Close() error {
	err := c.do(context.Background(), request{op: opClose})
	<-c.done
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

//Events 链路事件,必须及时读取,链路关闭后通道关闭
func (c *Conn) Events() <-chan Event {
	return c.events
}

//Done 事件循环退出后关闭
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

//State 当前链路状态
func (c *Conn) State() State {
	return c.sess.current()
}

//Role 链路角色
func (c *Conn) Role() Role {
	return c.role
}

//RemoteAddr 对端地址
func (c *Conn) RemoteAddr() string {
	return c.remote.Load()
}

//Stats 链路统计
func (c *Conn) Stats() Stats {
	return c.stats.snapshot()
}
