package iec104

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

var totalCallInterval = 15 * time.Minute

//Client 104客户端,断线后自动重连
//
//链路建立后自动启动数据传输并发送总召唤,总召唤结束后发送电度总召唤
type Client struct {
	cfg  Config
	dial DialFunc
	//Logger 日志
	Logger *logrus.Logger
	//CommonAddr 召唤使用的公共地址
	CommonAddr uint16
	//InterrogationInterval 定时总召唤间隔,0表示不定时召唤
	InterrogationInterval time.Duration
	//Backoff 重连退避
	Backoff Backoff

	lock    *sync.Mutex
	conn    *Conn
	rng     *rand.Rand
	running *atomic.Bool
}

//NewClient 初始化客户端,Run之前不会连接
func NewClient(cfg Config, dial DialFunc, logger *logrus.Logger) (*Client, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	if dial == nil {
		return nil, fmt.Errorf("%w: dial为空", ErrInvalidConfig)
	}
	if logger == nil {
		logger = discardLogger
	}
	return &Client{
		cfg:                   cfg,
		dial:                  dial,
		Logger:                logger,
		CommonAddr:            1,
		InterrogationInterval: totalCallInterval,
		Backoff:               DefaultBackoff,
		lock:                  new(sync.Mutex),
		rng:                   rand.New(rand.NewSource(time.Now().UnixNano())),
		running:               atomic.NewBool(false),
	}, nil
}

//Run 运行直到ctx取消,task处理收到的数据,每个ASDU一个协程
func (c *Client) Run(ctx context.Context, task func(*ASDU)) error {
	if !c.running.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: 客户端已在运行", ErrPending)
	}
	defer c.running.Store(false)

	attempt := 0
	for {
		started, err := c.runOnce(ctx, task)
		if ctx.Err() != nil {
			c.Logger.Infoln("断开服务器连接,程序关闭")
			return ctx.Err()
		}
		if started {
			attempt = 0
		}
		attempt++
		delay := c.Backoff.Delay(attempt, c.rng)
		c.Logger.Infof("断开服务器连接: %v,%v后开始第%d次重连", err, delay, attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

//runOnce 一次连接的生命周期,started表示数据传输曾经启动
func (c *Client) runOnce(ctx context.Context, task func(*ASDU)) (started bool, err error) {
	conn, err := Dial(ctx, c.cfg, c.dial, c.Logger)
	if err != nil {
		return false, err
	}
	c.setConn(conn)
	defer func() {
		c.setConn(nil)
		conn.Close()
	}()

	var tick <-chan time.Time
	if c.InterrogationInterval > 0 {
		ticker := time.NewTicker(c.InterrogationInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case e, ok := <-conn.Events():
			if !ok {
				return started, ErrClosed
			}
			switch ev := e.(type) {
			case LinkEstablished:
				c.Logger.Infoln("连接服务器成功,发送启动激活帧")
				go c.exec(ctx, "启动数据传输", func() error { return conn.StartDataTransfer(ctx) })
			case LinkStarted:
				started = true
				c.Logger.Infoln("收到启动确认帧,发送总召唤")
				c.sendAsync(ctx, conn, "总召唤", NewInterrogation(c.CommonAddr, QOIStation))
			case Received:
				c.dispatch(ctx, conn, ev.ASDU, task)
			case DecodeError:
				c.Logger.Warnf("解析ASDU异常: %v", ev.Err)
			case LinkStopped:
				c.Logger.Infoln("数据传输已停止")
			case LinkReset:
				return started, ev.Reason
			}
		case <-tick:
			if conn.State() == StateStarted {
				c.Logger.Infof("每隔%v发送一次总召唤", c.InterrogationInterval)
				c.sendAsync(ctx, conn, "总召唤", NewInterrogation(c.CommonAddr, QOIStation))
			}
		case <-ctx.Done():
			return started, ctx.Err()
		}
	}
}

//dispatch 召唤的确认和结束帧在这里处理,其余交给task
func (c *Client) dispatch(ctx context.Context, conn *Conn, asdu *ASDU, task func(*ASDU)) {
	c.Logger.Debugf("接收到数据类型:%v,原因:%v,长度:%d", asdu.TypeID, asdu.Cause, len(asdu.Objects))
	switch asdu.TypeID {
	case CIcNa1:
		switch asdu.Cause {
		case CauseActivationCon:
			c.Logger.Info("接收总召唤确认帧")
		case CauseActivationTerm:
			c.Logger.Info("接收总召唤结束帧,发送电度总召唤")
			c.sendAsync(ctx, conn, "电度总召唤", NewCounterInterrogation(c.CommonAddr, CounterInterrogation{Request: QCCTotal}))
		}
		return
	case CCiNa1:
		switch asdu.Cause {
		case CauseActivationCon:
			c.Logger.Info("接收电度总召唤确认帧")
		case CauseActivationTerm:
			c.Logger.Info("接收电度总召唤结束帧")
		}
		return
	}
	if task != nil {
		go task(asdu)
	}
}

//sendAsync 不在事件协程中等待事件循环
func (c *Client) sendAsync(ctx context.Context, conn *Conn, name string, asdu *ASDU) {
	go c.exec(ctx, name, func() error { return conn.SendWait(ctx, asdu) })
}

func (c *Client) exec(ctx context.Context, name string, fn func() error) {
	if err := fn(); err != nil && ctx.Err() == nil {
		c.Logger.Warnf("%s失败: %v", name, err)
	}
}

func (c *Client) setConn(conn *Conn) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.conn = conn
}

//Conn 当前链路,未连接时为nil
func (c *Client) Conn() *Conn {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.conn
}

//Send 通过当前链路发送ASDU,如遥控、设点;窗口已满时等待确认
func (c *Client) Send(ctx context.Context, asdu *ASDU) error {
	conn := c.Conn()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.SendWait(ctx, asdu)
}
