package iec104

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

//Handler 处理被控站链路事件,同一链路的事件按顺序调用
type Handler interface {
	OnEvent(conn *Conn, e Event)
}

//HandlerFunc 函数形式的Handler
type HandlerFunc func(conn *Conn, e Event)

//OnEvent 调用f
func (f HandlerFunc) OnEvent(conn *Conn, e Event) {
	f(conn, e)
}

//Server 104被控站,每个连接一条链路
type Server struct {
	cfg Config
	//Logger 日志
	Logger *logrus.Logger
	//MaxConns 最大连接数,0不限制
	MaxConns int

	lock  sync.Mutex
	conns map[*Conn]struct{}
	wg    sync.WaitGroup
}

//NewServer 初始化被控站
func NewServer(cfg Config, logger *logrus.Logger) (*Server, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = discardLogger
	}
	return &Server{
		cfg:    cfg,
		Logger: logger,
		conns:  make(map[*Conn]struct{}),
	}, nil
}

//Serve 接受连接直到ctx取消或监听出错,返回前关闭全部链路
func (s *Server) Serve(ctx context.Context, ln Listener, h Handler) error {
	if h == nil {
		return fmt.Errorf("%w: handler为空", ErrInvalidConfig)
	}
	s.Logger.Infof("开始监听%v", ln.Addr())
	defer func() {
		ln.Close()
		s.closeAll()
		s.wg.Wait()
	}()
	for {
		t, remote, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("接受连接: %w", err)
		}
		if s.MaxConns > 0 && s.Len() >= s.MaxConns {
			s.Logger.Warnf("连接数已达上限%d,拒绝%s", s.MaxConns, remote)
			t.Close()
			continue
		}
		conn, err := Accept(ctx, s.cfg, t, remote, s.Logger)
		if err != nil {
			t.Close()
			return err
		}
		s.Logger.Infof("接受连接%s", remote)
		s.add(conn)
		s.wg.Add(1)
		go s.serve(conn, h)
	}
}

func (s *Server) serve(conn *Conn, h Handler) {
	defer s.wg.Done()
	defer s.remove(conn)
	for e := range conn.Events() {
		if r, ok := e.(LinkReset); ok && !errors.Is(r.Reason, ErrClosed) {
			s.Logger.Warnf("链路%s重置: %v", conn.RemoteAddr(), r.Reason)
		}
		h.OnEvent(conn, e)
	}
}

func (s *Server) add(conn *Conn) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) remove(conn *Conn) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeAll() {
	for _, conn := range s.Conns() {
		conn.Close()
	}
}

//Len 当前连接数
func (s *Server) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.conns)
}

//Conns 当前全部链路
func (s *Server) Conns() []*Conn {
	s.lock.Lock()
	defer s.lock.Unlock()
	conns := make([]*Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	return conns
}

//Broadcast 向全部已启动的链路发送ASDU,如突发上送,窗口已满的链路等待确认直到ctx取消
func (s *Server) Broadcast(ctx context.Context, asdu *ASDU) error {
	var errs []error
	for _, conn := range s.Conns() {
		if conn.State() != StateStarted {
			continue
		}
		if err := conn.SendWait(ctx, asdu); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", conn.RemoteAddr(), err))
		}
	}
	return errors.Join(errs...)
}
