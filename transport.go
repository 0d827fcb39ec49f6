package iec104

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"time"

	"go.uber.org/atomic"
)

//DefaultPort 104标准端口
const DefaultPort = 2404

//DialFunc 建立传输层连接,APDU按字节流收发
type DialFunc func(ctx context.Context) (io.ReadWriteCloser, error)

//Listener 被控站监听
type Listener interface {
	//Accept 阻塞直到有新连接或ctx取消,remote为对端地址
	Accept(ctx context.Context) (t io.ReadWriteCloser, remote string, err error)
	Close() error
	Addr() net.Addr
}

//TCPDialer TCP连接,超时由t0和ctx控制
func TCPDialer(address string) DialFunc {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", address)
	}
}

//TLSDialer TLS连接
func TLSDialer(address string, config *tls.Config) DialFunc {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		d := tls.Dialer{Config: config}
		return d.DialContext(ctx, "tcp", address)
	}
}

//Failover 主备连接,从上次成功的地址开始依次尝试
//
//只在拨号时切换地址,同一时刻只有一条链路;不处理冗余组内多条链路的切换
func Failover(dials ...DialFunc) DialFunc {
	last := atomic.NewInt64(0)
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		if len(dials) == 0 {
			return nil, ErrNotConnected
		}
		var errs []error
		start := int(last.Load())
		for i := range dials {
			n := (start + i) % len(dials)
			t, err := dials[n](ctx)
			if err == nil {
				last.Store(int64(n))
				return t, nil
			}
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
		return nil, errors.Join(errs...)
	}
}

type tcpListener struct {
	ln net.Listener
}

//ListenTCP 监听TCP,config不为空时使用TLS
func ListenTCP(address string, config *tls.Config) (Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	if config != nil {
		ln = tls.NewListener(ln, config)
	}
	return &tcpListener{ln: ln}, nil
}

func (l *tcpListener) Accept(ctx context.Context) (io.ReadWriteCloser, string, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.ln.Accept()
		ch <- result{conn, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			return nil, "", r.err
		}
		if tc, ok := r.conn.(*net.TCPConn); ok {
			tc.SetKeepAlive(true)
			tc.SetKeepAlivePeriod(30 * time.Second)
		}
		return r.conn, r.conn.RemoteAddr().String(), nil
	case <-ctx.Done():
		//关闭监听使Accept返回
		l.ln.Close()
		r := <-ch
		if r.conn != nil {
			r.conn.Close()
		}
		return nil, "", ctx.Err()
	}
}

func (l *tcpListener) Close() error {
	return l.ln.Close()
}

func (l *tcpListener) Addr() net.Addr {
	return l.ln.Addr()
}
