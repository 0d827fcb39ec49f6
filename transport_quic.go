package iec104

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

//QUICNextProto QUIC的ALPN
const QUICNextProto = "iec104-quic"

//quicStreamTimeout 被控站等待对端打开流的最长时间
var quicStreamTimeout = DefaultT0

//quicStream 一个双向流承载APDU字节流
//
//被控站一侧的流在后台接受,ready关闭前读写都会等待
type quicStream struct {
	conn   *quic.Conn
	ready  chan struct{}
	stream *quic.Stream
	err    error
}

func newQUICStream(conn *quic.Conn, stream *quic.Stream) *quicStream {
	s := &quicStream{conn: conn, ready: make(chan struct{}), stream: stream}
	close(s.ready)
	return s
}

//acceptQUICStream 不阻塞监听协程,对端打开流或超时后ready关闭
func acceptQUICStream(conn *quic.Conn, timeout time.Duration) *quicStream {
	s := &quicStream{conn: conn, ready: make(chan struct{})}
	go func() {
		defer close(s.ready)
		ctx, cancel := context.WithTimeout(conn.Context(), timeout)
		defer cancel()
		s.stream, s.err = conn.AcceptStream(ctx)
		if s.err != nil {
			conn.CloseWithError(0, "no stream")
		}
	}()
	return s
}

func (s *quicStream) wait() error {
	<-s.ready
	if s.err != nil {
		return fmt.Errorf("接受流: %w", s.err)
	}
	return nil
}

func (s *quicStream) Read(p []byte) (int, error) {
	if err := s.wait(); err != nil {
		return 0, err
	}
	return s.stream.Read(p)
}

func (s *quicStream) Write(p []byte) (int, error) {
	if err := s.wait(); err != nil {
		return 0, err
	}
	return s.stream.Write(p)
}

func (s *quicStream) SetWriteDeadline(t time.Time) error {
	if err := s.wait(); err != nil {
		return err
	}
	return s.stream.SetWriteDeadline(t)
}

//Close 关闭连接,等待中的AcceptStream随之返回
func (s *quicStream) Close() error {
	select {
	case <-s.ready:
		if s.stream != nil {
			s.stream.Close()
		}
	default:
	}
	return s.conn.CloseWithError(0, "closed")
}

func (s *quicStream) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func quicTLS(config *tls.Config) *tls.Config {
	config = config.Clone()
	if len(config.NextProtos) == 0 {
		config.NextProtos = []string{QUICNextProto}
	}
	return config
}

//QUICDialer QUIC连接,打开一个流传输APDU
func QUICDialer(address string, config *tls.Config) DialFunc {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		conn, err := quic.DialAddr(ctx, address, quicTLS(config), nil)
		if err != nil {
			return nil, fmt.Errorf("连接%s: %w", address, err)
		}
		stream, err := conn.OpenStreamSync(ctx)
		if err != nil {
			conn.CloseWithError(0, "failed to open stream")
			return nil, fmt.Errorf("打开流: %w", err)
		}
		return newQUICStream(conn, stream), nil
	}
}

type quicListener struct {
	ln *quic.Listener
}

//ListenQUIC 监听QUIC,config必须带证书
func ListenQUIC(address string, config *tls.Config) (Listener, error) {
	ln, err := quic.ListenAddr(address, quicTLS(config), nil)
	if err != nil {
		return nil, err
	}
	return &quicListener{ln: ln}, nil
}

//Accept 握手完成即返回,对端发出第一个APDU后流才可见
func (l *quicListener) Accept(ctx context.Context) (io.ReadWriteCloser, string, error) {
	conn, err := l.ln.Accept(ctx)
	if err != nil {
		return nil, "", err
	}
	return acceptQUICStream(conn, quicStreamTimeout), conn.RemoteAddr().String(), nil
}

func (l *quicListener) Close() error {
	return l.ln.Close()
}

func (l *quicListener) Addr() net.Addr {
	return l.ln.Addr()
}
