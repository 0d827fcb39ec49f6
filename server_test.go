package iec104

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

//stationHandler 应答总召唤,收到电度总召唤时通知counter
func stationHandler(counter chan<- struct{}) Handler {
	return HandlerFunc(func(conn *Conn, e Event) {
		rx, ok := e.(Received)
		if !ok {
			return
		}
		switch rx.ASDU.TypeID {
		case CIcNa1:
			data := &ASDU{
				TypeID:     MSpNa1,
				Sequence:   true,
				Cause:      CauseInterrogatedStation,
				CommonAddr: rx.ASDU.CommonAddr,
				Objects: []InfoObject{
					{Address: 1, Value: SinglePoint(true)},
					{Address: 2, Value: SinglePoint(false)},
				},
			}
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
				defer cancel()
				for _, a := range []*ASDU{rx.ASDU.Reply(CauseActivationCon, false), data, rx.ASDU.Reply(CauseActivationTerm, false)} {
					if err := conn.Send(ctx, a); err != nil {
						return
					}
				}
			}()
		case CCiNa1:
			select {
			case counter <- struct{}{}:
			default:
			}
		}
	})
}

func exchange(t *testing.T, ln Listener, dial DialFunc) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	srv, err := NewServer(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	counter := make(chan struct{}, 1)
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx, ln, stationHandler(counter)) }()

	client, err := NewClient(DefaultConfig(), dial, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	got := make(chan *ASDU, 1)
	runErr := make(chan error, 1)
	go func() {
		runErr <- client.Run(ctx, func(a *ASDU) {
			select {
			case got <- a:
			default:
			}
		})
	}()

	select {
	case a := <-got:
		if a.TypeID != MSpNa1 || a.Cause != CauseInterrogatedStation || len(a.Objects) != 2 {
			t.Fatalf("client task got %v", a)
		}
		if a.Objects[0].Value != SinglePoint(true) || a.Objects[1].Address != 2 {
			t.Fatalf("objects %+v", a.Objects)
		}
	case <-ctx.Done():
		t.Fatalf("no interrogation data")
	}
	select {
	case <-counter:
	case <-ctx.Done():
		t.Fatalf("no counter interrogation after actterm")
	}
	if srv.Len() != 1 {
		t.Fatalf("server links %d", srv.Len())
	}
	if conn := client.Conn(); conn == nil || conn.State() != StateStarted {
		t.Fatalf("client link not started")
	}

	cancel()
	select {
	case err := <-runErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(eventTimeout):
		t.Fatalf("client did not stop")
	}
	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(eventTimeout):
		t.Fatalf("server did not stop")
	}
	if srv.Len() != 0 {
		t.Fatalf("links left after serve: %d", srv.Len())
	}
}

func TestClientServerTCP(t *testing.T) {
	ln, err := ListenTCP("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	exchange(t, ln, TCPDialer(ln.Addr().String()))
}

func TestClientServerTLS(t *testing.T) {
	cfg, err := SelfSignedTLSConfig("127.0.0.1")
	if err != nil {
		t.Fatalf("tls: %v", err)
	}
	ln, err := ListenTCP("127.0.0.1:0", cfg)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	exchange(t, ln, TLSDialer(ln.Addr().String(), &tls.Config{InsecureSkipVerify: true}))
}

func TestClientServerQUIC(t *testing.T) {
	cfg, err := SelfSignedTLSConfig("127.0.0.1")
	if err != nil {
		t.Fatalf("tls: %v", err)
	}
	ln, err := ListenQUIC("127.0.0.1:0", cfg)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	exchange(t, ln, QUICDialer(ln.Addr().String(), &tls.Config{InsecureSkipVerify: true}))
}

func TestClientRunTwice(t *testing.T) {
	client, _ := NewClient(DefaultConfig(), func(ctx context.Context) (io.ReadWriteCloser, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- client.Run(ctx, nil) }()
	deadline := time.Now().Add(eventTimeout)
	for !client.running.Load() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := client.Run(ctx, nil); !errors.Is(err, ErrPending) {
		t.Fatalf("second run: %v", err)
	}
	if err := client.Send(ctx, NewInterrogation(1, QOIStation)); err == nil {
		t.Fatalf("send without started link succeeded")
	}
	cancel()
	if err := <-runErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("run: %v", err)
	}
	if err := client.Send(context.Background(), NewInterrogation(1, QOIStation)); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("send after run: %v", err)
	}
}

func TestServerMaxConns(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ln, err := ListenTCP("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv, _ := NewServer(DefaultConfig(), nil)
	srv.MaxConns = 1
	go srv.Serve(ctx, ln, HandlerFunc(func(*Conn, Event) {}))

	first, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer first.Close()
	first.SetDeadline(time.Now().Add(eventTimeout))
	act, _ := Encode(UFrame{Function: StartDtAct})
	if _, err := first.Write(act); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := ReadFrame(first)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if f, _ := Decode(raw); f != (UFrame{Function: StartDtCon}) {
		t.Fatalf("got %v", f)
	}

	second, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer second.Close()
	second.SetDeadline(time.Now().Add(eventTimeout))
	if _, err := second.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("second link not refused: %v", err)
	}
	if srv.Len() != 1 {
		t.Fatalf("links %d", srv.Len())
	}
}

func TestServerBroadcast(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ln, err := ListenTCP("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv, _ := NewServer(DefaultConfig(), nil)
	go srv.Serve(ctx, ln, HandlerFunc(func(*Conn, Event) {}))

	started, _ := Dial(ctx, DefaultConfig(), TCPDialer(ln.Addr().String()), nil)
	defer started.Close()
	waitEvent[LinkEstablished](t, started)
	if err := started.StartDataTransfer(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitEvent[LinkStarted](t, started)

	stopped, _ := Dial(ctx, DefaultConfig(), TCPDialer(ln.Addr().String()), nil)
	defer stopped.Close()
	waitEvent[LinkEstablished](t, stopped)
	deadline := time.Now().Add(eventTimeout)
	for srv.Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	spont := &ASDU{
		TypeID:     MSpNa1,
		Cause:      CauseSpontaneous,
		CommonAddr: 1,
		Objects:    []InfoObject{{Address: 7, Value: SinglePoint(true)}},
	}
	if err := srv.Broadcast(ctx, spont); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	rx := waitEvent[Received](t, started)
	if rx.ASDU.Cause != CauseSpontaneous || rx.ASDU.Objects[0].Address != 7 {
		t.Fatalf("received %v", rx.ASDU)
	}
	select {
	case e := <-stopped.Events():
		t.Fatalf("stopped link got %v", e)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServerNilHandler(t *testing.T) {
	srv, _ := NewServer(DefaultConfig(), nil)
	ln, err := ListenTCP("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	if err := srv.Serve(context.Background(), ln, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestFailover(t *testing.T) {
	primaryErr := errors.New("primary down")
	calls := []string{}
	primary := func(context.Context) (io.ReadWriteCloser, error) {
		calls = append(calls, "primary")
		return nil, primaryErr
	}
	standby := func(context.Context) (io.ReadWriteCloser, error) {
		calls = append(calls, "standby")
		a, b := net.Pipe()
		b.Close()
		return a, nil
	}
	dial := Failover(primary, standby)
	for i := 0; i < 2; i++ {
		rwc, err := dial(context.Background())
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
		rwc.Close()
	}
	want := []string{"primary", "standby", "standby"}
	if len(calls) != len(want) {
		t.Fatalf("calls %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls %v", calls)
		}
	}

	standbyErr := errors.New("standby down")
	_, err := Failover(primary, func(context.Context) (io.ReadWriteCloser, error) {
		return nil, standbyErr
	})(context.Background())
	if !errors.Is(err, primaryErr) || !errors.Is(err, standbyErr) {
		t.Fatalf("joined error %v", err)
	}
	if _, err := Failover()(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("empty failover: %v", err)
	}
}
