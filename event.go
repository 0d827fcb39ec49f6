package iec104

import "fmt"

//Event 链路事件,只能是下列类型之一
type Event interface {
	event()
}

type (
	//Received 收到ASDU
	Received struct {
		ASDU *ASDU
	}
	//DecodeError ASDU解析失败,链路保持
	DecodeError struct {
		Raw []byte
		Err error
	}
	//LinkEstablished 传输层已连接,数据传输未启动
	LinkEstablished struct{}
	//LinkStarted STARTDT完成,可以收发I帧
	LinkStarted struct{}
	//LinkStopped STOPDT完成
	LinkStopped struct{}
	//WindowOpen 发送窗口满后收到确认,可以重新发送
	WindowOpen struct{}
	//LinkReset 链路关闭,Reason说明原因,正常关闭时为ErrClosed
	LinkReset struct {
		Reason error
	}
)

func (Received) event()        {}
func (DecodeError) event()     {}
func (LinkEstablished) event() {}
func (LinkStarted) event()     {}
func (LinkStopped) event()     {}
func (WindowOpen) event()      {}
func (LinkReset) event()       {}

func (e Received) String() string    { return "Received(" + e.ASDU.String() + ")" }
func (e DecodeError) String() string { return fmt.Sprintf("DecodeError(%v)", e.Err) }
func (LinkEstablished) String() string {
	return "LinkEstablished"
}
func (LinkStarted) String() string { return "LinkStarted" }
func (LinkStopped) String() string { return "LinkStopped" }
func (WindowOpen) String() string  { return "WindowOpen" }
func (e LinkReset) String() string { return fmt.Sprintf("LinkReset(%v)", e.Reason) }
