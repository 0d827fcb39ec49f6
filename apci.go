package iec104

import (
	"encoding/binary"
	"fmt"
)

//startFrame 起始符
const startFrame = 0x68

const (
	//apciLen 起始符+长度+4字节控制域
	apciLen = 6
	//ctrlLen 控制域长度
	ctrlLen = 4
	//maxAPDULen 长度字节的最大值
	maxAPDULen = 253
	//seqModulo 序号为15位
	seqModulo = 1 << 15
)

//帧格式
const (
	iFrame byte = 0
	sFrame byte = 1
	uFrame byte = 3
)

//UFunction U帧功能
type UFunction byte

//U帧控制域第一个字节
const (
	StartDtAct UFunction = 0x07 //启动激活
	StartDtCon UFunction = 0x0B //启动确认
	StopDtAct  UFunction = 0x13 //停止激活
	StopDtCon  UFunction = 0x23 //停止确认
	TestFrAct  UFunction = 0x43 //测试激活
	TestFrCon  UFunction = 0x83 //测试确认
)

func (f UFunction) String() string {
	switch f {
	case StartDtAct:
		return "STARTDT_ACT"
	case StartDtCon:
		return "STARTDT_CON"
	case StopDtAct:
		return "STOPDT_ACT"
	case StopDtCon:
		return "STOPDT_CON"
	case TestFrAct:
		return "TESTFR_ACT"
	case TestFrCon:
		return "TESTFR_CON"
	default:
		return fmt.Sprintf("UFunction(0x%02X)", byte(f))
	}
}

//valid 是否为六种标准功能之一
func (f UFunction) valid() bool {
	switch f {
	case StartDtAct, StartDtCon, StopDtAct, StopDtCon, TestFrAct, TestFrCon:
		return true
	}
	return false
}

//confirmation 激活帧对应的确认帧
func (f UFunction) confirmation() UFunction {
	switch f {
	case StartDtAct:
		return StartDtCon
	case StopDtAct:
		return StopDtCon
	case TestFrAct:
		return TestFrCon
	}
	return 0
}

//Frame APDU,只能是IFrame、SFrame、UFrame之一
type Frame interface {
	format() byte
}

//IFrame I帧,携带ASDU
type IFrame struct {
	Send uint16
	Recv uint16
	ASDU []byte
}

//SFrame S帧,只做确认
type SFrame struct {
	Recv uint16
}

//UFrame U帧
type UFrame struct {
	Function UFunction
}

func (IFrame) format() byte { return iFrame }
func (SFrame) format() byte { return sFrame }
func (UFrame) format() byte { return uFrame }

func (f IFrame) String() string {
	return fmt.Sprintf("I(ssn=%d,rsn=%d,len=%d)", f.Send, f.Recv, len(f.ASDU))
}

func (f SFrame) String() string {
	return fmt.Sprintf("S(rsn=%d)", f.Recv)
}

func (f UFrame) String() string {
	return "U(" + f.Function.String() + ")"
}

//formatName 帧格式名称,用于日志和指标
func formatName(f Frame) string {
	switch f.(type) {
	case IFrame:
		return "I"
	case SFrame:
		return "S"
	case UFrame:
		return "U"
	}
	return "?"
}

//putSeq 写入15位序号,最低位为0
func putSeq(b []byte, seq uint16) {
	binary.LittleEndian.PutUint16(b, (seq%seqModulo)<<1)
}

//parseSeq 解析15位序号
func parseSeq(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b) >> 1
}

//parseCtr 解析控制域
func parseCtr(ctr []byte, asdu []byte) (Frame, error) {
	switch {
	case ctr[0]&1 == iFrame:
		//I帧
		f := IFrame{
			Send: parseSeq(ctr[0:2]),
			Recv: parseSeq(ctr[2:4]),
		}
		if len(asdu) > 0 {
			f.ASDU = append([]byte(nil), asdu...)
		}
		return f, nil
	case ctr[0]&3 == sFrame:
		//S帧
		if len(asdu) != 0 {
			return nil, fmt.Errorf("%w: S帧携带%d字节数据", ErrLengthMismatch, len(asdu))
		}
		return SFrame{Recv: parseSeq(ctr[2:4])}, nil
	default:
		//U帧
		fn := UFunction(ctr[0])
		if !fn.valid() || ctr[1] != 0 || ctr[2] != 0 || ctr[3] != 0 {
			return nil, fmt.Errorf("%w: U帧[% X]", ErrUnknownControl, ctr)
		}
		if len(asdu) != 0 {
			return nil, fmt.Errorf("%w: U帧携带%d字节数据", ErrLengthMismatch, len(asdu))
		}
		return UFrame{Function: fn}, nil
	}
}
