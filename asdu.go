package iec104

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	//ASDUSizeMax ASDU最大长度,253-4
	ASDUSizeMax = 249
	//maxObjects 可变结构限定词最多127个信息体
	maxObjects = 127
)

//ASDU 应用服务数据单元
//
//	| 类型标识(1) | SQ 数目(1) | T P/N 传输原因(1) | [源发站地址(1)] | 公共地址(1,2) |
//	| 信息体地址(1~3) | 信息元素 | [时标] | ...
type ASDU struct {
	TypeID     TypeID //类型标识
	Sequence   bool   //SQ,是否连续地址
	Cause      Cause  //传输原因
	Test       bool   //T,试验
	Negative   bool   //P/N,否定确认
	Originator byte   //源发站地址,CauseSize为2时有效
	CommonAddr uint16 //公共地址
	Objects    []InfoObject
}

//InfoObject 信息体
type InfoObject struct {
	Address uint32 //信息体地址
	Value   Value
	Quality Quality
	Time    Timestamp //带时标类型有效
}

//Params ASDU参数,由双方约定
type Params struct {
	//传输原因字节数,1或2,2时包含源发站地址
	CauseSize int
	//公共地址字节数,1或2
	CommonAddrSize int
	//信息体地址字节数,1~3
	InfoObjAddrSize int
	//时标时区
	TimeZone *time.Location
}

//ParamsWide 104标准参数
var ParamsWide = &Params{CauseSize: 2, CommonAddrSize: 2, InfoObjAddrSize: 3, TimeZone: time.UTC}

//Valid 校验参数
func (p *Params) Valid() error {
	if p == nil ||
		p.CauseSize < 1 || p.CauseSize > 2 ||
		p.CommonAddrSize < 1 || p.CommonAddrSize > 2 ||
		p.InfoObjAddrSize < 1 || p.InfoObjAddrSize > 3 ||
		p.TimeZone == nil {
		return ErrParam
	}
	return nil
}

//IdentifierSize 数据单元标识长度
func (p *Params) IdentifierSize() int {
	return 2 + p.CauseSize + p.CommonAddrSize
}

//maxAddress 信息体地址最大值
func (p *Params) maxAddress() uint32 {
	return 1<<(8*uint(p.InfoObjAddrSize)) - 1
}

func (p *Params) parseAddr(b []byte) uint32 {
	var addr uint32
	for i := p.InfoObjAddrSize - 1; i >= 0; i-- {
		addr = addr<<8 | uint32(b[i])
	}
	return addr
}

func (p *Params) appendAddr(b []byte, addr uint32) []byte {
	for i := 0; i < p.InfoObjAddrSize; i++ {
		b = append(b, byte(addr>>(8*uint(i))))
	}
	return b
}

//parseVariable 解析可变结构限定词
func parseVariable(b byte) (sq bool, length int) {
	return b&0x80 != 0, int(b & 0x7F)
}

//DecodeASDU 解析ASDU
func DecodeASDU(p *Params, data []byte) (*ASDU, error) {
	if err := p.Valid(); err != nil {
		return nil, err
	}
	idLen := p.IdentifierSize()
	if len(data) < idLen {
		return nil, fmt.Errorf("%w: [% X]", ErrShortASDU, data)
	}
	asdu := &ASDU{TypeID: TypeID(data[0])}
	info, ok := typeTable[asdu.TypeID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedType, data[0])
	}
	var count int
	asdu.Sequence, count = parseVariable(data[1])
	asdu.Cause = Cause(data[2] & 0x3F)
	asdu.Negative = data[2]&0x40 != 0
	asdu.Test = data[2]&0x80 != 0
	if p.CauseSize == 2 {
		asdu.Originator = data[3]
	}
	caOffset := 2 + p.CauseSize
	if p.CommonAddrSize == 1 {
		asdu.CommonAddr = uint16(data[caOffset])
	} else {
		asdu.CommonAddr = binary.LittleEndian.Uint16(data[caOffset:])
	}

	body := data[idLen:]
	size := elemSize[info.kind] + tagSize[info.tag]
	addrSize := p.InfoObjAddrSize
	if count == 0 {
		return nil, fmt.Errorf("%w: 数目为0", ErrMalformedObjectCount)
	}
	if asdu.Sequence {
		if len(body) != addrSize+count*size {
			return nil, fmt.Errorf("%w: %d个信息体,%d字节", ErrMalformedObjectCount, count, len(body))
		}
	} else if len(body) != count*(addrSize+size) {
		return nil, fmt.Errorf("%w: %d个信息体,%d字节", ErrMalformedObjectCount, count, len(body))
	}

	asdu.Objects = make([]InfoObject, 0, count)
	var address uint32
	if asdu.Sequence {
		address = p.parseAddr(body)
		if uint64(address)+uint64(count)-1 > uint64(p.maxAddress()) {
			return nil, fmt.Errorf("%w: 起始地址%d,数目%d", ErrAddressOverflow, address, count)
		}
		body = body[addrSize:]
	}
	for i := 0; i < count; i++ {
		var obj InfoObject
		if asdu.Sequence {
			obj.Address = address + uint32(i)
		} else {
			obj.Address = p.parseAddr(body)
			body = body[addrSize:]
		}
		n := elemSize[info.kind]
		obj.Value, obj.Quality = decodeElement(info.kind, body[:n], p.TimeZone)
		switch info.tag {
		case tagCP24:
			obj.Time = parseCP24Time2a(body[n:n+3], p.TimeZone)
		case tagCP56:
			obj.Time = parseCP56Time2a(body[n:n+7], p.TimeZone)
		}
		body = body[size:]
		asdu.Objects = append(asdu.Objects, obj)
	}
	return asdu, nil
}

//Encode 编码ASDU
func (asdu *ASDU) Encode(p *Params) ([]byte, error) {
	if err := p.Valid(); err != nil {
		return nil, err
	}
	info, ok := typeTable[asdu.TypeID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedType, byte(asdu.TypeID))
	}
	count := len(asdu.Objects)
	if count == 0 {
		return nil, fmt.Errorf("%w: 数目为0", ErrMalformedObjectCount)
	}
	if count > maxObjects {
		return nil, fmt.Errorf("%w: %d", ErrTooManyObjects, count)
	}
	if p.CommonAddrSize == 1 && asdu.CommonAddr > 0xFF {
		return nil, fmt.Errorf("%w: 公共地址%d超出%d字节", ErrParam, asdu.CommonAddr, p.CommonAddrSize)
	}

	data := make([]byte, 0, p.IdentifierSize()+count*(p.InfoObjAddrSize+asdu.TypeID.ObjectSize()))
	vsq := byte(count)
	if asdu.Sequence {
		vsq |= 0x80
	}
	cot := byte(asdu.Cause) & 0x3F
	if asdu.Negative {
		cot |= 0x40
	}
	if asdu.Test {
		cot |= 0x80
	}
	data = append(data, byte(asdu.TypeID), vsq, cot)
	if p.CauseSize == 2 {
		data = append(data, asdu.Originator)
	}
	if p.CommonAddrSize == 1 {
		data = append(data, byte(asdu.CommonAddr))
	} else {
		data = binary.LittleEndian.AppendUint16(data, asdu.CommonAddr)
	}

	first := asdu.Objects[0].Address
	if asdu.Sequence {
		if uint64(first)+uint64(count)-1 > uint64(p.maxAddress()) {
			return nil, fmt.Errorf("%w: 起始地址%d,数目%d", ErrAddressOverflow, first, count)
		}
		data = p.appendAddr(data, first)
	}
	var err error
	for i, obj := range asdu.Objects {
		if obj.Address > p.maxAddress() {
			return nil, fmt.Errorf("%w: %d", ErrAddressOverflow, obj.Address)
		}
		if asdu.Sequence {
			if obj.Address != first+uint32(i) {
				return nil, fmt.Errorf("%w: 第%d个信息体地址%d", ErrNonSequentialAddress, i, obj.Address)
			}
		} else {
			data = p.appendAddr(data, obj.Address)
		}
		data, err = appendElement(info.kind, data, obj.Value, obj.Quality, p.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("%v信息体%d: %w", asdu.TypeID, obj.Address, err)
		}
		switch info.tag {
		case tagCP24:
			data = appendCP24Time2a(data, obj.Time, p.TimeZone)
		case tagCP56:
			data = appendCP56Time2a(data, obj.Time, p.TimeZone)
		}
	}
	if len(data) > ASDUSizeMax {
		return nil, fmt.Errorf("%w: %d", ErrASDUTooLong, len(data))
	}
	return data, nil
}

func (asdu *ASDU) String() string {
	return fmt.Sprintf("%v %v ca=%d n=%d", asdu.TypeID, asdu.Cause, asdu.CommonAddr, len(asdu.Objects))
}

//Reply 以同样的数据单元标识和信息体构造应答,如激活确认、激活终止
func (asdu *ASDU) Reply(cause Cause, negative bool) *ASDU {
	r := *asdu
	r.Cause = cause
	r.Negative = negative
	r.Objects = append([]InfoObject(nil), asdu.Objects...)
	return &r
}

//NewInterrogation 总召唤,qoi为20时站召唤
func NewInterrogation(ca uint16, qoi Interrogation) *ASDU {
	return &ASDU{
		TypeID:     CIcNa1,
		Cause:      CauseActivation,
		CommonAddr: ca,
		Objects:    []InfoObject{{Address: 0, Value: qoi}},
	}
}

//NewCounterInterrogation 电度总召唤
func NewCounterInterrogation(ca uint16, qcc CounterInterrogation) *ASDU {
	return &ASDU{
		TypeID:     CCiNa1,
		Cause:      CauseActivation,
		CommonAddr: ca,
		Objects:    []InfoObject{{Address: 0, Value: qcc}},
	}
}

//NewClockSync 时钟同步
func NewClockSync(ca uint16, t time.Time) *ASDU {
	return &ASDU{
		TypeID:     CCsNa1,
		Cause:      CauseActivation,
		CommonAddr: ca,
		Objects:    []InfoObject{{Address: 0, Value: ClockSync{Time: t}}},
	}
}

//NewSingleCommand 单命令
func NewSingleCommand(ca uint16, ioa uint32, cmd SingleCommand) *ASDU {
	return &ASDU{
		TypeID:     CScNa1,
		Cause:      CauseActivation,
		CommonAddr: ca,
		Objects:    []InfoObject{{Address: ioa, Value: cmd}},
	}
}
