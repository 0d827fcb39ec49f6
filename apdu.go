package iec104

import (
	"fmt"
	"io"
)

//Encode 编码APDU,长度字节为总长度减2
func Encode(f Frame) ([]byte, error) {
	var payload []byte
	ctr := make([]byte, ctrlLen)
	switch v := f.(type) {
	case IFrame:
		putSeq(ctr[0:2], v.Send)
		putSeq(ctr[2:4], v.Recv)
		payload = v.ASDU
	case *IFrame:
		return Encode(*v)
	case SFrame:
		ctr[0] = 0x01
		putSeq(ctr[2:4], v.Recv)
	case *SFrame:
		return Encode(*v)
	case UFrame:
		if !v.Function.valid() {
			return nil, fmt.Errorf("%w: %v", ErrUnknownControl, v.Function)
		}
		ctr[0] = byte(v.Function)
	case *UFrame:
		return Encode(*v)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownControl, f)
	}
	length := ctrlLen + len(payload)
	if length > maxAPDULen {
		return nil, fmt.Errorf("%w: %d", ErrFrameTooLong, length)
	}
	data := make([]byte, 0, 2+length)
	data = append(data, startFrame, byte(length))
	data = append(data, ctr...)
	data = append(data, payload...)
	return data, nil
}

//Decode 解析一个完整的APDU
func Decode(buf []byte) (Frame, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("%w: 仅%d字节", ErrLengthMismatch, len(buf))
	}
	if buf[0] != startFrame {
		return nil, fmt.Errorf("%w: 0x%02X", ErrInvalidStartByte, buf[0])
	}
	length := int(buf[1])
	if length < ctrlLen || length > maxAPDULen || len(buf)-2 != length {
		return nil, fmt.Errorf("%w: 声明%d字节,实际%d字节", ErrLengthMismatch, length, len(buf)-2)
	}
	return parseCtr(buf[2:apciLen], buf[apciLen:])
}

//ReadFrame 从字节流中读取一个完整APDU,不足时持续读取直至达到期望长度
func ReadFrame(r io.Reader) ([]byte, error) {
	head := make([]byte, 2)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, err
	}
	if head[0] != startFrame {
		return nil, fmt.Errorf("%w: 0x%02X", ErrInvalidStartByte, head[0])
	}
	length := int(head[1])
	if length < ctrlLen || length > maxAPDULen {
		return nil, fmt.Errorf("%w: 声明%d字节", ErrLengthMismatch, length)
	}
	buf := make([]byte, 2+length)
	copy(buf, head)
	if _, err := io.ReadFull(r, buf[2:]); err != nil {
		return nil, err
	}
	return buf, nil
}
