package iec104

import (
	"encoding/binary"
	"time"
)

//Timestamp 信息体时标
type Timestamp struct {
	Time    time.Time
	Invalid bool //IV 时标无效
	Summer  bool //SU 夏令时,仅CP56Time2a
}

//parseCP56Time2a 解析7个字节时标
//
//	| 毫秒(2) | IV RES 分(1) | SU RES 时(1) | 星期 日(1) | 月(1) | 年(1) |
func parseCP56Time2a(b []byte, loc *time.Location) Timestamp {
	milliseconds := int(binary.LittleEndian.Uint16(b[0:2]))
	ts := Timestamp{
		Invalid: b[2]&0x80 != 0,
		Summer:  b[3]&0x80 != 0,
	}
	minute := int(b[2] & 0x3F)
	hour := int(b[3] & 0x1F)
	day := int(b[4] & 0x1F)
	month := int(b[5] & 0x0F)
	year := int(b[6]&0x7F) + 2000
	if day == 0 || month == 0 {
		return ts
	}
	nanosecond := (milliseconds % 1000) * int(time.Millisecond)
	ts.Time = time.Date(year, time.Month(month), day, hour, minute, milliseconds/1000, nanosecond, loc)
	return ts
}

//appendCP56Time2a 写入7个字节时标,星期按周一为1
func appendCP56Time2a(b []byte, ts Timestamp, loc *time.Location) []byte {
	var field [7]byte
	if !ts.Time.IsZero() {
		t := ts.Time.In(loc)
		binary.LittleEndian.PutUint16(field[0:2], uint16(t.Second()*1000+t.Nanosecond()/int(time.Millisecond)))
		field[2] = byte(t.Minute())
		field[3] = byte(t.Hour())
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		field[4] = byte(t.Day()) | byte(weekday)<<5
		field[5] = byte(t.Month())
		field[6] = byte(t.Year() % 100)
	}
	if ts.Invalid {
		field[2] |= 0x80
	}
	if ts.Summer {
		field[3] |= 0x80
	}
	return append(b, field[:]...)
}

//parseCP24Time2a 解析3个字节时标,只有分和毫秒
func parseCP24Time2a(b []byte, loc *time.Location) Timestamp {
	milliseconds := int(binary.LittleEndian.Uint16(b[0:2]))
	minute := int(b[2] & 0x3F)
	nanosecond := (milliseconds % 1000) * int(time.Millisecond)
	return Timestamp{
		Time:    time.Date(0, time.January, 1, 0, minute, milliseconds/1000, nanosecond, loc),
		Invalid: b[2]&0x80 != 0,
	}
}

func appendCP24Time2a(b []byte, ts Timestamp, loc *time.Location) []byte {
	var field [3]byte
	if !ts.Time.IsZero() {
		t := ts.Time.In(loc)
		binary.LittleEndian.PutUint16(field[0:2], uint16(t.Second()*1000+t.Nanosecond()/int(time.Millisecond)))
		field[2] = byte(t.Minute())
	}
	if ts.Invalid {
		field[2] |= 0x80
	}
	return append(b, field[:]...)
}
