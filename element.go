package iec104

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

//Quality 品质描述词
type Quality byte

//品质位
const (
	QualityGood Quality = 0
	QualityOV   Quality = 0x01 //溢出
	QualityEI   Quality = 0x08 //动作时间无效,仅继电保护
	QualityBL   Quality = 0x10 //被闭锁
	QualitySB   Quality = 0x20 //被取代
	QualityNT   Quality = 0x40 //非当前值
	QualityIV   Quality = 0x80 //无效
)

//Value 信息元素
type Value interface {
	isValue()
}

//DoublePointValue 双点值
type DoublePointValue byte

//双点状态
const (
	DoublePointIndeterminate DoublePointValue = 0 //中间状态
	DoublePointOff           DoublePointValue = 1 //确定状态开
	DoublePointOn            DoublePointValue = 2 //确定状态合
	DoublePointInvalid       DoublePointValue = 3 //不确定状态
)

type (
	//SinglePoint 单点信息 SIQ
	SinglePoint bool
	//DoublePoint 双点信息 DIQ
	DoublePoint DoublePointValue
	//StepPosition 步位置 VTI,取值-64~63
	StepPosition struct {
		Value     int8
		Transient bool
	}
	//Bitstring32 32比特串 BSI
	Bitstring32 uint32
	//Normalized 归一化值 NVA
	Normalized int16
	//Scaled 标度化值 SVA
	Scaled int16
	//ShortFloat 短浮点数
	ShortFloat float32
	//BinaryCounter 累计量 BCR,无效位放在Quality
	BinaryCounter struct {
		Value    int32
		Sequence byte //顺序号0~31
		Carry    bool //进位
		Adjusted bool //计数量被调整
	}
	//ProtectionEvent 继电保护事件 SEP + CP16
	ProtectionEvent struct {
		State   DoublePointValue
		Elapsed uint16 //毫秒
	}
	//ProtectionStart 继电保护成组启动事件 SPE + QDP + CP16
	ProtectionStart struct {
		Events   byte
		Duration uint16
	}
	//ProtectionOutput 继电保护成组输出电路信息 OCI + QDP + CP16
	ProtectionOutput struct {
		Circuits  byte
		Operating uint16
	}
	//PackedSinglePoint 带变位检出的成组单点信息 SCD
	PackedSinglePoint struct {
		Status  uint16
		Changed uint16
	}
)

type (
	//SingleCommand 单命令 SCO
	SingleCommand struct {
		Value     bool
		Qualifier byte //QU 0~31
		Select    bool
	}
	//DoubleCommand 双命令 DCO
	DoubleCommand struct {
		Value     DoublePointValue
		Qualifier byte
		Select    bool
	}
	//StepCommand 步调节命令 RCO,1降 2升
	StepCommand struct {
		Value     byte
		Qualifier byte
		Select    bool
	}
	//SetpointNormalized 设点命令,归一化值
	SetpointNormalized struct {
		Value     Normalized
		Qualifier byte //QL 0~127
		Select    bool
	}
	//SetpointScaled 设点命令,标度化值
	SetpointScaled struct {
		Value     Scaled
		Qualifier byte
		Select    bool
	}
	//SetpointFloat 设点命令,短浮点数
	SetpointFloat struct {
		Value     float32
		Qualifier byte
		Select    bool
	}
	//BitstringCommand 32比特串命令
	BitstringCommand uint32
)

type (
	//EndOfInit 初始化结束 COI
	EndOfInit struct {
		Cause         byte //0当地电源合上 1当地手动复位 2远方复位
		ParamsChanged bool
	}
	//Interrogation 召唤限定词 QOI,20为站召唤
	Interrogation byte
	//CounterInterrogation 计数量召唤限定词 QCC
	CounterInterrogation struct {
		Request byte //RQT 5为总计数量召唤
		Freeze  byte //FRZ 0~3
	}
	//ReadCommand 读命令,无信息元素
	ReadCommand struct{}
	//ClockSync 时钟同步命令
	ClockSync Timestamp
	//TestPattern 测试命令固定测试图像,0x55AA
	TestPattern uint16
	//TestCounter 带时标测试命令的测试顺序计数器
	TestCounter uint16
	//ResetProcess 复位进程限定词 QRP
	ResetProcess byte
	//Delay 延时获得,毫秒
	Delay uint16
	//ParameterNormalized 测量值参数,归一化值,Qualifier为QPM
	ParameterNormalized struct {
		Value     Normalized
		Qualifier byte
	}
	//ParameterScaled 测量值参数,标度化值
	ParameterScaled struct {
		Value     Scaled
		Qualifier byte
	}
	//ParameterFloat 测量值参数,短浮点数
	ParameterFloat struct {
		Value     float32
		Qualifier byte
	}
	//ParameterActivation 参数激活限定词 QPA
	ParameterActivation byte
)

//召唤限定词
const (
	QOIStation Interrogation = 20 //站召唤
	QCCTotal   byte          = 5  //总计数量召唤
)

func (SinglePoint) isValue()          {}
func (DoublePoint) isValue()          {}
func (StepPosition) isValue()         {}
func (Bitstring32) isValue()          {}
func (Normalized) isValue()           {}
func (Scaled) isValue()               {}
func (ShortFloat) isValue()           {}
func (BinaryCounter) isValue()        {}
func (ProtectionEvent) isValue()      {}
func (ProtectionStart) isValue()      {}
func (ProtectionOutput) isValue()     {}
func (PackedSinglePoint) isValue()    {}
func (SingleCommand) isValue()        {}
func (DoubleCommand) isValue()        {}
func (StepCommand) isValue()          {}
func (SetpointNormalized) isValue()   {}
func (SetpointScaled) isValue()       {}
func (SetpointFloat) isValue()        {}
func (BitstringCommand) isValue()     {}
func (EndOfInit) isValue()            {}
func (Interrogation) isValue()        {}
func (CounterInterrogation) isValue() {}
func (ReadCommand) isValue()          {}
func (ClockSync) isValue()            {}
func (TestPattern) isValue()          {}
func (TestCounter) isValue()          {}
func (ResetProcess) isValue()         {}
func (Delay) isValue()                {}
func (ParameterNormalized) isValue()  {}
func (ParameterScaled) isValue()      {}
func (ParameterFloat) isValue()       {}
func (ParameterActivation) isValue()  {}

//Float 归一化值转换为-1~1
func (n Normalized) Float() float64 {
	return float64(n) / 32768
}

//command 命令限定词字节,S/E在最高位
func command(qu byte, sel bool) byte {
	b := (qu & 0x1F) << 2
	if sel {
		b |= 0x80
	}
	return b
}

func setpointQualifier(ql byte, sel bool) byte {
	b := ql & 0x7F
	if sel {
		b |= 0x80
	}
	return b
}

func le16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func le32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

//decodeElement 解析信息元素,b长度已经过校验
func decodeElement(kind elemKind, b []byte, loc *time.Location) (Value, Quality) {
	switch kind {
	case kindSIQ:
		return SinglePoint(b[0]&0x01 == 1), Quality(b[0] & 0xF0)
	case kindDIQ:
		return DoublePoint(b[0] & 0x03), Quality(b[0] & 0xF0)
	case kindVTI:
		//7位补码
		v := int8(b[0]<<1) >> 1
		return StepPosition{Value: v, Transient: b[0]&0x80 != 0}, Quality(b[1] & 0xF1)
	case kindBSI:
		return Bitstring32(le32(b)), Quality(b[4] & 0xF1)
	case kindNVA:
		return Normalized(le16(b)), Quality(b[2] & 0xF1)
	case kindSVA:
		return Scaled(le16(b)), Quality(b[2] & 0xF1)
	case kindFloat:
		return ShortFloat(math.Float32frombits(le32(b))), Quality(b[4] & 0xF1)
	case kindBCR:
		return BinaryCounter{
			Value:    int32(le32(b)),
			Sequence: b[4] & 0x1F,
			Carry:    b[4]&0x20 != 0,
			Adjusted: b[4]&0x40 != 0,
		}, Quality(b[4] & 0x80)
	case kindNVANoQ:
		return Normalized(le16(b)), QualityGood
	case kindSEP:
		return ProtectionEvent{State: DoublePointValue(b[0] & 0x03), Elapsed: le16(b[1:])}, Quality(b[0] & 0xF8)
	case kindSPE:
		return ProtectionStart{Events: b[0], Duration: le16(b[2:])}, Quality(b[1] & 0xF8)
	case kindOCI:
		return ProtectionOutput{Circuits: b[0], Operating: le16(b[2:])}, Quality(b[1] & 0xF8)
	case kindSCD:
		return PackedSinglePoint{Status: le16(b), Changed: le16(b[2:])}, Quality(b[4] & 0xF1)
	case kindSCO:
		return SingleCommand{Value: b[0]&0x01 == 1, Qualifier: (b[0] >> 2) & 0x1F, Select: b[0]&0x80 != 0}, QualityGood
	case kindDCO:
		return DoubleCommand{Value: DoublePointValue(b[0] & 0x03), Qualifier: (b[0] >> 2) & 0x1F, Select: b[0]&0x80 != 0}, QualityGood
	case kindRCO:
		return StepCommand{Value: b[0] & 0x03, Qualifier: (b[0] >> 2) & 0x1F, Select: b[0]&0x80 != 0}, QualityGood
	case kindSetNVA:
		return SetpointNormalized{Value: Normalized(le16(b)), Qualifier: b[2] & 0x7F, Select: b[2]&0x80 != 0}, QualityGood
	case kindSetSVA:
		return SetpointScaled{Value: Scaled(le16(b)), Qualifier: b[2] & 0x7F, Select: b[2]&0x80 != 0}, QualityGood
	case kindSetFloat:
		return SetpointFloat{Value: math.Float32frombits(le32(b)), Qualifier: b[4] & 0x7F, Select: b[4]&0x80 != 0}, QualityGood
	case kindBSICmd:
		return BitstringCommand(le32(b)), QualityGood
	case kindCOI:
		return EndOfInit{Cause: b[0] & 0x7F, ParamsChanged: b[0]&0x80 != 0}, QualityGood
	case kindQOI:
		return Interrogation(b[0]), QualityGood
	case kindQCC:
		return CounterInterrogation{Request: b[0] & 0x3F, Freeze: b[0] >> 6}, QualityGood
	case kindRead:
		return ReadCommand{}, QualityGood
	case kindClock:
		return ClockSync(parseCP56Time2a(b, loc)), QualityGood
	case kindFBP:
		return TestPattern(le16(b)), QualityGood
	case kindTSC:
		return TestCounter(le16(b)), QualityGood
	case kindQRP:
		return ResetProcess(b[0]), QualityGood
	case kindDelay:
		return Delay(le16(b)), QualityGood
	case kindParNVA:
		return ParameterNormalized{Value: Normalized(le16(b)), Qualifier: b[2]}, QualityGood
	case kindParSVA:
		return ParameterScaled{Value: Scaled(le16(b)), Qualifier: b[2]}, QualityGood
	case kindParFloat:
		return ParameterFloat{Value: math.Float32frombits(le32(b)), Qualifier: b[4]}, QualityGood
	case kindQPA:
		return ParameterActivation(b[0]), QualityGood
	}
	return nil, QualityGood
}

func append16(b []byte, v uint16) []byte {
	return binary.LittleEndian.AppendUint16(b, v)
}

func append32(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}

//appendElement 写入信息元素,值类型必须与格式一致
func appendElement(kind elemKind, b []byte, v Value, q Quality, loc *time.Location) ([]byte, error) {
	qds := byte(q & 0xF1)
	switch kind {
	case kindSIQ:
		if x, ok := v.(SinglePoint); ok {
			siq := byte(q & 0xF0)
			if x {
				siq |= 0x01
			}
			return append(b, siq), nil
		}
	case kindDIQ:
		if x, ok := v.(DoublePoint); ok {
			return append(b, byte(q&0xF0)|byte(x)&0x03), nil
		}
	case kindVTI:
		if x, ok := v.(StepPosition); ok {
			vti := byte(x.Value) & 0x7F
			if x.Transient {
				vti |= 0x80
			}
			return append(b, vti, qds), nil
		}
	case kindBSI:
		if x, ok := v.(Bitstring32); ok {
			return append(append32(b, uint32(x)), qds), nil
		}
	case kindNVA:
		if x, ok := v.(Normalized); ok {
			return append(append16(b, uint16(x)), qds), nil
		}
	case kindSVA:
		if x, ok := v.(Scaled); ok {
			return append(append16(b, uint16(x)), qds), nil
		}
	case kindFloat:
		if x, ok := v.(ShortFloat); ok {
			return append(append32(b, math.Float32bits(float32(x))), qds), nil
		}
	case kindBCR:
		if x, ok := v.(BinaryCounter); ok {
			flags := x.Sequence&0x1F | byte(q&QualityIV)
			if x.Carry {
				flags |= 0x20
			}
			if x.Adjusted {
				flags |= 0x40
			}
			return append(append32(b, uint32(x.Value)), flags), nil
		}
	case kindNVANoQ:
		if x, ok := v.(Normalized); ok {
			return append16(b, uint16(x)), nil
		}
	case kindSEP:
		if x, ok := v.(ProtectionEvent); ok {
			return append16(append(b, byte(q&0xF8)|byte(x.State)&0x03), x.Elapsed), nil
		}
	case kindSPE:
		if x, ok := v.(ProtectionStart); ok {
			return append16(append(b, x.Events, byte(q&0xF8)), x.Duration), nil
		}
	case kindOCI:
		if x, ok := v.(ProtectionOutput); ok {
			return append16(append(b, x.Circuits, byte(q&0xF8)), x.Operating), nil
		}
	case kindSCD:
		if x, ok := v.(PackedSinglePoint); ok {
			return append(append16(append16(b, x.Status), x.Changed), qds), nil
		}
	case kindSCO:
		if x, ok := v.(SingleCommand); ok {
			sco := command(x.Qualifier, x.Select)
			if x.Value {
				sco |= 0x01
			}
			return append(b, sco), nil
		}
	case kindDCO:
		if x, ok := v.(DoubleCommand); ok {
			return append(b, command(x.Qualifier, x.Select)|byte(x.Value)&0x03), nil
		}
	case kindRCO:
		if x, ok := v.(StepCommand); ok {
			return append(b, command(x.Qualifier, x.Select)|x.Value&0x03), nil
		}
	case kindSetNVA:
		if x, ok := v.(SetpointNormalized); ok {
			return append(append16(b, uint16(x.Value)), setpointQualifier(x.Qualifier, x.Select)), nil
		}
	case kindSetSVA:
		if x, ok := v.(SetpointScaled); ok {
			return append(append16(b, uint16(x.Value)), setpointQualifier(x.Qualifier, x.Select)), nil
		}
	case kindSetFloat:
		if x, ok := v.(SetpointFloat); ok {
			return append(append32(b, math.Float32bits(x.Value)), setpointQualifier(x.Qualifier, x.Select)), nil
		}
	case kindBSICmd:
		if x, ok := v.(BitstringCommand); ok {
			return append32(b, uint32(x)), nil
		}
	case kindCOI:
		if x, ok := v.(EndOfInit); ok {
			coi := x.Cause & 0x7F
			if x.ParamsChanged {
				coi |= 0x80
			}
			return append(b, coi), nil
		}
	case kindQOI:
		if x, ok := v.(Interrogation); ok {
			return append(b, byte(x)), nil
		}
	case kindQCC:
		if x, ok := v.(CounterInterrogation); ok {
			return append(b, x.Request&0x3F|x.Freeze<<6), nil
		}
	case kindRead:
		if _, ok := v.(ReadCommand); ok || v == nil {
			return b, nil
		}
	case kindClock:
		if x, ok := v.(ClockSync); ok {
			return appendCP56Time2a(b, Timestamp(x), loc), nil
		}
	case kindFBP:
		if x, ok := v.(TestPattern); ok {
			return append16(b, uint16(x)), nil
		}
	case kindTSC:
		if x, ok := v.(TestCounter); ok {
			return append16(b, uint16(x)), nil
		}
	case kindQRP:
		if x, ok := v.(ResetProcess); ok {
			return append(b, byte(x)), nil
		}
	case kindDelay:
		if x, ok := v.(Delay); ok {
			return append16(b, uint16(x)), nil
		}
	case kindParNVA:
		if x, ok := v.(ParameterNormalized); ok {
			return append(append16(b, uint16(x.Value)), x.Qualifier), nil
		}
	case kindParSVA:
		if x, ok := v.(ParameterScaled); ok {
			return append(append16(b, uint16(x.Value)), x.Qualifier), nil
		}
	case kindParFloat:
		if x, ok := v.(ParameterFloat); ok {
			return append(append32(b, math.Float32bits(x.Value)), x.Qualifier), nil
		}
	case kindQPA:
		if x, ok := v.(ParameterActivation); ok {
			return append(b, byte(x)), nil
		}
	}
	return nil, fmt.Errorf("%w: %T", ErrValueMismatch, v)
}
