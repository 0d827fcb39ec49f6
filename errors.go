package iec104

import "errors"

//帧格式错误,链路致命
var (
	//ErrInvalidStartByte 起始符不是0x68
	ErrInvalidStartByte = errors.New("iec104: 非法起始符")
	//ErrLengthMismatch APDU长度与实际字节数不符
	ErrLengthMismatch = errors.New("iec104: APDU长度不匹配")
	//ErrUnknownControl 无法识别的控制域
	ErrUnknownControl = errors.New("iec104: 未知控制域")
	//ErrFrameTooLong APDU超过253字节
	ErrFrameTooLong = errors.New("iec104: APDU过长")
)

//ASDU错误,只影响当前ASDU
var (
	//ErrUnsupportedType 不支持的类型标识
	ErrUnsupportedType = errors.New("iec104: 不支持的类型标识")
	//ErrMalformedObjectCount 信息体数目与字节长度不符
	ErrMalformedObjectCount = errors.New("iec104: 信息体数目与长度不符")
	//ErrAddressOverflow 连续地址超出信息体地址范围
	ErrAddressOverflow = errors.New("iec104: 信息体地址溢出")
	//ErrShortASDU ASDU长度不足数据单元标识
	ErrShortASDU = errors.New("iec104: ASDU长度不足")
	//ErrParam ASDU参数非法
	ErrParam = errors.New("iec104: ASDU参数非法")
	//ErrTooManyObjects 信息体超过127个
	ErrTooManyObjects = errors.New("iec104: 信息体数目超过127")
	//ErrASDUTooLong ASDU超过249字节
	ErrASDUTooLong = errors.New("iec104: ASDU过长")
	//ErrNonSequentialAddress SQ=1时信息体地址不连续
	ErrNonSequentialAddress = errors.New("iec104: 信息体地址不连续")
	//ErrValueMismatch 信息元素与类型标识不符
	ErrValueMismatch = errors.New("iec104: 信息元素与类型标识不符")
)

//序号错误
var (
	//ErrWindowFull 未确认的I帧达到k
	ErrWindowFull = errors.New("iec104: 发送窗口已满")
	//ErrSequence 接收序号与V(R)不符
	ErrSequence = errors.New("iec104: 接收序号错误")
	//ErrInvalidAck 确认序号不在[V(A),V(S)]内
	ErrInvalidAck = errors.New("iec104: 确认序号非法")
)

//超时错误
var (
	//ErrEstablishmentTimeout t0超时,连接未建立
	ErrEstablishmentTimeout = errors.New("iec104: t0超时,连接建立失败")
	//ErrAckTimeout t1超时,对端未确认I帧
	ErrAckTimeout = errors.New("iec104: t1超时,I帧未被确认")
	//ErrConfirmTimeout t1超时,对端未确认U帧
	ErrConfirmTimeout = errors.New("iec104: t1超时,U帧未被确认")
)

//链路状态错误
var (
	//ErrNotConnected 链路未建立
	ErrNotConnected = errors.New("iec104: 链路未连接")
	//ErrNotStarted 数据传输未启动
	ErrNotStarted = errors.New("iec104: 数据传输未启动")
	//ErrAlreadyStarted 数据传输已启动
	ErrAlreadyStarted = errors.New("iec104: 数据传输已启动")
	//ErrPending 上一个控制帧尚未确认
	ErrPending = errors.New("iec104: 控制帧等待确认中")
	//ErrUnexpectedFrame 当前状态不允许收到该帧
	ErrUnexpectedFrame = errors.New("iec104: 非预期的帧")
	//ErrClosed 链路已关闭
	ErrClosed = errors.New("iec104: 链路已关闭")
	//ErrInvalidConfig 配置非法
	ErrInvalidConfig = errors.New("iec104: 配置非法")
)
