package iec104

import "fmt"

//TypeID 类型标识
type TypeID byte

//监视方向过程信息
const (
	MSpNa1 TypeID = 1  //单点信息
	MSpTa1 TypeID = 2  //带CP24时标的单点信息
	MDpNa1 TypeID = 3  //双点信息
	MDpTa1 TypeID = 4  //带CP24时标的双点信息
	MStNa1 TypeID = 5  //步位置信息
	MStTa1 TypeID = 6  //带CP24时标的步位置信息
	MBoNa1 TypeID = 7  //32比特串
	MBoTa1 TypeID = 8  //带CP24时标的32比特串
	MMeNa1 TypeID = 9  //测量值,归一化值
	MMeTa1 TypeID = 10 //带CP24时标的测量值,归一化值
	MMeNb1 TypeID = 11 //测量值,标度化值
	MMeTb1 TypeID = 12 //带CP24时标的测量值,标度化值
	MMeNc1 TypeID = 13 //测量值,短浮点数
	MMeTc1 TypeID = 14 //带CP24时标的测量值,短浮点数
	MItNa1 TypeID = 15 //累计量
	MItTa1 TypeID = 16 //带CP24时标的累计量
	MEpTa1 TypeID = 17 //带CP24时标的继电保护设备事件
	MEpTb1 TypeID = 18 //带CP24时标的继电保护设备成组启动事件
	MEpTc1 TypeID = 19 //带CP24时标的继电保护设备成组输出电路信息
	MPsNa1 TypeID = 20 //带变位检出的成组单点信息
	MMeNd1 TypeID = 21 //不带品质描述的归一化测量值
	MSpTb1 TypeID = 30 //带CP56时标的单点信息
	MDpTb1 TypeID = 31 //带CP56时标的双点信息
	MStTb1 TypeID = 32 //带CP56时标的步位置信息
	MBoTb1 TypeID = 33 //带CP56时标的32比特串
	MMeTd1 TypeID = 34 //带CP56时标的测量值,归一化值
	MMeTe1 TypeID = 35 //带CP56时标的测量值,标度化值
	MMeTf1 TypeID = 36 //带CP56时标的测量值,短浮点数
	MItTb1 TypeID = 37 //带CP56时标的累计量
	MEpTd1 TypeID = 38 //带CP56时标的继电保护设备事件
	MEpTe1 TypeID = 39 //带CP56时标的继电保护设备成组启动事件
	MEpTf1 TypeID = 40 //带CP56时标的继电保护设备成组输出电路信息
)

//控制方向过程信息
const (
	CScNa1 TypeID = 45 //单命令
	CDcNa1 TypeID = 46 //双命令
	CRcNa1 TypeID = 47 //步调节命令
	CSeNa1 TypeID = 48 //设点命令,归一化值
	CSeNb1 TypeID = 49 //设点命令,标度化值
	CSeNc1 TypeID = 50 //设点命令,短浮点数
	CBoNa1 TypeID = 51 //32比特串命令
	CScTa1 TypeID = 58 //带CP56时标的单命令
	CDcTa1 TypeID = 59 //带CP56时标的双命令
	CRcTa1 TypeID = 60 //带CP56时标的步调节命令
	CSeTa1 TypeID = 61 //带CP56时标的设点命令,归一化值
	CSeTb1 TypeID = 62 //带CP56时标的设点命令,标度化值
	CSeTc1 TypeID = 63 //带CP56时标的设点命令,短浮点数
	CBoTa1 TypeID = 64 //带CP56时标的32比特串命令
)

//系统信息
const (
	MEiNa1 TypeID = 70  //初始化结束
	CIcNa1 TypeID = 100 //总召唤
	CCiNa1 TypeID = 101 //电度总召唤
	CRdNa1 TypeID = 102 //读命令
	CCsNa1 TypeID = 103 //时钟同步
	CTsNa1 TypeID = 104 //测试命令
	CRpNa1 TypeID = 105 //复位进程
	CCdNa1 TypeID = 106 //延时获得
	CTsTa1 TypeID = 107 //带CP56时标的测试命令
)

//参数
const (
	PMeNa1 TypeID = 110 //测量值参数,归一化值
	PMeNb1 TypeID = 111 //测量值参数,标度化值
	PMeNc1 TypeID = 112 //测量值参数,短浮点数
	PAcNa1 TypeID = 113 //参数激活
)

//elemKind 信息元素格式
type elemKind byte

const (
	kindSIQ elemKind = iota + 1
	kindDIQ
	kindVTI
	kindBSI
	kindNVA
	kindSVA
	kindFloat
	kindBCR
	kindNVANoQ
	kindSEP
	kindSPE
	kindOCI
	kindSCD
	kindSCO
	kindDCO
	kindRCO
	kindSetNVA
	kindSetSVA
	kindSetFloat
	kindBSICmd
	kindCOI
	kindQOI
	kindQCC
	kindRead
	kindClock
	kindFBP
	kindTSC
	kindQRP
	kindDelay
	kindParNVA
	kindParSVA
	kindParFloat
	kindQPA
)

//elemSize 信息元素字节数,不含信息体地址和时标
var elemSize = map[elemKind]int{
	kindSIQ: 1, kindDIQ: 1, kindVTI: 2, kindBSI: 5, kindNVA: 3, kindSVA: 3, kindFloat: 5,
	kindBCR: 5, kindNVANoQ: 2, kindSEP: 3, kindSPE: 4, kindOCI: 4, kindSCD: 5,
	kindSCO: 1, kindDCO: 1, kindRCO: 1, kindSetNVA: 3, kindSetSVA: 3, kindSetFloat: 5,
	kindBSICmd: 4, kindCOI: 1, kindQOI: 1, kindQCC: 1, kindRead: 0, kindClock: 7,
	kindFBP: 2, kindTSC: 2, kindQRP: 1, kindDelay: 2, kindParNVA: 3, kindParSVA: 3,
	kindParFloat: 5, kindQPA: 1,
}

//timeTag 时标格式
type timeTag byte

const (
	tagNone timeTag = iota
	tagCP24
	tagCP56
)

var tagSize = [...]int{tagNone: 0, tagCP24: 3, tagCP56: 7}

type typeInfo struct {
	name string
	kind elemKind
	tag  timeTag
}

var typeTable = map[TypeID]typeInfo{
	MSpNa1: {"M_SP_NA_1", kindSIQ, tagNone},
	MSpTa1: {"M_SP_TA_1", kindSIQ, tagCP24},
	MDpNa1: {"M_DP_NA_1", kindDIQ, tagNone},
	MDpTa1: {"M_DP_TA_1", kindDIQ, tagCP24},
	MStNa1: {"M_ST_NA_1", kindVTI, tagNone},
	MStTa1: {"M_ST_TA_1", kindVTI, tagCP24},
	MBoNa1: {"M_BO_NA_1", kindBSI, tagNone},
	MBoTa1: {"M_BO_TA_1", kindBSI, tagCP24},
	MMeNa1: {"M_ME_NA_1", kindNVA, tagNone},
	MMeTa1: {"M_ME_TA_1", kindNVA, tagCP24},
	MMeNb1: {"M_ME_NB_1", kindSVA, tagNone},
	MMeTb1: {"M_ME_TB_1", kindSVA, tagCP24},
	MMeNc1: {"M_ME_NC_1", kindFloat, tagNone},
	MMeTc1: {"M_ME_TC_1", kindFloat, tagCP24},
	MItNa1: {"M_IT_NA_1", kindBCR, tagNone},
	MItTa1: {"M_IT_TA_1", kindBCR, tagCP24},
	MEpTa1: {"M_EP_TA_1", kindSEP, tagCP24},
	MEpTb1: {"M_EP_TB_1", kindSPE, tagCP24},
	MEpTc1: {"M_EP_TC_1", kindOCI, tagCP24},
	MPsNa1: {"M_PS_NA_1", kindSCD, tagNone},
	MMeNd1: {"M_ME_ND_1", kindNVANoQ, tagNone},
	MSpTb1: {"M_SP_TB_1", kindSIQ, tagCP56},
	MDpTb1: {"M_DP_TB_1", kindDIQ, tagCP56},
	MStTb1: {"M_ST_TB_1", kindVTI, tagCP56},
	MBoTb1: {"M_BO_TB_1", kindBSI, tagCP56},
	MMeTd1: {"M_ME_TD_1", kindNVA, tagCP56},
	MMeTe1: {"M_ME_TE_1", kindSVA, tagCP56},
	MMeTf1: {"M_ME_TF_1", kindFloat, tagCP56},
	MItTb1: {"M_IT_TB_1", kindBCR, tagCP56},
	MEpTd1: {"M_EP_TD_1", kindSEP, tagCP56},
	MEpTe1: {"M_EP_TE_1", kindSPE, tagCP56},
	MEpTf1: {"M_EP_TF_1", kindOCI, tagCP56},
	CScNa1: {"C_SC_NA_1", kindSCO, tagNone},
	CDcNa1: {"C_DC_NA_1", kindDCO, tagNone},
	CRcNa1: {"C_RC_NA_1", kindRCO, tagNone},
	CSeNa1: {"C_SE_NA_1", kindSetNVA, tagNone},
	CSeNb1: {"C_SE_NB_1", kindSetSVA, tagNone},
	CSeNc1: {"C_SE_NC_1", kindSetFloat, tagNone},
	CBoNa1: {"C_BO_NA_1", kindBSICmd, tagNone},
	CScTa1: {"C_SC_TA_1", kindSCO, tagCP56},
	CDcTa1: {"C_DC_TA_1", kindDCO, tagCP56},
	CRcTa1: {"C_RC_TA_1", kindRCO, tagCP56},
	CSeTa1: {"C_SE_TA_1", kindSetNVA, tagCP56},
	CSeTb1: {"C_SE_TB_1", kindSetSVA, tagCP56},
	CSeTc1: {"C_SE_TC_1", kindSetFloat, tagCP56},
	CBoTa1: {"C_BO_TA_1", kindBSICmd, tagCP56},
	MEiNa1: {"M_EI_NA_1", kindCOI, tagNone},
	CIcNa1: {"C_IC_NA_1", kindQOI, tagNone},
	CCiNa1: {"C_CI_NA_1", kindQCC, tagNone},
	CRdNa1: {"C_RD_NA_1", kindRead, tagNone},
	CCsNa1: {"C_CS_NA_1", kindClock, tagNone},
	CTsNa1: {"C_TS_NA_1", kindFBP, tagNone},
	CRpNa1: {"C_RP_NA_1", kindQRP, tagNone},
	CCdNa1: {"C_CD_NA_1", kindDelay, tagNone},
	CTsTa1: {"C_TS_TA_1", kindTSC, tagCP56},
	PMeNa1: {"P_ME_NA_1", kindParNVA, tagNone},
	PMeNb1: {"P_ME_NB_1", kindParSVA, tagNone},
	PMeNc1: {"P_ME_NC_1", kindParFloat, tagNone},
	PAcNa1: {"P_AC_NA_1", kindQPA, tagNone},
}

//Supported 是否支持该类型
func (t TypeID) Supported() bool {
	_, ok := typeTable[t]
	return ok
}

//ObjectSize 信息元素加时标的字节数,不含信息体地址;不支持的类型返回-1
func (t TypeID) ObjectSize() int {
	info, ok := typeTable[t]
	if !ok {
		return -1
	}
	return elemSize[info.kind] + tagSize[info.tag]
}

func (t TypeID) String() string {
	if info, ok := typeTable[t]; ok {
		return info.name
	}
	return fmt.Sprintf("TypeID(%d)", byte(t))
}
