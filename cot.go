package iec104

import "fmt"

//Cause 传输原因,6位
type Cause byte

//传输原因
const (
	CauseUnused               Cause = 0
	CausePeriodic             Cause = 1  //周期、循环
	CauseBackground           Cause = 2  //背景扫描
	CauseSpontaneous          Cause = 3  //突发
	CauseInitialized          Cause = 4  //初始化
	CauseRequest              Cause = 5  //请求或被请求
	CauseActivation           Cause = 6  //激活
	CauseActivationCon        Cause = 7  //激活确认
	CauseDeactivation         Cause = 8  //停止激活
	CauseDeactivationCon      Cause = 9  //停止激活确认
	CauseActivationTerm       Cause = 10 //激活终止
	CauseReturnRemote         Cause = 11 //远方命令引起的返送信息
	CauseReturnLocal          Cause = 12 //当地命令引起的返送信息
	CauseFileTransfer         Cause = 13 //文件传输
	CauseInterrogatedStation  Cause = 20 //响应站召唤
	CauseInterrogatedGroup1   Cause = 21 //响应第1组召唤,21~36为第1~16组
	CauseCounterInterrogated  Cause = 37 //响应计数量站召唤
	CauseCounterGroup1        Cause = 38 //响应第1组计数量召唤,38~41为第1~4组
	CauseUnknownType          Cause = 44 //未知的类型标识
	CauseUnknownCause         Cause = 45 //未知的传送原因
	CauseUnknownCommonAddress Cause = 46 //未知的应用服务数据单元公共地址
	CauseUnknownObjectAddress Cause = 47 //未知的信息对象地址
)

var causeNames = map[Cause]string{
	CauseUnused:               "unused",
	CausePeriodic:             "per/cyc",
	CauseBackground:           "back",
	CauseSpontaneous:          "spont",
	CauseInitialized:          "init",
	CauseRequest:              "req",
	CauseActivation:           "act",
	CauseActivationCon:        "actcon",
	CauseDeactivation:         "deact",
	CauseDeactivationCon:      "deactcon",
	CauseActivationTerm:       "actterm",
	CauseReturnRemote:         "retrem",
	CauseReturnLocal:          "retloc",
	CauseFileTransfer:         "file",
	CauseInterrogatedStation:  "inrogen",
	CauseCounterInterrogated:  "reqcogen",
	CauseUnknownType:          "unknown type",
	CauseUnknownCause:         "unknown cause",
	CauseUnknownCommonAddress: "unknown common address",
	CauseUnknownObjectAddress: "unknown object address",
}

func (c Cause) String() string {
	if name, ok := causeNames[c]; ok {
		return name
	}
	switch {
	case c > CauseInterrogatedStation && c <= CauseInterrogatedStation+16:
		return fmt.Sprintf("inro%d", c-CauseInterrogatedStation)
	case c > CauseCounterInterrogated && c <= CauseCounterInterrogated+4:
		return fmt.Sprintf("reqco%d", c-CauseCounterInterrogated)
	}
	return fmt.Sprintf("Cause(%d)", byte(c))
}
