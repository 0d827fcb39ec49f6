package worker

import (
	"encoding/json"

	"github.com/9d77v/iec104/v2"
	"github.com/9d77v/iec104/v2/example/client/config"
)

//Task 处理接收到的已解析数据
func Task(asdu *iec104.ASDU) {
	signals := asdu.Signals()
	if len(signals) == 0 {
		config.Logger.Debugf("忽略%v", asdu)
		return
	}
	data, err := json.Marshal(signals)
	if err != nil {
		config.Logger.Errorf("序列化信号: %v", err)
		return
	}
	config.Logger.Debugf("接收到数据类型:%v,原因:%v,长度:%d", asdu.TypeID, asdu.Cause, len(signals))
	//TODO 写入时序数据库
	config.Logger.Infoln(string(data))
}
