package iec104

//Signal 104信号,信息体的扁平表示
type Signal struct {
	TypeID  uint    `json:"type_id"` //类型id，1:单点遥信，9:归一化遥测
	Address uint32  `json:"address"` //地址
	Value   float64 `json:"value"`   //值
	Quality byte    `json:"quality"` //品质描述
	Ts      float64 `json:"ts"`      //毫秒时间戳,不带CP56时标时为0
}

//Signals 把监视方向的信息体转换为信号,控制和系统类型返回空
func (asdu *ASDU) Signals() []*Signal {
	info, ok := typeTable[asdu.TypeID]
	if !ok {
		return nil
	}
	signals := make([]*Signal, 0, len(asdu.Objects))
	for _, obj := range asdu.Objects {
		v, ok := numeric(obj.Value)
		if !ok {
			continue
		}
		s := &Signal{
			TypeID:  uint(asdu.TypeID),
			Address: obj.Address,
			Value:   v,
			Quality: byte(obj.Quality),
		}
		if info.tag == tagCP56 && !obj.Time.Time.IsZero() {
			s.Ts = float64(obj.Time.Time.UnixMilli())
		}
		signals = append(signals, s)
	}
	return signals
}

//numeric 信息元素的数值
func numeric(v Value) (float64, bool) {
	switch x := v.(type) {
	case SinglePoint:
		if x {
			return 1, true
		}
		return 0, true
	case DoublePoint:
		return float64(x), true
	case StepPosition:
		return float64(x.Value), true
	case Bitstring32:
		return float64(x), true
	case Normalized:
		return x.Float(), true
	case Scaled:
		return float64(x), true
	case ShortFloat:
		return float64(x), true
	case BinaryCounter:
		return float64(x.Value), true
	case ProtectionEvent:
		return float64(x.State), true
	case PackedSinglePoint:
		return float64(x.Status), true
	}
	return 0, false
}
