package iec104

import (
	"math/rand"
	"time"
)

//Backoff 重连退避参数
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	//Jitter 延时乘以0.5~1.5的随机系数,rng为空时取0.5
	Jitter bool
}

//DefaultBackoff 1秒起,最长1分钟
var DefaultBackoff = Backoff{
	InitialDelay: time.Second,
	MaxDelay:     time.Minute,
	Multiplier:   2,
	Jitter:       true,
}

//Delay 第attempt次重连前的等待时间,attempt从1开始,第1次不加随机系数
func (b Backoff) Delay(attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 || b.InitialDelay <= 0 {
		return max(b.InitialDelay, 0)
	}
	factor := max(b.Multiplier, 1)
	delay := float64(b.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= factor
		if b.MaxDelay > 0 && delay >= float64(b.MaxDelay) {
			delay = float64(b.MaxDelay)
			break
		}
	}
	if b.Jitter {
		scale := 0.5
		if rng != nil {
			scale += rng.Float64()
		}
		delay *= scale
	}
	return time.Duration(delay)
}
