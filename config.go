package iec104

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//默认参数
const (
	DefaultK  = 12
	DefaultW  = 8
	DefaultT0 = 30 * time.Second
	DefaultT1 = 15 * time.Second
	DefaultT2 = 10 * time.Second
	DefaultT3 = 20 * time.Second

	defaultSendQueueSize   = 64
	defaultEventBufferSize = 256
)

//Config 链路参数
type Config struct {
	//K 未被确认的I帧最大数目
	K uint16
	//W 最迟接收W个I帧后给出确认,W不能大于K
	W uint16
	//T0 建立连接超时
	T0 time.Duration
	//T1 发送或测试APDU的超时
	T1 time.Duration
	//T2 无数据报文时确认的超时,T2<T1
	T2 time.Duration
	//T3 长期空闲状态下发送测试帧的超时
	T3 time.Duration
	//Params ASDU参数
	Params Params
	//SendQueueSize 写协程队列长度
	SendQueueSize int
	//EventBufferSize 事件通道长度
	EventBufferSize int
}

//DefaultConfig 标准默认参数
func DefaultConfig() Config {
	return Config{
		K:               DefaultK,
		W:               DefaultW,
		T0:              DefaultT0,
		T1:              DefaultT1,
		T2:              DefaultT2,
		T3:              DefaultT3,
		Params:          *ParamsWide,
		SendQueueSize:   defaultSendQueueSize,
		EventBufferSize: defaultEventBufferSize,
	}
}

//Valid 零值字段使用默认值,并检查取值范围
func (c *Config) Valid() error {
	if c == nil {
		return ErrInvalidConfig
	}
	if c.K == 0 {
		c.K = DefaultK
	}
	if c.W == 0 {
		c.W = DefaultW
	}
	if c.T0 == 0 {
		c.T0 = DefaultT0
	}
	if c.T1 == 0 {
		c.T1 = DefaultT1
	}
	if c.T2 == 0 {
		c.T2 = DefaultT2
	}
	if c.T3 == 0 {
		c.T3 = DefaultT3
	}
	if c.Params.CauseSize == 0 {
		c.Params.CauseSize = ParamsWide.CauseSize
	}
	if c.Params.CommonAddrSize == 0 {
		c.Params.CommonAddrSize = ParamsWide.CommonAddrSize
	}
	if c.Params.InfoObjAddrSize == 0 {
		c.Params.InfoObjAddrSize = ParamsWide.InfoObjAddrSize
	}
	if c.Params.TimeZone == nil {
		c.Params.TimeZone = ParamsWide.TimeZone
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = defaultSendQueueSize
	}
	if c.EventBufferSize <= 0 {
		c.EventBufferSize = defaultEventBufferSize
	}

	switch {
	case c.K >= seqModulo:
		return fmt.Errorf("%w: k=%d超过32767", ErrInvalidConfig, c.K)
	case c.W > c.K:
		return fmt.Errorf("%w: w=%d大于k=%d", ErrInvalidConfig, c.W, c.K)
	case c.T0 < 0 || c.T1 < 0 || c.T2 < 0 || c.T3 < 0:
		return fmt.Errorf("%w: 定时器不能为负", ErrInvalidConfig)
	case c.T2 >= c.T1:
		return fmt.Errorf("%w: t2=%v必须小于t1=%v", ErrInvalidConfig, c.T2, c.T1)
	}
	if err := c.Params.Valid(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

//fileConfig 配置文件格式,时间为Go的duration字符串
type fileConfig struct {
	K               uint16 `toml:"k"`
	W               uint16 `toml:"w"`
	T0              string `toml:"t0"`
	T1              string `toml:"t1"`
	T2              string `toml:"t2"`
	T3              string `toml:"t3"`
	CauseSize       int    `toml:"cause_size"`
	CommonAddrSize  int    `toml:"common_addr_size"`
	InfoObjAddrSize int    `toml:"ioa_size"`
	TimeZone        string `toml:"time_zone"`
	SendQueueSize   int    `toml:"send_queue_size"`
	EventBufferSize int    `toml:"event_buffer_size"`
}

//LoadConfig 读取toml配置文件,未出现的键使用默认值
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("读取配置文件: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: 未知配置项%v", ErrInvalidConfig, undecoded)
	}

	if meta.IsDefined("k") {
		cfg.K = raw.K
	}
	if meta.IsDefined("w") {
		cfg.W = raw.W
	}
	timers := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"t0", raw.T0, &cfg.T0},
		{"t1", raw.T1, &cfg.T1},
		{"t2", raw.T2, &cfg.T2},
		{"t3", raw.T3, &cfg.T3},
	}
	for _, t := range timers {
		if !meta.IsDefined(t.key) {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(t.raw))
		if err != nil {
			return Config{}, fmt.Errorf("解析%s: %w", t.key, err)
		}
		*t.dst = d
	}
	if meta.IsDefined("cause_size") {
		cfg.Params.CauseSize = raw.CauseSize
	}
	if meta.IsDefined("common_addr_size") {
		cfg.Params.CommonAddrSize = raw.CommonAddrSize
	}
	if meta.IsDefined("ioa_size") {
		cfg.Params.InfoObjAddrSize = raw.InfoObjAddrSize
	}
	if meta.IsDefined("time_zone") {
		loc, err := time.LoadLocation(strings.TrimSpace(raw.TimeZone))
		if err != nil {
			return Config{}, fmt.Errorf("解析time_zone: %w", err)
		}
		cfg.Params.TimeZone = loc
	}
	if meta.IsDefined("send_queue_size") {
		cfg.SendQueueSize = raw.SendQueueSize
	}
	if meta.IsDefined("event_buffer_size") {
		cfg.EventBufferSize = raw.EventBufferSize
	}

	if err := cfg.Valid(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
