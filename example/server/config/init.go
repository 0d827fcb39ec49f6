package config

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/9d77v/iec104/v2"
	"github.com/9d77v/iec104/v2/example/utils"
)

var (
	//ListenAddr 104监听地址
	ListenAddr = os.Getenv("LISTEN_ADDR")
	//HTTPAddr 状态和指标接口地址
	HTTPAddr = os.Getenv("HTTP_ADDR")
	//Transport tcp、tls或quic
	Transport = os.Getenv("TRANSPORT")
	//ConfigFile 链路参数toml文件
	ConfigFile = os.Getenv("IEC104_CONFIG")
	//CommonAddr 公共地址
	CommonAddr, _ = strconv.Atoi(os.Getenv("COMMON_ADDR"))
	//MaxConns 最大连接数
	MaxConns, _ = strconv.Atoi(os.Getenv("MAX_CONNS"))
	//SimulateInterval 突发上送间隔
	SimulateInterval, _ = time.ParseDuration(os.Getenv("SIMULATE_INTERVAL"))
	//Debug 是否debug模式
	Debug, _ = strconv.ParseBool(os.Getenv("DEBUG"))
	//LogFile 日志文件
	LogFile = os.Getenv("LOG_FILE")
	//Logger 日志
	Logger *logrus.Logger
)

func init() {
	if ListenAddr == "" {
		ListenAddr = fmt.Sprintf(":%d", iec104.DefaultPort)
	}
	if HTTPAddr == "" {
		HTTPAddr = ":8080"
	}
	if Transport == "" {
		Transport = "tcp"
	}
	if CommonAddr == 0 {
		CommonAddr = 1
	}
	if SimulateInterval == 0 {
		SimulateInterval = 5 * time.Second
	}
	logger, err := utils.NewLogger(Debug, LogFile)
	if err != nil {
		logrus.Fatalln(err)
	}
	Logger = logger
}

//LinkConfig 读取链路参数,未指定文件时使用默认值
func LinkConfig() (iec104.Config, error) {
	if ConfigFile == "" {
		return iec104.DefaultConfig(), nil
	}
	return iec104.LoadConfig(ConfigFile)
}

//Listen 按Transport监听,tls和quic使用自签名证书
func Listen() (iec104.Listener, error) {
	var conf *tls.Config
	if Transport == "tls" || Transport == "quic" {
		var err error
		if conf, err = iec104.SelfSignedTLSConfig("localhost", "127.0.0.1"); err != nil {
			return nil, err
		}
	}
	switch Transport {
	case "tcp", "tls":
		return iec104.ListenTCP(ListenAddr, conf)
	case "quic":
		return iec104.ListenQUIC(ListenAddr, conf)
	}
	return nil, fmt.Errorf("不支持的传输方式%q", Transport)
}
