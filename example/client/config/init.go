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
	//ServerHost 服务器ip
	ServerHost = os.Getenv("SERVER_HOST")
	//ServerPort 服务器端口
	ServerPort, _ = strconv.Atoi(os.Getenv("SERVER_PORT"))
	//SubServerHost 备用服务器ip
	SubServerHost = os.Getenv("SUB_SERVER_HOST")
	//SubServerPort 备用服务器端口
	SubServerPort, _ = strconv.Atoi(os.Getenv("SUB_SERVER_PORT"))
	//Transport tcp、tls、quic或serial
	Transport = os.Getenv("TRANSPORT")
	//SerialPort 串口设备,如/dev/ttyUSB0
	SerialPort = os.Getenv("SERIAL_PORT")
	//SerialBaud 串口波特率
	SerialBaud, _ = strconv.Atoi(os.Getenv("SERIAL_BAUD"))
	//ConfigFile 链路参数toml文件
	ConfigFile = os.Getenv("IEC104_CONFIG")
	//CommonAddr 公共地址
	CommonAddr, _ = strconv.Atoi(os.Getenv("COMMON_ADDR"))
	//InterrogationInterval 总召唤间隔
	InterrogationInterval, _ = time.ParseDuration(os.Getenv("INTERROGATION_INTERVAL"))
	//Debug 是否debug模式
	Debug, _ = strconv.ParseBool(os.Getenv("DEBUG"))
	//LogFile 日志文件
	LogFile = os.Getenv("LOG_FILE")
	//Logger 日志
	Logger *logrus.Logger
)

func init() {
	if ServerPort == 0 {
		ServerPort = iec104.DefaultPort
	}
	if SubServerPort == 0 {
		SubServerPort = iec104.DefaultPort
	}
	if Transport == "" {
		Transport = "tcp"
	}
	if CommonAddr == 0 {
		CommonAddr = 1
	}
	if LogFile == "" {
		LogFile = "./logs/iec104.log"
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

//Dialer 按Transport建立连接,配置了备用服务器时主备轮流连接
func Dialer() (iec104.DialFunc, error) {
	primary := fmt.Sprintf("%s:%d", ServerHost, ServerPort)
	var dial func(address string) iec104.DialFunc
	switch Transport {
	case "tcp":
		dial = iec104.TCPDialer
	case "tls":
		conf := &tls.Config{InsecureSkipVerify: true}
		dial = func(address string) iec104.DialFunc { return iec104.TLSDialer(address, conf) }
	case "quic":
		conf := &tls.Config{InsecureSkipVerify: true}
		dial = func(address string) iec104.DialFunc { return iec104.QUICDialer(address, conf) }
	case "serial":
		if SerialPort == "" {
			return nil, fmt.Errorf("未指定SERIAL_PORT")
		}
		return iec104.SerialDialer(SerialPort, iec104.SerialMode(SerialBaud)), nil
	default:
		return nil, fmt.Errorf("不支持的传输方式%q", Transport)
	}
	if SubServerHost == "" {
		return dial(primary), nil
	}
	return iec104.Failover(dial(primary), dial(fmt.Sprintf("%s:%d", SubServerHost, SubServerPort))), nil
}
