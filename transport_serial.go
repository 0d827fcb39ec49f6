package iec104

import (
	"context"
	"fmt"
	"io"

	"go.bug.st/serial"
)

//SerialMode 串口参数,默认9600 8E1
func SerialMode(baudRate int) *serial.Mode {
	if baudRate <= 0 {
		baudRate = 9600
	}
	return &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.EvenParity,
		StopBits: serial.OneStopBit,
	}
}

//SerialDialer 通过串口透传APDU字节流,常用于串口服务器或无线电台
func SerialDialer(port string, mode *serial.Mode) DialFunc {
	if mode == nil {
		mode = SerialMode(0)
	}
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := serial.Open(port, mode)
		if err != nil {
			return nil, fmt.Errorf("打开串口%s: %w", port, err)
		}
		return p, nil
	}
}
