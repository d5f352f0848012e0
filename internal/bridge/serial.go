package bridge

import (
	"fmt"

	"github.com/goburrow/serial"
)

// SerialLink bridges the agent over a serial port, the transport the
// protocol was shaped for.
type SerialLink struct {
	port serial.Port
}

// OpenSerial opens device (e.g. /dev/ttyUSB0) in 8N1 at the given baud
// rate. Reads poll at the bridge interval so the pump keeps cycling while
// the line is quiet.
func OpenSerial(device string, baud int) (*SerialLink, error) {
	port, err := serial.Open(&serial.Config{
		Address:  device,
		BaudRate: baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  pollInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("bridge: open %s: %w", device, err)
	}
	return &SerialLink{port: port}, nil
}

// Receive reads whatever is pending, returning zero on a quiet line.
func (l *SerialLink) Receive(p []byte) (int, error) {
	n, err := l.port.Read(p)
	if err == serial.ErrTimeout {
		return 0, nil
	}
	return n, err
}

// Reply writes p to the line.
func (l *SerialLink) Reply(p []byte) (int, error) {
	return l.port.Write(p)
}

// Close releases the port.
func (l *SerialLink) Close() error {
	return l.port.Close()
}
