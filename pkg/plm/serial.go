package plm

import (
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// Port is the byte stream to the modem. A serial port in production, a pipe
// in tests.
type Port interface {
	io.ReadWriteCloser
}

// OpenSerial opens the PowerLinc modem port at 19200 baud, 8N1.
func OpenSerial(portPath string) (Port, error) {
	mode := &serial.Mode{
		BaudRate: 19200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portPath, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portPath, err)
	}

	// PLMs ignore flow control lines but some USB adapters hold the modem in
	// reset while DTR is low.
	if err := port.SetDTR(true); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set DTR: %w", err)
	}

	log.Info().Str("port", portPath).Msg("Serial port opened")

	return port, nil
}

// readByte reads a single byte from r.
func readByte(r io.Reader, buf []byte) (byte, error) {
	if _, err := io.ReadFull(r, buf[:1]); err != nil {
		return 0, err
	}
	return buf[0], nil
}
