package serialmux

import (
	"go.bug.st/serial"
)

// NewRealSerialMux opens the tty scansource.SerialSource was given
// (e.g. "/dev/ttyUSB0") and wraps it in a SerialMux, the mux
// scansource.SerialSource.Open reads CSV scan lines and sends motor/ping
// commands through.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	return NewSerialMux[serial.Port](port), nil
}
