//go:build tinygo

//go:generate tinygo flash -target=xiao -tags tinygo

package main

import (
	"machine"
	"time"

	"github.com/kintad/PWV3/pkg/frame"
)

var (
	adcNode1 machine.ADC
	adcNode2 machine.ADC
	uart     = machine.Serial

	textMode bool
	led      bool

	// Output buffer, reused for every sample
	out [32]byte

	// Timing
	start      time.Time
	lastSample time.Time
	sampleN    uint32

	// Serial buffer for reading commands
	serialBuffer [8]byte
	serialPos    int
)

func main() {
	PIN_LED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	// Configure ADC pins and set up ADCs with highest resolution
	PIN_NODE1.Configure(machine.PinConfig{Mode: machine.PinInput})
	PIN_NODE2.Configure(machine.PinConfig{Mode: machine.PinInput})

	adcNode1 = machine.ADC{Pin: PIN_NODE1}
	adcNode2 = machine.ADC{Pin: PIN_NODE2}

	adcConfig := machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	}
	adcNode1.Configure(adcConfig)
	adcNode2.Configure(adcConfig)

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	textMode = TEXT_PROTOCOL
	start = time.Now()
	lastSample = start

	for {
		now := time.Now()

		// Check for serial input (non-blocking)
		processSerial()

		if now.Sub(lastSample) >= SAMPLE_INTERVAL_US*time.Microsecond {
			lastSample = now
			sample(now)
		}

		time.Sleep(50 * time.Microsecond)
	}
}

// sample reads both nodes as close together as possible and writes one
// frame or line. The microsecond counter wraps every ~71 minutes like the
// host expects.
func sample(now time.Time) {
	v1 := adcNode1.Get() >> (16 - ADC_RESOLUTION)
	v2 := adcNode2.Get() >> (16 - ADC_RESOLUTION)
	micros := uint32(now.Sub(start).Microseconds())

	if textMode {
		if sampleN > 0 && sampleN%HEARTBEAT_INTERVAL == 0 {
			uart.Write([]byte(frame.FormatLine(frame.Heartbeat)))
		}
		uart.Write([]byte(frame.FormatLine(frame.Sample{
			T:   float64(micros) / 1e6,
			Ch1: float64(v1),
			Ch2: float64(v2),
		})))
	} else {
		uart.Write(frame.AppendFrame(out[:0], micros, v1, v2))
	}

	sampleN++
	if sampleN%HEARTBEAT_INTERVAL == 0 {
		led = !led
		PIN_LED.Set(led)
	}
}

func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		// Check for newline (end of line)
		if data == '\n' || data == '\r' {
			if serialPos == 1 {
				switchProtocol(serialBuffer[0])
			}
			serialPos = 0
			continue
		}

		// Ignore whitespace
		if data == ' ' || data == '\t' {
			continue
		}

		if serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		}
	}
}

// switchProtocol handles the single-letter host commands.
func switchProtocol(cmd byte) {
	switch cmd {
	case 'b', 'B':
		textMode = false
	case 't', 'T':
		textMode = true
	}
}
