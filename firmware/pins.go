//go:build tinygo

package main

import "machine"

const (
	// Sampling configuration
	SAMPLE_INTERVAL_US = 1000 // both nodes are read every 1 ms (1 kHz)
	HEARTBEAT_INTERVAL = 1000 // samples between HB lines in text mode

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)

	// PPG sensor pins
	PIN_NODE1 = machine.A1
	PIN_NODE2 = machine.A2

	// Status LED, toggled once per heartbeat interval
	PIN_LED = machine.LED

	// Serial configuration
	// Binary frames are 9 bytes at 1 kHz = 9,000 bytes/sec. UART 8N1 needs
	// 90,000 baud; 500000 leaves ~5.5x headroom. Text lines are up to ~26
	// bytes ("4294.967295,4095,4095\n"), 26,000 bytes/sec, still within it.
	UART_BAUD_RATE = 500000

	// TEXT_PROTOCOL selects the line protocol at boot. The host can switch
	// at runtime by sending "b" or "t" followed by a newline.
	TEXT_PROTOCOL = false
)
