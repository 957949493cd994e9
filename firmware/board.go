package main

import "time"

const (
	// Sampling configuration
	ADC_DMA_INTERVAL = time.Millisecond // Conversion sequence period of the circular DMA transfer
	ADC_RESOLUTION   = 12               // ADC resolution in bits (12-bit = 0-4095)

	// Flash configuration
	// Sector 8 of the STM32F405 (128 KiB at 0x08080000) holds the control blob.
	// Only that sector is simulated; the image file is exactly one sector long.
	FLASH_SECTOR = 8

	// USB CDC configuration
	// Replies are at most 127 bytes; at 115200 baud that is ~11 ms per reply,
	// well below the 3 s host timeout.
	USB_BAUD_RATE = 115200
)
