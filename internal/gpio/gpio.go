// Package gpio reads the pump sensor line.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the pump sensor.
type Reader interface {
	// Read returns the logical pump level: true while the pump is running.
	// Active-low wiring is resolved by the implementation.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Defaults for the reed sensor on a Raspberry Pi (BCM numbering).
const (
	DefaultChip = "gpiochip0"
	DefaultPin  = 16
)
