package weartable

// Hardcoded implementation limits.
//
// The on-device format stores the region capacity in a single byte, so 255
// is a format constraint, not a tunable. The remaining limits are
// guardrails that keep address arithmetic far from overflow and bound
// allocations for configurations the project does not test.
//
// All limit violations return ErrInvalidInput.
const (
	// Maximum records per storage region (capacity byte is one byte).
	maxItems = 255

	// Maximum table capacity. Tables larger than a storage region can
	// hold are constructible but cannot be attached to one.
	maxTableCapacity = 65535

	// Maximum payload size in bytes. EEPROM-class parts are small;
	// anything bigger than this belongs in a different storage layer.
	maxItemSizeBytes = 8192
)
