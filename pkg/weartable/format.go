package weartable

// On-device region layout, relative to the region start address:
//
//	<------------- header ---------------------------> <-------- data ----------------->
//	Marker Size <--- status buffer ------------> Marker (spare) <--- record buffer ----->
//	(0x42) (n)  (s0) (s1) (s2) ... (s[n-1])      (0x45) (cnt)   (rec0) (rec1) ... (recN)
//	[0]    [1]  [2]                [n+1]         [n+2]  [n+3]    [n+4]
//
// Each status byte s[i] is a write-generation counter for record slot i,
// modulo 256. The slot holding the most recent save is found by walking
// the status buffer while each byte equals its predecessor plus one; the
// walk breaks at the write frontier. The spare byte at [n+3] receives the
// live-record count when the frontier sits at slot 0; for any other slot
// the count byte lands on the last byte of the preceding record.
//
// Each record is the payload followed by one enabled-flag byte.
const (
	beginMarker byte = 0x42
	endMarker   byte = 0x45

	// Header bytes besides the status buffer: begin marker, size byte,
	// end marker, spare count byte.
	headerOverhead = 4
)

// recordEnabled is the on-device encoding of a live record's flag byte.
const recordEnabled byte = 1

// region describes the address layout of an attached storage region.
type region struct {
	start      int
	items      int
	recordSize int
}

// sizeAddr returns the address of the capacity byte.
func (r region) sizeAddr() int {
	return r.start + 1
}

// statusStart returns the address of the first status byte.
func (r region) statusStart() int {
	return r.start + 2
}

// endMarkerAddr returns the address of the end marker byte.
func (r region) endMarkerAddr() int {
	return r.start + r.items + 2
}

// dataStart returns the address of record slot 0.
func (r region) dataStart() int {
	return r.start + r.items + headerOverhead
}

// nextFree returns the first address past the region.
func (r region) nextFree() int {
	return r.start + r.items + headerOverhead + r.items*r.recordSize
}

// size returns the total region length in bytes.
func (r region) size() int {
	return r.nextFree() - r.start
}

// incStatus advances a status address by one slot, wrapping from the last
// status byte back to the first. This is the circular-buffer step.
func (r region) incStatus(addr int) int {
	if addr+1 < r.statusStart()+r.items {
		return addr + 1
	}

	return r.statusStart()
}

// dataAddrFor maps a status byte address to its record slot address.
// Status index i pairs with record slot i by position.
func (r region) dataAddrFor(statusAddr int) int {
	return (statusAddr-r.statusStart())*r.recordSize + r.dataStart()
}
