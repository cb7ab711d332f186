// Package eeprom models byte-addressable non-volatile memory devices.
//
// A [Device] exposes synchronous single-byte reads and writes over a fixed
// address range, the way EEPROM-class parts behave behind a driver. Two
// implementations are provided:
//
//   - [Mem]: RAM-backed, with per-cell write counters for wear analysis
//   - [File]: mmap-backed image file, durable across process restarts
//
// Higher layers (see pkg/weartable) build record-level I/O on top of the
// byte contract.
package eeprom
