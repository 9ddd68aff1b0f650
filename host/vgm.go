// Package host simulates the PC side of the parallel port: it replays VGM
// register logs and streams 8-bit PCM through the same port operations a
// DOS driver would use.
package host

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"
)

// VGMRate is the VGM timebase in samples per second.
const VGMRate = 44100

// Chip identifies the sound chip an event targets.
type Chip uint8

const (
	ChipSN76489 Chip = iota
	ChipYM3812
	ChipSAA1099
)

func (c Chip) String() string {
	switch c {
	case ChipSN76489:
		return "SN76489"
	case ChipYM3812:
		return "YM3812"
	case ChipSAA1099:
		return "SAA1099"
	}
	return "unknown"
}

// Event is one chip write at an absolute VGM sample position.
type Event struct {
	Sample uint64
	Chip   Chip
	// Index selects the chip instance for dual-chip logs.
	Index uint8
	Reg   uint8
	Value uint8
}

// VGM is a parsed register log.
type VGM struct {
	Version      uint32
	Events       []Event
	TotalSamples uint64
	// LoopSample is the sample position the loop returns to, or 0.
	LoopSample uint64
	SNClockHz  uint32
	YM3812Hz   uint32
	SAA1099Hz  uint32
}

var (
	ErrVGMHeader    = errors.New("vgm: invalid header")
	ErrVGMTruncated = errors.New("vgm: truncated")
)

// ReadVGMFile loads and parses a .vgm or .vgz file.
func ReadVGMFile(path string) (*VGM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseVGM(data)
}

// ParseVGM parses VGM data, inflating it first if it is gzip compressed.
// Only SN76489, YM3812 and SAA-1099 writes become events; other commands
// are skipped.
func ParseVGM(data []byte) (*VGM, error) {
	if len(data) >= 2 && data[0] == 0x1F && data[1] == 0x8B {
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("vgz: %w", err)
		}
		defer gz.Close()
		data, err = io.ReadAll(gz)
		if err != nil {
			return nil, fmt.Errorf("vgz: %w", err)
		}
	}
	if len(data) < 0x40 || !bytes.Equal(data[0:4], []byte("Vgm ")) {
		return nil, ErrVGMHeader
	}

	le := binary.LittleEndian
	v := &VGM{
		Version:      le.Uint32(data[0x08:]),
		SNClockHz:    le.Uint32(data[0x0C:]),
		TotalSamples: uint64(le.Uint32(data[0x18:])),
	}
	loopOffset := le.Uint32(data[0x1C:])
	if len(data) >= 0x54 && v.Version >= 0x151 {
		v.YM3812Hz = le.Uint32(data[0x50:])
	}
	if len(data) >= 0xCC && v.Version >= 0x171 {
		v.SAA1099Hz = le.Uint32(data[0xC8:])
	}

	start := 0x40
	if v.Version >= 0x150 {
		if off := le.Uint32(data[0x34:]); off != 0 {
			start = 0x34 + int(off)
		}
	}
	if start > len(data) {
		return nil, fmt.Errorf("%w: data offset 0x%X", ErrVGMHeader, start)
	}
	loopAt := -1
	if loopOffset != 0 {
		loopAt = 0x1C + int(loopOffset)
	}

	var pos uint64
	need := func(i, n int) error {
		if i+n > len(data) {
			return fmt.Errorf("%w: command 0x%02X at 0x%X", ErrVGMTruncated, data[i], i)
		}
		return nil
	}

parse:
	for i := start; i < len(data); {
		if i == loopAt {
			v.LoopSample = pos
		}
		cmd := data[i]
		switch {
		case cmd == 0x66:
			break parse
		case cmd == 0x50:
			if err := need(i, 2); err != nil {
				return nil, err
			}
			v.Events = append(v.Events, Event{Sample: pos, Chip: ChipSN76489, Value: data[i+1]})
			i += 2
		case cmd == 0x5A:
			if err := need(i, 3); err != nil {
				return nil, err
			}
			v.Events = append(v.Events, Event{Sample: pos, Chip: ChipYM3812, Reg: data[i+1], Value: data[i+2]})
			i += 3
		case cmd == 0xBD:
			if err := need(i, 3); err != nil {
				return nil, err
			}
			// Bit 7 of the register byte selects the second chip.
			v.Events = append(v.Events, Event{
				Sample: pos,
				Chip:   ChipSAA1099,
				Index:  data[i+1] >> 7,
				Reg:    data[i+1] & 0x7F,
				Value:  data[i+2],
			})
			i += 3
		case cmd == 0x61:
			if err := need(i, 3); err != nil {
				return nil, err
			}
			pos += uint64(le.Uint16(data[i+1:]))
			i += 3
		case cmd == 0x62:
			pos += 735
			i++
		case cmd == 0x63:
			pos += 882
			i++
		case cmd >= 0x70 && cmd <= 0x7F:
			pos += uint64(cmd&0x0F) + 1
			i++
		case cmd >= 0x80 && cmd <= 0x8F:
			pos += uint64(cmd & 0x0F)
			i++
		case cmd == 0x67:
			if err := need(i, 7); err != nil {
				return nil, err
			}
			size := int(le.Uint32(data[i+3:]) & 0x7FFFFFFF)
			if err := need(i, 7+size); err != nil {
				return nil, err
			}
			i += 7 + size
		default:
			n := commandLength(cmd)
			if err := need(i, n); err != nil {
				return nil, err
			}
			i += n
		}
	}

	if n := len(v.Events); n > 0 && v.Events[n-1].Sample > v.TotalSamples {
		v.TotalSamples = v.Events[n-1].Sample
	}
	return v, nil
}

// commandLength is the encoded size of commands this parser skips.
func commandLength(cmd byte) int {
	switch {
	case cmd >= 0x30 && cmd <= 0x3F, cmd == 0x4F, cmd == 0x94:
		return 2
	case cmd >= 0x40 && cmd <= 0x5F, cmd >= 0xA0 && cmd <= 0xBF:
		return 3
	case cmd >= 0xC0 && cmd <= 0xDF:
		return 4
	case cmd >= 0xE0:
		return 5
	case cmd == 0x90, cmd == 0x91, cmd == 0x95:
		return 5
	case cmd == 0x92:
		return 6
	case cmd == 0x93:
		return 11
	case cmd == 0x68:
		return 12
	}
	return 1
}

// Duration returns the playing time of the log.
func (v *VGM) Duration() time.Duration {
	return SampleTime(v.TotalSamples)
}

// SampleTime converts a VGM sample position to time.
func SampleTime(sample uint64) time.Duration {
	return time.Duration(sample * uint64(time.Second) / VGMRate)
}
