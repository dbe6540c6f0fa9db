package dxcli

import (
	"encoding/binary"
	"errors"
	"fmt"

	"fortio.org/safecast"
)

// Part fourccs of a DXBC container.
const (
	PartRootSignature = "RTS0"
	PartShaderHash    = "HASH"
	PartReflection    = "STAT"
	PartDebugName     = "ILDN"
)

const containerHeaderSize = 4 + 16 + 4 + 4 + 4

var errNotContainer = errors.New("not a DXBC container")

// container indexes the parts of a compiled object.
type container struct {
	parts map[string][]byte
}

// parseContainer reads the part table of a DXBC container. Part payloads
// alias data.
func parseContainer(data []byte) (container, error) {
	c := container{parts: make(map[string][]byte)}
	if len(data) < containerHeaderSize || string(data[:4]) != "DXBC" {
		return c, errNotContainer
	}
	total := binary.LittleEndian.Uint32(data[24:28])
	size, err := safecast.Conv[uint32](len(data))
	if err != nil {
		return c, err
	}
	if total > size {
		return c, fmt.Errorf("container claims %d bytes, have %d", total, size)
	}
	count := binary.LittleEndian.Uint32(data[28:32])
	tableEnd := uint64(containerHeaderSize) + 4*uint64(count)
	if tableEnd > uint64(total) {
		return c, fmt.Errorf("part table of %d entries overruns container", count)
	}
	for i := range count {
		at := containerHeaderSize + 4*i
		off := binary.LittleEndian.Uint32(data[at : at+4])
		if uint64(off)+8 > uint64(total) {
			return c, fmt.Errorf("part %d header out of range", i)
		}
		fourcc := string(data[off : off+4])
		n := binary.LittleEndian.Uint32(data[off+4 : off+8])
		start := uint64(off) + 8
		if start+uint64(n) > uint64(total) {
			return c, fmt.Errorf("part %s payload out of range", fourcc)
		}
		c.parts[fourcc] = data[start : start+uint64(n)]
	}
	return c, nil
}

func (c container) part(fourcc string) ([]byte, bool) {
	p, ok := c.parts[fourcc]
	return p, ok && len(p) > 0
}
