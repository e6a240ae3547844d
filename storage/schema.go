package storage

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Key prefixes for different data types
const (
	prefixEvents     = "/data/events/"
	prefixEventName  = "/index/event/"
	prefixCheckpoint = "/meta/checkpoint/"
)

// EventKey returns the primary key of an event
// Format: /data/events/{chainId}/{block}/{logIndex}
// Numbers are zero-padded so keys sort in chain order.
func EventKey(chainID, block uint64, logIndex uint) []byte {
	return []byte(fmt.Sprintf("%s%020d/%020d/%010d", prefixEvents, chainID, block, logIndex))
}

// EventChainPrefix returns the key prefix of all events of a chain
func EventChainPrefix(chainID uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d/", prefixEvents, chainID))
}

// EventNameIndexKey returns the by-name index key of an event
// Format: /index/event/{chainId}/{name}/{block}/{logIndex}
func EventNameIndexKey(chainID uint64, name string, block uint64, logIndex uint) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s/%020d/%010d", prefixEventName, chainID, name, block, logIndex))
}

// EventNamePrefix returns the index prefix of one event name on a chain
func EventNamePrefix(chainID uint64, name string) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s/", prefixEventName, chainID, name))
}

// CheckpointKey returns the key of a chain's sync high-water mark
// Format: /meta/checkpoint/{chainId}
func CheckpointKey(chainID uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixCheckpoint, chainID))
}

// blockBounds returns [lower, upper) for blocks from..to under prefix.
// to == 0 means unbounded.
func blockBounds(prefix []byte, from, to uint64) ([]byte, []byte) {
	lower := append(append([]byte{}, prefix...), []byte(fmt.Sprintf("%020d/", from))...)
	if to == 0 {
		return lower, prefixUpperBound(prefix)
	}
	upper := append(append([]byte{}, prefix...), []byte(fmt.Sprintf("%020d/", to+1))...)
	return lower, upper
}

func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix), len(prefix)+1)
	copy(upper, prefix)
	return append(upper, 0xff)
}

// ParseEventKey parses a primary event key
func ParseEventKey(key []byte) (chainID, block uint64, logIndex uint, err error) {
	s := string(key)
	if !strings.HasPrefix(s, prefixEvents) {
		return 0, 0, 0, fmt.Errorf("invalid event key prefix: %s", s)
	}
	parts := strings.Split(strings.TrimPrefix(s, prefixEvents), "/")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid event key format: %s", s)
	}
	if chainID, err = strconv.ParseUint(parts[0], 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid event key chain: %w", err)
	}
	if block, err = strconv.ParseUint(parts[1], 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid event key block: %w", err)
	}
	idx, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid event key log index: %w", err)
	}
	return chainID, block, uint(idx), nil
}

// EncodeUint64 encodes uint64 to bytes in big-endian format
func EncodeUint64(n uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return buf
}

// DecodeUint64 decodes bytes to uint64 in big-endian format
func DecodeUint64(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("invalid uint64 data length: %d", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}
