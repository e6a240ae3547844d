package abi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrEmptyABI     = errors.New("abi definition is empty")
	ErrMalformedABI = errors.New("abi definition is malformed")
	ErrNoTopics     = errors.New("log has no topics")
	ErrUnknownEvent = errors.New("log does not match any event in abi")
)

// DecodedLog represents a decoded event log
type DecodedLog struct {
	Address     common.Address `json:"address"`
	BlockNumber uint64         `json:"blockNumber"`
	TxHash      common.Hash    `json:"txHash"`
	TxIndex     uint           `json:"txIndex"`
	BlockHash   common.Hash    `json:"blockHash"`
	LogIndex    uint           `json:"logIndex"`
	Removed     bool           `json:"removed"`

	EventName string                 `json:"eventName"`
	Args      map[string]interface{} `json:"args"`
}

// NormalizeJSON strips storage artifacts from an ABI definition: a JSON
// string wrapping the array, backslash-escaped quotes, or a compiler
// artifact object carrying the array under "abi".
func NormalizeJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmptyABI
	}

	if strings.HasPrefix(s, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(s), &inner); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedABI, err)
		}
		s = strings.TrimSpace(inner)
	}
	if strings.Contains(s, `\"`) {
		s = strings.ReplaceAll(s, `\"`, `"`)
	}

	if strings.HasPrefix(s, "{") {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal([]byte(s), &artifact); err != nil || len(artifact.ABI) == 0 {
			return "", fmt.Errorf("%w: object without abi field", ErrMalformedABI)
		}
		s = string(artifact.ABI)
	}

	if !strings.HasPrefix(s, "[") {
		return "", fmt.Errorf("%w: expected JSON array", ErrMalformedABI)
	}
	return s, nil
}

// Parse normalizes and parses an ABI definition.
func Parse(raw string) (*abi.ABI, error) {
	s, err := NormalizeJSON(raw)
	if err != nil {
		return nil, err
	}
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedABI, err)
	}
	return &parsed, nil
}

// DecodeLog decodes an event log against parsed. Args keep their ABI Go
// types (*big.Int, common.Address, ...); use SerializeArgs for JSON.
func DecodeLog(parsed *abi.ABI, log *types.Log) (*DecodedLog, error) {
	if len(log.Topics) == 0 {
		return nil, ErrNoTopics
	}

	event, err := parsed.EventByID(log.Topics[0])
	if err != nil {
		return nil, fmt.Errorf("%w: topic %s", ErrUnknownEvent, log.Topics[0].Hex())
	}

	args := make(map[string]interface{})

	var indexed abi.Arguments
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(args, indexed, log.Topics[1:]); err != nil {
			return nil, fmt.Errorf("failed to parse indexed parameters of %s: %w", event.Name, err)
		}
	}

	nonIndexed := event.Inputs.NonIndexed()
	if len(nonIndexed) > 0 {
		if err := nonIndexed.UnpackIntoMap(args, log.Data); err != nil {
			return nil, fmt.Errorf("failed to parse non-indexed parameters of %s: %w", event.Name, err)
		}
	}

	return &DecodedLog{
		Address:     log.Address,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		TxIndex:     log.TxIndex,
		BlockHash:   log.BlockHash,
		LogIndex:    log.Index,
		Removed:     log.Removed,
		EventName:   event.RawName,
		Args:        args,
	}, nil
}

// SerializeArgs converts ABI types to JSON-serializable types
func SerializeArgs(args map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(args))
	for key, value := range args {
		result[key] = serializeValue(value)
	}
	return result
}

func serializeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case *big.Int:
		return v.String()
	case common.Address:
		return v.Hex()
	case common.Hash:
		return v.Hex()
	case [32]byte:
		return common.Hash(v).Hex()
	case []byte:
		return common.Bytes2Hex(v)
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = serializeValue(item)
		}
		return result
	case map[string]interface{}:
		return SerializeArgs(v)
	default:
		return value
	}
}
