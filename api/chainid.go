package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/0xmhha/stomatrade-go/internal/constants"
)

// ErrChainIDRequired is returned when neither chain id header is present.
var ErrChainIDRequired = errors.New("chain id header is required")

// ChainIDError reports a malformed chain id header value.
type ChainIDError struct {
	Value  string
	Reason string
}

func (e *ChainIDError) Error() string {
	return fmt.Sprintf("invalid chain id %q: %s", e.Value, e.Reason)
}

// chainIDMessage is the client-facing text for a chain id header error.
func chainIDMessage(err error) string {
	var cerr *ChainIDError
	switch {
	case errors.Is(err, ErrChainIDRequired):
		return "Chain ID header is required"
	case errors.As(err, &cerr):
		return fmt.Sprintf("Invalid Chain ID %q, %s", cerr.Value, cerr.Reason)
	default:
		return err.Error()
	}
}

// ParseChainID reads the chain-id header, falling back to x-chain-id.
// Values are either a decimal chain id or "eip155:<id>".
func ParseChainID(r *http.Request) (uint64, error) {
	raw := strings.TrimSpace(r.Header.Get(constants.HeaderChainID))
	if raw == "" {
		raw = strings.TrimSpace(r.Header.Get(constants.HeaderXChainID))
	}
	if raw == "" {
		return 0, ErrChainIDRequired
	}
	return parseChainValue(raw)
}

// optionalChainID is ParseChainID with a missing header reported as 0.
func optionalChainID(r *http.Request) (uint64, error) {
	id, err := ParseChainID(r)
	if errors.Is(err, ErrChainIDRequired) {
		return 0, nil
	}
	return id, err
}

func parseChainValue(raw string) (uint64, error) {
	value := raw
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		if !strings.EqualFold(raw[:i+1], constants.CAIP2Prefix) {
			return 0, &ChainIDError{Value: raw, Reason: "expected eip155:<id>"}
		}
		value = raw[i+1:]
	}
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil || id == 0 {
		return 0, &ChainIDError{Value: raw, Reason: "must be a positive number"}
	}
	return id, nil
}
