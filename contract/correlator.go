package contract

import (
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	abiDecoder "github.com/0xmhha/stomatrade-go/abi"
)

// Correlator pulls typed event arguments out of transaction receipts.
type Correlator struct {
	logger *zap.Logger
}

// NewCorrelator creates an event correlator.
func NewCorrelator(logger *zap.Logger) *Correlator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Correlator{logger: logger.Named("correlator")}
}

// ExtractEvent returns the decoded arguments of the first log in receipt
// emitted by h's contract whose event is name. Logs from other addresses
// and logs that do not decode are skipped. A missing event is reported by
// ok == false, not as an error.
func (c *Correlator) ExtractEvent(h *Handle, receipt *types.Receipt, name string) (map[string]interface{}, bool) {
	if receipt == nil {
		return nil, false
	}
	for _, log := range receipt.Logs {
		if log == nil || log.Address != h.Address {
			continue
		}
		decoded, err := abiDecoder.DecodeLog(h.ABI, log)
		if err != nil {
			continue
		}
		if decoded.EventName == name {
			return decoded.Args, true
		}
	}

	c.logger.Debug("event not found in receipt",
		zap.Uint64("chainId", h.ChainID),
		zap.String("event", name),
		zap.String("txHash", receipt.TxHash.Hex()),
		zap.Int("logs", len(receipt.Logs)))
	return nil, false
}

// BigIntArg reads a uint/int argument from decoded event args.
func BigIntArg(args map[string]interface{}, key string) (*big.Int, bool) {
	v, ok := args[key]
	if !ok {
		return nil, false
	}
	switch n := v.(type) {
	case *big.Int:
		return n, n != nil
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint64:
		return new(big.Int).SetUint64(n), true
	default:
		return nil, false
	}
}
