package testutil

import (
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// SimulatedChainID is the chain id reported by the simulated backend.
const SimulatedChainID uint64 = 1337

// NewTestLogger creates a logger that writes through t.Log
func NewTestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	return zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
}

// SimulatedChain is an in-memory chain with one funded signer.
type SimulatedChain struct {
	Backend *simulated.Backend
	Key     *ecdsa.PrivateKey
	Auth    *bind.TransactOpts
}

// NewSimulatedChain starts a simulated backend funding a fresh key with
// 100 ether. code installs runtime bytecode at the given addresses.
// The backend is closed when the test ends.
func NewSimulatedChain(t *testing.T, code ...map[common.Address][]byte) *SimulatedChain {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(key, new(big.Int).SetUint64(SimulatedChainID))
	if err != nil {
		t.Fatalf("failed to create transactor: %v", err)
	}

	balance, _ := new(big.Int).SetString("100000000000000000000", 10)
	alloc := types.GenesisAlloc{
		auth.From: {Balance: balance},
	}
	for _, m := range code {
		for addr, c := range m {
			alloc[addr] = types.Account{Code: c, Balance: new(big.Int)}
		}
	}
	backend := simulated.NewBackend(alloc, simulated.WithBlockGasLimit(30_000_000))
	t.Cleanup(func() { _ = backend.Close() })

	return &SimulatedChain{Backend: backend, Key: key, Auth: auth}
}

// AutoCommit mines a block every interval until the test ends.
func (s *SimulatedChain) AutoCommit(t *testing.T, interval time.Duration) {
	t.Helper()
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.Backend.Commit()
			}
		}
	}()
	t.Cleanup(func() {
		close(done)
		<-stopped
	})
}

// KeyHex returns the signer key hex encoded without prefix.
func (s *SimulatedChain) KeyHex() string {
	return common.Bytes2Hex(crypto.FromECDSA(s.Key))
}

// NewTestReceipt creates a receipt for the given transaction
func NewTestReceipt(txHash common.Hash, blockNumber uint64, status uint64, logs ...*types.Log) *types.Receipt {
	return &types.Receipt{
		Status:            status,
		TxHash:            txHash,
		BlockNumber:       new(big.Int).SetUint64(blockNumber),
		GasUsed:           21000,
		CumulativeGasUsed: 21000,
		EffectiveGasPrice: big.NewInt(1_000_000_000),
		Logs:              logs,
	}
}

// EncodeEventLog builds a log entry as the EVM would emit it for event
// name of parsed. indexed and data follow the ABI input order.
func EncodeEventLog(t *testing.T, parsed abi.ABI, name string, addr common.Address, indexed []interface{}, data []interface{}) *types.Log {
	t.Helper()

	ev, ok := parsed.Events[name]
	if !ok {
		t.Fatalf("event %s not in ABI", name)
	}

	topics := []common.Hash{ev.ID}
	if len(indexed) > 0 {
		query := make([][]interface{}, len(indexed))
		for i, v := range indexed {
			query[i] = []interface{}{v}
		}
		encoded, err := abi.MakeTopics(query...)
		if err != nil {
			t.Fatalf("failed to encode topics: %v", err)
		}
		for _, tp := range encoded {
			topics = append(topics, tp[0])
		}
	}

	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		t.Fatalf("failed to pack event data: %v", err)
	}

	return &types.Log{
		Address: addr,
		Topics:  topics,
		Data:    packed,
	}
}

// EmitterCode returns runtime bytecode that ignores its input and emits
// logs with the given topics and data on every call.
func EmitterCode(logs ...*types.Log) []byte {
	var code []byte
	for _, l := range logs {
		data := l.Data
		if rem := len(data) % 32; rem != 0 {
			data = append(append([]byte{}, data...), make([]byte, 32-rem)...)
		}
		for off := 0; off < len(data); off += 32 {
			code = append(code, 0x7f) // PUSH32 word
			code = append(code, data[off:off+32]...)
			code = append(code, 0x61, byte(off>>8), byte(off)) // PUSH2 offset
			code = append(code, 0x52)                          // MSTORE
		}
		for i := len(l.Topics) - 1; i >= 0; i-- {
			code = append(code, 0x7f)
			code = append(code, l.Topics[i].Bytes()...)
		}
		code = append(code, 0x61, byte(len(data)>>8), byte(len(data))) // PUSH2 size
		code = append(code, 0x60, 0x00)                                // PUSH1 offset
		code = append(code, 0xa0+byte(len(l.Topics)))                  // LOGn
	}
	return append(code, 0x00) // STOP
}

// RevertCode is runtime bytecode that reverts every call.
var RevertCode = []byte{0x60, 0x00, 0x60, 0x00, 0xfd}
