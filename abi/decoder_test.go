package abi

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const transferABI = `[{"type":"event","name":"Transfer","anonymous":false,"inputs":[
	{"name":"from","type":"address","indexed":true},
	{"name":"to","type":"address","indexed":true},
	{"name":"value","type":"uint256","indexed":false}]}]`

func TestNormalizeJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "plain array", input: `[{"type":"fallback"}]`, want: `[{"type":"fallback"}]`},
		{name: "surrounding whitespace", input: "  []\n", want: `[]`},
		{name: "string wrapped", input: `"[{\"type\":\"fallback\"}]"`, want: `[{"type":"fallback"}]`},
		{name: "escaped quotes", input: `[{\"type\":\"fallback\"}]`, want: `[{"type":"fallback"}]`},
		{name: "artifact object", input: `{"contractName":"X","abi":[{"type":"fallback"}]}`, want: `[{"type":"fallback"}]`},
		{name: "empty", input: "   ", wantErr: ErrEmptyABI},
		{name: "object without abi", input: `{"bytecode":"0x00"}`, wantErr: ErrMalformedABI},
		{name: "not json", input: `hello`, wantErr: ErrMalformedABI},
		{name: "broken string", input: `"[`, wantErr: ErrMalformedABI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeJSON(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse(t *testing.T) {
	parsed, err := Parse(transferABI)
	require.NoError(t, err)
	assert.Contains(t, parsed.Events, "Transfer")

	_, err = Parse(`[{"type":"function","name":"x","inputs":[{"type":"notatype"}]}]`)
	assert.ErrorIs(t, err, ErrMalformedABI)
}

func TestDecodeLog(t *testing.T) {
	parsed, err := Parse(transferABI)
	require.NoError(t, err)

	from := common.HexToAddress("0x1000000000000000000000000000000000000001")
	to := common.HexToAddress("0x2000000000000000000000000000000000000002")
	value := big.NewInt(1_000_000)

	data, err := parsed.Events["Transfer"].Inputs.NonIndexed().Pack(value)
	require.NoError(t, err)

	log := &types.Log{
		Address:     common.HexToAddress("0xc0ffee"),
		Topics:      []common.Hash{crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)")), common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:        data,
		BlockNumber: 12,
		Index:       3,
	}

	decoded, err := DecodeLog(parsed, log)
	require.NoError(t, err)
	assert.Equal(t, "Transfer", decoded.EventName)
	assert.Equal(t, uint64(12), decoded.BlockNumber)
	assert.Equal(t, uint(3), decoded.LogIndex)
	assert.Equal(t, from, decoded.Args["from"])
	assert.Equal(t, to, decoded.Args["to"])
	assert.Equal(t, 0, value.Cmp(decoded.Args["value"].(*big.Int)))

	serialized := SerializeArgs(decoded.Args)
	assert.Equal(t, "1000000", serialized["value"])
	assert.Equal(t, from.Hex(), serialized["from"])
}

func TestDecodeLogErrors(t *testing.T) {
	parsed, err := Parse(transferABI)
	require.NoError(t, err)

	_, err = DecodeLog(parsed, &types.Log{})
	assert.ErrorIs(t, err, ErrNoTopics)

	_, err = DecodeLog(parsed, &types.Log{Topics: []common.Hash{common.HexToHash("0x01")}})
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestSerializeNested(t *testing.T) {
	out := SerializeArgs(map[string]interface{}{
		"list":  []interface{}{big.NewInt(1), common.HexToHash("0x02")},
		"bytes": []byte{0xab},
		"plain": uint8(7),
	})
	assert.Equal(t, []interface{}{"1", common.HexToHash("0x02").Hex()}, out["list"])
	assert.Equal(t, "ab", out["bytes"])
	assert.Equal(t, uint8(7), out["plain"])
}
