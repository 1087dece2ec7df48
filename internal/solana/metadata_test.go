package solana

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// metadataAccountData builds a minimal Metaplex metadata buffer: 65-byte
// header, then borsh length-prefixed name and symbol.
func metadataAccountData(name, symbol string) []byte {
	buf := make([]byte, 65)

	appendStr := func(b []byte, s string, pad int) []byte {
		var l [4]byte
		binary.LittleEndian.PutUint32(l[:], uint32(len(s)+pad))
		b = append(b, l[:]...)
		b = append(b, s...)
		for i := 0; i < pad; i++ {
			b = append(b, 0)
		}
		return b
	}

	// On-chain strings are null-padded to fixed widths; the parser must
	// trim the padding.
	buf = appendStr(buf, name, 3)
	buf = appendStr(buf, symbol, 2)
	return buf
}

func TestParseMetadataStrings(t *testing.T) {
	name, symbol, err := parseMetadataStrings(metadataAccountData("Bonk", "BONK"))
	require.NoError(t, err)
	assert.Equal(t, "Bonk", name)
	assert.Equal(t, "BONK", symbol)
}

func TestParseMetadataStringsTooShort(t *testing.T) {
	_, _, err := parseMetadataStrings(make([]byte, 10))
	require.Error(t, err)

	// Claimed name length running past the buffer.
	bad := make([]byte, 69)
	binary.LittleEndian.PutUint32(bad[65:], 1000)
	_, _, err = parseMetadataStrings(bad)
	require.Error(t, err)
}

func TestClient_TokenMetadata(t *testing.T) {
	const mint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	pdaData := base64.StdEncoding.EncodeToString(metadataAccountData("USD Coin", "USDC"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")

		switch req.Method {
		case "getAccountInfo":
			opts, _ := req.Params[1].(map[string]any)
			if opts["encoding"] == "jsonParsed" {
				assert.Equal(t, mint, req.Params[0])
				w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"value":{"owner":"` + TokenProgramID + `","data":{"parsed":{"info":{"decimals":6}}}}}}`))
				return
			}
			assert.Equal(t, "metadata-pda", req.Params[0])
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"value":{"data":["` + pdaData + `","base64"]}}}`))
		case "getProgramAccounts":
			assert.Equal(t, metaplexMetadataProgramID, req.Params[0])
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":[{"pubkey":"metadata-pda"}]}`))
		default:
			t.Fatalf("unexpected method %s", req.Method)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, "confirmed")
	meta, err := c.TokenMetadata(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, "USD Coin", meta.Name)
	assert.Equal(t, "USDC", meta.Symbol)
	assert.Equal(t, 6, meta.Decimals)
	assert.Equal(t, mint, meta.Mint)
}

func TestClient_TokenMetadataRejectsForeignProgram(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"value":{"owner":"SomeOtherProgram","data":{"parsed":{"info":{"decimals":0}}}}}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "confirmed")
	_, err := c.TokenMetadata(context.Background(), "mint")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported token program")
}
