package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mr-tron/base58"
)

// TokenProgramID is the SPL token program; token accounts of a wallet are
// owned by it.
const TokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

const lamportsPerSOL = 1_000_000_000

// Client is a thin JSON-RPC reader against a Solana node. All calls are
// single request/response round trips at the configured commitment.
type Client struct {
	rpcURL     string
	commitment string
	client     *http.Client
}

// NewClient constructs a Client for the given RPC endpoint and commitment
// level (processed|confirmed|finalized).
func NewClient(rpcURL, commitment string) *Client {
	return &Client{
		rpcURL:     rpcURL,
		commitment: commitment,
		client:     &http.Client{Timeout: 20 * time.Second},
	}
}

// IsValidAddress reports whether s is a well-formed Solana address:
// base58 text decoding to exactly 32 bytes. Pure format check, no RPC.
func IsValidAddress(s string) bool {
	raw, err := base58.Decode(s)
	if err != nil {
		return false
	}
	return len(raw) == 32
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) rpcCall(ctx context.Context, method string, params []any, result any) error {
	payload := rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: rpc returned status %d", method, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	return nil
}

type getBalanceResponse struct {
	Result struct {
		Value uint64 `json:"value"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// WalletBalance returns the native balance of addr in whole SOL.
// A transport or RPC failure surfaces as an error, never as 0.
func (c *Client) WalletBalance(ctx context.Context, addr string) (float64, error) {
	params := []any{addr, map[string]string{"commitment": c.commitment}}
	var resp getBalanceResponse
	if err := c.rpcCall(ctx, "getBalance", params, &resp); err != nil {
		return 0, err
	}
	if resp.Error != nil {
		return 0, fmt.Errorf("getBalance: rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return float64(resp.Result.Value) / lamportsPerSOL, nil
}

// SignatureInfo is one entry of a getSignaturesForAddress result.
type SignatureInfo struct {
	Signature string          `json:"signature"`
	Slot      uint64          `json:"slot"`
	BlockTime *int64          `json:"blockTime"`
	Err       json.RawMessage `json:"err"`
}

type getSignaturesResponse struct {
	Result []SignatureInfo `json:"result"`
	Error  *rpcError       `json:"error"`
}

// WalletTransactions returns up to limit most recent transaction
// signatures mentioning addr, newest first.
func (c *Client) WalletTransactions(ctx context.Context, addr string, limit int) ([]SignatureInfo, error) {
	params := []any{addr, map[string]any{"limit": limit, "commitment": c.commitment}}
	var resp getSignaturesResponse
	if err := c.rpcCall(ctx, "getSignaturesForAddress", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("getSignaturesForAddress: rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}

type getTokenAccountsResponse struct {
	Result struct {
		Value []struct {
			Pubkey string `json:"pubkey"`
		} `json:"value"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// TokenAccountCount returns how many SPL token accounts the owner holds.
func (c *Client) TokenAccountCount(ctx context.Context, owner string) (int, error) {
	params := []any{
		owner,
		map[string]string{"programId": TokenProgramID},
		map[string]string{"encoding": "jsonParsed", "commitment": c.commitment},
	}
	var resp getTokenAccountsResponse
	if err := c.rpcCall(ctx, "getTokenAccountsByOwner", params, &resp); err != nil {
		return 0, err
	}
	if resp.Error != nil {
		return 0, fmt.Errorf("getTokenAccountsByOwner: rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return len(resp.Result.Value), nil
}

type getProgramAccountsResponse struct {
	Result []struct {
		Pubkey string `json:"pubkey"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// ProgramAccounts enumerates accounts owned by programID and returns at
// most limit pubkeys. dataSlice keeps the response small; only the keys
// are of interest.
func (c *Client) ProgramAccounts(ctx context.Context, programID string, limit int) ([]string, error) {
	params := []any{
		programID,
		map[string]any{
			"encoding":   "base64",
			"commitment": c.commitment,
			"dataSlice":  map[string]int{"offset": 0, "length": 0},
		},
	}
	var resp getProgramAccountsResponse
	if err := c.rpcCall(ctx, "getProgramAccounts", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("getProgramAccounts: rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	keys := make([]string, 0, len(resp.Result))
	for _, acc := range resp.Result {
		if limit > 0 && len(keys) >= limit {
			break
		}
		keys = append(keys, acc.Pubkey)
	}
	return keys, nil
}
