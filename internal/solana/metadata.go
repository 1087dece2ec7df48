package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

const metaplexMetadataProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

// TokenMeta is on-chain metadata for an SPL mint.
type TokenMeta struct {
	Mint     string
	Name     string
	Symbol   string
	Decimals int
}

type getAccountInfoResponse struct {
	Result struct {
		Value struct {
			Owner string `json:"owner"`
			Data  struct {
				Parsed struct {
					Info struct {
						Decimals int `json:"decimals"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"value"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// getAccountInfoBase64Response is for base64-encoded account data, where
// Data arrives as ["<base64>", "base64"].
type getAccountInfoBase64Response struct {
	Result struct {
		Value struct {
			Data []string `json:"data"`
		} `json:"value"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// TokenMetadata resolves name, symbol and decimals for a mint: account
// info for the decimals, then the Metaplex metadata PDA for the strings.
func (c *Client) TokenMetadata(ctx context.Context, mint string) (TokenMeta, error) {
	// 1. Mint account: owner check and decimals.
	var accInfo getAccountInfoResponse
	params := []any{mint, map[string]string{"encoding": "jsonParsed"}}
	if err := c.rpcCall(ctx, "getAccountInfo", params, &accInfo); err != nil {
		return TokenMeta{}, fmt.Errorf("getAccountInfo for mint failed: %w", err)
	}
	if accInfo.Error != nil {
		return TokenMeta{}, fmt.Errorf("getAccountInfo: rpc error %d: %s", accInfo.Error.Code, accInfo.Error.Message)
	}
	if accInfo.Result.Value.Owner != TokenProgramID {
		return TokenMeta{}, fmt.Errorf("unsupported token program: %s", accInfo.Result.Value.Owner)
	}
	decimals := accInfo.Result.Value.Data.Parsed.Info.Decimals

	// 2. Find the Metaplex PDA for this mint.
	var progAccounts getProgramAccountsResponse
	params = []any{
		metaplexMetadataProgramID,
		map[string]any{
			"encoding": "base64",
			"filters": []map[string]any{
				{"memcmp": map[string]any{"offset": 33, "bytes": mint}},
			},
		},
	}
	if err := c.rpcCall(ctx, "getProgramAccounts", params, &progAccounts); err != nil {
		return TokenMeta{}, fmt.Errorf("getProgramAccounts for pda failed: %w", err)
	}
	if len(progAccounts.Result) == 0 {
		return TokenMeta{}, errors.New("metaplex pda not found")
	}
	pdaAddress := progAccounts.Result[0].Pubkey

	// 3. Raw PDA data.
	var pdaInfo getAccountInfoBase64Response
	params = []any{pdaAddress, map[string]string{"encoding": "base64"}}
	if err := c.rpcCall(ctx, "getAccountInfo", params, &pdaInfo); err != nil {
		return TokenMeta{}, fmt.Errorf("getAccountInfo for pda (base64) failed: %w", err)
	}
	if len(pdaInfo.Result.Value.Data) < 1 {
		return TokenMeta{}, errors.New("pda has no data")
	}
	rawData, err := base64.StdEncoding.DecodeString(pdaInfo.Result.Value.Data[0])
	if err != nil {
		return TokenMeta{}, fmt.Errorf("failed to decode pda data: %w", err)
	}

	// 4. Borsh layout: 65-byte header, then length-prefixed name and symbol.
	name, symbol, err := parseMetadataStrings(rawData)
	if err != nil {
		return TokenMeta{}, err
	}

	return TokenMeta{Mint: mint, Name: name, Symbol: symbol, Decimals: decimals}, nil
}

func parseMetadataStrings(rawData []byte) (name, symbol string, err error) {
	const headerOffset = 65
	if len(rawData) < headerOffset+4 {
		return "", "", errors.New("metadata account data is too short")
	}

	nameLen := binary.LittleEndian.Uint32(rawData[headerOffset : headerOffset+4])
	nameEnd := headerOffset + 4 + int(nameLen)
	if nameEnd > len(rawData) {
		return "", "", errors.New("failed to parse name: length exceeds buffer")
	}
	name = string(bytes.TrimRight(rawData[headerOffset+4:nameEnd], "\x00"))

	if nameEnd+4 > len(rawData) {
		return "", "", errors.New("failed to parse symbol: length exceeds buffer")
	}
	symbolLen := binary.LittleEndian.Uint32(rawData[nameEnd : nameEnd+4])
	symbolEnd := nameEnd + 4 + int(symbolLen)
	if symbolEnd > len(rawData) {
		return "", "", errors.New("failed to parse symbol: length exceeds buffer")
	}
	symbol = string(bytes.TrimRight(rawData[nameEnd+4:symbolEnd], "\x00"))

	return name, symbol, nil
}
