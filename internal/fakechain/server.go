package fakechain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const (
	errCodeInvalidParams = -32602
	errCodeMethod        = -32601
	errCodeServer        = -32002
)

type (
	request struct {
		JSONRPC string            `json:"jsonrpc"`
		ID      json.RawMessage   `json:"id"`
		Method  string            `json:"method"`
		Params  []json.RawMessage `json:"params"`
	}

	response struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  any             `json:"result,omitempty"`
		Error   *rpcError       `json:"error,omitempty"`
	}

	rpcError struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}

	rpcContext struct {
		Slot uint64 `json:"slot"`
	}

	withContext struct {
		Context rpcContext `json:"context"`
		Value   any        `json:"value"`
	}

	handler func(ctx context.Context, params []json.RawMessage) (any, error)
)

// Handler serves the Chain via JSON-RPC over HTTP, so that real RPC clients
// can be used with it.
func (c *Chain) Handler() http.Handler {
	handlers := map[string]handler{
		"getVersion":                        c.handleGetVersion,
		"getBalance":                        c.handleGetBalance,
		"requestAirdrop":                    c.handleRequestAirdrop,
		"getLatestBlockhash":                c.handleGetLatestBlockhash,
		"getBlockHeight":                    c.handleGetBlockHeight,
		"getMinimumBalanceForRentExemption": c.handleGetRent,
		"getSignatureStatuses":              c.handleGetSignatureStatuses,
		"getAccountInfo":                    c.handleGetAccountInfo,
		"sendTransaction":                   c.handleSendTransaction,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		resp := response{JSONRPC: "2.0"}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			resp.Error = &rpcError{Code: errCodeInvalidParams, Message: err.Error()}
		} else {
			resp.ID = req.ID
			h, ok := handlers[req.Method]
			if !ok {
				resp.Error = &rpcError{Code: errCodeMethod, Message: "method not found: " + req.Method}
			} else if res, err := h(r.Context(), req.Params); err != nil {
				resp.Error = &rpcError{Code: errCodeServer, Message: err.Error()}
			} else {
				resp.Result = res
			}
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(resp)
	})
}

func (c *Chain) slot() rpcContext {
	c.lock.Lock()
	defer c.lock.Unlock()
	return rpcContext{Slot: c.height}
}

func param[T any](params []json.RawMessage, i int) (T, error) {
	var v T
	if i >= len(params) {
		return v, fmt.Errorf("missing parameter %d", i)
	}
	if err := json.Unmarshal(params[i], &v); err != nil {
		return v, fmt.Errorf("bad parameter %d: %w", i, err)
	}
	return v, nil
}

func pubParam(params []json.RawMessage, i int) (solana.PublicKey, error) {
	s, err := param[string](params, i)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBase58(s)
}

func (c *Chain) handleGetVersion(ctx context.Context, _ []json.RawMessage) (any, error) {
	v, err := c.GetVersion(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"solana-core": v.SolanaCore, "feature-set": 0}, nil
}

func (c *Chain) handleGetBalance(ctx context.Context, params []json.RawMessage) (any, error) {
	pub, err := pubParam(params, 0)
	if err != nil {
		return nil, err
	}
	res, err := c.GetBalance(ctx, pub, "")
	if err != nil {
		return nil, err
	}
	return withContext{Context: c.slot(), Value: res.Value}, nil
}

func (c *Chain) handleRequestAirdrop(ctx context.Context, params []json.RawMessage) (any, error) {
	pub, err := pubParam(params, 0)
	if err != nil {
		return nil, err
	}
	lamports, err := param[uint64](params, 1)
	if err != nil {
		return nil, err
	}
	sig, err := c.RequestAirdrop(ctx, pub, lamports, "")
	if err != nil {
		return nil, err
	}
	return sig.String(), nil
}

func (c *Chain) handleGetLatestBlockhash(ctx context.Context, _ []json.RawMessage) (any, error) {
	res, err := c.GetLatestBlockhash(ctx, "")
	if err != nil {
		return nil, err
	}
	return withContext{Context: c.slot(), Value: map[string]any{
		"blockhash":            res.Value.Blockhash.String(),
		"lastValidBlockHeight": res.Value.LastValidBlockHeight,
	}}, nil
}

func (c *Chain) handleGetBlockHeight(ctx context.Context, _ []json.RawMessage) (any, error) {
	return c.GetBlockHeight(ctx, "")
}

func (c *Chain) handleGetRent(ctx context.Context, params []json.RawMessage) (any, error) {
	size, err := param[uint64](params, 0)
	if err != nil {
		return nil, err
	}
	return c.GetMinimumBalanceForRentExemption(ctx, size, "")
}

func (c *Chain) handleGetSignatureStatuses(ctx context.Context, params []json.RawMessage) (any, error) {
	strs, err := param[[]string](params, 0)
	if err != nil {
		return nil, err
	}
	sigs := make([]solana.Signature, len(strs))
	for i := range strs {
		sigs[i], err = solana.SignatureFromBase58(strs[i])
		if err != nil {
			return nil, err
		}
	}
	res, err := c.GetSignatureStatuses(ctx, false, sigs...)
	if err != nil {
		return nil, err
	}
	value := make([]any, len(res.Value))
	for i, st := range res.Value {
		if st == nil {
			continue
		}
		value[i] = map[string]any{
			"slot":               st.Slot,
			"confirmations":      nil,
			"err":                st.Err,
			"confirmationStatus": st.ConfirmationStatus,
		}
	}
	return withContext{Context: c.slot(), Value: value}, nil
}

func (c *Chain) handleGetAccountInfo(ctx context.Context, params []json.RawMessage) (any, error) {
	pub, err := pubParam(params, 0)
	if err != nil {
		return nil, err
	}
	res, err := c.GetAccountInfoWithOpts(ctx, pub, nil)
	if errors.Is(err, rpc.ErrNotFound) {
		return withContext{Context: c.slot(), Value: nil}, nil
	}
	if err != nil {
		return nil, err
	}
	return withContext{Context: c.slot(), Value: map[string]any{
		"lamports":   res.Value.Lamports,
		"owner":      res.Value.Owner.String(),
		"data":       []string{base64.StdEncoding.EncodeToString(res.Value.Data.GetBinary()), "base64"},
		"executable": res.Value.Executable,
		"rentEpoch":  0,
		"space":      len(res.Value.Data.GetBinary()),
	}}, nil
}

func (c *Chain) handleSendTransaction(ctx context.Context, params []json.RawMessage) (any, error) {
	encoded, err := param[string](params, 0)
	if err != nil {
		return nil, err
	}
	opts, _ := param[struct {
		SkipPreflight bool `json:"skipPreflight"`
	}](params, 1)
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, err
	}
	sig, err := c.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{SkipPreflight: opts.SkipPreflight})
	if err != nil {
		return nil, err
	}
	return sig.String(), nil
}
