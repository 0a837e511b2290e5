package tendermint

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"likoin.network/lkn/internal/types"
)

// BroadcastClient submits transactions through Tendermint's JSON-RPC.
type BroadcastClient struct {
	rpcAddr string
	client  *http.Client
}

// BroadcastResult is the outcome reported by Tendermint. For a commit
// broadcast Code, Log and Data come from DeliverTx and Height is set.
type BroadcastResult struct {
	Hash   string `json:"hash"`
	Code   uint32 `json:"code"`
	Log    string `json:"log"`
	Data   []byte `json:"data,omitempty"`
	Height int64  `json:"height,omitempty"`
}

// TxError is returned when the application rejected a transaction.
type TxError struct {
	Code uint32
	Log  string
}

func (e *TxError) Error() string {
	return fmt.Sprintf("transaction failed with code %d: %s", e.Code, e.Log)
}

// Unwrap maps the result code back onto the domain error, so callers can
// use errors.Is with the sentinels in package types.
func (e *TxError) Unwrap() error {
	return types.ErrorOf(e.Code)
}

// NewBroadcastClient creates a client for the RPC endpoint at rpcAddr,
// e.g. "http://localhost:26657".
func NewBroadcastClient(rpcAddr string) *BroadcastClient {
	if rpcAddr == "" {
		rpcAddr = "http://localhost:26657"
	}
	return &BroadcastClient{
		rpcAddr: rpcAddr,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// BroadcastTxSync returns once CheckTx has passed.
func (bc *BroadcastClient) BroadcastTxSync(ctx context.Context, tx []byte) (*BroadcastResult, error) {
	return bc.broadcast(ctx, "broadcast_tx_sync", tx)
}

// BroadcastTxCommit waits until the transaction is in a committed block.
func (bc *BroadcastClient) BroadcastTxCommit(ctx context.Context, tx []byte) (*BroadcastResult, error) {
	return bc.broadcast(ctx, "broadcast_tx_commit", tx)
}

// BroadcastSigned encodes and submits a signed transaction. With commit
// set it waits for the block.
func (bc *BroadcastClient) BroadcastSigned(ctx context.Context, signedTx *types.SignedTransaction, commit bool) (*BroadcastResult, error) {
	txBytes, err := json.Marshal(signedTx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction: %w", err)
	}
	if commit {
		return bc.BroadcastTxCommit(ctx, txBytes)
	}
	return bc.BroadcastTxSync(ctx, txBytes)
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

type txResult struct {
	Code uint32 `json:"code"`
	Data []byte `json:"data"`
	Log  string `json:"log"`
}

func (bc *BroadcastClient) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	reqBytes, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal RPC request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, bc.rpcAddr, bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to build RPC request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := bc.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send RPC request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read RPC response: %w", err)
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &rpcResp); err != nil {
		return fmt.Errorf("failed to parse RPC response: %w (body: %s)", err, string(respBytes))
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("RPC error %d: %s (%s)", rpcResp.Error.Code, rpcResp.Error.Message, rpcResp.Error.Data)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, out)
}

func (bc *BroadcastClient) broadcast(ctx context.Context, method string, tx []byte) (*BroadcastResult, error) {
	params := map[string]string{"tx": base64.StdEncoding.EncodeToString(tx)}

	var result struct {
		txResult
		Hash      string   `json:"hash"`
		Height    string   `json:"height"`
		CheckTx   txResult `json:"check_tx"`
		DeliverTx txResult `json:"deliver_tx"`
	}
	if err := bc.call(ctx, method, params, &result); err != nil {
		return nil, err
	}

	out := &BroadcastResult{Hash: result.Hash, Code: result.Code, Log: result.Log, Data: result.Data}
	if method == "broadcast_tx_commit" {
		if result.CheckTx.Code != 0 {
			return nil, &TxError{Code: result.CheckTx.Code, Log: result.CheckTx.Log}
		}
		out.Code, out.Log, out.Data = result.DeliverTx.Code, result.DeliverTx.Log, result.DeliverTx.Data
		out.Height, _ = strconv.ParseInt(result.Height, 10, 64)
	}
	if out.Code != 0 {
		return nil, &TxError{Code: out.Code, Log: out.Log}
	}
	return out, nil
}

// ABCIQuery runs an application query through the node and returns the
// raw value.
func (bc *BroadcastClient) ABCIQuery(ctx context.Context, path string, data []byte) ([]byte, error) {
	params := map[string]string{"path": path, "data": hex.EncodeToString(data)}
	var result struct {
		Response struct {
			Code  uint32 `json:"code"`
			Log   string `json:"log"`
			Value []byte `json:"value"`
		} `json:"response"`
	}
	if err := bc.call(ctx, "abci_query", params, &result); err != nil {
		return nil, err
	}
	if result.Response.Code != 0 {
		return nil, &TxError{Code: result.Response.Code, Log: result.Response.Log}
	}
	return result.Response.Value, nil
}

// QueryTx looks a transaction up by its hex hash.
func (bc *BroadcastClient) QueryTx(ctx context.Context, txHash string) (map[string]interface{}, error) {
	var result map[string]interface{}
	if err := bc.call(ctx, "tx", map[string]interface{}{"hash": txHash}, &result); err != nil {
		return nil, err
	}
	return result, nil
}
