package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"rangeKeeper/internal/model"
)

const (
	defaultCallTimeout  = 30 * time.Second
	defaultReceiptPoll  = 2 * time.Second
	defaultMaxRetries   = 3
	defaultRetryBackoff = 500 * time.Millisecond

	// Headroom over the gas estimate; underestimating reverts the call.
	gasMarginNumerator   = 120
	gasMarginDenominator = 100
)

// ClientConfig holds connection and retry settings.
type ClientConfig struct {
	RPCURL       string
	CallTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Client is the explicit chain context injected into every component:
// read access, write access, and the signing identity in one place.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	signer    *Signer
	logger    *zap.Logger

	callTimeout  time.Duration
	maxRetries   int
	retryBackoff time.Duration

	chainID *big.Int
}

// NewClient dials the RPC endpoint. A nil signer yields a read-only
// client; writes will fail with a validation error.
func NewClient(ctx context.Context, cfg ClientConfig, signer *Signer, logger *zap.Logger) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rpcClient, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	ethClient := ethclient.NewClient(rpcClient)

	chainID, err := ethClient.ChainID(ctx)
	if err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("get chain id: %w", err)
	}

	return &Client{
		rpcClient:    rpcClient,
		ethClient:    ethClient,
		signer:       signer,
		logger:       logger,
		callTimeout:  cfg.CallTimeout,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		chainID:      chainID,
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// ChainID returns the cached chain ID.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// SignerAddress returns the writing account, or the zero address for a
// read-only client.
func (c *Client) SignerAddress() common.Address {
	if c.signer == nil {
		return common.Address{}
	}
	return c.signer.Address()
}

// CallContract performs a read-only contract call with bounded retries.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var output []byte
	err := Retry(ctx, c.maxRetries, c.retryBackoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()

		var err error
		output, err = c.ethClient.CallContract(callCtx, msg, blockNumber)
		if err != nil {
			c.logger.Warn("contract call failed", zap.Error(err))
		}
		return err
	})
	if err != nil {
		return nil, &model.ChainReadError{Op: "eth_call", Err: err}
	}
	return output, nil
}

// TokenBalance reads an ERC-20 balance.
func (c *Client) TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	erc20, err := erc20ABIInstance()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := erc20.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}
	output, err := c.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	values, err := erc20.Unpack("balanceOf", output)
	if err != nil {
		return nil, &model.ChainReadError{Op: "balanceOf", Err: err}
	}
	return values[0].(*big.Int), nil
}

// TokenBalances reads several ERC-20 balances for one account in a
// single RPC batch, so the snapshot is consistent across tokens.
func (c *Client) TokenBalances(ctx context.Context, tokens []common.Address, account common.Address) ([]*big.Int, error) {
	erc20, err := erc20ABIInstance()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := erc20.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	results := make([]hexutil.Bytes, len(tokens))
	elems := make([]rpc.BatchElem, len(tokens))
	for i, token := range tokens {
		elems[i] = rpc.BatchElem{
			Method: "eth_call",
			Args: []interface{}{
				map[string]interface{}{"to": token, "data": hexutil.Bytes(data)},
				"latest",
			},
			Result: &results[i],
		}
	}

	err = Retry(ctx, c.maxRetries, c.retryBackoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()

		if err := c.rpcClient.BatchCallContext(callCtx, elems); err != nil {
			return err
		}
		for _, elem := range elems {
			if elem.Error != nil {
				return elem.Error
			}
		}
		return nil
	})
	if err != nil {
		return nil, &model.ChainReadError{Op: "batch_balanceOf", Err: err}
	}

	balances := make([]*big.Int, len(tokens))
	for i := range results {
		values, err := erc20.Unpack("balanceOf", results[i])
		if err != nil {
			return nil, &model.ChainReadError{Op: "balanceOf", Err: err}
		}
		balances[i] = values[0].(*big.Int)
	}
	return balances, nil
}

// Allowance reads an ERC-20 spend allowance.
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	erc20, err := erc20ABIInstance()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := erc20.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("pack allowance: %w", err)
	}
	output, err := c.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	values, err := erc20.Unpack("allowance", output)
	if err != nil {
		return nil, &model.ChainReadError{Op: "allowance", Err: err}
	}
	return values[0].(*big.Int), nil
}

// EnsureAllowance approves the spender when the current allowance is
// below the required amount. The approval must confirm before any
// dependent batch is broadcast.
func (c *Client) EnsureAllowance(ctx context.Context, token, spender common.Address, amount *big.Int) error {
	if c.signer == nil {
		return model.NewValidationError("signer", "write requires a signer")
	}

	current, err := c.Allowance(ctx, token, c.signer.Address(), spender)
	if err != nil {
		return err
	}
	if current.Cmp(amount) >= 0 {
		return nil
	}

	erc20, err := erc20ABIInstance()
	if err != nil {
		return fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := erc20.Pack("approve", spender, amount)
	if err != nil {
		return fmt.Errorf("pack approve: %w", err)
	}

	c.logger.Info("approving spend allowance",
		zap.String("token", token.Hex()),
		zap.String("spender", spender.Hex()),
		zap.String("amount", amount.String()),
	)
	_, err = c.SendCall(ctx, token, data)
	return err
}

// SuggestGasPrice returns the node's current gas price suggestion.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	gasPrice, err := c.ethClient.SuggestGasPrice(callCtx)
	if err != nil {
		return nil, &model.ChainReadError{Op: "gas_price", Err: err}
	}
	return gasPrice, nil
}

// EstimateCallCost estimates gas units and total wei cost for a call
// from the signer.
func (c *Client) EstimateCallCost(ctx context.Context, to common.Address, calldata []byte) (uint64, *big.Int, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	msg := ethereum.CallMsg{From: c.SignerAddress(), To: &to, Data: calldata}
	gasUnits, err := c.ethClient.EstimateGas(callCtx, msg)
	if err != nil {
		return 0, nil, &model.ChainReadError{Op: "estimate_gas", Err: err}
	}
	gasPrice, err := c.ethClient.SuggestGasPrice(callCtx)
	if err != nil {
		return 0, nil, &model.ChainReadError{Op: "gas_price", Err: err}
	}
	cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasUnits))
	return gasUnits, cost, nil
}

// SendCall signs, broadcasts, and waits for a state-changing call.
// Writes are never retried here: the caller must classify the failure
// first, since a revert and a lost transaction need different handling.
func (c *Client) SendCall(ctx context.Context, to common.Address, calldata []byte) (*types.Receipt, error) {
	if c.signer == nil {
		return nil, model.NewValidationError("signer", "write requires a signer")
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	from := c.signer.Address()
	nonce, err := c.ethClient.PendingNonceAt(callCtx, from)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}
	gasPrice, err := c.ethClient.SuggestGasPrice(callCtx)
	if err != nil {
		return nil, fmt.Errorf("get gas price: %w", err)
	}
	gasLimit, err := c.ethClient.EstimateGas(callCtx, ethereum.CallMsg{From: from, To: &to, Data: calldata})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	gasLimit = gasLimit * gasMarginNumerator / gasMarginDenominator

	tx := types.NewTransaction(nonce, to, new(big.Int), gasLimit, gasPrice, calldata)
	signed, err := c.signer.SignTx(tx, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	if err := c.ethClient.SendTransaction(callCtx, signed); err != nil {
		return nil, fmt.Errorf("broadcast transaction: %w", err)
	}

	txHash := signed.Hash()
	c.logger.Info("transaction broadcast",
		zap.String("tx", txHash.Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("gas_limit", gasLimit),
	)

	return c.waitReceipt(ctx, txHash)
}

// waitReceipt polls for the receipt until the call timeout elapses.
func (c *Client) waitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	deadline := time.Now().Add(c.callTimeout)
	ticker := time.NewTicker(defaultReceiptPoll)
	defer ticker.Stop()

	for {
		receipt, err := c.ethClient.TransactionReceipt(ctx, txHash)
		if err == nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return nil, &model.TransactionRevertError{TxHash: txHash, Op: "modify"}
			}
			return receipt, nil
		}

		if time.Now().After(deadline) {
			return nil, &model.TransactionUnconfirmedError{TxHash: txHash, Op: "modify", Err: err}
		}

		select {
		case <-ctx.Done():
			return nil, &model.TransactionUnconfirmedError{TxHash: txHash, Op: "modify", Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}
