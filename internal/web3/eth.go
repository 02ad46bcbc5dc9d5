package web3

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

const erc20ABI = `[
  {"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
  {"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

const transferGasLimit = 100000

// Config wires the chain endpoint and token contract.
type Config struct {
	RPCURL        string
	TokenAddress  string
	PrivateKeyHex string // empty disables payouts
	TokenDecimals int32  // 0 means 18

	CallTimeout time.Duration // per-attempt deadline, 0 means 10s
	Retries     int           // read/verify attempts, 0 means 3
}

// Client talks to the FRENZY token contract over JSON-RPC.
type Client struct {
	eth     *ethclient.Client
	erc20   abi.ABI
	token   common.Address
	chainID *big.Int

	key  *ecdsa.PrivateKey
	from common.Address

	decimals    int32
	callTimeout time.Duration
	retries     int
	log         *log.Logger
}

func Dial(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("empty rpc url")
	}
	if !common.IsHexAddress(cfg.TokenAddress) {
		return nil, fmt.Errorf("bad token address %q", cfg.TokenAddress)
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		eth.Close()
		return nil, err
	}

	c := &Client{
		eth:         eth,
		erc20:       parsed,
		token:       common.HexToAddress(cfg.TokenAddress),
		chainID:     chainID,
		decimals:    cfg.TokenDecimals,
		callTimeout: cfg.CallTimeout,
		retries:     cfg.Retries,
		log:         logger,
	}
	if c.decimals == 0 {
		c.decimals = 18
	}
	if c.callTimeout <= 0 {
		c.callTimeout = 10 * time.Second
	}
	if c.retries <= 0 {
		c.retries = 3
	}

	if cfg.PrivateKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("payout key: %w", err)
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return c, nil
}

func (c *Client) Close() { c.eth.Close() }

// PayoutAddress is the game wallet payouts are sent from; empty when the
// client is read-only.
func (c *Client) PayoutAddress() string {
	if c.key == nil {
		return ""
	}
	return c.from.Hex()
}

// GetBalance reads balanceOf(address), retrying transient failures. Any
// terminal failure reads as zero.
func (c *Client) GetBalance(ctx context.Context, address string) decimal.Decimal {
	data, err := c.erc20.Pack("balanceOf", common.HexToAddress(address))
	if err != nil {
		c.log.Printf("web3: pack balanceOf: %v", err)
		return decimal.Zero
	}

	var out []byte
	err = c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.token, Data: data}, nil)
		return err
	})
	if err != nil {
		c.log.Printf("web3: balanceOf %s: %v", address, err)
		return decimal.Zero
	}

	vals, err := c.erc20.Unpack("balanceOf", out)
	if err != nil || len(vals) != 1 {
		c.log.Printf("web3: unpack balanceOf: %v", err)
		return decimal.Zero
	}
	wei, ok := vals[0].(*big.Int)
	if !ok {
		return decimal.Zero
	}
	return tokensFromWei(wei, c.decimals)
}

// SendPayout signs and submits transfer(address, amount) and waits for it
// to be mined within the call deadline. The submission is never retried.
func (c *Client) SendPayout(ctx context.Context, address string, amount int64) (string, error) {
	if c.key == nil {
		return "", ErrNotConfigured
	}
	if amount <= 0 {
		return "", fmt.Errorf("invalid payout amount %d", amount)
	}

	wei := weiFromTokens(amount, c.decimals)
	data, err := c.erc20.Pack("transfer", common.HexToAddress(address), wei)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, c.token, big.NewInt(0), transferGasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send: %w", err)
	}

	hash := signed.Hash()
	receipt, err := c.waitMined(ctx, hash)
	if err != nil {
		return "", fmt.Errorf("payout %s not confirmed: %w", hash.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", fmt.Errorf("payout %s reverted", hash.Hex())
	}
	return hash.Hex(), nil
}

// VerifyTransaction confirms txHash is mined and succeeded, polling while
// it is still pending. Unknown or reverted transactions fail closed.
func (c *Client) VerifyTransaction(ctx context.Context, txHash string) (Confirmation, error) {
	hash := common.HexToHash(txHash)

	var receipt *types.Receipt
	err := c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		receipt, err = c.eth.TransactionReceipt(ctx, hash)
		if errors.Is(err, ethereum.NotFound) {
			// Distinguish pending from unknown.
			if _, pending, txErr := c.eth.TransactionByHash(ctx, hash); txErr == nil && pending {
				return fmt.Errorf("tx %s still pending", txHash)
			}
			return fmt.Errorf("tx %s: %w", txHash, ErrNotVerified)
		}
		return err
	})
	if err != nil {
		return Confirmation{}, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return Confirmation{}, fmt.Errorf("tx %s reverted: %w", txHash, ErrNotVerified)
	}

	conf := Confirmation{TxHash: txHash, To: c.token.Hex()}
	if receipt.BlockNumber != nil {
		conf.BlockNumber = receipt.BlockNumber.Uint64()
	}
	txCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	if tx, _, err := c.eth.TransactionByHash(txCtx, hash); err == nil {
		if sender, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx); err == nil {
			conf.From = sender.Hex()
		}
	}
	return conf, nil
}

// withRetry runs fn up to the configured attempt budget, each attempt under
// its own deadline, backing off between failures.
func (c *Client) withRetry(ctx context.Context, fn func(context.Context) error) error {
	backoff := 500 * time.Millisecond
	var last error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		attemptCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		last = err
	}
	return last
}

// waitMined polls for the receipt until ctx expires.
func (c *Client) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
