// Package chain deploys contracts to an Ethereum-compatible network over
// JSON-RPC.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/ticketdeploy/internal/contract"
	"github.com/alanyoungcy/ticketdeploy/internal/crypto"
	"github.com/alanyoungcy/ticketdeploy/internal/domain"
)

// Backend is the subset of the RPC client the deployer needs.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

var _ Backend = (*ethclient.Client)(nil)

// Options tunes transaction construction and receipt polling.
type Options struct {
	// GasLimit overrides estimation when non-zero.
	GasLimit uint64
	// GasMarginPercent is added on top of the estimate.
	GasMarginPercent uint64
	// MaxFeePerGas caps the fee cap when non-nil.
	MaxFeePerGas   *big.Int
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
}

func (o Options) withDefaults() Options {
	if o.GasMarginPercent == 0 {
		o.GasMarginPercent = 20
	}
	if o.ReceiptTimeout <= 0 {
		o.ReceiptTimeout = 5 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	return o
}

// EthDeployer signs and sends contract creation transactions.
type EthDeployer struct {
	backend Backend
	signer  *crypto.Signer
	opts    Options
	logger  *slog.Logger
}

// NewEthDeployer creates a deployer that sends through backend and signs with
// signer.
func NewEthDeployer(backend Backend, signer *crypto.Signer, opts Options, logger *slog.Logger) *EthDeployer {
	return &EthDeployer{
		backend: backend,
		signer:  signer,
		opts:    opts.withDefaults(),
		logger:  logger.With(slog.String("component", "chain")),
	}
}

// From returns the deploying account.
func (d *EthDeployer) From() common.Address {
	return d.signer.Address()
}

// PredictAddress returns the address the next contract created by the
// deploying account will receive, along with the nonce it will use.
func (d *EthDeployer) PredictAddress(ctx context.Context) (common.Address, uint64, error) {
	nonce, err := d.backend.PendingNonceAt(ctx, d.signer.Address())
	if err != nil {
		return common.Address{}, 0, fmt.Errorf("chain: pending nonce: %w", err)
	}
	return ethcrypto.CreateAddress(d.signer.Address(), nonce), nonce, nil
}

// Deploy creates a contract from artifact with the given constructor args
// and blocks until the creation receipt is mined.
func (d *EthDeployer) Deploy(ctx context.Context, artifact *contract.Artifact, args ...any) (domain.DeployedInstance, error) {
	data, err := artifact.DeployData(args...)
	if err != nil {
		return domain.DeployedInstance{}, err
	}

	from := d.signer.Address()
	nonce, err := d.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return domain.DeployedInstance{}, fmt.Errorf("chain: pending nonce: %w", err)
	}

	tx, err := d.buildTx(ctx, from, nonce, data)
	if err != nil {
		return domain.DeployedInstance{}, err
	}
	signed, err := d.signer.SignTx(tx)
	if err != nil {
		return domain.DeployedInstance{}, err
	}

	if err := d.backend.SendTransaction(ctx, signed); err != nil {
		return domain.DeployedInstance{}, fmt.Errorf("chain: send transaction: %w", err)
	}
	predicted := ethcrypto.CreateAddress(from, nonce)
	d.logger.InfoContext(ctx, "contract creation sent",
		slog.String("contract", artifact.Name),
		slog.String("tx_hash", signed.Hash().Hex()),
		slog.String("from", from.Hex()),
		slog.Uint64("nonce", nonce),
		slog.Uint64("gas", signed.Gas()),
		slog.String("predicted_address", predicted.Hex()),
	)

	receipt, err := d.waitReceipt(ctx, signed.Hash())
	if err != nil {
		// Broadcast but unconfirmed: hand back what the operator needs to follow it up.
		return domain.DeployedInstance{Address: predicted, TxHash: signed.Hash()}, err
	}
	inst := domain.DeployedInstance{
		Address:     receipt.ContractAddress,
		TxHash:      signed.Hash(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}
	if inst.Address == (common.Address{}) {
		inst.Address = predicted
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return inst, fmt.Errorf("chain: creation tx %s reverted: %w", signed.Hash().Hex(), domain.ErrDeployFailed)
	}

	code, err := d.backend.CodeAt(ctx, inst.Address, nil)
	if err != nil {
		return inst, fmt.Errorf("chain: code at %s: %w", inst.Address.Hex(), err)
	}
	if len(code) == 0 {
		return inst, fmt.Errorf("chain: no code at %s: %w", inst.Address.Hex(), domain.ErrDeployFailed)
	}
	return inst, nil
}

// buildTx assembles an EIP-1559 creation tx, or a legacy one on chains that
// report no base fee.
func (d *EthDeployer) buildTx(ctx context.Context, from common.Address, nonce uint64, data []byte) (*types.Transaction, error) {
	head, err := d.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: latest header: %w", err)
	}

	if head.BaseFee == nil {
		gasPrice, err := d.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("chain: suggest gas price: %w", err)
		}
		gas, err := d.gasLimit(ctx, ethereum.CallMsg{From: from, GasPrice: gasPrice, Data: data})
		if err != nil {
			return nil, err
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			Value:    new(big.Int),
			Data:     data,
		}), nil
	}

	tip, err := d.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: suggest gas tip: %w", err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	if d.opts.MaxFeePerGas != nil && feeCap.Cmp(d.opts.MaxFeePerGas) > 0 {
		feeCap = new(big.Int).Set(d.opts.MaxFeePerGas)
		if tip.Cmp(feeCap) > 0 {
			tip = new(big.Int).Set(feeCap)
		}
	}

	gas, err := d.gasLimit(ctx, ethereum.CallMsg{From: from, GasTipCap: tip, GasFeeCap: feeCap, Data: data})
	if err != nil {
		return nil, err
	}
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   d.signer.ChainID(),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		Value:     new(big.Int),
		Data:      data,
	}), nil
}

func (d *EthDeployer) gasLimit(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if d.opts.GasLimit > 0 {
		return d.opts.GasLimit, nil
	}
	est, err := d.backend.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("chain: estimate gas: %w", err)
	}
	return est + est*d.opts.GasMarginPercent/100, nil
}

func (d *EthDeployer) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := d.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("chain: receipt %s: %w", hash.Hex(), err)
		}
		d.logger.DebugContext(ctx, "waiting for receipt", slog.String("tx_hash", hash.Hex()))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("chain: waiting for receipt %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
