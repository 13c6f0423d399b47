// Package deploy drives a single contract deployment: it assembles the
// event parameters, tells the operator what is about to happen, hands the
// ordered constructor arguments to a Deployer exactly once and reports the
// outcome to the configured sinks.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	"github.com/alanyoungcy/ticketdeploy/internal/contract"
	"github.com/alanyoungcy/ticketdeploy/internal/datefmt"
	"github.com/alanyoungcy/ticketdeploy/internal/domain"
	"github.com/alanyoungcy/ticketdeploy/internal/preset"
	"github.com/alanyoungcy/ticketdeploy/internal/units"
)

// reportTimeout bounds sink delivery once the run context is gone.
const reportTimeout = 15 * time.Second

// Deployer instantiates a contract artifact with constructor args.
type Deployer interface {
	Deploy(ctx context.Context, artifact *contract.Artifact, args ...any) (domain.DeployedInstance, error)
}

// Predictor reports the address the next deployment will land at.
type Predictor interface {
	PredictAddress(ctx context.Context) (common.Address, uint64, error)
}

// Options carries run metadata and presentation settings.
type Options struct {
	Preset          string
	ChainID         int64
	DeployerAddress string
	// Decimals of the native currency; zero means 18.
	Decimals int32
	Locale   string
	Location *time.Location

	// Lock, when set, serialises runs of the same preset on the same chain.
	Lock    domain.LockManager
	LockTTL time.Duration
}

// Configurator runs one deployment of one parameter set.
type Configurator struct {
	params   domain.DeploymentParams
	artifact *contract.Artifact
	deployer Deployer
	out      io.Writer
	opts     Options
	sinks    []Sink
	logger   *slog.Logger

	newID func() string
	now   func() time.Time
}

// New builds a Configurator. Human-readable progress is written to out.
func New(
	params domain.DeploymentParams,
	artifact *contract.Artifact,
	deployer Deployer,
	out io.Writer,
	opts Options,
	logger *slog.Logger,
	sinks ...Sink,
) *Configurator {
	opts.Preset = preset.Canonical(opts.Preset)
	if opts.Decimals == 0 {
		opts.Decimals = units.EtherDecimals
	}
	if opts.Locale == "" {
		opts.Locale = datefmt.DefaultLocale
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	return &Configurator{
		params:   params,
		artifact: artifact,
		deployer: deployer,
		out:      out,
		opts:     opts,
		sinks:    sinks,
		logger:   logger.With(slog.String("component", "deploy"), slog.String("preset", opts.Preset)),
		newID:    uuid.NewString,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// BuildParameters returns the parameter set this Configurator deploys. It
// has no side effects and always returns the same record.
func (c *Configurator) BuildParameters() domain.DeploymentParams {
	return c.params
}

// Announce writes the operator-facing summary of params to the output
// stream.
func (c *Configurator) Announce(params domain.DeploymentParams) error {
	date, err := datefmt.FormatHumanDate(params.EventStart, c.opts.Locale, c.opts.Location)
	if err != nil {
		return err
	}
	c.printf("Deploying contract for event %s (%s) on %s\n", params.EventName, params.EventSymbol, date)
	c.printf("A maximum of %d tickets are available\n", params.TicketSupply)
	c.printf("The initial ticket price is %s ETH\n", params.InitialPrice.String())
	c.printf("Ticket prices are only allowed to be %d%% of the initial ticket price, at maximum\n", params.MaxPriceFactorPercent)
	c.printf("The ticket transfer fee between attendees is set to %d%% of the ticket price\n", params.TransferFeePercent)
	return nil
}

// Deploy converts params into ordered constructor arguments and calls the
// Deployer exactly once. Errors from the Deployer are returned unmodified
// apart from context wrapping.
func (c *Configurator) Deploy(ctx context.Context, params domain.DeploymentParams) (domain.DeployedInstance, error) {
	args, err := params.ConstructorArgs(c.opts.Decimals)
	if err != nil {
		return domain.DeployedInstance{}, fmt.Errorf("deploy: %w", err)
	}
	inst, err := c.deployer.Deploy(ctx, c.artifact, args...)
	if err != nil {
		return inst, fmt.Errorf("deploy: %s: %w", c.artifact.Name, err)
	}
	return inst, nil
}

// Run performs the full sequence: build, announce, deploy, report. The
// returned Deployment is non-nil whenever a deployment was attempted, even
// when err is non-nil. Sink failures after a successful deploy are returned
// joined with a nil deploy error, so callers can still show the address.
func (c *Configurator) Run(ctx context.Context) (*domain.Deployment, error) {
	params := c.BuildParameters()

	// Convert before announcing so a malformed price aborts before any output.
	if _, err := params.InitialPriceBaseUnits(c.opts.Decimals); err != nil {
		return nil, fmt.Errorf("deploy: %w", err)
	}
	if err := c.Announce(params); err != nil {
		return nil, fmt.Errorf("deploy: announce: %w", err)
	}

	if c.opts.Lock != nil {
		unlock, err := c.opts.Lock.Acquire(ctx, c.lockKey(), c.opts.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("deploy: acquire %s: %w", c.lockKey(), err)
		}
		defer unlock()
	}

	rec := &domain.Deployment{
		ID:              c.newID(),
		Preset:          c.opts.Preset,
		ChainID:         c.opts.ChainID,
		DeployerAddress: c.opts.DeployerAddress,
		Params:          params,
		Status:          domain.DeploymentPending,
		CreatedAt:       c.now(),
	}
	c.logger.InfoContext(ctx, "deploying contract",
		slog.String("deployment_id", rec.ID),
		slog.String("contract", c.artifact.Name),
		slog.Int64("chain_id", rec.ChainID),
	)

	inst, deployErr := c.Deploy(ctx, params)
	rec.ContractAddress = addressOrEmpty(inst.Address)
	rec.TxHash = hashOrEmpty(inst.TxHash)
	rec.BlockNumber = inst.BlockNumber
	rec.GasUsed = inst.GasUsed

	if deployErr != nil {
		rec.Status = domain.DeploymentFailed
		rec.Error = deployErr.Error()
		c.logger.ErrorContext(ctx, "deployment failed",
			slog.String("deployment_id", rec.ID),
			slog.String("error", deployErr.Error()),
		)
		// The tx may already be broadcast, so record the failure even after
		// cancellation. A sink error never masks the deploy error.
		reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
		_ = c.report(reportCtx, *rec)
		cancel()
		return rec, deployErr
	}

	confirmed := c.now()
	rec.Status = domain.DeploymentConfirmed
	rec.ConfirmedAt = &confirmed
	c.printf("Deployed %s contract with address %s\n", c.artifact.Name, rec.ContractAddress)
	c.logger.InfoContext(ctx, "deployment confirmed",
		slog.String("deployment_id", rec.ID),
		slog.String("address", rec.ContractAddress),
		slog.String("tx_hash", rec.TxHash),
		slog.Uint64("block", rec.BlockNumber),
		slog.Uint64("gas_used", rec.GasUsed),
	)

	return rec, c.report(ctx, *rec)
}

// PlanResult is the outcome of a dry run.
type PlanResult struct {
	Params           domain.DeploymentParams
	Calldata         []byte
	PredictedAddress common.Address
	Nonce            uint64
	// Record is what the sinks were given; it never carries an address.
	Record domain.Deployment
}

// Plan announces params and prints the creation calldata and the predicted
// contract address without sending anything. predictor may be nil when no
// key is configured. The planned run is reported to the sinks like any
// other, and sink failures are returned as with Run.
func (c *Configurator) Plan(ctx context.Context, predictor Predictor) (*PlanResult, error) {
	params := c.BuildParameters()
	args, err := params.ConstructorArgs(c.opts.Decimals)
	if err != nil {
		return nil, fmt.Errorf("deploy: plan: %w", err)
	}
	if err := c.Announce(params); err != nil {
		return nil, fmt.Errorf("deploy: plan: %w", err)
	}
	packed, err := c.artifact.PackConstructor(args...)
	if err != nil {
		return nil, fmt.Errorf("deploy: plan: %w", err)
	}

	res := &PlanResult{Params: params, Calldata: packed}
	c.printf("Constructor %s\n", c.artifact.ConstructorSignature())
	c.printf("Encoded constructor arguments %s\n", hexutil.Encode(packed))

	if predictor != nil {
		addr, nonce, err := predictor.PredictAddress(ctx)
		if err != nil {
			return nil, fmt.Errorf("deploy: plan: %w", err)
		}
		res.PredictedAddress = addr
		res.Nonce = nonce
		c.printf("Next deployment from %s (nonce %d) would create %s\n", c.opts.DeployerAddress, nonce, addr.Hex())
	}

	res.Record = domain.Deployment{
		ID:              c.newID(),
		Preset:          c.opts.Preset,
		ChainID:         c.opts.ChainID,
		DeployerAddress: c.opts.DeployerAddress,
		Params:          params,
		Status:          domain.DeploymentPlanned,
		CreatedAt:       c.now(),
	}
	return res, c.report(ctx, res.Record)
}

func (c *Configurator) report(ctx context.Context, rec domain.Deployment) error {
	if len(c.sinks) == 0 {
		return nil
	}
	err := publish(ctx, c.sinks, rec)
	if err != nil {
		c.logger.WarnContext(ctx, "deployment recorded incompletely",
			slog.String("deployment_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
	return err
}

func (c *Configurator) lockKey() string {
	return fmt.Sprintf("deploy:%s:%d", c.opts.Preset, c.opts.ChainID)
}

func (c *Configurator) printf(format string, a ...any) {
	_, _ = fmt.Fprintf(c.out, format, a...)
}

func addressOrEmpty(a common.Address) string {
	if a == (common.Address{}) {
		return ""
	}
	return a.Hex()
}

func hashOrEmpty(h common.Hash) string {
	if h == (common.Hash{}) {
		return ""
	}
	return h.Hex()
}

// IsIncompleteRecord reports whether err came from a sink rather than from
// the deployment itself.
func IsIncompleteRecord(err error) bool {
	return errors.Is(err, ErrSinkFailed)
}
