package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/ticketdeploy/internal/chain"
	"github.com/alanyoungcy/ticketdeploy/internal/config"
	"github.com/alanyoungcy/ticketdeploy/internal/contract"
	"github.com/alanyoungcy/ticketdeploy/internal/crypto"
	"github.com/alanyoungcy/ticketdeploy/internal/datefmt"
	"github.com/alanyoungcy/ticketdeploy/internal/deploy"
	"github.com/alanyoungcy/ticketdeploy/internal/domain"
	"github.com/alanyoungcy/ticketdeploy/internal/preset"
	"github.com/alanyoungcy/ticketdeploy/internal/units"
)

const gweiDecimals int32 = 9

// DeployMode deploys the configured preset and records the outcome in every
// wired sink.
func (a *App) DeployMode(ctx context.Context, deps *Dependencies) error {
	params, artifact, err := a.prepare()
	if err != nil {
		return err
	}

	client, chainID, err := chain.Dial(ctx, a.cfg.Chain.RPCURL, a.cfg.Chain.ChainID)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, client.Close)

	deployer, err := a.ethDeployer(client, chainID)
	if err != nil {
		return err
	}

	opts, err := a.configuratorOptions(chainID.Int64(), deployer.From().Hex())
	if err != nil {
		return err
	}
	if a.cfg.Deploy.Exclusive {
		opts.Lock = deps.LockManager
		opts.LockTTL = a.cfg.Deploy.LockTTL.Duration
	}

	c := deploy.New(params, artifact, deployer, a.out, opts, a.logger, deps.Sinks(a.cfg.Deploy)...)
	rec, err := c.Run(ctx)
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "deploy mode finished",
		slog.String("deployment_id", rec.ID),
		slog.String("address", rec.ContractAddress),
	)
	return nil
}

// PlanMode prints what DeployMode would send. With a key configured it also
// queries the node for the deployer nonce and predicts the contract address.
func (a *App) PlanMode(ctx context.Context, deps *Dependencies) error {
	params, artifact, err := a.prepare()
	if err != nil {
		return err
	}

	var (
		predictor deploy.Predictor
		chainID   = a.cfg.Chain.ChainID
		from      string
	)
	if a.hasKey() {
		client, id, err := chain.Dial(ctx, a.cfg.Chain.RPCURL, a.cfg.Chain.ChainID)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Close)

		d, err := a.ethDeployer(client, id)
		if err != nil {
			return err
		}
		predictor, chainID, from = d, id.Int64(), d.From().Hex()
	}

	opts, err := a.configuratorOptions(chainID, from)
	if err != nil {
		return err
	}
	c := deploy.New(params, artifact, nil, a.out, opts, a.logger, deps.Sinks(a.cfg.Deploy)...)
	_, err = c.Plan(ctx, predictor)
	return err
}

// PresetsMode lists every preset that can be selected.
func (a *App) PresetsMode(_ context.Context) error {
	reg, err := a.registry()
	if err != nil {
		return err
	}
	loc, err := datefmt.LoadLocation(a.cfg.Deploy.TimeZone)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRESET\tEVENT\tSTART\tSUPPLY\tPRICE\tMAX FACTOR\tFEE\tSOURCE")
	for _, name := range reg.Names() {
		p, err := reg.Lookup(name)
		if err != nil {
			return err
		}
		date, err := datefmt.FormatHumanDate(p.EventStart, a.cfg.Deploy.Locale, loc)
		if err != nil {
			return err
		}
		source := "config"
		if preset.IsBuiltin(name) {
			source = "builtin"
		}
		fmt.Fprintf(tw, "%s\t%s (%s)\t%s\t%d\t%s ETH\t%d%%\t%d%%\t%s\n",
			name, p.EventName, p.EventSymbol, date, p.TicketSupply, p.InitialPrice.String(),
			p.MaxPriceFactorPercent, p.TransferFeePercent, source)
	}
	return tw.Flush()
}

// HistoryMode prints recorded deployments from Postgres or from the Redis
// stream, optionally narrowed to one id or one contract address.
func (a *App) HistoryMode(ctx context.Context, deps *Dependencies) error {
	var (
		recs []domain.Deployment
		err  error
	)
	if a.cfg.Deploy.HistorySource == "stream" {
		recs, err = a.streamHistory(ctx, deps)
	} else {
		recs, err = a.storeHistory(ctx, deps)
	}
	if err != nil {
		return err
	}
	return writeHistory(a.out, recs)
}

func (a *App) storeHistory(ctx context.Context, deps *Dependencies) ([]domain.Deployment, error) {
	if deps.DeploymentStore == nil {
		return nil, errors.New("app: history needs database.enabled")
	}
	h := a.cfg.Deploy
	switch {
	case h.HistoryID != "":
		d, err := deps.DeploymentStore.GetByID(ctx, h.HistoryID)
		if err != nil {
			return nil, fmt.Errorf("app: deployment %s: %w", h.HistoryID, err)
		}
		return []domain.Deployment{d}, nil
	case h.HistoryAddress != "":
		return deps.DeploymentStore.ListByAddress(ctx, h.HistoryAddress)
	default:
		return deps.DeploymentStore.ListRecent(ctx, domain.ListOpts{Limit: h.HistoryLimit})
	}
}

// streamPage is the XREAD batch size used while walking the stream.
const streamPage = 100

// streamHistory walks the deployment stream from the start and keeps the
// newest matching entries, newest first like the database listing.
func (a *App) streamHistory(ctx context.Context, deps *Dependencies) ([]domain.Deployment, error) {
	if deps.EventBus == nil {
		return nil, errors.New("app: stream history needs redis.enabled")
	}
	h := a.cfg.Deploy
	var recs []domain.Deployment
	lastID := "0"
	for {
		msgs, err := deps.EventBus.StreamRead(ctx, h.BusStream, lastID, streamPage)
		if err != nil {
			return nil, err
		}
		if len(msgs) == 0 {
			break
		}
		for _, m := range msgs {
			d, err := deploy.ParseManifest(m.Payload)
			if err != nil {
				a.logger.WarnContext(ctx, "skipping unreadable stream entry",
					slog.String("entry_id", m.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			if h.HistoryID != "" && d.ID != h.HistoryID {
				continue
			}
			if h.HistoryAddress != "" && !strings.EqualFold(d.ContractAddress, h.HistoryAddress) {
				continue
			}
			recs = append(recs, d)
		}
		lastID = msgs[len(msgs)-1].ID
	}
	if h.HistoryID != "" && len(recs) == 0 {
		return nil, fmt.Errorf("app: deployment %s: %w", h.HistoryID, domain.ErrNotFound)
	}

	slices.Reverse(recs)
	if h.HistoryLimit > 0 && len(recs) > h.HistoryLimit {
		recs = recs[:h.HistoryLimit]
	}
	return recs, nil
}

func writeHistory(w io.Writer, recs []domain.Deployment) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tID\tPRESET\tCHAIN\tSTATUS\tADDRESS\tTX")
	for _, d := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			d.CreatedAt.UTC().Format(time.RFC3339), d.ID, d.Preset, d.ChainID, d.Status,
			orDash(d.ContractAddress), orDash(d.TxHash))
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// EncryptKeyMode writes wallet.private_key to wallet.encrypted_key_path,
// encrypted with wallet.key_password.
func (a *App) EncryptKeyMode(ctx context.Context) error {
	w := a.cfg.Wallet
	pk, err := crypto.LoadKey(crypto.KeyConfig{RawPrivateKey: w.PrivateKey})
	if err != nil {
		return err
	}
	if err := crypto.WriteEncryptedKey(w.EncryptedKeyPath, w.PrivateKey, w.KeyPassword); err != nil {
		return err
	}
	addr := ethcrypto.PubkeyToAddress(pk.PublicKey).Hex()
	fmt.Fprintf(a.out, "Encrypted key for %s written to %s\n", addr, w.EncryptedKeyPath)
	a.logger.InfoContext(ctx, "key encrypted", slog.String("address", addr), slog.String("path", w.EncryptedKeyPath))
	return nil
}

// prepare resolves the selected preset and loads the contract artifact.
func (a *App) prepare() (domain.DeploymentParams, *contract.Artifact, error) {
	reg, err := a.registry()
	if err != nil {
		return domain.DeploymentParams{}, nil, err
	}
	params, err := reg.Lookup(a.cfg.Deploy.Preset)
	if err != nil {
		return domain.DeploymentParams{}, nil, err
	}
	artifact, err := contract.LoadArtifact(a.cfg.Contract.ArtifactPath)
	if err != nil {
		return domain.DeploymentParams{}, nil, err
	}
	return params, artifact, nil
}

func (a *App) registry() (*preset.Registry, error) {
	custom, err := customPresets(a.cfg.Presets)
	if err != nil {
		return nil, err
	}
	return preset.NewRegistry(custom)
}

func customPresets(in map[string]config.PresetConfig) (map[string]domain.DeploymentParams, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]domain.DeploymentParams, len(in))
	for name, pc := range in {
		p, err := pc.Params()
		if err != nil {
			return nil, fmt.Errorf("app: preset %s: %w", name, err)
		}
		out[name] = p
	}
	return out, nil
}

func (a *App) hasKey() bool {
	return a.cfg.Wallet.PrivateKey != "" || a.cfg.Wallet.EncryptedKeyPath != ""
}

func (a *App) ethDeployer(client *ethclient.Client, chainID *big.Int) (*chain.EthDeployer, error) {
	pk, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    a.cfg.Wallet.PrivateKey,
		EncryptedKeyPath: a.cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      a.cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return nil, err
	}
	signer, err := crypto.NewSigner(pk, chainID)
	if err != nil {
		return nil, err
	}
	opts, err := chainOptions(a.cfg.Chain)
	if err != nil {
		return nil, err
	}
	return chain.NewEthDeployer(client, signer, opts, a.logger), nil
}

func chainOptions(cfg config.ChainConfig) (chain.Options, error) {
	opts := chain.Options{
		GasLimit:         cfg.GasLimit,
		GasMarginPercent: cfg.GasMarginPercent,
		ReceiptTimeout:   cfg.ReceiptTimeout.Duration,
		PollInterval:     cfg.PollInterval.Duration,
	}
	if cfg.MaxFeeGwei != "" {
		gwei, err := units.ParseAmount(cfg.MaxFeeGwei)
		if err != nil {
			return chain.Options{}, fmt.Errorf("app: max_fee_gwei: %w", err)
		}
		opts.MaxFeePerGas, err = units.ToBaseUnits(gwei, gweiDecimals)
		if err != nil {
			return chain.Options{}, fmt.Errorf("app: max_fee_gwei: %w", err)
		}
	}
	return opts, nil
}

func (a *App) configuratorOptions(chainID int64, from string) (deploy.Options, error) {
	loc, err := datefmt.LoadLocation(a.cfg.Deploy.TimeZone)
	if err != nil {
		return deploy.Options{}, err
	}
	return deploy.Options{
		Preset:          preset.Canonical(a.cfg.Deploy.Preset),
		ChainID:         chainID,
		DeployerAddress: from,
		Decimals:        units.EtherDecimals,
		Locale:          a.cfg.Deploy.Locale,
		Location:        loc,
	}, nil
}
