package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ticketdeploy/internal/domain"
)

const deploymentColumns = `id, preset, chain_id, deployer_address,
	event_name, event_symbol, event_start, ticket_supply::bigint, initial_price::text,
	max_price_factor_percent::bigint, transfer_fee_percent::bigint,
	contract_address, tx_hash, block_number, gas_used, status, error,
	created_at, confirmed_at`

// DeploymentStore implements domain.DeploymentStore on the deployments
// table. Prices are kept as NUMERIC so no precision is lost.
type DeploymentStore struct {
	pool *pgxpool.Pool
}

func NewDeploymentStore(pool *pgxpool.Pool) *DeploymentStore {
	return &DeploymentStore{pool: pool}
}

// Create inserts d, or updates the outcome columns when a record with the
// same id already exists.
func (s *DeploymentStore) Create(ctx context.Context, d domain.Deployment) error {
	const query = `INSERT INTO deployments (
		id, preset, chain_id, deployer_address,
		event_name, event_symbol, event_start, ticket_supply, initial_price,
		max_price_factor_percent, transfer_fee_percent,
		contract_address, tx_hash, block_number, gas_used, status, error,
		created_at, confirmed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CAST($9 AS TEXT)::numeric, $10, $11,
		$12, $13, $14, $15, $16, $17, $18, $19)
	ON CONFLICT (id) DO UPDATE SET
		contract_address = EXCLUDED.contract_address,
		tx_hash          = EXCLUDED.tx_hash,
		block_number     = EXCLUDED.block_number,
		gas_used         = EXCLUDED.gas_used,
		status           = EXCLUDED.status,
		error            = EXCLUDED.error,
		confirmed_at     = EXCLUDED.confirmed_at`

	p := d.Params
	_, err := s.pool.Exec(ctx, query,
		d.ID, d.Preset, d.ChainID, d.DeployerAddress,
		p.EventName, p.EventSymbol, p.EventStart, int64(p.TicketSupply), p.InitialPrice.String(),
		int64(p.MaxPriceFactorPercent), int64(p.TransferFeePercent),
		d.ContractAddress, d.TxHash, int64(d.BlockNumber), int64(d.GasUsed), string(d.Status), d.Error,
		d.CreatedAt, d.ConfirmedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create deployment %s: %w", d.ID, err)
	}
	return nil
}

func (s *DeploymentStore) GetByID(ctx context.Context, id string) (domain.Deployment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+deploymentColumns+` FROM deployments WHERE id = $1`, id)
	d, err := scanDeployment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Deployment{}, fmt.Errorf("deployment %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Deployment{}, fmt.Errorf("postgres: get deployment %s: %w", id, err)
	}
	return d, nil
}

// ListRecent returns deployments newest first.
func (s *DeploymentStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Deployment, error) {
	query, args := listQuery(`SELECT `+deploymentColumns+` FROM deployments WHERE TRUE`, nil, opts)
	return s.list(ctx, query, args...)
}

// ListByAddress matches the contract address case-insensitively.
func (s *DeploymentStore) ListByAddress(ctx context.Context, contractAddress string) ([]domain.Deployment, error) {
	query, args := listQuery(`SELECT `+deploymentColumns+` FROM deployments WHERE lower(contract_address) = $1`,
		[]any{strings.ToLower(contractAddress)}, domain.ListOpts{})
	return s.list(ctx, query, args...)
}

func (s *DeploymentStore) list(ctx context.Context, query string, args ...any) ([]domain.Deployment, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list deployments: %w", err)
	}
	defer rows.Close()

	var out []domain.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan deployment: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list deployments: %w", err)
	}
	return out, nil
}

func scanDeployment(row pgx.Row) (domain.Deployment, error) {
	var (
		d                   domain.Deployment
		supply, factor, fee int64
		block, gas          int64
		price, status       string
	)
	err := row.Scan(
		&d.ID, &d.Preset, &d.ChainID, &d.DeployerAddress,
		&d.Params.EventName, &d.Params.EventSymbol, &d.Params.EventStart, &supply, &price,
		&factor, &fee,
		&d.ContractAddress, &d.TxHash, &block, &gas, &status, &d.Error,
		&d.CreatedAt, &d.ConfirmedAt,
	)
	if err != nil {
		return domain.Deployment{}, err
	}
	d.Params.InitialPrice, err = decimal.NewFromString(price)
	if err != nil {
		return domain.Deployment{}, fmt.Errorf("initial price %q: %w", price, err)
	}
	d.Params.TicketSupply = uint64(supply)
	d.Params.MaxPriceFactorPercent = uint64(factor)
	d.Params.TransferFeePercent = uint64(fee)
	d.BlockNumber = uint64(block)
	d.GasUsed = uint64(gas)
	d.Status = domain.DeploymentStatus(status)
	return d, nil
}

var _ domain.DeploymentStore = (*DeploymentStore)(nil)
