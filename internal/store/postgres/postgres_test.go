package postgres

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ticketdeploy/internal/domain"
)

func TestDSN(t *testing.T) {
	t.Parallel()

	got := DSN(ClientConfig{Host: "db", Database: "tickets", User: "u", Password: "p"})
	if got != "postgres://u:p@db:5432/tickets?sslmode=disable" {
		t.Fatalf("unexpected dsn %s", got)
	}
	if got := DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}); got != "postgres://x" {
		t.Fatalf("expected explicit dsn to win, got %s", got)
	}
}

func TestListQuery(t *testing.T) {
	t.Parallel()

	since := time.Date(2022, 11, 1, 0, 0, 0, 0, time.UTC)
	query, args := listQuery("SELECT 1 FROM t WHERE a = $1", []any{"x"},
		domain.ListOpts{Since: &since, Limit: 10, Offset: 5})

	want := "SELECT 1 FROM t WHERE a = $1 AND created_at >= $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4"
	if query != want {
		t.Fatalf("expected %q, got %q", want, query)
	}
	if !reflect.DeepEqual(args, []any{"x", since, 10, 5}) {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestMigrationNames(t *testing.T) {
	t.Parallel()

	names, err := migrationNames()
	if err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if len(names) == 0 || names[0] != "001_deployments.sql" {
		t.Fatalf("unexpected migrations %v", names)
	}
}

// testClient connects to TEST_DATABASE_URL, skipping when it is unset or the
// server is unreachable.
func testClient(t *testing.T) *Client {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := New(ctx, ClientConfig{DSN: dsn, MaxConns: 4})
	if err != nil {
		t.Skipf("skipping Postgres integration tests: %v", err)
	}
	t.Cleanup(c.Close)
	if err := c.RunMigrations(ctx); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	// second run must be a no-op
	if err := c.RunMigrations(ctx); err != nil {
		t.Fatalf("re-run migrations: %v", err)
	}
	return c
}

func TestDeploymentStoreRoundTrip(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	store := NewDeploymentStore(c.Pool())

	created := time.Now().UTC().Truncate(time.Millisecond)
	d := domain.Deployment{
		ID:              uuid.NewString(),
		Preset:          "tusca-2022",
		ChainID:         31337,
		DeployerAddress: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		Params: domain.DeploymentParams{
			EventName:             "TUSCA 2022",
			EventSymbol:           "TUSCA",
			EventStart:            1668272400,
			TicketSupply:          15000,
			InitialPrice:          decimal.RequireFromString("14000.000000000000000001"),
			MaxPriceFactorPercent: 200,
			TransferFeePercent:    5,
		},
		Status:    domain.DeploymentPending,
		CreatedAt: created,
	}
	if err := store.Create(ctx, d); err != nil {
		t.Fatalf("create: %v", err)
	}

	confirmed := created.Add(time.Minute)
	d.Status = domain.DeploymentConfirmed
	d.ContractAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	d.TxHash = "0xabc"
	d.BlockNumber = 7
	d.GasUsed = 2_500_000
	d.ConfirmedAt = &confirmed
	if err := store.Create(ctx, d); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Params.Equal(d.Params) {
		t.Fatalf("expected params %+v, got %+v", d.Params, got.Params)
	}
	if got.Status != domain.DeploymentConfirmed || got.BlockNumber != 7 || got.ConfirmedAt == nil {
		t.Fatalf("unexpected stored record %+v", got)
	}

	byAddr, err := store.ListByAddress(ctx, "0x5fbdb2315678afecb367f032d93f642f64180aa3")
	if err != nil || len(byAddr) == 0 {
		t.Fatalf("expected lookup by lower-case address, got %v %v", byAddr, err)
	}

	if _, err := store.GetByID(ctx, uuid.NewString()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuditStore(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	audit := NewAuditStore(c.Pool())

	id := uuid.NewString()
	if err := audit.Log(ctx, "deployment_confirmed", map[string]any{"deployment_id": id}); err != nil {
		t.Fatalf("log: %v", err)
	}
	entries, err := audit.List(ctx, domain.ListOpts{Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Detail["deployment_id"] != id {
		t.Fatalf("expected newest entry first, got %+v", entries)
	}
}
