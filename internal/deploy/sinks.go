package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/ticketdeploy/internal/domain"
)

// ErrSinkFailed marks errors raised while recording a deployment, as opposed
// to errors from the deployment itself.
var ErrSinkFailed = errors.New("deployment sink failed")

// Sink receives the record of every attempted deployment.
type Sink interface {
	Name() string
	Record(ctx context.Context, d domain.Deployment) error
}

// publish fans rec out to all sinks concurrently. Every sink runs even if
// another fails; failures are joined.
func publish(ctx context.Context, sinks []Sink, rec domain.Deployment) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(4)
	for _, s := range sinks {
		g.Go(func() error {
			if err := s.Record(ctx, rec); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrSinkFailed, errors.Join(errs...))
}

// StoreSink persists the deployment and writes an audit entry.
type StoreSink struct {
	store domain.DeploymentStore
	audit domain.AuditStore
}

// NewStoreSink records into store; audit may be nil.
func NewStoreSink(store domain.DeploymentStore, audit domain.AuditStore) *StoreSink {
	return &StoreSink{store: store, audit: audit}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Record(ctx context.Context, d domain.Deployment) error {
	if err := s.store.Create(ctx, d); err != nil {
		return err
	}
	if s.audit == nil {
		return nil
	}
	return s.audit.Log(ctx, "deployment_"+string(d.Status), map[string]any{
		"deployment_id": d.ID,
		"preset":        d.Preset,
		"chain_id":      d.ChainID,
		"address":       d.ContractAddress,
		"tx_hash":       d.TxHash,
	})
}

// ArchiveSink uploads the deployment manifest as JSON to object storage
// under <prefix>/<chain id>/<deployment id>.json.
type ArchiveSink struct {
	blob   domain.BlobWriter
	prefix string
}

func NewArchiveSink(blob domain.BlobWriter, prefix string) *ArchiveSink {
	return &ArchiveSink{blob: blob, prefix: prefix}
}

func (s *ArchiveSink) Name() string { return "archive" }

func (s *ArchiveSink) Record(ctx context.Context, d domain.Deployment) error {
	body, err := json.MarshalIndent(NewManifest(d), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return s.blob.Put(ctx, ManifestPath(s.prefix, d), bytes.NewReader(body), "application/json")
}

// ManifestPath returns the object key a deployment's manifest is stored at.
func ManifestPath(prefix string, d domain.Deployment) string {
	return path.Join(prefix, fmt.Sprintf("%d", d.ChainID), d.ID+".json")
}

// BusSink publishes the manifest on a pub/sub channel and appends it to a
// durable stream.
type BusSink struct {
	bus     domain.EventBus
	channel string
	stream  string
}

func NewBusSink(bus domain.EventBus, channel, stream string) *BusSink {
	return &BusSink{bus: bus, channel: channel, stream: stream}
}

func (s *BusSink) Name() string { return "bus" }

func (s *BusSink) Record(ctx context.Context, d domain.Deployment) error {
	payload, err := json.Marshal(NewManifest(d))
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if s.stream != "" {
		if err := s.bus.StreamAppend(ctx, s.stream, payload); err != nil {
			return err
		}
	}
	if s.channel != "" {
		return s.bus.Publish(ctx, s.channel, payload)
	}
	return nil
}

// Notifier delivers operator notifications.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// NotifySink announces deployments to chat channels.
type NotifySink struct {
	notifier Notifier
}

func NewNotifySink(n Notifier) *NotifySink {
	return &NotifySink{notifier: n}
}

func (s *NotifySink) Name() string { return "notify" }

func (s *NotifySink) Record(ctx context.Context, d domain.Deployment) error {
	p := d.Params
	switch d.Status {
	case domain.DeploymentConfirmed:
		return s.notifier.Notify(ctx, "deployment_confirmed",
			fmt.Sprintf("%s deployed", p.EventName),
			fmt.Sprintf("%s (%s) preset %s on chain %d\naddress: %s\ntx: %s",
				p.EventName, p.EventSymbol, d.Preset, d.ChainID, d.ContractAddress, d.TxHash),
		)
	case domain.DeploymentFailed:
		return s.notifier.Notify(ctx, "deployment_failed",
			fmt.Sprintf("%s deployment failed", p.EventName),
			fmt.Sprintf("preset %s on chain %d: %s", d.Preset, d.ChainID, d.Error),
		)
	default:
		return nil
	}
}
