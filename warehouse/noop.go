package warehouse

import (
	"context"

	"github.com/rabe42/state-machines/chart"
)

// NoopStore is a Store that persists nothing.
type NoopStore struct {
}

func (s *NoopStore) SaveChart(ctx context.Context, def *chart.Node) error {
	return nil
}

func (s *NoopStore) RemoveChart(ctx context.Context, id string) error {
	return nil
}

func (s *NoopStore) LoadCharts(ctx context.Context) ([]*chart.Node, error) {
	return nil, nil
}

func (s *NoopStore) WriteMachines(ctx context.Context, mss []*MachineState) error {
	return nil
}

func (s *NoopStore) LoadMachines(ctx context.Context) ([]*MachineState, error) {
	return nil, nil
}
