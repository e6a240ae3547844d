package eventsync

import (
	"context"

	"github.com/0xmhha/stomatrade-go/contract"
)

// RegistryContracts resolves sync targets through the contract registry.
type RegistryContracts struct {
	Registry *contract.Registry
}

// ChainIDs returns every chain with an active contract config.
func (r *RegistryContracts) ChainIDs(ctx context.Context) ([]uint64, error) {
	configs, err := r.Registry.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(configs))
	for _, c := range configs {
		ids = append(ids, c.ChainID)
	}
	return ids, nil
}

// Target binds chainID's handle for log queries.
func (r *RegistryContracts) Target(ctx context.Context, chainID uint64) (*Target, error) {
	h, err := r.Registry.Get(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return &Target{
		ChainID: chainID,
		Address: h.Address,
		ABI:     h.ABI,
		Logs:    h.Connection(),
	}, nil
}
