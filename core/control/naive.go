package control

import "github.com/kilianp07/offgrid-dt/core/model"

// Naive serves every available task until the battery reaches its reserve,
// then sheds them all.
type Naive struct{}

func (Naive) Name() string { return "naive" }

func (Naive) Decide(cfg model.RunConfig, in Input) model.Decision {
	if atReserve(cfg, in.SoC) {
		return model.Decision{Served: []string{}, Deferred: []string{}, Shed: ids(in.Available)}
	}
	return model.Decision{Served: ids(in.Available), Deferred: []string{}, Shed: []string{}}
}
