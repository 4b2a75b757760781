package control

import (
	"github.com/kilianp07/offgrid-dt/core/factory"
)

var registry = factory.NewRegistry[Controller]()

func init() {
	registry.MustRegister("naive", func(map[string]any) (Controller, error) {
		return Naive{}, nil
	})
	registry.MustRegister("rule_based", func(map[string]any) (Controller, error) {
		return RuleBased{}, nil
	})
	registry.MustRegister("static_priority", func(conf map[string]any) (Controller, error) {
		c := NewStaticPriority()
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return c, nil
	})
	registry.MustRegister("forecast_heuristic", func(conf map[string]any) (Controller, error) {
		c := NewForecastHeuristic()
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return c, nil
	})
}

// Names lists the stock controllers in their fixed order.
func Names() []string { return registry.Names() }

// New builds a controller from its module configuration.
func New(cfg factory.ModuleConfig) (Controller, error) {
	return registry.Create(cfg)
}

// Lookup returns the named controller with its stock parameters.
func Lookup(name string) (Controller, error) {
	return registry.Create(factory.ModuleConfig{Type: name})
}

// All returns one stock instance of every controller, in registry order.
func All() []Controller {
	names := Names()
	out := make([]Controller, 0, len(names))
	for _, n := range names {
		c, err := Lookup(n)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}
