// Package factory provides a small generic registry used to instantiate modules
// from configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation. The registry keeps registration order, which is
// how controllers are listed and compared.
//
// Example usage:
//
//	reg := factory.NewRegistry[control.Controller]()
//	reg.MustRegister("rule_based", func(conf map[string]any) (control.Controller, error) {
//	    return control.RuleBased{}, nil
//	})
//	c, err := reg.Create(factory.ModuleConfig{Type: "rule_based"})
package factory
