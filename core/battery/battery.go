// Package battery implements the state-of-charge model of the storage bank.
package battery

import "math"

// dischargeEffFloor keeps the discharge division finite.
const dischargeEffFloor = 1e-9

// State is the battery bank state carried from one step to the next.
type State struct {
	SoC           float64 `json:"soc"`
	ThroughputKWh float64 `json:"throughput_kwh"`
}

// Params are the fixed characteristics of the bank.
type Params struct {
	CapacityKWh  float64
	ChargeEff    float64
	DischargeEff float64
	SoCMin       float64
	SoCMax       float64
}

// UpdateSoC advances the state by one step of dtH hours. Negative power
// commands are treated as zero and the resulting SoC is always clamped to
// [SoCMin, SoCMax]; the model never rejects a command.
func UpdateSoC(s State, chargeKW, dischargeKW, dtH float64, p Params) State {
	charge := math.Max(0, chargeKW)
	discharge := math.Max(0, dischargeKW)
	eIn := charge * dtH * p.ChargeEff
	eOut := discharge * dtH / math.Max(p.DischargeEff, dischargeEffFloor)

	soc := s.SoC
	if p.CapacityKWh > 0 {
		soc += (eIn - eOut) / p.CapacityKWh
	}
	return State{
		SoC:           clamp(soc, p.SoCMin, p.SoCMax),
		ThroughputKWh: s.ThroughputKWh + (math.Abs(chargeKW)+math.Abs(dischargeKW))*dtH,
	}
}

// DeliverableKW returns the power the bank can supply for one step without
// crossing the reserve, capped at the inverter limit. It is zero at or below
// the reserve.
func DeliverableKW(s State, dtH, inverterKW float64, p Params) float64 {
	if s.SoC <= p.SoCMin || dtH <= 0 {
		return 0
	}
	headroom := (s.SoC - p.SoCMin) * p.CapacityKWh * math.Max(p.DischargeEff, dischargeEffFloor)
	return math.Min(inverterKW, headroom/dtH)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
