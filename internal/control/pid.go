package control

import "math"

// PID tracks a scalar setpoint. The derivative acts on the measurement so
// a setpoint change does not kick the output.
type PID struct {
	Kp     float64
	Ki     float64
	Kd     float64
	Target float64
	// Limit bounds the output magnitude when positive. The integral stops
	// growing while the output is saturated.
	Limit float64

	integral float64
	prev     float64
	first    bool
}

func NewPID(kp, ki, kd, target float64) *PID {
	return &PID{
		Kp:     kp,
		Ki:     ki,
		Kd:     kd,
		Target: target,
		first:  true,
	}
}

// Update returns the control output for measured after a step of dt.
func (p *PID) Update(measured, dt float64) float64 {
	err := p.Target - measured
	if p.first || dt <= 0 {
		p.prev = measured
		p.first = false
		return p.clamp(p.Kp*err + p.Ki*p.integral)
	}

	derivative := -(measured - p.prev) / dt
	p.prev = measured

	integral := p.integral + err*dt
	u := p.Kp*err + p.Ki*integral + p.Kd*derivative
	if p.Limit <= 0 || math.Abs(u) <= p.Limit {
		p.integral = integral
	}
	return p.clamp(u)
}

func (p *PID) clamp(u float64) float64 {
	if p.Limit > 0 {
		return math.Max(-p.Limit, math.Min(p.Limit, u))
	}
	return u
}

// Reset clears integral and derivative state
func (p *PID) Reset() {
	p.integral = 0
	p.prev = 0
	p.first = true
}

// Params returns tunable parameters for live adjustment
func (p *PID) Params() map[string]float64 {
	return map[string]float64{
		"Kp":     p.Kp,
		"Ki":     p.Ki,
		"Kd":     p.Kd,
		"Target": p.Target,
	}
}
