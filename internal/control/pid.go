package control

import "github.com/san-kum/pwampc/internal/sim"

// PID regulates x[0] towards Target with sample time Dt. The output is
// clamped to [-Limit, Limit] when Limit is positive.
type PID struct {
	Kp     float64
	Ki     float64
	Kd     float64
	Target float64
	Dt     float64
	Limit  float64
	Dim    int

	integral float64
	prevErr  float64
	first    bool
}

func NewPID(kp, ki, kd, target, dt float64, dim int) *PID {
	if dim < 1 {
		dim = 1
	}
	return &PID{
		Kp:     kp,
		Ki:     ki,
		Kd:     kd,
		Target: target,
		Dt:     dt,
		Dim:    dim,
		first:  true,
	}
}

func (p *PID) Compute(x sim.State, t int) sim.Control {
	u := make(sim.Control, p.Dim)
	if len(x) == 0 {
		return u
	}

	err := p.Target - x[0]
	if p.first || p.Dt <= 0 {
		p.prevErr = err
		p.first = false
		u[0] = p.clamp(p.Kp * err)
		return u
	}

	p.integral += err * p.Dt
	derivative := (err - p.prevErr) / p.Dt
	p.prevErr = err

	u[0] = p.clamp(p.Kp*err + p.Ki*p.integral + p.Kd*derivative)
	return u
}

func (p *PID) clamp(v float64) float64 {
	if p.Limit <= 0 {
		return v
	}
	if v > p.Limit {
		return p.Limit
	}
	if v < -p.Limit {
		return -p.Limit
	}
	return v
}

// Reset clears integral and derivative state
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.first = true
}
