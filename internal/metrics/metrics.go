package metrics

import (
	"math"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epi"
)

// Observe feeds every sample of traj to each metric in order.
func Observe(traj *dynamo.Trajectory, ms ...dynamo.Metric) {
	for i, x := range traj.States {
		for _, m := range ms {
			m.Observe(x, traj.Times[i])
		}
	}
}

// Peak tracks the largest value of one compartment and when it occurred.
type Peak struct {
	name  string
	index int
	value float64
	time  float64
	seen  bool
}

func NewPeak(index int) *Peak {
	return &Peak{name: "peak", index: index}
}

func (p *Peak) Name() string { return p.name }

func (p *Peak) Observe(x dynamo.State, t float64) {
	if p.index >= len(x) {
		return
	}
	if !p.seen || x[p.index] > p.value {
		p.value, p.time, p.seen = x[p.index], t, true
	}
}

func (p *Peak) Value() float64 { return p.value }

// Time is the time of the first sample that reached the peak.
func (p *Peak) Time() float64 { return p.time }

func (p *Peak) Reset() {
	p.value, p.time, p.seen = 0, 0, false
}

// FinalSize is the number of hosts that left the susceptible class: the host
// total at the first sample minus the susceptibles at the last one.
type FinalSize struct {
	name        string
	host        epi.Species
	susceptible int
	initial     float64
	last        float64
	samples     int
}

func NewFinalSize(host epi.Species, susceptible int) *FinalSize {
	return &FinalSize{name: "final_size", host: host, susceptible: susceptible}
}

func (f *FinalSize) Name() string { return f.name }

func (f *FinalSize) Observe(x dynamo.State, t float64) {
	if f.samples == 0 {
		f.initial = f.host.Total(x)
	}
	f.last = x[f.susceptible]
	f.samples++
}

func (f *FinalSize) Value() float64 {
	if f.samples == 0 {
		return 0
	}
	return f.initial - f.last
}

// AttackRate is the final size as a fraction of the initial host total.
func (f *FinalSize) AttackRate() float64 {
	if f.initial <= 0 {
		return 0
	}
	return f.Value() / f.initial
}

func (f *FinalSize) Reset() {
	f.initial, f.last, f.samples = 0, 0, 0
}

// Drift measures the largest relative deviation of a species total from the
// curve its demography predicts.
type Drift struct {
	name    string
	species epi.Species
	t0, n0  float64
	max     float64
	samples int
}

func NewDrift(sp epi.Species) *Drift {
	return &Drift{name: "drift_" + sp.Name, species: sp}
}

func (d *Drift) Name() string { return d.name }

func (d *Drift) Observe(x dynamo.State, t float64) {
	n := d.species.Total(x)
	if d.samples == 0 {
		d.t0, d.n0 = t, n
	}
	d.samples++

	want := d.species.Demography.Expected(d.n0, t-d.t0)
	dev := math.Abs(n - want)
	if scale := math.Abs(want); scale > 1 {
		dev /= scale
	}
	if dev > d.max || math.IsNaN(dev) {
		d.max = dev
	}
}

func (d *Drift) Value() float64 { return d.max }

func (d *Drift) Species() epi.Species { return d.species }

func (d *Drift) Reset() {
	d.t0, d.n0, d.max, d.samples = 0, 0, 0, 0
}

// Negatives counts compartment values below -tol.
type Negatives struct {
	name  string
	tol   float64
	count int
}

func NewNegatives(tol float64) *Negatives {
	return &Negatives{name: "negative_samples", tol: math.Abs(tol)}
}

func (n *Negatives) Name() string { return n.name }

func (n *Negatives) Observe(x dynamo.State, t float64) {
	for _, v := range x {
		if v < -n.tol {
			n.count++
		}
	}
}

func (n *Negatives) Value() float64 { return float64(n.count) }

func (n *Negatives) Count() int { return n.count }

func (n *Negatives) Reset() { n.count = 0 }
