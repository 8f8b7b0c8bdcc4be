package math

// MovingAverage keeps a fixed window of samples, used for servo cycle timing.
type MovingAverage struct {
	values   []float64
	index    int
	count    int
	sum      float64
	Estimate float64
	Peak     float64
}

func (a *MovingAverage) Init(size int) {
	if size < 1 {
		size = 1
	}
	a.values = make([]float64, size)
	a.Reset()
}

func (a *MovingAverage) Reset() {
	for i := range a.values {
		a.values[i] = 0
	}
	a.index = 0
	a.count = 0
	a.sum = 0
	a.Estimate = 0
	a.Peak = 0
}

func (a *MovingAverage) Update(val float64) float64 {
	if len(a.values) == 0 {
		a.Init(1)
	}
	a.sum -= a.values[a.index]
	a.values[a.index] = val
	a.sum += val
	a.index = (a.index + 1) % len(a.values)
	if a.count < len(a.values) {
		a.count++
	}
	if val > a.Peak {
		a.Peak = val
	}
	a.Estimate = a.sum / float64(a.count)
	return a.Estimate
}

// Raw returns the most recent sample.
func (a *MovingAverage) Raw() float64 {
	if a.count == 0 {
		return 0
	}
	return a.values[(a.index+len(a.values)-1)%len(a.values)]
}
