package flowtrack

import (
	"math"
	"slices"
)

// cdfStep is the minimum cumulative probability gap between emitted points.
const cdfStep = 0.05

// CDF is a weighted histogram of integer observations. Values are bucketed
// exactly; the distribution table is sampled at cdfStep probability steps
// over the value-sorted traversal.
type CDF struct {
	values map[uint64]uint64
	total  uint64
}

// NewCDF creates an empty histogram.
func NewCDF() *CDF {
	return &CDF{values: make(map[uint64]uint64)}
}

// Add records one observation of v.
func (c *CDF) Add(v uint64) { c.AddN(v, 1) }

// AddN records count observations of v.
func (c *CDF) AddN(v, count uint64) {
	c.values[v] += count
	c.total += count
}

// Total returns the number of observations recorded.
func (c *CDF) Total() uint64 { return c.total }

// Avg returns the weighted mean of the observations, 0 when empty.
func (c *CDF) Avg() float64 {
	if c.total == 0 {
		return 0
	}
	var sum float64
	for v, n := range c.values {
		sum += float64(v) * float64(n)
	}
	return sum / float64(c.total)
}

// Stdev returns the weighted population standard deviation, 0 when empty.
func (c *CDF) Stdev() float64 {
	if c.total == 0 {
		return 0
	}
	avg := c.Avg()
	var acc float64
	for v, n := range c.values {
		d := float64(v) - avg
		acc += d * d * float64(n)
	}
	return math.Sqrt(acc / float64(c.total))
}

// Table returns the cumulative distribution as parallel value/probability
// slices. Points are emitted whenever the cumulative probability crosses
// the next cdfStep boundary; the last point always has probability 1.
func (c *CDF) Table() (values []uint64, probs []float64) {
	keys := make([]uint64, 0, len(c.values))
	for v := range c.values {
		keys = append(keys, v)
	}
	slices.Sort(keys)

	var accounted uint64
	var nextP float64
	for _, v := range keys {
		accounted += c.values[v]

		if accounted == c.total {
			values = append(values, v)
			probs = append(probs, 1)
			break
		}

		p := float64(accounted) / float64(c.total)
		if p >= nextP {
			values = append(values, v)
			probs = append(probs, p)
			for p >= nextP {
				nextP += cdfStep
			}
		}
	}
	return
}
