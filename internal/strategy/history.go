package strategy

import (
	"sort"

	"github.com/shopspring/decimal"
)

// History is a bounded rolling window of prices. Push evicts the oldest
// sample once the window is full.
type History struct {
	size   int
	values []decimal.Decimal
}

// NewHistory creates a window holding at most size samples.
func NewHistory(size int) *History {
	if size <= 0 {
		size = 1
	}
	return &History{size: size, values: make([]decimal.Decimal, 0, size)}
}

// Push appends a sample, evicting the oldest when full.
func (h *History) Push(value decimal.Decimal) {
	if len(h.values) == h.size {
		copy(h.values, h.values[1:])
		h.values[len(h.values)-1] = value
		return
	}
	h.values = append(h.values, value)
}

// Full reports whether the window holds size samples.
func (h *History) Full() bool {
	return len(h.values) == h.size
}

// Len returns the current sample count.
func (h *History) Len() int {
	return len(h.values)
}

// Median returns the middle sample, averaging the two middle values for
// even window sizes. Zero when the window is empty.
func (h *History) Median() decimal.Decimal {
	n := len(h.values)
	if n == 0 {
		return decimal.Zero
	}
	sorted := make([]decimal.Decimal, n)
	copy(sorted, h.values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1].Add(sorted[n/2]).Div(decimal.NewFromInt(2))
}

// Mean returns the arithmetic mean of the window. Zero when empty.
func (h *History) Mean() decimal.Decimal {
	n := len(h.values)
	if n == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range h.values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(n)))
}
