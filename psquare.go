package mainthread

// quantileMarkers estimates a single quantile of a stream, using the P-Square
// algorithm (Jain and Chlamtac, 1985): five markers track the minimum, the
// maximum, the target quantile, and the midpoints between them. Updates and
// reads are O(1), and no observations are retained past the first five.
//
// Not safe for concurrent use.
type quantileMarkers struct {
	height  [5]float64 // marker heights
	pos     [5]int     // actual marker positions
	want    [5]float64 // desired marker positions
	step    [5]float64 // desired position increments
	warmup  [5]float64 // the first observations, unsorted
	p       float64
	samples int
}

func newQuantileMarkers(p float64) quantileMarkers {
	p = min(max(p, 0), 1)
	return quantileMarkers{
		p:    p,
		step: [5]float64{0, p / 2, p, (1 + p) / 2, 1},
	}
}

func (x *quantileMarkers) observe(v float64) {
	x.samples++
	if x.samples <= len(x.warmup) {
		x.warmup[x.samples-1] = v
		if x.samples == len(x.warmup) {
			x.height = x.warmup
			sortFloats(x.height[:])
			x.pos = [5]int{0, 1, 2, 3, 4}
			x.want = [5]float64{0, 2 * x.p, 4 * x.p, 2 + 2*x.p, 4}
		}
		return
	}

	// locate the cell containing v, extending the extremes if necessary
	var k int
	switch {
	case v < x.height[0]:
		x.height[0] = v
	case v >= x.height[4]:
		x.height[4] = v
		k = 3
	default:
		for k = 0; k < 3 && v >= x.height[k+1]; k++ {
		}
	}

	for i := k + 1; i < len(x.pos); i++ {
		x.pos[i]++
	}
	for i := range x.want {
		x.want[i] += x.step[i]
	}

	for i := 1; i < 4; i++ {
		d := x.want[i] - float64(x.pos[i])
		if (d < 1 || x.pos[i+1]-x.pos[i] <= 1) && (d > -1 || x.pos[i-1]-x.pos[i] >= -1) {
			continue
		}
		sign := 1
		if d < 0 {
			sign = -1
		}
		if h := x.parabolic(i, sign); x.height[i-1] < h && h < x.height[i+1] {
			x.height[i] = h
		} else {
			x.height[i] = x.linear(i, sign)
		}
		x.pos[i] += sign
	}
}

func (x *quantileMarkers) parabolic(i, sign int) float64 {
	d := float64(sign)
	n0, n1, n2 := float64(x.pos[i-1]), float64(x.pos[i]), float64(x.pos[i+1])
	q0, q1, q2 := x.height[i-1], x.height[i], x.height[i+1]
	return q1 + d/(n2-n0)*((n1-n0+d)*(q2-q1)/(n2-n1)+(n2-n1-d)*(q1-q0)/(n1-n0))
}

func (x *quantileMarkers) linear(i, sign int) float64 {
	j := i + sign
	return x.height[i] + float64(sign)*(x.height[j]-x.height[i])/float64(x.pos[j]-x.pos[i])
}

// value returns the current estimate, or 0 if nothing was observed.
func (x *quantileMarkers) value() float64 {
	switch {
	case x.samples == 0:
		return 0
	case x.samples < len(x.warmup):
		sorted := x.warmup
		sortFloats(sorted[:x.samples])
		return sorted[int(float64(x.samples-1)*x.p)]
	default:
		return x.height[2]
	}
}

func sortFloats(s []float64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
