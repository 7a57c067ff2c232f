package centroid

import "math"

// widthVarianceScale is the 0.180337 constant from the fit model
// f(i,j) = p4*exp(-0.5*((i-p0)^2/(p2^2*0.180337) + (j-p1)^2/(p3^2*0.180337))) + p5,
// carried over exactly from the source's gaussfunc2d.
const widthVarianceScale = 0.180337

// Mode selects which parameters the Gaussian refine stage holds fixed.
type Mode int

const (
	// ModeCentroid fixes the widths (p2, p3) and background (p5),
	// solving only for position and amplitude. Used on every guiding
	// frame after the first.
	ModeCentroid Mode = iota
	// ModeFWHM fixes only the background (p5), leaving the widths free.
	// Used once per guide session start to measure the star's FWHM.
	ModeFWHM
)

// fitParams indexes the 6-parameter model.
type fitParams [6]float64

const (
	pX = iota
	pY
	pSX
	pSY
	pAmp
	pBg
)

// Result is the outcome of a Refine call.
type Result struct {
	X, Y         float64
	FWHMX, FWHMY float64
	// Fallback is true when the fit diverged (negative summed
	// coordinates) and the caller fell back to the seed.
	Fallback bool
}

// Refine extracts a sub-subraster of half-width 8 around (seedX, seedY),
// clamped to [0, Size], and fits the 2-D Gaussian model via
// Levenberg-Marquardt, holding fixed whichever parameters mode specifies.
// The returned coordinates already include the +0.5 source-extractor
// origin convention and are in the full subraster's coordinate frame.
func Refine(sub *Subraster, seedX, seedY float64, mode Mode) Result {
	const halfWidth = 8
	ox := clampInt(int(seedX)-halfWidth, 0, Size)
	oy := clampInt(int(seedY)-halfWidth, 0, Size)
	x1 := clampInt(ox+2*halfWidth, 0, Size)
	y1 := clampInt(oy+2*halfWidth, 0, Size)
	if x1 <= ox {
		ox, x1 = 0, Size
	}
	if y1 <= oy {
		oy, y1 = 0, Size
	}

	med := median(sub)
	inputs := make([][2]float64, 0, (x1-ox)*(y1-oy))
	outputs := make([]float64, 0, (x1-ox)*(y1-oy))
	for i := oy; i < y1; i++ {
		for j := ox; j < x1; j++ {
			inputs = append(inputs, [2]float64{float64(j - ox), float64(i - oy)})
			outputs = append(outputs, float64(sub[i][j]))
		}
	}

	x0 := fitParams{seedX - float64(ox), seedY - float64(oy), 2.5, 2.5, 12800, med}
	var fixed [6]bool
	fixed[pBg] = true
	if mode == ModeCentroid {
		fixed[pSX] = true
		fixed[pSY] = true
	}

	p := levenbergMarquardt(inputs, outputs, x0, fixed)

	x := float64(ox) + p[pX] + 0.5
	y := float64(oy) + p[pY] + 0.5
	if p[pX]+p[pY] < 0 {
		return Result{X: seedX + 0.5, Y: seedY + 0.5, Fallback: true}
	}
	return Result{X: x, Y: y, FWHMX: p[pSX], FWHMY: p[pSY]}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// gaussianValue evaluates the fixed-rotation 2-D Gaussian model at (i, j).
func gaussianValue(p fitParams, i, j float64) float64 {
	dx := i - p[pX]
	dy := j - p[pY]
	sx := p[pSX]
	sy := p[pSY]
	return p[pAmp]*math.Exp(-0.5*(dx*dx/(sx*sx*widthVarianceScale)+dy*dy/(sy*sy*widthVarianceScale))) + p[pBg]
}

// levenbergMarquardt minimizes unweighted residuals of gaussianValue
// against (inputs, outputs), holding fixed[k]==true parameters at their
// x0 value throughout. Grounded on karolbe-StarMetricsGo's
// levenbergMarquardt, adapted to a fixed-rotation model and a
// held-fixed-parameter mask instead of per-parameter bounds.
func levenbergMarquardt(inputs [][2]float64, outputs []float64, x0 fitParams, fixed [6]bool) fitParams {
	const maxIter = 100
	const tolerance = 1e-8

	p := x0
	lambda := 1e-3
	cost := sumSquaredResiduals(p, inputs, outputs)

	for iter := 0; iter < maxIter; iter++ {
		jac := jacobian(p, inputs, fixed)
		res := residuals(p, inputs, outputs)

		free := freeIndices(fixed)
		n := len(free)
		jtj := make([][]float64, n)
		jtf := make([]float64, n)
		for a := 0; a < n; a++ {
			jtj[a] = make([]float64, n)
			for b := 0; b < n; b++ {
				var s float64
				for k := range res {
					s += jac[k][a] * jac[k][b]
				}
				jtj[a][b] = s
			}
			var s float64
			for k := range res {
				s += jac[k][a] * res[k]
			}
			jtf[a] = s
		}

		improved := false
		for tries := 0; tries < 10; tries++ {
			damped := make([][]float64, n)
			for a := 0; a < n; a++ {
				damped[a] = append([]float64(nil), jtj[a]...)
				damped[a][a] *= 1 + lambda
			}
			delta, ok := solveLinear(damped, jtf)
			if !ok {
				lambda *= 10
				continue
			}
			trial := p
			for a, idx := range free {
				trial[idx] -= delta[a]
			}
			newCost := sumSquaredResiduals(trial, inputs, outputs)
			if newCost < cost {
				if cost-newCost < tolerance*cost {
					p = trial
					return p
				}
				p = trial
				cost = newCost
				lambda = math.Max(lambda/10, 1e-12)
				improved = true
				break
			}
			lambda *= 10
		}
		if !improved {
			break
		}
	}
	return p
}

func freeIndices(fixed [6]bool) []int {
	var free []int
	for i, f := range fixed {
		if !f {
			free = append(free, i)
		}
	}
	return free
}

func residuals(p fitParams, inputs [][2]float64, outputs []float64) []float64 {
	res := make([]float64, len(inputs))
	for k, in := range inputs {
		res[k] = outputs[k] - gaussianValue(p, in[0], in[1])
	}
	return res
}

func sumSquaredResiduals(p fitParams, inputs [][2]float64, outputs []float64) float64 {
	var s float64
	for _, r := range residuals(p, inputs, outputs) {
		s += r * r
	}
	return s
}

// jacobian computes d(residual)/d(free param) via central differences,
// one column per free parameter.
func jacobian(p fitParams, inputs [][2]float64, fixed [6]bool) [][]float64 {
	free := freeIndices(fixed)
	jac := make([][]float64, len(inputs))
	for k := range jac {
		jac[k] = make([]float64, len(free))
	}
	const h = 1e-4
	for a, idx := range free {
		step := h * math.Max(1, math.Abs(p[idx]))
		pPlus := p
		pPlus[idx] += step
		pMinus := p
		pMinus[idx] -= step
		for k, in := range inputs {
			vp := gaussianValue(pPlus, in[0], in[1])
			vm := gaussianValue(pMinus, in[0], in[1])
			// residual = output - value, so d(residual)/dp = -dvalue/dp
			jac[k][a] = -(vp - vm) / (2 * step)
		}
	}
	return jac
}

// solveLinear solves A x = b via Gaussian elimination with partial
// pivoting; ok is false if A is singular to within tolerance.
func solveLinear(a [][]float64, b []float64) ([]float64, bool) {
	n := len(b)
	m := make([][]float64, n)
	for i := range m {
		m[i] = append([]float64(nil), a[i]...)
		m[i] = append(m[i], b[i])
	}
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		m[col], m[pivot] = m[pivot], m[col]
		if math.Abs(m[col][col]) < 1e-18 {
			return nil, false
		}
		for r := col + 1; r < n; r++ {
			f := m[r][col] / m[col][col]
			for c := col; c <= n; c++ {
				m[r][c] -= f * m[col][c]
			}
		}
	}
	x := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		s := m[r][n]
		for c := r + 1; c < n; c++ {
			s -= m[r][c] * x[c]
		}
		x[r] = s / m[r][r]
	}
	return x, true
}
