package trace

// Downsample decimates src to at most maxPoints values for display.
// Destination-based: dst is reused when it has enough capacity, otherwise a
// new slice is allocated. If len(src) <= maxPoints every value is copied.
// A non-positive maxPoints disables decimation.
func Downsample[T any](dst, src []T, maxPoints int) []T {
	if maxPoints <= 0 || len(src) <= maxPoints {
		if cap(dst) >= len(src) {
			dst = dst[:len(src)]
			copy(dst, src)
			return dst
		}
		out := make([]T, len(src))
		copy(out, src)
		return out
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]T, 0, maxPoints)
	}

	step := float64(len(src)) / float64(maxPoints)
	for i := range maxPoints {
		idx := int(float64(i) * step)
		if idx < len(src) {
			dst = append(dst, src[idx])
		}
	}
	return dst
}
