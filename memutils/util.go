package memutils

import (
	"math"
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

// Number is any integer type that alignment helpers can operate on
type Number interface {
	constraints.Integer
}

// maxAlignedScalars lists the scalar types whose alignment requirements are considered when
// computing MaxAlignment
type maxAlignedScalars struct {
	i64  int64
	f64  float64
	c128 complex128
	ptr  uintptr
	p    unsafe.Pointer
}

// MaxAlignment returns the alignment requirement of the most strictly aligned scalar type
// on the target platform.
func MaxAlignment() uint {
	var s maxAlignedScalars
	alignment := unsafe.Alignof(s.i64)
	for _, a := range []uintptr{
		unsafe.Alignof(s.f64),
		unsafe.Alignof(s.c128),
		unsafe.Alignof(s.ptr),
		unsafe.Alignof(s.p),
	} {
		if a > alignment {
			alignment = a
		}
	}
	return uint(alignment)
}

func CheckPow2[T Number](number T, name string) error {
	if number <= 0 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

func AlignUp[T Number](value T, alignment uint) T {
	return (value + T(alignment) - 1) &^ (T(alignment) - 1)
}

func AlignDown[T Number](value T, alignment uint) T {
	return value &^ (T(alignment) - 1)
}

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow int.
func AddOverflowSafe(a, b int) (int, bool) {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return 0, false
	case b < 0 && a < math.MinInt-b:
		return 0, false
	default:
		return a + b, true
	}
}
