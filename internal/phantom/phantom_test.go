package phantom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnee(t *testing.T) {
	n := 32
	vol := Knee(n, n, n)
	require.Len(t, vol.Data, n*n*n)

	lo, hi := vol.ScalarRange()
	assert.Equal(t, Air, lo)
	assert.Equal(t, Bone, hi)

	// corners are air, the shaft axis is bone, just inside the skin is tissue
	assert.Equal(t, Air, vol.At(0, 0, 0))
	assert.Equal(t, Bone, vol.At(n/2, n/2, n/4))
	assert.Equal(t, Tissue, vol.At(n/2+int(0.28*float64(n)), n/2, n/4))

	// the joint gap separates femur and tibia on the axis
	assert.Less(t, vol.At(n/2, n/2, (n-1)/2), 72.0)

	// bone and skin thresholds used by the renderer both cut the volume
	assert.Greater(t, vol.Fraction(72), 0.0)
	assert.Greater(t, vol.Fraction(50), vol.Fraction(72))
	assert.Less(t, vol.Fraction(50), 1.0)
}

func TestKneeDeterministic(t *testing.T) {
	assert.Equal(t, Knee(16, 16, 16).Data, Knee(16, 16, 16).Data)
}

func TestSphere(t *testing.T) {
	vol := Sphere(21, 6)
	assert.Equal(t, 1.0, vol.At(10, 10, 10))
	assert.Equal(t, 0.0, vol.At(0, 0, 0))
	// exactly on the radius the ramp is halfway
	assert.InDelta(t, 0.5, vol.At(16, 10, 10), 1e-12)
}
