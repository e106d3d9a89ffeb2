// Package phantom builds deterministic synthetic volumes that stand in for
// the knee CT scan in tests and demos.
package phantom

import (
	"math"

	"kneeviz/internal/models"
)

// Tissue densities written by Knee. Skin contours between Air and Tissue,
// bone between Tissue and Bone.
const (
	Air    = 0.0
	Tissue = 60.0
	Bone   = 110.0
)

// ramp is the width, in voxels, of the transition between two tissues
const ramp = 1.5

// Knee returns an nx*ny*nz volume shaped like a leg around a knee joint:
// a capped soft tissue cylinder along z holding a femur and a tibia
// separated by a joint gap, with a patella in front of the gap.
func Knee(nx, ny, nz int) *models.Volume {
	vol := models.NewVolume(nx, ny, nz)

	cx, cy := float64(nx-1)/2, float64(ny-1)/2
	rMin := math.Min(float64(nx), float64(ny))
	skinRadius := 0.38 * rMin
	boneRadius := 0.15 * rMin
	patellaRadius := 0.09 * rMin

	zLo, zHi := 2.0, float64(nz-3)
	joint := float64(nz-1) / 2
	gap := math.Max(1.5, 0.04*float64(nz))
	patella := [3]float64{cx, cy - skinRadius + patellaRadius + 1.5, joint}

	for z := 0; z < nz; z++ {
		fz := float64(z)
		for y := 0; y < ny; y++ {
			fy := float64(y)
			for x := 0; x < nx; x++ {
				fx := float64(x)
				r := math.Hypot(fx-cx, fy-cy)

				// signed distances, positive inside
				limb := math.Min(skinRadius-r, math.Min(fz-zLo, zHi-fz))
				femur := math.Min(boneRadius-r, math.Min(fz-(joint+gap/2), zHi-1-fz))
				tibia := math.Min(boneRadius-r, math.Min((joint-gap/2)-fz, fz-(zLo+1)))
				dp := math.Sqrt(sq(fx-patella[0]) + sq(fy-patella[1]) + sq(fz-patella[2]))
				kneecap := patellaRadius - dp

				bone := math.Max(femur, math.Max(tibia, kneecap))
				value := math.Max(Tissue*step(limb), Bone*step(bone))
				vol.Set(x, y, z, Air+value)
			}
		}
	}
	return vol
}

// Sphere returns an n^3 volume holding a ball of the given radius centred in
// the grid, with value 1 inside and 0 outside and a linear transition.
func Sphere(n int, radius float64) *models.Volume {
	vol := models.NewVolume(n, n, n)
	c := float64(n-1) / 2
	for z := 0; z < n; z++ {
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				d := math.Sqrt(sq(float64(x)-c) + sq(float64(y)-c) + sq(float64(z)-c))
				vol.Set(x, y, z, step(radius-d))
			}
		}
	}
	return vol
}

// step maps a signed distance to [0, 1] with a linear ramp around zero
func step(d float64) float64 {
	return math.Max(0, math.Min(1, d/ramp+0.5))
}

func sq(v float64) float64 { return v * v }
