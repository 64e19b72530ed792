package troll

import "math/rand"

// Blob sizes named in the spec's BLOB-size distribution.
const (
	SmallBlobSize  = 1 << 10  // 1 KiB, the only retained size
	MediumBlobSize = 1 << 20  // 1 MiB
	LargeBlobSize  = 16 << 20 // 16 MiB
	HugeBlobSize   = 192 << 20 // 192 MiB
)

// SampleBlobSize picks a BLOB size and whether it should be published
// retained, per the spec's distribution: half the time a small,
// retained 1 KiB filler (so the broker doesn't permanently accumulate
// megabyte-scale retained garbage), the other half a large,
// non-retained BLOB split 99.0% / 0.9% / 0.1% across 1 MiB / 16 MiB /
// 192 MiB. The small/large split itself isn't specified by name in the
// source material; an even split was chosen as the simplest reading
// that keeps both cases exercised (see DESIGN.md).
func SampleBlobSize(rnd *rand.Rand) (size int, retain bool) {
	if rnd.Float64() < 0.5 {
		return SmallBlobSize, true
	}
	roll := rnd.Float64()
	switch {
	case roll < 0.990:
		return MediumBlobSize, false
	case roll < 0.999:
		return LargeBlobSize, false
	default:
		return HugeBlobSize, false
	}
}

// RandomBlob returns size bytes drawn from rnd.
func RandomBlob(rnd *rand.Rand, size int) []byte {
	blob := make([]byte, size)
	rnd.Read(blob)
	return blob
}
