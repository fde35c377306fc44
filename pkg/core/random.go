package core

import (
	"math/bits"

	"github.com/chewxy/math32"
)

// SplitMix64 is the seed expander used to initialise Xoshiro256pp state.
// It is not meant to be used as a general purpose generator.
type SplitMix64 struct {
	state uint64
}

// NewSplitMix64 creates a splitmix64 generator from a seed
func NewSplitMix64(seed uint64) *SplitMix64 {
	return &SplitMix64{state: seed}
}

// Next returns the next 64-bit output
func (s *SplitMix64) Next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	r := s.state
	r = (r ^ (r >> 30)) * 0xBF58476D1CE4E5B9
	r = (r ^ (r >> 27)) * 0x94D049BB133111EB
	return r ^ (r >> 31)
}

// Xoshiro256pp is a xoshiro256++ generator. It is not safe for concurrent use;
// each render worker owns its own instance.
type Xoshiro256pp struct {
	s0, s1, s2, s3 uint64
}

// NewXoshiro256pp seeds a generator with four consecutive splitmix64 outputs
func NewXoshiro256pp(seed uint64) *Xoshiro256pp {
	init := NewSplitMix64(seed)
	return &Xoshiro256pp{
		s0: init.Next(),
		s1: init.Next(),
		s2: init.Next(),
		s3: init.Next(),
	}
}

// Next returns the next 64-bit output
func (x *Xoshiro256pp) Next() uint64 {
	result := bits.RotateLeft64(x.s0+x.s3, 23) + x.s0
	t := x.s1 << 17

	x.s2 ^= x.s0
	x.s3 ^= x.s1
	x.s1 ^= x.s2
	x.s0 ^= x.s3

	x.s2 ^= t
	x.s3 = bits.RotateLeft64(x.s3, 45)

	return result
}

// Float32 returns a float in [0, 1) computed as Next()/2^64 in double precision
func (x *Xoshiro256pp) Float32() float32 {
	return UnitFloat32(x.Next())
}

// UnitFloat32 maps a 64-bit random word to [0, 1).
// Values that round up to 1 in single precision are pulled back below it.
func UnitFloat32(v uint64) float32 {
	f := float32(float64(v) / (1 << 64))
	if f >= 1 {
		return math32.Nextafter(1, 0)
	}
	return f
}
