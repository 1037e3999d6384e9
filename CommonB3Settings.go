package bounce3

import "math"

const B3DEBUG = false

func B3Assert(a bool) {
	if !a {
		panic("B3Assert")
	}
}

const B3_maxFloat = math.MaxFloat64
const B3_epsilon = math.SmallestNonzeroFloat64
const B3_pi = math.Pi

/// @file
/// Global tuning constants based on meters-kilograms-seconds (MKS) units.
///

// Collision

/// This is used to fatten AABBs in the dynamic tree. This allows proxies
/// to move by a small amount without triggering a tree adjustment.
/// This is in meters.
const B3_aabbExtension = 0.1

/// This is used to fatten AABBs in the dynamic tree. This is used to predict
/// the future position based on the current displacement.
/// This is a dimensionless multiplier.
const B3_aabbMultiplier = 2.0
