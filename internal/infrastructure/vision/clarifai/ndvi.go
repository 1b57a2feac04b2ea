package clarifai

// drynessFromNDVI converts a vegetation index into a fire-dryness score.
// NDVI runs -1..1: below 0 is water or bare ground, 0..0.3 sparse or
// stressed vegetation, 0.3..0.6 moderate, above 0.6 dense healthy growth.
// The raw inverse is then scaled by a health curve so dense canopy maps to
// very low dryness while sparse growth is pushed toward the top of the
// range.
func drynessFromNDVI(ndvi float64) float64 {
	normalized := (ndvi + 1) / 2
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	dryness := 1 - normalized
	switch {
	case normalized > 0.8:
		dryness *= 0.3
	case normalized > 0.6:
		dryness *= 0.5
	case normalized > 0.3:
		dryness *= 0.8
	default:
		dryness *= 1.2
		if dryness > 1 {
			dryness = 1
		}
	}

	if dryness < 0 {
		return 0
	}
	if dryness > 1 {
		return 1
	}
	return dryness
}
