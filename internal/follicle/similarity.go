package follicle

// Similarity scores two fingerprints in [0,1]. Each attribute contributes
// 1 - |i-j|/(n-1) times its weight. Identical fingerprints score exactly 1.
// Fingerprints that do not decode score 1 when byte-equal and 0 otherwise.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	da, errA := Decode(a)
	db, errB := Decode(b)
	if errA != nil || errB != nil {
		return 0
	}
	if da == db {
		return 1
	}

	var sim float64
	for k, attr := range attributes {
		diff := da[k] - db[k]
		if diff < 0 {
			diff = -diff
		}
		sim += attr.weight * (1 - float64(diff)/float64(len(attr.codes)-1))
	}

	switch {
	case sim < 0:
		return 0
	case sim >= 1:
		// only identical attribute tuples may reach 1
		return 0.999999
	}
	return sim
}

// Band classifies a similarity value.
type Band int

const (
	BandBelow Band = iota
	BandMedium
	BandHigh
	BandVeryHigh
	BandExact
)

const (
	VeryHighThreshold = 0.85
	HighThreshold     = 0.70
	MediumThreshold   = 0.50
)

func BandOf(sim float64) Band {
	switch {
	case sim >= 1:
		return BandExact
	case sim >= VeryHighThreshold:
		return BandVeryHigh
	case sim >= HighThreshold:
		return BandHigh
	case sim >= MediumThreshold:
		return BandMedium
	}
	return BandBelow
}

func (b Band) String() string {
	switch b {
	case BandExact:
		return "exact"
	case BandVeryHigh:
		return "very_high"
	case BandHigh:
		return "high"
	case BandMedium:
		return "medium"
	}
	return "below"
}

// Phrase describes the people in a band, as used in match reasons.
func (b Band) Phrase() string {
	switch b {
	case BandExact:
		return "identical hair"
	case BandVeryHigh:
		return "very similar hair"
	case BandHigh:
		return "similar hair"
	case BandMedium:
		return "somewhat similar hair"
	}
	return "different hair"
}
