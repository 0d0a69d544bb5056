// Package follicle encodes hair profiles as compact fingerprints and compares
// them.
package follicle

import (
	"fmt"
	"strings"

	"follicle-match/internal/common/errors"
	"follicle-match/internal/models"
)

// attribute is one ordinal dimension of a hair profile. Codes are listed in
// ordinal order; values map profile inputs to codes.
type attribute struct {
	name   string
	weight float64
	codes  []string
	values map[string]string
}

func (a attribute) index(code string) int {
	for i, c := range a.codes {
		if c == code {
			return i
		}
	}
	return -1
}

// Fingerprint segment order: TYPE-POR-DEN-THK-DMG.
var attributes = [5]attribute{
	{
		name:   "hairType",
		weight: 0.30,
		codes:  []string{"1", "2A", "2B", "2C", "3A", "3B", "3C", "4A", "4B", "4C"},
	},
	{
		name:   "porosity",
		weight: 0.25,
		codes:  []string{"LP", "NP", "HP"},
		values: map[string]string{"low": "LP", "normal": "NP", "high": "HP"},
	},
	{
		name:   "density",
		weight: 0.15,
		codes:  []string{"LD", "MD", "HD"},
		values: map[string]string{"low": "LD", "medium": "MD", "high": "HD"},
	},
	{
		name:   "thickness",
		weight: 0.15,
		codes:  []string{"FT", "MT", "CT"},
		values: map[string]string{"fine": "FT", "medium": "MT", "coarse": "CT"},
	},
	{
		name:   "damage",
		weight: 0.15,
		codes:  []string{"D0", "D1", "D2", "D3"},
		values: map[string]string{"none": "D0", "mild": "D1", "moderate": "D2", "severe": "D3"},
	},
}

// Fingerprint encodes a profile, e.g. 3A-HP-MD-CT-D2.
func Fingerprint(p models.HairProfile) (string, error) {
	inputs := [5]string{
		strings.ToUpper(strings.TrimSpace(p.HairType)),
		p.Porosity, p.Density, p.Thickness, p.Damage,
	}

	segments := make([]string, len(attributes))
	for i, attr := range attributes {
		in := inputs[i]
		code := in
		if attr.values != nil {
			code = attr.values[strings.ToLower(strings.TrimSpace(in))]
		}
		if attr.index(code) < 0 {
			return "", errors.NewValidationError(fmt.Sprintf("unknown %s %q", attr.name, in))
		}
		segments[i] = code
	}
	return strings.Join(segments, "-"), nil
}

// Decode returns the ordinal position of each attribute.
func Decode(fp string) ([5]int, error) {
	var out [5]int
	parts := strings.Split(fp, "-")
	if len(parts) != len(attributes) {
		return out, fmt.Errorf("fingerprint %q: want %d segments, got %d", fp, len(attributes), len(parts))
	}
	for i, attr := range attributes {
		idx := attr.index(parts[i])
		if idx < 0 {
			return out, fmt.Errorf("fingerprint %q: unknown %s code %q", fp, attr.name, parts[i])
		}
		out[i] = idx
	}
	return out, nil
}

// HairType returns the hair type segment of a profile or fingerprint value,
// normalized to upper case.
func HairType(v string) string {
	if i := strings.IndexByte(v, '-'); i >= 0 {
		v = v[:i]
	}
	return strings.ToUpper(strings.TrimSpace(v))
}

// Family returns the curl family of a hair type: "3A" -> "3".
func Family(hairType string) string {
	hairType = HairType(hairType)
	if hairType == "" {
		return ""
	}
	return hairType[:1]
}
