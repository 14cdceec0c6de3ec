package experiment

import (
	"fmt"
	"math"
)

// ImportanceFields is the ordered list of configuration fields that
// participate in identity computation. Order matters: the accumulator
// arithmetic is not commutative, so two identities are only comparable
// when computed over the same list in the same order.
var ImportanceFields = []string{
	"use_random_in_feat",
	"nfilt",
	"nfeat",
	"nfft",
	"frame_rate",
	"sample_length",
	"audio_length",
	"audio_startpoint",
	"validation_data_mult",
	"cat",
	"max_class_files",
}

// Identity folds the importance fields of a configuration into a
// single integer. The accumulator starts at 1 and per field either
// multiplies by the field name length (zero or false values), divides
// by it (one or true values), or adds ten times the value, then is
// rounded and incremented. A field the configuration does not know
// takes the multiply path without the round step, so schema drift
// degrades into a mismatch instead of a failure.
//
// This is a cheap pseudo-hash, not a real one: distinct configurations
// can collide when name-length arithmetic happens to converge. The
// store only ever uses it to compare two identities computed over the
// same field list, which keeps the scheme stable in practice.
func Identity(c *Config, fields []string) int64 {
	id := 1.0
	for _, name := range fields {
		v, err := c.fieldValue(name)
		if err != nil {
			id = id * float64(len(name))
			continue
		}
		switch v {
		case 0:
			id = id * float64(len(name))
		case 1:
			id = id / float64(len(name))
		default:
			id = id + v*10
		}
		id = math.Round(id) + 1
	}
	return int64(id)
}

// fieldValue resolves an importance field name to a numeric value.
// Booleans map to 0 and 1 so they share the sentinel branches with
// unset numeric fields.
func (c *Config) fieldValue(name string) (float64, error) {
	switch name {
	case "use_random_in_feat":
		return boolValue(c.UseRandomFeatures), nil
	case "nfilt":
		return float64(c.NFilt), nil
	case "nfeat":
		return float64(c.NFeat), nil
	case "nfft":
		return float64(c.NFFT), nil
	case "frame_rate":
		return float64(c.FrameRate), nil
	case "sample_length":
		return c.SampleLength, nil
	case "audio_length":
		return c.AudioLength, nil
	case "audio_startpoint":
		return c.AudioStartpoint, nil
	case "validation_data_mult":
		return c.ValidationDataMult, nil
	case "cat":
		return float64(c.Categories), nil
	case "max_class_files":
		return float64(c.MaxClassFiles), nil
	default:
		return 0, fmt.Errorf("unknown importance field: %s", name)
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
