package prover

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zkcredit/internal/model"
)

var fieldPattern = regexp.MustCompile(`Field\((\d+)\)`)

// ParseOutputs extracts the six boolean outputs from executor text. Each
// output is printed as Field(0) or Field(1), in criterion order.
//
// In strict mode anything other than exactly six boolean markers is an
// error. In lenient mode missing trailing outputs become false, extras are
// ignored, and padded reports how many were filled.
func ParseOutputs(text string, lenient bool) (out [model.NumCriteria]bool, padded int, err error) {
	matches := fieldPattern.FindAllStringSubmatch(text, -1)

	if !lenient && len(matches) != model.NumCriteria {
		return out, 0, eris.Errorf("expected %d outputs, found %d", model.NumCriteria, len(matches))
	}
	if len(matches) > model.NumCriteria {
		matches = matches[:model.NumCriteria]
	}

	for i, m := range matches {
		switch strings.TrimLeft(m[1], "0") {
		case "":
			out[i] = false
		case "1":
			out[i] = true
		default:
			return out, 0, eris.Errorf("output %d is not boolean: %s", i, m[0])
		}
	}
	return out, model.NumCriteria - len(matches), nil
}

// FormatOutputs renders outputs the way nargo prints a circuit return value.
func FormatOutputs(out [model.NumCriteria]bool) string {
	parts := make([]string, len(out))
	for i, b := range out {
		if b {
			parts[i] = "Field(1)"
		} else {
			parts[i] = "Field(0)"
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
