package prover

import (
	"bytes"

	"github.com/pelletier/go-toml/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/zkcredit/internal/model"
)

// InputFile is the name of the circuit input file nargo reads.
const InputFile = "Prover.toml"

// Encode renders the inputs as a Prover.toml document, one key per field in
// canonical order.
func Encode(in model.MetricInputs) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(in); err != nil {
		return nil, eris.Wrap(err, "prover: encode inputs")
	}
	return buf.Bytes(), nil
}

// Decode parses a Prover.toml document. Unknown keys are rejected.
func Decode(data []byte) (model.MetricInputs, error) {
	var in model.MetricInputs
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return model.MetricInputs{}, eris.Wrap(err, "prover: decode inputs")
	}
	return in, nil
}
