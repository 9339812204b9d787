package outfmt

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// ApplyJQ filters a command's JSON output through a jq expression. Multiple
// jq results come back newline-separated, exactly as the jq binary prints
// them; no envelope is re-added.
func ApplyJQ(doc []byte, expression string) ([]byte, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", expression, err)
	}

	var input any
	if err := json.Unmarshal(doc, &input); err != nil {
		return nil, fmt.Errorf("parse output for jq: %w", err)
	}

	var out []byte
	iter := query.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if jqErr, isErr := v.(error); isErr {
			return nil, fmt.Errorf("jq: %w", jqErr)
		}

		line, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode jq result: %w", err)
		}
		if len(out) > 0 {
			out = append(out, '\n')
		}
		out = append(out, line...)
	}

	return out, nil
}
