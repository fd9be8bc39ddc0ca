// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package api

import "encoding/json"

// decodeEnvelope decodes a JSON response body into out, unwrapping a
// single-key {"data": ...} envelope when present. Bare payloads are
// canonical; some endpoints wrap, and both shapes must normalize to the
// same result. The unwrap decision lives here and nowhere else.
func decodeEnvelope(body []byte, out any) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err == nil {
		if inner, ok := probe["data"]; ok && len(probe) == 1 {
			return json.Unmarshal(inner, out)
		}
	}
	return json.Unmarshal(body, out)
}
