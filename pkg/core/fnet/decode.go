package fnet

import (
	"encoding/json"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// response is the endpoint's row envelope. Error pages come back as HTML with
// status 200, so "does this decode" is the real success signal.
type response struct {
	Data         []map[string]interface{} `json:"data"`
	RecordsTotal int                      `json:"recordsTotal"`
}

// decodeResponse parses a search response body in three layers: strict JSON,
// then automatic repair of near-JSON (stray commas, unquoted keys), then a
// lenient hjson read. Anything that survives none of them is a format error.
func decodeResponse(body []byte) (*response, error) {
	var resp response
	if err := json.Unmarshal(body, &resp); err == nil {
		return &resp, nil
	}

	if repaired, err := jsonrepair.RepairJSON(string(body)); err == nil {
		if err := json.Unmarshal([]byte(repaired), &resp); err == nil {
			return &resp, nil
		}
	}

	var loose map[string]interface{}
	if err := hjson.Unmarshal(body, &loose); err == nil {
		if rows, ok := loose["data"].([]interface{}); ok {
			for _, r := range rows {
				if m, ok := r.(map[string]interface{}); ok {
					resp.Data = append(resp.Data, m)
				}
			}
			if n, ok := loose["recordsTotal"].(float64); ok {
				resp.RecordsTotal = int(n)
			}
			return &resp, nil
		}
	}

	return nil, fmt.Errorf("fnet: response is not decodable (%d bytes)", len(body))
}
