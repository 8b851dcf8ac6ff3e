package store

import "encoding/json"

func jsonUnmarshal(raw json.RawMessage, out any) error {
	return json.Unmarshal(raw, out)
}
