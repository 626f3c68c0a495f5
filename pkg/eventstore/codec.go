package eventstore

import "encoding/json"

func encodePerCounterparty(m map[string]float64) []byte {
	if m == nil {
		m = map[string]float64{}
	}
	b, _ := json.Marshal(m)
	return b
}

func decodePerCounterparty(b []byte) map[string]float64 {
	m := map[string]float64{}
	if len(b) == 0 {
		return m
	}
	_ = json.Unmarshal(b, &m)
	return m
}
