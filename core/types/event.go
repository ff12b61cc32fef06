package types

// Event is a typed record of a state transition. Attribute values are strings
// so receipts and logs can carry them without further encoding.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
