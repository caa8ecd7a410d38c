package domain

// Target is the network address under assessment. It is immutable once a
// scan has started; probes receive it by value.
type Target struct {
	Address    string `json:"address" yaml:"address"`
	DeviceHint string `json:"device_hint,omitempty" yaml:"device_hint,omitempty"`
}

func (t Target) String() string { return t.Address }

// Key returns a unique identifier for rate counting and deduplication.
func (t Target) Key() string { return t.Address }
