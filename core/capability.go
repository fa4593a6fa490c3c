package core

// Capability declares an ability an agent advertises to its peers. It is
// purely informational metadata surfaced by status queries; registering a
// capability has no behavioral effect.
type Capability struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}
