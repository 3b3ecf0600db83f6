package ir

// Version constants for the rule model and engine.
const (
	// ModelVersion is the rule-definition model version.
	ModelVersion = "1"

	// EngineVersion is the rete engine version.
	EngineVersion = "0.1.0"
)
