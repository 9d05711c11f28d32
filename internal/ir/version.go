package ir

// Version constants for the directive model and engine.
const (
	// TraceVersion is the persisted trace schema version.
	TraceVersion = "1"

	// EngineVersion is the cadence engine version.
	EngineVersion = "0.1.0"
)
