package ir

// Version constants for the interchange format and engine.
const (
	// IRVersion is the program interchange schema version.
	IRVersion = "1"

	// EngineVersion is the engine version recorded with solve runs.
	EngineVersion = "0.1.0"
)
