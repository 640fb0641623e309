package ir

// Version constants for the fact encoding and the engine.
const (
	// FactsVersion is the canonical fact encoding version. It is part of
	// every digest domain, so bumping it changes every digest.
	FactsVersion = "1"

	// EngineVersion is the relcheck engine version.
	EngineVersion = "0.1.0"
)
