package ir

// Version constants for the replay log format and the binding layer.
const (
	// LogVersion is the replay log schema version.
	LogVersion = "1"

	// BridgeVersion is the tagbridge version.
	BridgeVersion = "0.1.0"
)
