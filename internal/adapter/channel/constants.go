package channel

const (
	// ResponseStartMarker marks the beginning of a model response in structured output mode.
	ResponseStartMarker = "<<MOLTIS_RESPONSE>>"
	// ResponseEndMarker marks the end of a model response in structured output mode.
	ResponseEndMarker = "<<END_RESPONSE>>"
	// EnvCLIResponseMarkers is the environment variable that enables response markers.
	EnvCLIResponseMarkers = "MOLTISAI_CLI_RESPONSE_MARKERS"
)
