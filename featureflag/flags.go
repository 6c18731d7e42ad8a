package featureflag

type Flag string

const (
	FlagDisableMerge         Flag = "DISABLE_MERGE"
	FlagDisableTickStream    Flag = "DISABLE_TICK_STREAM"
	FlagDisableDebugEndpoint Flag = "DISABLE_DEBUG_ENDPOINT"
)
