package cli

const (
	FlagConfig  = "config"
	FlagVerbose = "verbose"
	FlagFormat  = "format"

	FormatText = "text"
	FormatJSON = "json"
)
