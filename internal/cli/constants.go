package cli

// TabWidth is the width of tabs in formatted output.
const TabWidth = 2

// Process exit codes.
const (
	ExitOK               = 0
	ExitError            = 1
	ExitUsage            = 2
	ExitIO               = 3
	ExitTemplate         = 4
	ExitFilesSection     = 5
	ExitLanguagesSection = 6
	ExitConfigParse      = 7
	ExitMissingDirectory = 8
)

// Number of arguments expected by the set command.
const setCommandArgs = 2
