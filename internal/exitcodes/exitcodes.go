package exitcodes

// Exit codes for tidyfs.
// These codes form the operational contract with CI scripts and test harnesses
const (
	Success             = 0 // Successful execution
	InvalidConfig       = 2 // Configuration file invalid or missing
	SafetyViolation     = 3 // Safety validator refused the target directory
	RuntimeError        = 4 // Runtime error during execution
	PartialCleanup      = 5 // Tree walked but some entries could not be opened, stat'ed or removed
	UnsupportedEncoding = 6 // At least one processed file used an unsupported encoding
)
