package fsutil

// File and directory permission constants used for everything wikidumps
// writes to disk.
const (
	// Default file modes.
	FileModeDefault = 0o644 // -rw-r--r--: downloaded dumps and config files
	FileModeSecure  = 0o640 // -rw-r-----: log files

	// Directory modes.
	DirModeDefault = 0o755 // drwxr-xr-x: dump directories
	DirModeSecure  = 0o750 // drwxr-x---: config directory
)
