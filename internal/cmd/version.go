package cmd

// Overridden at release time via -ldflags.
var (
	version = "dev"
	commit  = ""
)

func VersionString() string {
	if commit == "" {
		return version
	}
	return version + " (" + commit + ")"
}
