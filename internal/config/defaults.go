package config

// Build-time injected OAuth client defaults via -ldflags.
// Example:
//
//	go build -ldflags "\
//	  -X 'github.com/polaco8525/postit/internal/config.DefaultClientID=...' \
//	  -X 'github.com/polaco8525/postit/internal/config.DefaultClientSecret=...'"
var (
	DefaultClientID     string
	DefaultClientSecret string
)
