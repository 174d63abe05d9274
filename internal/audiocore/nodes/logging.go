package nodes

import "github.com/tphakala/audiograph/internal/logger"

// GetLogger returns the nodes logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("audiocore").Module("nodes")
}
