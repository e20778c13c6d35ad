package utils

import (
	"io"

	"github.com/MrSnakeDoc/together/internal/logger"
)

// Close closes c and ignores any error. For read-only handles in defer.
func Close(c io.Closer) {
	_ = c.Close()
}

// CloseLogged closes c and logs a failure under what.
func CloseLogged(c io.Closer, what string, log logger.Logger) {
	if err := c.Close(); err != nil {
		log.Warn("failed to close "+what, logger.Error(err))
	}
}
