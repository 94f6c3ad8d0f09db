package xlog

import (
	"log/slog"
)

// Nop returns a logger which discards everything, mainly for tests
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
