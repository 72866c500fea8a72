// Package access decides whether a Telegram user may talk to the bot.
package access

import (
	"log/slog"
	"strings"
)

// Gate is an allow-list of handles. It is immutable after construction and
// safe for concurrent use.
type Gate struct {
	allowed map[string]struct{}
	logger  *slog.Logger
}

// NewGate builds a gate from handles as they appear in ALLOWED_USERS.
// A leading "@" is ignored and comparison is case-insensitive, matching how
// Telegram treats usernames.
func NewGate(handles []string, logger *slog.Logger) *Gate {
	allowed := make(map[string]struct{}, len(handles))
	for _, h := range handles {
		if h = normalize(h); h != "" {
			allowed[h] = struct{}{}
		}
	}
	return &Gate{allowed: allowed, logger: logger}
}

// Allowed reports whether the user may proceed. A user without a handle is
// always refused: nothing about them can be persisted or addressed later.
func (g *Gate) Allowed(userID int64, handle string) bool {
	if strings.TrimSpace(handle) == "" {
		g.logger.Warn("access attempt from user without username",
			slog.Int64("user_id", userID),
		)
		return false
	}
	if _, ok := g.allowed[normalize(handle)]; ok {
		return true
	}
	g.logger.Warn("unauthorized access attempt",
		slog.String("handle", handle),
		slog.Int64("user_id", userID),
	)
	return false
}

// Size returns the number of allowed handles.
func (g *Gate) Size() int {
	return len(g.allowed)
}

func normalize(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}
