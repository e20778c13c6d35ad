package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/together/internal/auth"
	"github.com/MrSnakeDoc/together/internal/calendar"
	"github.com/MrSnakeDoc/together/internal/gallery"
	"github.com/MrSnakeDoc/together/internal/journal"
	"github.com/MrSnakeDoc/together/internal/logger"
	"github.com/MrSnakeDoc/together/internal/profile"
)

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string

	Profile  profile.Profile
	Calendar *calendar.Calendar
	Journal  *journal.Store
	Gallery  *gallery.Store
	Sessions *auth.Sessions
	Password *auth.Password

	RedisClient *redis.Client // nil when no document database is configured
	Constrained bool          // small hosting profile, reported by /api/status

	AllowedHosts    []string      // Host headers allowed to access the server
	AllowedCIDRS    []string      // networks allowed on /api/status
	TrustProxy      bool          // true if running behind a trusted reverse proxy
	LoginRateLimit  int           // login attempts per window and client
	LoginRateWindow time.Duration // window for LoginRateLimit
}
