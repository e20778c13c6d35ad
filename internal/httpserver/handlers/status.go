package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/together/internal/backend"
	"github.com/MrSnakeDoc/together/internal/httpserver/deps"
	"github.com/MrSnakeDoc/together/internal/logger"
)

type componentStatus struct {
	OK      bool   `json:"ok"`
	Backend string `json:"backend,omitempty"`
	State   string `json:"state"`
	Impact  string `json:"impact,omitempty"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status       string                     `json:"status"`
	Mode         string                     `json:"mode"`
	Time         string                     `json:"time"`
	Constrained  bool                       `json:"constrained"`
	EntriesCount *int                       `json:"entries_count,omitempty"`
	MaxUpload    int64                      `json:"max_upload_bytes"`
	Components   map[string]componentStatus `json:"components"`
}

// Status reports the state of every backend. It probes, so it is slower
// than Health and sits behind the login and the CIDR allow-list.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		primary := d.Journal.Status(ctx)
		journalPrimary := component(primary, d.Journal.PrimaryName())
		if primary.Kind == backend.Unreachable {
			journalPrimary.Impact = "journal-served-from-" + d.Journal.SecondaryName()
		}

		images := d.Gallery.Status(ctx)
		gallery := component(images, d.Gallery.BackendName())
		if !images.Usable() {
			gallery.Impact = "uploads-disabled"
		}

		resp := statusResponse{
			Status:      "ok",
			Time:        d.Calendar.Now().Format("2006-01-02 15:04:05"),
			Constrained: d.Constrained,
			MaxUpload:   d.Gallery.MaxBytes(),
			Components: map[string]componentStatus{
				"journal_primary":   journalPrimary,
				"journal_secondary": {OK: true, Backend: d.Journal.SecondaryName(), State: backend.Connected.String()},
				"gallery":           gallery,
			},
		}
		if n, err := d.Journal.CountEntries(ctx); err == nil {
			resp.EntriesCount = &n
		} else {
			d.Logger.Warn("status: failed to count entries", logger.Error(err))
		}
		resp.Mode = determineMode(resp.Components)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func component(s backend.State, name string) componentStatus {
	c := componentStatus{
		OK:      s.Usable(),
		Backend: name,
		State:   s.Kind.String(),
	}
	if s.Err != nil {
		c.Error = s.Err.Error()
	}
	return c
}

// determineMode is "critical" when images cannot be stored, "degraded" when
// a configured journal primary is unreachable and "optimal" otherwise.
func determineMode(components map[string]componentStatus) string {
	if g, ok := components["gallery"]; ok && !g.OK {
		return "critical"
	}
	if p, ok := components["journal_primary"]; ok && p.State == backend.Unreachable.String() {
		return "degraded"
	}
	return "optimal"
}
