package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/together/internal/calendar"
	"github.com/MrSnakeDoc/together/internal/httpserver/deps"
)

type homeData struct {
	Today     string
	Days      int
	Milestone calendar.Milestone
}

func Home(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := homeData{
			Today:     d.Calendar.FormatDate(d.Calendar.Now()),
			Days:      d.Calendar.DaysTogether(true),
			Milestone: d.Calendar.NextMilestone(),
		}
		render(d, w, http.StatusOK, "home", newView(d, w, r, "Home", data))
	}
}
