package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/together/internal/domain"
	"github.com/MrSnakeDoc/together/internal/httpserver/deps"
	"github.com/MrSnakeDoc/together/internal/logger"
)

type journalData struct {
	Sort    string
	Entries []domain.Entry
}

type entryFormData struct {
	Action string
	Cancel string
	Entry  domain.Entry
}

func entryPath(prefix, id string) string { return prefix + url.PathEscape(id) }

func entryInput(r *http.Request) domain.EntryInput {
	return domain.EntryInput{
		Title:   r.PostFormValue("title"),
		Content: r.PostFormValue("content"),
		Author:  r.PostFormValue("author"),
	}
}

// JournalList shows every entry, newest first unless ?sort=oldest.
func JournalList(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := journalData{Sort: "newest"}
		if r.URL.Query().Get("sort") == "oldest" {
			data.Sort = "oldest"
		}

		entries, err := d.Journal.ListEntries(r.Context(), domain.SortByTimestamp, data.Sort == "newest")
		v := newView(d, w, r, "Journal", nil)
		if err != nil {
			d.Logger.Error("failed to list journal entries", logger.Error(err))
			v.Flash = domain.UserMessage(err)
		}
		data.Entries = entries
		v.Data = data
		render(d, w, http.StatusOK, "journal", v)
	}
}

func AddEntryForm(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := entryFormData{Action: "/add_entry", Cancel: "/journal"}
		render(d, w, http.StatusOK, "entry_form", newView(d, w, r, "New entry", data))
	}
}

func AddEntry(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in := entryInput(r)
		id, err := d.Journal.CreateEntry(r.Context(), in)
		switch {
		case domain.IsValidation(err):
			redirect(w, r, "/add_entry", domain.UserMessage(err))
		case err != nil:
			d.Logger.Error("failed to add journal entry", logger.Error(err))
			redirect(w, r, "/add_entry", "Could not save the entry: "+domain.UserMessage(err))
		default:
			d.Logger.Info("journal entry added", logger.String("id", id), logger.String("author", in.Normalize().Author))
			redirect(w, r, "/journal", "Entry added")
		}
	}
}

func EditEntry(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		e, err := d.Journal.GetEntry(r.Context(), id)
		if err != nil {
			redirect(w, r, "/journal", entryLookupMessage(d, id, err))
			return
		}
		data := entryFormData{
			Action: entryPath("/update/", id),
			Cancel: entryPath("/view/", id),
			Entry:  e,
		}
		render(d, w, http.StatusOK, "entry_form", newView(d, w, r, "Edit entry", data))
	}
}

func UpdateEntry(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := d.Journal.UpdateEntry(r.Context(), id, entryInput(r))
		switch {
		case err == nil:
			redirect(w, r, entryPath("/view/", id), "Entry updated")
		case domain.IsNotFound(err):
			redirect(w, r, "/journal", "Entry not found")
		case domain.IsValidation(err):
			redirect(w, r, entryPath("/edit/", id), domain.UserMessage(err))
		default:
			d.Logger.Error("failed to update journal entry", logger.String("id", id), logger.Error(err))
			redirect(w, r, entryPath("/edit/", id), "Could not update the entry: "+domain.UserMessage(err))
		}
	}
}

func DeleteEntry(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PostFormValue("entry_id")
		if id == "" {
			redirect(w, r, "/journal", "")
			return
		}

		err := d.Journal.DeleteEntry(r.Context(), id)
		switch {
		case err == nil:
			redirect(w, r, "/journal", "Entry deleted")
		case domain.IsNotFound(err):
			redirect(w, r, "/journal", "Entry not found")
		default:
			d.Logger.Error("failed to delete journal entry", logger.String("id", id), logger.Error(err))
			redirect(w, r, "/journal", "Could not delete the entry: "+domain.UserMessage(err))
		}
	}
}

func ViewEntry(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		e, err := d.Journal.GetEntry(r.Context(), id)
		if err != nil {
			redirect(w, r, "/journal", entryLookupMessage(d, id, err))
			return
		}
		render(d, w, http.StatusOK, "view_entry", newView(d, w, r, e.Title, e))
	}
}

func entryLookupMessage(d deps.Deps, id string, err error) string {
	if domain.IsNotFound(err) {
		return "Entry not found"
	}
	d.Logger.Error("failed to load journal entry", logger.String("id", id), logger.Error(err))
	return domain.UserMessage(err)
}
