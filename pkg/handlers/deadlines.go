package handlers

import (
	"net/http"
	"strconv"
	"time"

	"careerprep/pkg/deadline"
)

// classifier evaluates in the request's tz, falling back to the configured zone.
func (h *Handler) classifier(r *http.Request) *deadline.Classifier {
	tz := r.URL.Query().Get("tz")
	if tz == "" {
		tz = h.config.Timezone
	}
	return deadline.NewClassifier(tz)
}

func (h *Handler) ClassifyDeadline(w http.ResponseWriter, r *http.Request) {
	c := h.classifier(r)
	formatted := c.FormatWithContext(r.URL.Query().Get("due"))
	if formatted.Degraded {
		h.logger.WithField("reason", formatted.Reason).Warn("Deadline fell back to current time")
	}

	writeJSON(w, http.StatusOK, formatted)
}

func (h *Handler) CalendarLink(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	c := h.classifier(r)

	start := c.ToLocal(query.Get("start"))
	if start.Degraded {
		writeError(w, http.StatusBadRequest, "start: "+start.Reason)
		return
	}

	event := deadline.CalendarEvent{
		Title:       query.Get("title"),
		Start:       start.Time,
		Description: query.Get("description"),
		Location:    query.Get("location"),
	}
	if raw := query.Get("end"); raw != "" {
		end := c.ToLocal(raw)
		if end.Degraded {
			writeError(w, http.StatusBadRequest, "end: "+end.Reason)
			return
		}
		event.End = end.Time
	}

	provider := deadline.Provider(query.Get("provider"))
	if provider == "" {
		provider = deadline.ProviderGoogle
	}

	link, err := c.BuildCalendarURL(event, provider)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"provider": provider,
		"url":      link,
	})
}

func (h *Handler) DownloadICS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	c := h.classifier(r)

	due := c.ToLocal(query.Get("due"))
	if due.Degraded {
		writeError(w, http.StatusBadRequest, "due: "+due.Reason)
		return
	}

	file := c.DownloadICS(query.Get("title"), due.Time, query.Get("description"))

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.FileName+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(file.Content))
}

func (h *Handler) BusinessDeadline(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "days must be an integer")
		return
	}

	c := h.classifier(r)
	due := c.CalculateBusinessDeadline(days)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"days":      days,
		"deadline":  due.Format(time.RFC3339),
		"timezone":  c.Timezone(),
		"formatted": c.FormatWithContext(due.UTC().Format(time.RFC3339)),
	})
}
