package http

import (
	"fmt"
	"net/http"
	"time"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/services"
)

// statusBody is the model of the record-form status fragment.
type statusBody struct {
	Kind    string
	Message string
}

// filterBody is the model of the viewer filter selects.
type filterBody struct {
	Filter        core.Filter
	FilterOptions core.FilterOptions
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	s.renderBudget(w, r, http.StatusOK, ParseFilter(r.URL.Query()), "")
}

// renderBudget renders the Budget page for the session user. errMsg, when
// set, is shown above the page content.
func (s *Server) renderBudget(w http.ResponseWriter, r *http.Request, status int, filter core.Filter, errMsg string) {
	v, sess := viewerFrom(r)
	data := newPageData(sess, string(core.ModuleBudget), "/budget")
	data.Error = errMsg

	view, err := s.budget.Page(r.Context(), v, filter)
	if err != nil {
		st, msg := errorStatus(err)
		s.logFailure(r, "Failed to build budget page", err, st)
		status, data.Error = st, msg
	}
	data.Body = view
	s.renderPage(w, r, status, "budget", data)
}

// handleBudgetPivot re-renders only the pivot, used after a new record and
// when a viewer changes a filter.
func (s *Server) handleBudgetPivot(w http.ResponseWriter, r *http.Request) {
	v, _ := viewerFrom(r)
	view, err := s.budget.Page(r.Context(), v, ParseFilter(r.URL.Query()))
	if err != nil {
		status, _ := errorStatus(err)
		s.logFailure(r, "Failed to build pivot", err, status)
		DomainError(err).Write(w)
		return
	}
	body, err := s.renderPartial(r, "pivot", view)
	if err != nil {
		ErrorResponse(http.StatusInternalServerError, "Ошибка отображения").Write(w)
		return
	}
	NewHTMXResponse().Body(body).Write(w)
}

// handleBudgetOptions returns the cascading selects narrowed by the chosen
// parents. ?mode=filter returns the viewer filter selects, otherwise the
// record form selects.
func (s *Server) handleBudgetOptions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := ParseFilter(query)

	var (
		name string
		data any
		err  error
	)
	if query.Get("mode") == "filter" {
		var fb filterBody
		fb.Filter, fb.FilterOptions, err = s.budget.Filters(r.Context(), filter)
		name, data = "filter_options", fb
	} else {
		var form services.EntryForm
		form, err = s.budget.Form(r.Context(), filter)
		name, data = "entry_options", form
	}
	if err != nil {
		status, _ := errorStatus(err)
		s.logFailure(r, "Failed to load category options", err, status)
		DomainError(err).Write(w)
		return
	}

	body, err := s.renderPartial(r, name, data)
	if err != nil {
		ErrorResponse(http.StatusInternalServerError, "Ошибка отображения").Write(w)
		return
	}
	NewHTMXResponse().Body(body).Write(w)
}

// handleCreateTransaction records one row for the session user. htmx posts
// get a status fragment plus events that reload the pivot; plain posts are
// redirected back to the page.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	v, sess := viewerFrom(r)

	form, fail := ParseBodyOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	in := ParseEntryInput(form, time.Now())

	ref, err := s.budget.Record(r.Context(), v, in)
	if err != nil {
		status, msg := errorStatus(err)
		s.logFailure(r, "Transaction rejected", err, status)
		if isHTMX(r) {
			body, _ := s.renderPartial(r, "status", statusBody{Kind: "error", Message: msg})
			NewHTMXResponse().
				Status(status).
				TriggerErrorNotification(msg).
				Body(body).
				Write(w)
			return
		}
		s.renderBudget(w, r, status, core.Filter{Category: in.Category, Article: in.Article, SubArticle: in.SubArticle}, msg)
		return
	}

	s.recorded.Add(1)
	period := core.Period{Year: in.Year, Month: in.Month}.String()
	msg := fmt.Sprintf("Запись добавлена: %s, %s", period, in.Type)
	s.logger.DebugContext(r.Context(), "Transaction accepted", log.FieldUser, v.User, log.FieldRef, ref, log.FieldPeriod, period)

	if !isHTMX(r) {
		sess.SetFlash(msg)
		redirect(w, r, "/budget")
		return
	}
	body, _ := s.renderPartial(r, "status", statusBody{Kind: "success", Message: msg})
	NewHTMXResponse().
		TriggerTransactionCreated(period).
		TriggerFormReset().
		TriggerSuccessNotification(msg).
		Body(body).
		Write(w)
}
