package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/campusmarket/accountkit/internal/domain"
	"github.com/campusmarket/accountkit/internal/http/middleware"
	"github.com/campusmarket/accountkit/internal/http/response"
	"github.com/campusmarket/accountkit/internal/identity"
	"github.com/campusmarket/accountkit/internal/observability"
	"github.com/campusmarket/accountkit/internal/service"
)

const (
	pgrstObject          = "application/vnd.pgrst.object+json"
	preferRepresentation = "return=representation"
)

var errUnsupportedFilter = &identity.Error{
	Status:  http.StatusBadRequest,
	Code:    "PGRST100",
	Message: "only eq filters on id and email are supported",
}

// RestHandler serves the profiles table under /rest/v1.
type RestHandler struct {
	profiles service.ProfileServiceInterface
}

func NewRestHandler(profiles service.ProfileServiceInterface) *RestHandler {
	return &RestHandler{profiles: profiles}
}

func (h *RestHandler) SelectProfiles(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProfileFilter(r)
	if err != nil {
		response.RestError(w, r, err)
		return
	}
	p, err := h.profiles.Get(r.Context(), filter)
	h.writeRows(w, r, http.StatusOK, p, err)
}

// UpdateProfiles patches the row named by ?id=eq.<uuid>. The body is a JSON
// object of column values.
func (h *RestHandler) UpdateProfiles(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProfileFilter(r)
	if err != nil {
		response.RestError(w, r, err)
		return
	}
	var columns map[string]any
	if err := decodeJSON(r, &columns); err != nil {
		response.RestError(w, r, err)
		return
	}
	caller := middleware.SubjectFromContext(r.Context())
	p, err := h.profiles.Update(r.Context(), caller, filter.ID, columns)
	if err == nil {
		observability.Audit(r, "rest.profiles.update", "identity_id", caller)
	}
	if !strings.Contains(r.Header.Get("Prefer"), preferRepresentation) {
		if err != nil && !errors.Is(err, service.ErrNoRows) {
			response.RestError(w, r, err)
			return
		}
		response.NoContent(w)
		return
	}
	h.writeRows(w, r, http.StatusOK, p, err)
}

// writeRows renders a single row as an object when the client asked for one
// and as an array of zero or one rows otherwise.
func (h *RestHandler) writeRows(w http.ResponseWriter, r *http.Request, status int, p *domain.Profile, err error) {
	single := wantsObject(r)
	switch {
	case err == nil && single:
		response.JSON(w, r, status, p)
	case err == nil:
		response.JSON(w, r, status, []*domain.Profile{p})
	case errors.Is(err, service.ErrNoRows) && !single:
		response.JSON(w, r, status, []*domain.Profile{})
	default:
		response.RestError(w, r, err)
	}
}

func wantsObject(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), pgrstObject)
}

// parseProfileFilter reads id=eq.<v> and email=eq.<v>. Other column filters
// and operators are rejected; select and order are accepted and ignored.
func parseProfileFilter(r *http.Request) (service.ProfileFilter, error) {
	var filter service.ProfileFilter
	for key, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		var dst *string
		switch key {
		case "id":
			dst = &filter.ID
		case "email":
			dst = &filter.Email
		case "select", "order", "apikey":
			continue
		default:
			return filter, errUnsupportedFilter
		}
		v, ok := strings.CutPrefix(values[0], "eq.")
		if !ok {
			return filter, errUnsupportedFilter
		}
		*dst = v
	}
	return filter, nil
}
