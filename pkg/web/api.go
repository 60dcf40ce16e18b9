package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/database"
	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/dbehnke/dect-nwk/pkg/logger"
	"github.com/dbehnke/dect-nwk/pkg/peer"
)

// CallInfo describes a call in progress
type CallInfo struct {
	ID      uint64    `json:"id"`
	Caller  string    `json:"caller"`
	Callee  string    `json:"callee,omitempty"`
	Called  string    `json:"called,omitempty"`
	State   string    `json:"state"`
	Started time.Time `json:"started"`
}

// Source supplies the live state exposed by the API. Implementations must
// be safe for concurrent use.
type Source interface {
	Portables() []peer.Snapshot
	Links() []lce.LinkInfo
	Calls() []CallInfo
}

// API handles REST API endpoints
type API struct {
	logger        *logger.Logger
	source        Source
	portables     *database.PortableRepository
	calls         *database.CallRecordRepository
	onUnsubscribe func(ipui string)
}

// NewAPI creates a new API instance. Any of source, db may be nil.
func NewAPI(log *logger.Logger, source Source, db *database.DB) *API {
	if log == nil {
		log = logger.Nop()
	}
	a := &API{
		logger: log,
		source: source,
	}
	if db != nil {
		a.portables = database.NewPortableRepository(db.GetDB())
		a.calls = database.NewCallRecordRepository(db.GetDB())
	}
	return a
}

// OnUnsubscribe sets a callback run after a subscription was deleted
func (a *API) OnUnsubscribe(fn func(ipui string)) {
	a.onUnsubscribe = fn
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("Failed to encode response", logger.Error(err))
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, msg string) {
	a.writeJSON(w, status, map[string]string{"error": msg})
}

// HandleStatus handles the /api/status endpoint
func (a *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status":  "running",
		"service": "dect-nwk",
		"build":   Version(),
	}
	if a.source != nil {
		attached := 0
		for _, p := range a.source.Portables() {
			if p.State == peer.StateAttached.String() {
				attached++
			}
		}
		response["portables_attached"] = attached
		response["links"] = len(a.source.Links())
		response["calls"] = len(a.source.Calls())
	}
	a.writeJSON(w, http.StatusOK, response)
}

// HandlePortables handles the /api/portables endpoint
func (a *API) HandlePortables(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	portables := []peer.Snapshot{}
	if a.source != nil {
		portables = append(portables, a.source.Portables()...)
	}
	a.writeJSON(w, http.StatusOK, portables)
}

// HandleLinks handles the /api/links endpoint
func (a *API) HandleLinks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	links := []lce.LinkInfo{}
	if a.source != nil {
		links = append(links, a.source.Links()...)
	}
	a.writeJSON(w, http.StatusOK, links)
}

// HandleCalls handles the /api/calls endpoint
func (a *API) HandleCalls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	calls := []CallInfo{}
	if a.source != nil {
		calls = append(calls, a.source.Calls()...)
	}
	a.writeJSON(w, http.StatusOK, calls)
}

// HandleCallHistory handles the /api/calls/history endpoint. The page and
// per_page query parameters select a window of the call log.
func (a *API) HandleCallHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.calls == nil {
		a.writeError(w, http.StatusServiceUnavailable, "call log not available")
		return
	}

	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 50)
	if perPage > 500 {
		perPage = 500
	}

	records, total, err := a.calls.GetRecentPaginated(page, perPage)
	if err != nil {
		a.logger.Error("Failed to load call log", logger.Error(err))
		a.writeError(w, http.StatusInternalServerError, "failed to load call log")
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"calls":    records,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// HandlePortableCalls handles GET /api/portables/{ipui}/calls, the call
// log entries a portable took part in
func (a *API) HandlePortableCalls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.calls == nil {
		a.writeError(w, http.StatusServiceUnavailable, "call log not available")
		return
	}

	limit := queryInt(r, "limit", 50)
	if limit > 500 {
		limit = 500
	}
	records, err := a.calls.GetByIPUI(r.PathValue("ipui"), limit)
	if err != nil {
		a.logger.Error("Failed to load call log", logger.Error(err))
		a.writeError(w, http.StatusInternalServerError, "failed to load call log")
		return
	}
	a.writeJSON(w, http.StatusOK, records)
}

// HandleSubscriptions handles the /api/subscriptions endpoint
func (a *API) HandleSubscriptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.portables == nil {
		a.writeError(w, http.StatusServiceUnavailable, "registry not available")
		return
	}

	list, err := a.portables.List()
	if err != nil {
		a.logger.Error("Failed to list subscriptions", logger.Error(err))
		a.writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	a.writeJSON(w, http.StatusOK, list)
}

// HandleDeleteSubscription handles DELETE /api/subscriptions/{ipui}
func (a *API) HandleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.portables == nil {
		a.writeError(w, http.StatusServiceUnavailable, "registry not available")
		return
	}

	ipui := r.PathValue("ipui")
	err := a.portables.Delete(ipui)
	switch {
	case errors.Is(err, database.ErrNotFound):
		a.writeError(w, http.StatusNotFound, "unknown portable")
		return
	case err != nil:
		a.logger.Error("Failed to delete subscription", logger.Error(err))
		a.writeError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}

	a.logger.Info("Subscription deleted", logger.String("ipui", ipui))
	if a.onUnsubscribe != nil {
		a.onUnsubscribe(ipui)
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 1 {
		return def
	}
	return v
}
