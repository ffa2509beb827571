package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fieldz/scheduler-engine/internal/store"
	"github.com/fieldz/scheduler-engine/pkg/logging"
)

// profileAdmin exposes store.ProfileStore over HTTP for local/dev use; the
// streaming service itself never switches profiles mid-stream (spec
// section 4.2).
type profileAdmin struct {
	store  store.ProfileStore
	logger logging.Logger
}

func newProfileAdmin(store store.ProfileStore, logger logging.Logger) *profileAdmin {
	return &profileAdmin{store: store, logger: logger}
}

func (p *profileAdmin) list(w http.ResponseWriter, r *http.Request) {
	profiles, err := p.store.ListProfiles(r.Context())
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (p *profileAdmin) create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	profile, err := p.store.CreateProfile(r.Context(), body.Name)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (p *profileAdmin) activate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := p.store.SwitchProfile(r.Context(), id); err != nil {
		writeAdminError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (p *profileAdmin) delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := p.store.DeleteProfile(r.Context(), id); err != nil {
		writeAdminError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAdminError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}
