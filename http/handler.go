package http

import (
	"net/http"
	"strconv"

	"github.com/aukilabs/broadphase/models"
	"github.com/aukilabs/broadphase/quadtree"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
)

func HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func HandleReadyCheck(readinessCheck func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !readinessCheck() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func HandleVersion(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(version))
	}
}

// World is the part of a world exposed by debug handlers.
type World interface {
	Snapshot() models.Snapshot
	DebugInfo() quadtree.DebugInfo
	Neighbors(id uint32) ([]*models.Entity, error)
}

// HandleSnapshot responds with the snapshot of the last world tick.
func HandleSnapshot(world World) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, world.Snapshot())
	}
}

// HandleTreeDebug responds with the current shape of the world tree.
func HandleTreeDebug(world World) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, world.DebugInfo())
	}
}

// NeighborsResponse is the response of HandleNeighbors.
type NeighborsResponse struct {
	EntityID  uint32              `json:"entity_id"`
	Neighbors []models.EntityView `json:"neighbors"`
}

// HandleNeighbors responds with the neighbour candidates of the entity whose
// id is given by the id query parameter.
func HandleNeighbors(world World) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid entity id").
				WithTag("id", r.URL.Query().Get("id")).
				Wrap(err))
			return
		}

		neighbors, err := world.Neighbors(uint32(id))
		if errors.IsType(err, models.ErrTypeEntityNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		} else if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		writeJSON(w, http.StatusOK, NeighborsResponse{
			EntityID:  uint32(id),
			Neighbors: models.EntitiesToViews(neighbors),
		})
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		logs.WithTag("status", status).Error(err)
	} else {
		logs.WithTag("status", status).Debug(err)
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.Warn(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

// HandleWithCORS allows the given handler to be called from any origin.
func HandleWithCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		h.ServeHTTP(w, r)
	})
}
