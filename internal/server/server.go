// Package server publishes the exported snapshot over HTTP together with code and
// cross-rate lookups against it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fxsnapshot/fxsnapshot/internal/client"
)

type Handler struct {
	client     *client.Client
	exportPath string
}

func NewHandler(c *client.Client, exportPath string) *Handler {
	return &Handler{client: c, exportPath: exportPath}
}

func logger() *slog.Logger {
	return slog.Default().With("component", "server")
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/datos.json", h.Snapshot).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/codes", h.Codes).Methods(http.MethodGet)
	r.HandleFunc("/rate/{from}/{to}", h.Rate).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
}

func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// Snapshot serves the exported document as written by the last refresh.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "application/json")
	http.ServeFile(w, r, h.exportPath)
}

func (h *Handler) Codes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.client.ListCodes(r.Context(), h.exportPath)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"codes": codes})
}

type rateResponse struct {
	From string `json:"from"`
	To   string `json:"to"`
	Rate string `json:"rate"`
}

func (h *Handler) Rate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	rate, err := h.client.Rate(r.Context(), h.exportPath, vars["from"], vars["to"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rateResponse{From: vars["from"], To: vars["to"], Rate: rate.String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger().Warn("write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var lerr *client.LookupError
	if errors.As(err, &lerr) {
		switch lerr.Kind {
		case client.NotFound:
			status = http.StatusNotFound
		case client.SourceUnreachable:
			status = http.StatusServiceUnavailable
		case client.MalformedSource:
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// ListenAndServe serves h on addr until ctx is done.
func ListenAndServe(ctx context.Context, addr string, h *Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger().Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
