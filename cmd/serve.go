package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/wins-cli/internal/model"
	"github.com/sells-group/wins-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only snapshot API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newSnapshotRouter(st),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			// The signal context is already canceled; drain in-flight
			// requests on a fresh deadline.
			drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(drainCtx)
		}()

		zap.L().Info("starting snapshot server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// newSnapshotRouter builds the read-only HTTP surface over the store.
func newSnapshotRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// The snapshot view excludes internal-only records and consumed
	// merge sources; this surface never mutates anything.
	r.Get("/api/snapshot", func(w http.ResponseWriter, req *http.Request) {
		var statuses []model.RecordStatus
		for _, s := range req.URL.Query()["status"] {
			statuses = append(statuses, model.RecordStatus(s))
		}

		recs, err := st.Snapshot(req.Context(), store.SnapshotFilter{Statuses: statuses})
		if err != nil {
			serveError(w, err)
			return
		}
		if recs == nil {
			recs = []model.FinalizedRecord{}
		}
		writeJSON(w, http.StatusOK, recs)
	})

	r.Get("/api/records/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		rec, err := st.GetRecord(req.Context(), id)
		if err != nil {
			serveError(w, err)
			return
		}
		if rec == nil || rec.InternalOnly {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	r.Get("/api/rankings", func(w http.ResponseWriter, req *http.Request) {
		scores, err := st.ListRankScores(req.Context())
		if err != nil {
			serveError(w, err)
			return
		}
		if scores == nil {
			scores = []model.RankScore{}
		}
		writeJSON(w, http.StatusOK, scores)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func serveError(w http.ResponseWriter, err error) {
	zap.L().Error("request failed", zap.Error(err))
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
