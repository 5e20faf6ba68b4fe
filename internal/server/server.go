package server

import (
	"log"
	"net/http"
	"runtime/debug"
)

func New(port string, staticDir string, handlers *Handlers) *http.Server {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: Routes(handlers, staticDir),
	}

	log.Printf("Server listening on http://localhost:%s", port)
	return srv
}

// Routes builds the HTTP handler tree. Static files are served at / when
// staticDir is set.
func Routes(handlers *Handlers, staticDir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/search", handlers.HandleSearch)
	mux.HandleFunc("/api/posts", handlers.HandlePosts)
	mux.HandleFunc("GET /api/posts/{id...}", handlers.HandlePost)
	mux.HandleFunc("/api/similar", handlers.HandleSimilar)
	mux.HandleFunc("/api/summary", handlers.HandleSummary)
	mux.HandleFunc("/api/status", handlers.HandleStatus)
	mux.HandleFunc("/api/reindex", handlers.HandleReindex)
	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}

	return recoverJSON(mux)
}

// recoverJSON turns a handler panic into a 500 JSON response.
func recoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				log.Printf("Panic serving %s %s: %v\n%s", r.Method, r.URL.Path, v, debug.Stack())
				writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error", "results": []any{}})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
