// Package upload provides the single-text and file-processing page of the UI.
package upload

import (
	"github.com/go-chi/chi/v5"
)

// SetupRoutes configures routes for the upload feature.
func SetupRoutes(router chi.Router, handlers *Handlers) error {
	router.Get("/", handlers.HandlePage)
	router.Get("/updates", handlers.HandleUpdates)
	router.Get("/download", handlers.HandleDownload)

	router.Route("/api", func(r chi.Router) {
		r.Post("/single", handlers.HandleSingle)
		r.Post("/file", handlers.HandleFile)
		r.Post("/batch", handlers.HandleBatch)
		r.Post("/reset", handlers.HandleReset)
		r.Post("/columns/{name}", handlers.HandleChooseColumn)
		r.Post("/columns/{name}/resolve", handlers.HandleResolveColumn)
	})

	return nil
}
