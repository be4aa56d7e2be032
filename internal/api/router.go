package api

import (
	"github.com/go-chi/chi/v5"
)

// routes builds the chi router for every operation the wire protocol
// exposes. Routes under /queues/{queue_name} run behind requireQueueAuth,
// matching the per-queue shared-secret model.
func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Post("/queues", s.handleCreateQueue)

	r.Route("/queues/{queue_name}", func(r chi.Router) {
		r.Use(s.requireQueueAuth)

		r.Get("/", s.handleGetQueue)
		r.Patch("/", s.handleUpdateQueue)
		r.Delete("/", s.handleDeleteQueue)

		r.Post("/tasks", s.handleSubmitTask)
		r.Get("/tasks", s.handleListTasks)
		r.Post("/tasks/fetch", s.handleFetchTask)
		r.Post("/tasks/update", s.handleBulkUpdateTasks)
		r.Get("/tasks/{task_id}", s.handleGetTask)
		r.Patch("/tasks/{task_id}", s.handleUpdateTask)
		r.Delete("/tasks/{task_id}", s.handleDeleteTask)
		r.Post("/tasks/{task_id}/heartbeat", s.handleHeartbeat)
		r.Post("/tasks/{task_id}/report", s.handleReportTask)
		r.Post("/tasks/{task_id}/reset", s.handleResetTask)
		r.Post("/tasks/{task_id}/cancel", s.handleCancelTask)

		r.Post("/workers", s.handleRegisterWorker)
		r.Get("/workers", s.handleListWorkers)
		r.Get("/workers/{worker_id}", s.handleGetWorker)
		r.Patch("/workers/{worker_id}", s.handleUpdateWorker)
		r.Delete("/workers/{worker_id}", s.handleDeleteWorker)

		r.Post("/events/subscribe", s.handleSubscribeEvents)
		r.Get("/events/next", s.handleNextEvent)
		r.Delete("/events/subscribe", s.handleUnsubscribeEvents)
	})

	return r
}
