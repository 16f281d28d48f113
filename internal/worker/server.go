package worker

import (
	"github.com/hibiken/asynq"
)

// NewServer creates a new Asynq server for processing tasks
func NewServer(redisURL string, concurrency int) *asynq.Server {
	opt, err := ParseRedisURL(redisURL)
	if err != nil {
		panic("failed to parse Redis URL: " + err.Error())
	}
	if concurrency <= 0 {
		concurrency = 10
	}

	return asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueTranscriptions: 9,
				"default":           1,
			},
		},
	)
}

// Start runs the server with the given handlers, each wrapped in the tracing
// and Sentry middleware. It blocks until the server is shut down.
func Start(srv *asynq.Server, handlers map[string]asynq.HandlerFunc) error {
	mux := asynq.NewServeMux()
	mux.Use(OTelMiddleware, SentryMiddleware)
	for taskType, handler := range handlers {
		mux.HandleFunc(taskType, handler)
	}
	return srv.Run(mux)
}
