package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/report"
	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/session"
	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/storage"
)

// Options 路由依赖
type Options struct {
	Session     *session.Session
	Metrics     *session.Metrics
	Logger      *storage.Logger
	Coordinates report.CoordinateColumns
	CORSOrigins []string
}

// NewRouter 初始化所有API路由
func NewRouter(opts Options) *chi.Mux {
	h := &Handler{
		session: opts.Session,
		logger:  opts.Logger,
		coords:  opts.Coordinates,
	}

	r := chi.NewRouter()

	// 基础中间件
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if opts.Logger != nil {
		r.Use(requestLogger(opts.Logger))
	}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}
	if opts.Logger != nil {
		r.Get("/logs", h.StreamLogs)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/dataset", h.Dataset)
		r.Get("/cleaning", h.Cleaning)
		r.Post("/reload", h.Reload)

		r.Route("/quality", func(r chi.Router) {
			r.Get("/missing", h.Missing)
			r.Get("/duplicates", h.Duplicates)
			r.Get("/durations", h.Durations)
		})

		r.Get("/variables/{name}", h.Variable)
		r.Get("/trips", h.Trips)
		r.Get("/charts/{chart}", h.Chart)
		r.Get("/distance", h.Distance)
	})

	return r
}

// requestLogger 用 logrus 记录每个请求
func requestLogger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			// 日志流本身不记录，避免订阅者收到自己的请求
			if r.URL.Path == "/logs" {
				return
			}
			logger.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"elapsed":    time.Since(start).String(),
			}).Debug("http request")
		})
	}
}
