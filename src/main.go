package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/hkagei/jetblue-route-planning/src/datapush"
	"github.com/hkagei/jetblue-route-planning/src/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newWebUI /logs 实时输出日志, /metrics 输出运行指标, /api/queries 查询最近一次结果
func (a *app) newWebUI() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/logs", streamLogs(a.logger))
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	r.Route("/api/queries", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, datapush.QueryNames())
		})
		r.Get("/{name}", a.handleQuery)
	})
	return r
}

func streamLogs(logger *storage.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Transfer-Encoding", "chunked")

		// 创建日志订阅通道
		logChan := logger.Subscribe()
		defer logger.Unsubscribe(logChan)

		for {
			select {
			case msg := <-logChan:
				// 客户端断开时写入失败
				if _, err := fmt.Fprintln(w, msg); err != nil {
					return
				}
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			case <-r.Context().Done():
				return
			}
		}
	}
}

// 只开放命名查询, 不接受任意SQL
func (a *app) handleQuery(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := datapush.NamedQueries[name]; !ok {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "unknown query " + name})
		return
	}

	store, err := datapush.OpenStore(filepath.Join(a.cfg.OutputDir, a.cfg.Export.SQLitePath))
	if err != nil {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": err.Error()})
		return
	}
	defer store.Close()

	res, err := store.Query(name)
	if err != nil {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": err.Error()})
		return
	}
	render.JSON(w, r, res)
}
