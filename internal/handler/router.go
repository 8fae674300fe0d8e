package handler

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig настройки HTTP роутера
type RouterConfig struct {
	AllowOrigins []string // пусто или "*" - разрешены все источники
}

// NewRouter собирает gin роутер со всеми middleware и маршрутами
func NewRouter(h *Handler, logger *slog.Logger, cfg RouterConfig) *gin.Engine {
	r := gin.New()

	r.Use(Logging(logger))
	r.Use(Metrics())
	r.Use(Recovery(logger))
	r.Use(cors.New(corsConfig(cfg.AllowOrigins)))

	h.RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
