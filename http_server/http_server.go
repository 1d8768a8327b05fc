package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/danthegoodman1/directdict/catalog"
	"github.com/danthegoodman1/directdict/datastore"
	"github.com/danthegoodman1/directdict/gologger"
	"github.com/danthegoodman1/directdict/utils"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
)

var logger = gologger.NewLogger()

type (
	HTTPServer struct {
		Echo *echo.Echo

		catalog *catalog.Catalog
		// dumpStore receives uploaded parquet dumps, nil disables uploads
		dumpStore datastore.DataStore
		registry  *prometheus.Registry
		requests  *prometheus.CounterVec
		latency   *prometheus.HistogramVec
	}

	CustomValidator struct {
		validator *validator.Validate
	}
)

// NewHTTPServer builds the echo instance and its routes without listening.
func NewHTTPServer(cat *catalog.Catalog, dumpStore datastore.DataStore) *HTTPServer {
	s := &HTTPServer{
		Echo:      echo.New(),
		catalog:   cat,
		dumpStore: dumpStore,
		registry:  prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "directdict_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "directdict_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	s.registry.MustRegister(
		s.requests,
		s.latency,
		catalog.NewCollector(cat),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.JSONSerializer = &utils.NoEscapeJSONSerializer{}

	s.Echo.Use(CreateReqContext)
	s.Echo.Use(LoggerMiddleware)
	s.Echo.Use(s.metricsMiddleware)
	s.Echo.Use(middleware.CORS())
	s.Echo.Validator = &CustomValidator{validator: validator.New()}

	// technical - no auth
	s.Echo.GET("/hc", s.HealthCheck)
	s.Echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	dicts := s.Echo.Group("/dictionaries")
	dicts.GET("", ccHandler(s.ListDictionaries))
	dicts.POST("", ccHandler(s.CreateDictionary))
	dicts.GET("/:name", ccHandler(s.DescribeDictionary))
	dicts.DELETE("/:name", ccHandler(s.DropDictionary))
	dicts.GET("/:name/definition", ccHandler(s.GetDefinition))
	dicts.POST("/:name/get", ccHandler(s.GetHandler))
	dicts.POST("/:name/has", ccHandler(s.HasHandler))
	dicts.POST("/:name/parents", ccHandler(s.ParentsHandler))
	dicts.POST("/:name/is_in", ccHandler(s.IsInHandler))
	dicts.GET("/:name/dump", ccHandler(s.DumpHandler))

	return s
}

// StartHTTPServer serves s as h2c on port in the background.
func StartHTTPServer(s *HTTPServer, port string) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%s", port))
	if err != nil {
		return fmt.Errorf("error creating tcp listener: %w", err)
	}
	s.Echo.Listener = listener
	go func() {
		logger.Info().Msg("starting h2c server on " + listener.Addr().String())
		err := s.Echo.StartH2CServer("", &http2.Server{})
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start h2c server, exiting")
		}
	}()
	return nil
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func ValidateRequest(c echo.Context, s interface{}) error {
	if err := c.Bind(s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(s); err != nil {
		return err
	}
	return nil
}

func (*HTTPServer) HealthCheck(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)
	return err
}

func (s *HTTPServer) metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		status := c.Response().Status
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
		}
		s.requests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
		s.latency.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
		return err
	}
}

func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		if err := next(c); err != nil {
			// default handler
			c.Error(err)
		}
		stop := time.Since(start)
		// Log otherwise
		logger := zerolog.Ctx(c.Request().Context())
		req := c.Request()
		res := c.Response()

		p := req.URL.Path
		if p == "" {
			p = "/"
		}

		cl := req.Header.Get(echo.HeaderContentLength)
		if cl == "" {
			cl = "0"
		}
		logger.Debug().Str("method", req.Method).Str("remote_ip", c.RealIP()).Str("req_uri", req.RequestURI).Str("handler_path", c.Path()).Str("path", p).Int("status", res.Status).Int64("latency_ns", int64(stop)).Str("protocol", req.Proto).Str("bytes_in", cl).Int64("bytes_out", res.Size).Msg("req received")
		return nil
	}
}
