package main

/* ows is a web server implementing the OGC Web Coverage Service
   (WCS 1.0, 1.1 and 2.0) to serve raster coverages. Configuration of
   the server is specified in config.json or config.yaml documents,
   one per namespace under the config directory, where the published
   coverages, output formats and service metadata are defined.
   Tile indexed coverages read their file lists from a Postgres
   tile index, which is also exposed through the /mas API. */

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	reuseport "github.com/kavu/go_reuseport"
	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"

	"github.com/nci/gskywcs/mas"
	"github.com/nci/gskywcs/metrics"
	"github.com/nci/gskywcs/raster"
	"github.com/nci/gskywcs/raster/gdal"
	"github.com/nci/gskywcs/render"
	"github.com/nci/gskywcs/utils"
	"github.com/nci/gskywcs/wcs"
)

var version = "dev"

var (
	port            = flag.Int("p", 8080, "Server listening port.")
	serverDataDir   = flag.String("data_dir", utils.DataDir, "Server data directory.")
	serverConfigDir = flag.String("conf_dir", utils.EtcDir, "Server config directory.")
	serverLogDir    = flag.String("log_dir", "", "Server log directory. '-' logs request metrics to stdout.")
	validateConfig  = flag.Bool("check_conf", false, "Validate server config files.")
	dumpConfig      = flag.Bool("dump_conf", false, "Dump server config files.")
	verbose         = flag.Bool("v", false, "Verbose mode for more server outputs.")
	logLevel        = flag.String("log_level", "info", "Log level: debug, info, warn or error.")
	maxConns        = flag.Int("max_conns", 0, "Maximum number of simultaneous connections, 0 for no limit.")
	reusePort       = flag.Bool("reuseport", false, "Listen with SO_REUSEPORT so several servers can share the port.")
	enableMetrics   = flag.Bool("metrics", true, "Expose Prometheus metrics on /metrics.")
	dbPool          = flag.Int("db_pool", 8, "Tile index database idle connections.")
	dbLimit         = flag.Int("db_limit", 64, "Tile index database concurrent connections.")
)

const maxPostBody = 10 << 20

// Requests naming one of these operations without a SERVICE parameter
// are taken as WCS requests.
var reqService = map[string]string{
	"describecoverage": "WCS",
	"getcoverage":      "WCS",
}

// server holds everything shared by the request handlers.
type server struct {
	configs   *utils.ConfigStore
	source    raster.Source
	projector raster.Projector
	renderer  *render.Renderer
	log       zerolog.Logger

	metricsLogger metrics.Logger
	provider      *metrics.Provider

	// indexFor returns the tile index named by a config, nil when the
	// config has none.
	indexFor func(dsn string) (tileIndex, error)
}

// tileIndex is a wcs.TileIndex that also serves the /mas API.
type tileIndex interface {
	wcs.TileIndex
	mas.Lister
}

// indexPool opens one tile index per connection string on first use.
type indexPool struct {
	mu      sync.Mutex
	indexes map[string]*mas.Index
	opts    mas.Options
	log     zerolog.Logger
}

func (p *indexPool) get(dsn string) (tileIndex, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ix, ok := p.indexes[dsn]; ok {
		return ix, nil
	}
	ix, err := mas.Open(dsn, p.opts, p.log)
	if err != nil {
		return nil, err
	}
	p.indexes[dsn] = ix
	return ix, nil
}

func (p *indexPool) ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ix := range p.indexes {
		if err := ix.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *indexPool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ix := range p.indexes {
		ix.Close()
	}
}

func (s *server) tileIndex(config *utils.Config) wcs.TileIndex {
	dsn := config.ServiceConfig.TileIndex
	if dsn == "" || s.indexFor == nil {
		return nil
	}
	ix, err := s.indexFor(dsn)
	if err != nil {
		s.log.Error().Err(err).Msg("Error opening tile index")
		return nil
	}
	return ix
}

func (s *server) handler(config *utils.Config, namespace string) *wcs.Handler {
	return &wcs.Handler{
		Config:    config,
		Namespace: namespace,
		Source:    s.source,
		Projector: s.projector,
		TileIndex: s.tileIndex(config),
		Renderer:  s.renderer,
		Log:       s.log.With().Str("namespace", namespace).Logger(),
	}
}

// readRequest turns a GET query or a POST body into a wcs.Request. Form
// encoded POST bodies are read as KVP, anything else as XML.
func readRequest(r *http.Request) (*wcs.Request, error) {
	switch r.Method {
	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxPostBody))
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
			query, err := utils.ParseQuery(string(body))
			if err != nil {
				return nil, err
			}
			return &wcs.Request{Query: query}, nil
		}
		return &wcs.Request{Query: nil, Body: body}, nil
	default:
		query, err := utils.ParseQuery(r.URL.RawQuery)
		if err != nil {
			return nil, err
		}
		return &wcs.Request{Query: query}, nil
	}
}

// inferService adds SERVICE=WCS to KVP requests that only name a WCS
// operation.
func inferService(req *wcs.Request) bool {
	if len(req.Body) > 0 {
		return false
	}
	if _, ok := req.Query.Get("service"); ok {
		return false
	}
	request, ok := req.Query.Get("request")
	if !ok {
		return false
	}
	service, found := reqService[strings.ToLower(request)]
	if !found {
		return false
	}
	req.Query = append(req.Query, utils.QueryParam{Name: "SERVICE", Value: service})
	return true
}

func documentETag(body []byte) string {
	return fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
}

func recordExchange(info *metrics.WCSInfo, resp *wcs.Response) {
	info.BytesOut = len(resp.Body)
	x := resp.Exchange
	if x == nil {
		return
	}
	info.Request = x.Operation
	info.State = x.State.String()
	info.NumFiles = x.SourceFiles
	if x.Version != 0 {
		info.Version = x.Version.String()
	}
	if x.Params != nil {
		info.Coverages = x.Params.Common().Coverages
	}
	if x.Exception != nil {
		info.Exception = x.Exception.Code
		info.Locator = x.Exception.Locator
		if info.Version == "" {
			info.Version = x.Exception.Version
		}
	}
}

func (s *server) generalHandler(config *utils.Config, namespace string, w http.ResponseWriter, r *http.Request) {
	if *verbose {
		s.log.Info().Str("url", r.URL.String()).Msg("request")
	}

	metricsCollector := metrics.NewMetricsCollector(s.metricsLogger)
	t0 := time.Now()
	metricsCollector.Info.ReqTime = t0.Format(utils.ISOFormat)
	defer func() {
		metricsCollector.Info.ReqDuration = time.Since(t0)
		metricsCollector.Log()
	}()
	metricsCollector.Info.URL.RawURL = r.URL.String()
	metricsCollector.Info.RemoteAddr = r.RemoteAddr
	metricsCollector.Info.HTTPStatus = 200

	req, err := readRequest(r)
	if err != nil {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), 400)
		return
	}
	inferService(req)

	resp, err := s.handler(config, namespace).Serve(r.Context(), req)
	if errors.Is(err, wcs.ErrNotHandled) {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, fmt.Sprintf("Not a valid OWS request. URL %s does not contain a valid 'service' parameter.", r.URL.String()), 400)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("wcs request failed")
		metricsCollector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
		return
	}
	recordExchange(metricsCollector.Info.WCS, resp)

	for k, v := range resp.Header {
		w.Header()[k] = v
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}

	isDocument := resp.Exchange == nil || resp.Exchange.Operation != wcs.GetCoverage
	if isDocument && status == http.StatusOK {
		etag := documentETag(resp.Body)
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "no-cache")
		if r.Header.Get("If-None-Match") == etag {
			metricsCollector.Info.HTTPStatus = http.StatusNotModified
			w.WriteHeader(http.StatusNotModified)
			return
		}
	} else {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate, max-age=0")
	}

	metricsCollector.Info.HTTPStatus = status
	w.WriteHeader(status)
	if _, err := w.Write(resp.Body); err != nil {
		s.log.Debug().Err(err).Msg("response write failed")
	}
}

func (s *server) owsHandler(w http.ResponseWriter, r *http.Request) {
	namespace := strings.Trim(chi.URLParam(r, "*"), "/")
	if namespace == "" {
		namespace = "."
	}
	config, ok := s.configs.Get(namespace)
	if !ok {
		s.log.Info().Str("namespace", namespace).Str("path", r.URL.Path).Msg("Invalid dataset namespace")
		http.Error(w, fmt.Sprintf("Invalid dataset namespace: %v\n", namespace), 404)
		return
	}
	s.generalHandler(config, namespace, w, r)
}

func (s *server) fileHandler(w http.ResponseWriter, r *http.Request) {
	upath := r.URL.Path
	if !strings.HasPrefix(upath, "/") {
		upath = "/" + upath
		r.URL.Path = upath
	}
	upath = path.Clean(upath)
	upath = filepath.Join(utils.DataDir, "static", upath)

	if *verbose {
		s.log.Info().Str("url", r.URL.String()).Str("file", upath).Msg("static file")
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate, max-age=0")
	http.ServeFile(w, r, upath)
}

// masConfig maps the namespace parameter of the /mas API to a config.
func (s *server) masConfig(namespace string) (*utils.Config, bool) {
	if namespace == "" {
		namespace = "."
	}
	return s.configs.Get(namespace)
}

// masHandler serves /mas/{layer} from the tile index of the layer's
// namespace.
func (s *server) masHandler(w http.ResponseWriter, r *http.Request) {
	config, ok := s.masConfig(r.URL.Query().Get("namespace"))
	if !ok || config.ServiceConfig.TileIndex == "" || s.indexFor == nil {
		http.Error(w, `{ "error": "no tile index configured" }`, http.StatusNotFound)
		return
	}
	ix, err := s.indexFor(config.ServiceConfig.TileIndex)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{ "error": %q }`, err.Error()), http.StatusServiceUnavailable)
		return
	}
	api := &mas.API{Index: ix, Configs: s.masConfig, Log: s.log}
	api.ServeHTTP(w, r)
}

func (s *server) healthHandler(ping func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if len(s.configs.Namespaces()) == 0 {
			http.Error(w, "no configs loaded", http.StatusServiceUnavailable)
			return
		}
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				http.Error(w, "tile index unreachable: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		io.WriteString(w, "ok\n")
	}
}

// cors sets the headers gsky has always sent and answers preflight
// requests.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, If-None-Match")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) routes(ping func(context.Context) error) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/healthz", s.healthHandler(ping))
	if s.provider != nil {
		r.Method(http.MethodGet, "/metrics", s.provider.Handler())
	}
	r.Get("/mas/{layer}", s.masHandler)

	r.HandleFunc("/ows", s.owsHandler)
	r.HandleFunc("/ows/*", s.owsHandler)
	r.Get("/*", s.fileHandler)
	return r
}

func listen(addr string) (net.Listener, error) {
	var l net.Listener
	var err error
	if *reusePort {
		l, err = reuseport.Listen("tcp", addr)
	} else {
		l, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return nil, err
	}
	if *maxConns > 0 {
		l = netutil.LimitListener(l, *maxConns)
	}
	return l, nil
}

func main() {
	flag.Parse()

	utils.DataDir = *serverDataDir
	utils.EtcDir = *serverConfigDir

	level := *logLevel
	if *verbose && level == "info" {
		level = "debug"
	}
	log := utils.NewLogger(utils.LogConfig{Level: level, Component: "ows"}, os.Stderr)

	confMap, err := utils.LoadAllConfigFiles(utils.EtcDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Error in loading config files")
	}

	if *validateConfig {
		os.Exit(0)
	}

	if *dumpConfig {
		configJson, err := json.MarshalIndent(confMap, "", "  ")
		if err != nil {
			log.Fatal().Err(err).Msg("Error in dumping configs")
		}
		fmt.Println(string(configJson))
		os.Exit(0)
	}

	renderer, err := render.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading templates")
	}

	gdal.InitGdal()

	s := &server{
		configs:   utils.NewConfigStore(confMap),
		source:    gdal.NewSource(log),
		projector: gdal.Projector{},
		renderer:  renderer,
		log:       log,
	}

	pool := &indexPool{
		indexes: make(map[string]*mas.Index),
		opts:    mas.Options{MaxIdleConns: *dbPool, MaxOpenConns: *dbLimit, QueryTimeout: 30 * time.Second},
		log:     log.With().Str("component", "mas").Logger(),
	}
	defer pool.close()
	s.indexFor = pool.get

	var loggers []metrics.Logger
	if len(*serverLogDir) > 0 {
		if *serverLogDir == "-" {
			loggers = append(loggers, metrics.NewStdoutLogger(log))
		} else {
			fl := metrics.NewFileLogger(*serverLogDir, 0, 0, log)
			defer fl.Close()
			loggers = append(loggers, fl)
		}
	}
	if *enableMetrics {
		s.provider = metrics.NewProvider(version)
		s.provider.SetConfigNamespaces(len(confMap))
		raster.DriverLock.Observe(s.provider.ObserveLockWait)
	}
	s.metricsLogger = &metrics.Tee{Provider: s.provider, Loggers: loggers}

	utils.WatchConfig(log, s.configs, func(configs map[string]*utils.Config) {
		if s.provider != nil {
			s.provider.SetConfigNamespaces(len(configs))
		}
	})

	addr := fmt.Sprintf("0.0.0.0:%d", *port)
	l, err := listen(addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", addr).Msg("listen failed")
	}

	srv := &http.Server{
		Handler:           s.routes(pool.ping),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("version", version).Msg("GSKY WCS is ready")
		if err := srv.Serve(l); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	case err := <-errCh:
		log.Error().Err(err).Msg("server stopped")
	}
}
