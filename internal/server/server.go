// Package server exposes the beacon registry, allele queries and variant
// comparison over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"go.uber.org/zap"

	"github.com/inodb/vibe-beacon/internal/compare"
	"github.com/inodb/vibe-beacon/internal/query"
	"github.com/inodb/vibe-beacon/internal/registry"
)

// ErrorResponse is the body returned for rejected requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CompareResponse lists the common variants of two beacons.
type CompareResponse struct {
	Beacon1ID      string      `json:"beacon1Id"`
	Beacon2ID      string      `json:"beacon2Id"`
	CommonVariants compare.Set `json:"commonVariants"`
}

// Server routes HTTP requests to the query engine and comparer.
type Server struct {
	echo     *echo.Echo
	catalog  *registry.Catalog
	engine   *query.Engine
	comparer compare.Comparer
	logger   *zap.Logger
}

// New creates a server over catalog. Nil searcher or comparer fall back to
// reading the JSON documents directly.
func New(catalog *registry.Catalog, searcher query.Searcher, comparer compare.Comparer) *Server {
	if comparer == nil {
		comparer = compare.DocumentComparer{Catalog: catalog}
	}
	s := &Server{
		echo:     echo.New(),
		catalog:  catalog,
		engine:   query.NewEngine(catalog, searcher),
		comparer: comparer,
		logger:   zap.NewNop(),
	}

	s.echo.HideBanner = true
	s.echo.Use(middleware.Recover())

	s.echo.GET("/beacons", s.getBeacons)
	s.echo.GET("/query", s.getQuery)
	s.echo.GET("/compare", s.getCompare)
	return s
}

// SetLogger sets the logger for requests and the query engine.
func (s *Server) SetLogger(l *zap.Logger) {
	s.logger = l
	s.engine.SetLogger(l)
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errc <- s.echo.Start(addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		if err := s.echo.Shutdown(context.Background()); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) getBeacons(c echo.Context) error {
	return c.JSON(http.StatusOK, s.catalog.Entries())
}

func (s *Server) getQuery(c echo.Context) error {
	req := query.Request{
		Chromosome:     c.QueryParam("chromosome"),
		Position:       c.QueryParam("position"),
		ReferenceBases: c.QueryParam("referenceBases"),
		AlternateBases: c.QueryParam("alternateBases"),
		BeaconID:       c.QueryParam("beaconId"),
	}

	resp, err := s.engine.Query(req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}
	if resp.Error == query.MsgInvalidBeacon {
		return c.JSON(http.StatusNotFound, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) getCompare(c echo.Context) error {
	keyA := c.QueryParam("beacon1Id")
	keyB := c.QueryParam("beacon2Id")
	if keyA == "" || keyB == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "beacon1Id and beacon2Id are required"})
	}
	for _, k := range []string{keyA, keyB} {
		if !s.catalog.Has(k) {
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown beacon " + k})
		}
	}

	common, err := s.comparer.CommonVariants(keyA, keyB)
	if err != nil {
		s.logger.Error("compare failed", zap.String("beacon1", keyA), zap.String("beacon2", keyB), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, CompareResponse{
		Beacon1ID:      keyA,
		Beacon2ID:      keyB,
		CommonVariants: common,
	})
}
