package mas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/nci/gskywcs/raster"
	"github.com/nci/gskywcs/utils"
)

// Lister is the part of Index the API needs.
type Lister interface {
	Entries(ctx context.Context, layer *utils.Layer, bbox raster.Rect, crs string, timeValue string) ([]Entry, error)
}

// ConfigFunc returns the config of a namespace.
type ConfigFunc func(namespace string) (*utils.Config, bool)

// API serves /mas/{layer}: the tile index entries of a layer intersecting
// a bounding box, as JSON.
type API struct {
	Index   Lister
	Configs ConfigFunc
	Log     zerolog.Logger
}

type listing struct {
	Layer     string  `json:"layer"`
	Namespace string  `json:"namespace,omitempty"`
	Count     int     `json:"count"`
	Files     []Entry `json:"files"`
}

// Spit out a simple JSON-formatted error message for Content-Type: application/json
func httpJSONError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, "{ \"error\": %q }\n", err.Error())
}

func parseBBox(s string) (raster.Rect, error) {
	tok := strings.Split(s, ",")
	if len(tok) != 4 {
		return raster.Rect{}, errors.New("bbox requires minx,miny,maxx,maxy")
	}
	var v [4]float64
	for i, t := range tok {
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return raster.Rect{}, fmt.Errorf("invalid bbox value %q", t)
		}
		v[i] = f
	}
	if v[0] >= v[2] || v[1] >= v[3] {
		return raster.Rect{}, errors.New("bbox minimum must be below maximum")
	}
	return raster.Rect{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}, nil
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "layer")
	query := r.URL.Query()
	namespace := query.Get("namespace")

	config, ok := a.Configs(namespace)
	if !ok {
		httpJSONError(w, fmt.Errorf("unknown namespace %q", namespace), http.StatusNotFound)
		return
	}
	layer := config.FindLayer(name)
	if layer == nil {
		httpJSONError(w, fmt.Errorf("unknown layer %q", name), http.StatusNotFound)
		return
	}
	if layer.TileIndexTable == "" {
		httpJSONError(w, fmt.Errorf("layer %q is not tile indexed", layer.Name), http.StatusBadRequest)
		return
	}

	bbox, err := parseBBox(query.Get("bbox"))
	if err != nil {
		httpJSONError(w, err, http.StatusBadRequest)
		return
	}
	crs := query.Get("srs")
	if crs == "" {
		crs = "EPSG:4326"
	}

	entries, err := a.Index.Entries(r.Context(), layer, bbox, crs, query.Get("time"))
	if err != nil {
		a.Log.Error().Err(err).Str("layer", layer.Name).Msg("mas lookup failed")
		httpJSONError(w, err, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(listing{Layer: layer.Name, Namespace: namespace, Count: len(entries), Files: entries}); err != nil {
		a.Log.Error().Err(err).Msg("mas response encoding failed")
	}
}
