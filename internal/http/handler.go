package http

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go.ngs.io/forecast-frames/internal/adapter/interp"
	"go.ngs.io/forecast-frames/internal/adapter/store"
	"go.ngs.io/forecast-frames/internal/domain"
	"go.ngs.io/forecast-frames/internal/observability"
	"go.ngs.io/forecast-frames/internal/usecase"
)

// Handler serves model, domain and dataset lookups.
type Handler struct {
	resolver domain.SourceResolver
	opener   store.Opener
	presets  domain.PresetSet
	dataDir  string
	zone     *time.Location
	logger   *zap.SugaredLogger
	metrics  *observability.Metrics
}

// HandlerConfig carries the dependencies of a Handler.
type HandlerConfig struct {
	Resolver domain.SourceResolver
	Opener   store.Opener
	Presets  domain.PresetSet
	// DataDir is the root that file query parameters are resolved against.
	DataDir string
	// Zone is the default label zone for /v1/timeaxis.
	Zone   *time.Location
	Logger *zap.SugaredLogger
	// Metrics is optional.
	Metrics *observability.Metrics
}

// NewHandler creates a new HTTP handler.
func NewHandler(cfg HandlerConfig) *Handler {
	presets := cfg.Presets
	if presets == nil {
		presets = domain.DefaultPresets()
	}
	zone := cfg.Zone
	if zone == nil {
		zone = time.UTC
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{
		resolver: cfg.Resolver,
		opener:   cfg.Opener,
		presets:  presets,
		dataDir:  cfg.DataDir,
		zone:     zone,
		logger:   logger,
		metrics:  cfg.Metrics,
	}
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ModelInfo describes a supported model.
type ModelInfo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Convention  string `json:"lon_convention"`
	AccumStride int    `json:"accum_stride"`
}

// GetModels handles GET /v1/models.
func (h *Handler) GetModels(c *gin.Context) {
	models := domain.Models()
	response := make([]ModelInfo, 0, len(models))
	for _, m := range models {
		response = append(response, ModelInfo{
			ID:          m.ID,
			Description: m.Description,
			Convention:  m.Convention.String(),
			AccumStride: m.AccumStride,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"models": response,
		"count":  len(response),
	})
}

// GetSource handles GET /v1/sources?model=&date=&cycle=.
func (h *Handler) GetSource(c *gin.Context) {
	model := c.Query("model")
	if model == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model parameter is required"})
		return
	}
	date := c.DefaultQuery("date", domain.DefaultRunDate())
	cycle := c.DefaultQuery("cycle", "00")

	location, err := h.resolver.Resolve(model, date, cycle)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"model":    model,
		"date":     date,
		"cycle":    cycle,
		"location": location,
	})
}

// DomainInfo describes a named map view.
type DomainInfo struct {
	Name       string  `json:"name"`
	LowerLat   float64 `json:"lower_lat"`
	UpperLat   float64 `json:"upper_lat"`
	LeftLon    float64 `json:"left_lon"`
	RightLon   float64 `json:"right_lon"`
	Convention string  `json:"lon_convention"`
	MapWidth   float64 `json:"map_width"`
	MapHeight  float64 `json:"map_height"`
	CenterLat  float64 `json:"center_lat"`
	CenterLon  float64 `json:"center_lon"`
}

func domainInfo(p domain.Preset) DomainInfo {
	w, hgt := p.Scale.Dimensions(p.Box)
	lat, lon := p.Box.Center()
	return DomainInfo{
		Name:       p.Name,
		LowerLat:   p.Box.LowerLat,
		UpperLat:   p.Box.UpperLat,
		LeftLon:    p.Box.LeftLon,
		RightLon:   p.Box.RightLon,
		Convention: p.Box.Convention.String(),
		MapWidth:   w,
		MapHeight:  hgt,
		CenterLat:  lat,
		CenterLon:  lon,
	}
}

// GetDomains handles GET /v1/domains.
func (h *Handler) GetDomains(c *gin.Context) {
	names := h.presets.Names()
	response := make([]DomainInfo, 0, len(names))
	for _, n := range names {
		p, _ := h.presets.Get(n)
		response = append(response, domainInfo(p))
	}
	c.JSON(http.StatusOK, gin.H{
		"domains": response,
		"count":   len(response),
	})
}

// GetDomain handles GET /v1/domains/:name. With ?model= the variant matching
// the model's longitude convention is returned.
func (h *Handler) GetDomain(c *gin.Context) {
	name := c.Param("name")
	var (
		p  domain.Preset
		ok bool
	)
	if modelID := c.Query("model"); modelID != "" {
		m, err := domain.LookupModel(modelID)
		if err != nil {
			h.writeError(c, err)
			return
		}
		p, ok = h.presets.ForModel(name, m)
	} else {
		p, ok = h.presets.Get(name)
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown domain %q", name)})
		return
	}
	c.JSON(http.StatusOK, domainInfo(p))
}

// StepInfo is one decoded forecast step.
type StepInfo struct {
	Step  int    `json:"step"`
	UTC   string `json:"utc"`
	Local string `json:"local"`
	Label string `json:"label"`
}

// GetTimeAxis handles GET /v1/timeaxis?file=&zone=.
func (h *Handler) GetTimeAxis(c *gin.Context) {
	path, ok := h.dataPath(c)
	if !ok {
		return
	}
	zone := h.zone
	if name := c.Query("zone"); name != "" {
		loc, err := time.LoadLocation(name)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid zone: %v", err)})
			return
		}
		zone = loc
	}

	ds, err := h.opener.Open(c.Request.Context(), path)
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer h.closeDataset(ds, path)

	axis, err := usecase.LoadTimeAxis(ds, zone, domain.TimeAxisOptions{})
	if err != nil {
		h.writeError(c, err)
		return
	}
	steps := make([]StepInfo, 0, axis.Len())
	for vt := range axis.All() {
		steps = append(steps, StepInfo{
			Step:  vt.Step,
			UTC:   vt.UTC.Format(time.RFC3339),
			Local: vt.Local.Format(time.RFC3339),
			Label: vt.Label,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"zone":  zone.String(),
		"steps": steps,
		"count": len(steps),
	})
}

// GetSample handles GET /v1/sample?file=&var=&step=&lat=&lon=. The value is
// bilinearly interpolated from the four surrounding grid points.
func (h *Handler) GetSample(c *gin.Context) {
	path, ok := h.dataPath(c)
	if !ok {
		return
	}
	variable := c.Query("var")
	if variable == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "var parameter is required"})
		return
	}
	step, err := strconv.Atoi(c.DefaultQuery("step", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid step: %v", err)})
		return
	}
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid latitude: %v", err)})
		return
	}
	lon, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid longitude: %v", err)})
		return
	}

	ds, err := h.opener.Open(c.Request.Context(), path)
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer h.closeDataset(ds, path)

	lats, err := ds.Axis(store.AxisLat)
	if err != nil {
		h.writeError(c, err)
		return
	}
	lons, err := ds.Axis(store.AxisLon)
	if err != nil {
		h.writeError(c, err)
		return
	}
	lon = domain.ToConvention(lon, domain.DetectLonConvention(lons))

	latWin, err := interp.Window(lats, lat)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("latitude: %v", err)})
		return
	}
	lonWin, err := interp.Window(lons, lon)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("longitude: %v", err)})
		return
	}
	start := time.Now()
	grid, err := ds.ReadGrid(variable, step, latWin, lonWin)
	if h.metrics != nil {
		h.metrics.GridReadDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	sampler, err := interp.NewSampler(lats[latWin.Start:latWin.End], lons[lonWin.Start:lonWin.End], grid)
	if err != nil {
		h.writeError(c, err)
		return
	}
	value, err := sampler.At(lat, lon)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"var":   variable,
		"step":  step,
		"lat":   lat,
		"lon":   lon,
		"value": value,
	})
}

// dataPath resolves the file query parameter under the data directory.
// Leading "..", absolute paths and the like cannot escape it.
func (h *Handler) dataPath(c *gin.Context) (string, bool) {
	file := c.Query("file")
	if file == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file parameter is required"})
		return "", false
	}
	clean := filepath.Clean("/" + file)
	if clean == "/" {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid file %q", file)})
		return "", false
	}
	return filepath.Join(h.dataDir, clean), true
}

func (h *Handler) closeDataset(ds store.Dataset, path string) {
	if err := ds.Close(); err != nil {
		h.logger.Warnw("failed to close dataset", "path", path, "error", err)
	}
}

// writeError maps domain errors onto status codes.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		unknownModel *domain.UnknownModelError
		missingVar   *domain.VariableNotFoundError
		badStep      *domain.StepOutOfRangeError
		badTime      *domain.TimeDecodeError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &unknownModel), errors.As(err, &missingVar), errors.Is(err, fs.ErrNotExist):
		status = http.StatusNotFound
	case errors.As(err, &badStep):
		status = http.StatusBadRequest
	case errors.As(err, &badTime):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidRun):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger.Errorw("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
