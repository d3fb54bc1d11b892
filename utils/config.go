package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

var EtcDir = "."
var DataDir = "."

// DefaultMaxSize bounds the width and height of a coverage extraction
// when the service config does not set max_size.
const DefaultMaxSize = 4096

// DefaultSchemasLocation is the root of the OGC schema repository
// referenced by every document.
const DefaultSchemasLocation = "http://schemas.opengis.net"

// Contact is the responsible party of the service.
type Contact struct {
	Person       string `json:"person" yaml:"person"`
	Organization string `json:"organization" yaml:"organization"`
	Position     string `json:"position" yaml:"position"`
	Voice        string `json:"voice" yaml:"voice"`
	Facsimile    string `json:"facsimile" yaml:"facsimile"`
	Address      string `json:"address" yaml:"address"`
	City         string `json:"city" yaml:"city"`
	Region       string `json:"region" yaml:"region"`
	PostCode     string `json:"postcode" yaml:"postcode"`
	Country      string `json:"country" yaml:"country"`
	Email        string `json:"email" yaml:"email"`
	URL          string `json:"url" yaml:"url"`
}

// HasPhone reports whether any telephone detail is set.
func (c Contact) HasPhone() bool { return c.Voice != "" || c.Facsimile != "" }

// HasAddress reports whether any postal or email detail is set.
func (c Contact) HasAddress() bool {
	return c.Address != "" || c.City != "" || c.Region != "" || c.PostCode != "" || c.Country != "" || c.Email != ""
}

type ServiceConfig struct {
	OWSHostname       string            `json:"ows_hostname" yaml:"ows_hostname"`
	OWSProtocol       string            `json:"ows_protocol" yaml:"ows_protocol"`
	Title             string            `json:"title" yaml:"title"`
	Abstract          string            `json:"abstract" yaml:"abstract"`
	Keywords          []string          `json:"keywords" yaml:"keywords"`
	Fees              string            `json:"fees" yaml:"fees"`
	AccessConstraints string            `json:"access_constraints" yaml:"access_constraints"`
	Contact           Contact           `json:"contact" yaml:"contact"`
	UpdateSequence    string            `json:"update_sequence" yaml:"update_sequence"`
	MaxSize           int               `json:"max_size" yaml:"max_size"`
	SRS               string            `json:"srs" yaml:"srs"`
	SRSURN            string            `json:"srs_urn" yaml:"srs_urn"`
	EnableRequest     []string          `json:"enable_request" yaml:"enable_request"`
	Languages         []string          `json:"languages" yaml:"languages"`
	SchemasLocation   string            `json:"schemas_location" yaml:"schemas_location"`
	TileIndex         string            `json:"tile_index" yaml:"tile_index"`
	Formats           []string          `json:"formats" yaml:"formats"`
	Metadata          map[string]string `json:"metadata" yaml:"metadata"`
}

// OutputFormat maps a WCS format name to the GDAL driver encoding it.
type OutputFormat struct {
	Name            string   `json:"name" yaml:"name"`
	MimeType        string   `json:"mime_type" yaml:"mime_type"`
	Driver          string   `json:"driver" yaml:"driver"`
	Extension       string   `json:"extension" yaml:"extension"`
	CreationOptions []string `json:"creation_options" yaml:"creation_options"`
	// FileName names the encoded file in responses and attachments.
	FileName string `json:"filename" yaml:"filename"`
}

// Layer contains all the details that a coverage needs
// to be published and extracted
type Layer struct {
	NameSpace        string            `json:"-" yaml:"-"`
	Name             string            `json:"name" yaml:"name"`
	Title            string            `json:"title" yaml:"title"`
	Abstract         string            `json:"abstract" yaml:"abstract"`
	Keywords         []string          `json:"keywords" yaml:"keywords"`
	DataSource       string            `json:"data_source" yaml:"data_source"`
	TileIndexTable   string            `json:"tile_index_table" yaml:"tile_index_table"`
	SRS              string            `json:"srs" yaml:"srs"`
	SRSURN           string            `json:"srs_urn" yaml:"srs_urn"`
	EnableRequest    []string          `json:"enable_request" yaml:"enable_request"`
	EnableExpression string            `json:"enable_expression" yaml:"enable_expression"`
	Formats          []string          `json:"formats" yaml:"formats"`
	TimePosition     []string          `json:"timeposition" yaml:"timeposition"`
	TimeItem         string            `json:"timeitem" yaml:"timeitem"`
	StartISODate     string            `json:"start_isodate" yaml:"start_isodate"`
	EndISODate       string            `json:"end_isodate" yaml:"end_isodate"`
	StepDays         int               `json:"step_days" yaml:"step_days"`
	StepHours        int               `json:"step_hours" yaml:"step_hours"`
	StepMinutes      int               `json:"step_minutes" yaml:"step_minutes"`
	TimeGen          string            `json:"time_generator" yaml:"time_generator"`
	Metadata         map[string]string `json:"metadata" yaml:"metadata"`
	Processing       []string          `json:"processing" yaml:"processing"`
}

// Lookup returns a metadata value by key. The wcs_ and ows_ prefixed
// spellings are accepted as well, in that order.
func (l *Layer) Lookup(key string) (string, bool) {
	return lookupMetadata(l.Metadata, key)
}

// Meta is Lookup without the presence flag.
func (l *Layer) Meta(key string) string {
	v, _ := l.Lookup(key)
	return v
}

// Lookup returns a service metadata value by key, see Layer.Lookup.
func (s *ServiceConfig) Lookup(key string) (string, bool) {
	return lookupMetadata(s.Metadata, key)
}

func lookupMetadata(md map[string]string, key string) (string, bool) {
	if md == nil {
		return "", false
	}
	for _, k := range []string{key, "wcs_" + key, "ows_" + key} {
		if v, ok := md[k]; ok {
			return v, true
		}
	}
	return "", false
}

// Config is the configuration of one service namespace: the service
// description, its output formats and the coverages it publishes.
type Config struct {
	ServiceConfig ServiceConfig  `json:"service_config" yaml:"service_config"`
	OutputFormats []OutputFormat `json:"output_formats" yaml:"output_formats"`
	Layers        []Layer        `json:"layers" yaml:"layers"`
}

// DefaultOutputFormats is used when a config declares none.
var DefaultOutputFormats = []OutputFormat{
	{Name: "GTiff", MimeType: "image/tiff", Driver: "GTiff", Extension: "tif"},
	{Name: "NetCDF", MimeType: "application/x-netcdf", Driver: "netCDF", Extension: "nc"},
}

// OnlineResource is the service URL advertised in documents.
func (config *Config) OnlineResource(namespace string) string {
	proto := config.ServiceConfig.OWSProtocol
	if proto == "" {
		proto = "http"
	}
	url := fmt.Sprintf("%s://%s/ows", proto, config.ServiceConfig.OWSHostname)
	if namespace != "" && namespace != "." {
		url += "/" + namespace
	}
	return url + "?"
}

// FindLayer returns the layer whose name matches, ignoring case.
func (config *Config) FindLayer(name string) *Layer {
	for i := range config.Layers {
		if strings.EqualFold(config.Layers[i].Name, name) {
			return &config.Layers[i]
		}
	}
	return nil
}

// string used to format Go ISO times
const ISOFormat = "2006-01-02T15:04:05.000Z"

func GenerateDatesRegular(start, end time.Time, step time.Duration) []string {
	dates := []string{}
	if step <= 0 {
		return dates
	}
	for start.Before(end) {
		dates = append(dates, start.Format(ISOFormat))
		start = start.Add(step)
	}
	return dates
}

func GenerateMonthlyDates(start, end time.Time, step time.Duration) []string {
	dates := []string{}
	for start.Before(end) {
		dates = append(dates, time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC).Format(ISOFormat))
		start = start.AddDate(0, 1, 0)
	}
	return dates
}

func GenerateYearlyDates(start, end time.Time, step time.Duration) []string {
	dates := []string{}
	for start.Before(end) {
		dates = append(dates, time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC).Format(ISOFormat))
		start = start.AddDate(1, 0, 0)
	}
	return dates
}

var dateGenerators = map[string]func(time.Time, time.Time, time.Duration) []string{
	"regular": GenerateDatesRegular,
	"monthly": GenerateMonthlyDates,
	"yearly":  GenerateYearlyDates,
}

// GenerateDates expands a layer time generator into the list of time
// positions it advertises.
func GenerateDates(name string, start, end time.Time, step time.Duration) ([]string, error) {
	gen, ok := dateGenerators[name]
	if !ok {
		return nil, fmt.Errorf("unknown time generator: %s", name)
	}
	return gen(start, end, step), nil
}

func isConfigFile(name string) bool {
	return name == "config.json" || name == "config.yaml" || name == "config.yml"
}

func LoadAllConfigFiles(rootDir string, log zerolog.Logger) (map[string]*Config, error) {
	configMap := make(map[string]*Config)
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && isConfigFile(info.Name()) {
			relPath, _ := filepath.Rel(rootDir, filepath.Dir(path))
			log.Info().Str("file", path).Str("namespace", relPath).Msg("loading config file")

			if _, found := configMap[relPath]; found {
				return fmt.Errorf("more than one config file under namespace: %s", relPath)
			}

			config := &Config{}
			e := config.LoadConfigFile(path)
			if e != nil {
				return e
			}

			configMap[relPath] = config

			for i := range config.Layers {
				ns := relPath
				if relPath == "." {
					ns = ""
				}
				config.Layers[i].NameSpace = ns
			}
		}
		return nil
	})

	if err == nil && len(configMap) == 0 {
		err = fmt.Errorf("No config file found")
	}

	return configMap, err
}

// LoadConfigFile reads a config.json or config.yaml document into config
// and fills in the defaults.
func (config *Config) LoadConfigFile(configFile string) error {
	*config = Config{}
	cfg, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("Error while reading config file: %s. Error: %v", configFile, err)
	}

	switch filepath.Ext(configFile) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(cfg, config)
		if err != nil {
			return fmt.Errorf("Error at YAML parsing config document: %s. Error: %v", configFile, err)
		}
	default:
		err = json.Unmarshal(cfg, config)
		if err != nil {
			return fmt.Errorf("Error at JSON parsing config document: %s. Error: %v", configFile, err)
		}
	}

	return config.applyDefaults()
}

func (config *Config) applyDefaults() error {
	if config.ServiceConfig.MaxSize <= 0 {
		config.ServiceConfig.MaxSize = DefaultMaxSize
	}
	if config.ServiceConfig.SchemasLocation == "" {
		config.ServiceConfig.SchemasLocation = DefaultSchemasLocation
	}
	if config.ServiceConfig.EnableRequest == nil {
		config.ServiceConfig.EnableRequest = []string{"*"}
	}
	if len(config.OutputFormats) == 0 {
		config.OutputFormats = append([]OutputFormat(nil), DefaultOutputFormats...)
	}
	for _, of := range config.OutputFormats {
		if of.Name == "" || of.Driver == "" {
			return fmt.Errorf("output format requires a name and a driver: %+v", of)
		}
	}

	for i, layer := range config.Layers {
		if layer.Name == "" {
			return fmt.Errorf("layer %d has no name", i)
		}
		if _, err := CompileEnableExpression(layer.EnableExpression); err != nil {
			return fmt.Errorf("layer %s: invalid enable_expression: %v", layer.Name, err)
		}
		if len(layer.TimePosition) == 0 && layer.TimeGen != "" {
			start, err := time.Parse(ISOFormat, layer.StartISODate)
			if err != nil {
				return fmt.Errorf("layer %s: invalid start_isodate: %v", layer.Name, err)
			}
			end, err := time.Parse(ISOFormat, layer.EndISODate)
			if err != nil {
				return fmt.Errorf("layer %s: invalid end_isodate: %v", layer.Name, err)
			}
			step := time.Minute * time.Duration(60*24*layer.StepDays+60*layer.StepHours+layer.StepMinutes)
			dates, err := GenerateDates(layer.TimeGen, start, end, step)
			if err != nil {
				return fmt.Errorf("layer %s: %v", layer.Name, err)
			}
			config.Layers[i].TimePosition = dates
		}
	}
	return nil
}

// ConfigStore holds the namespace to config map shared by the request
// handlers and swapped as a whole on reload.
type ConfigStore struct {
	mu      sync.RWMutex
	configs map[string]*Config
}

func NewConfigStore(configs map[string]*Config) *ConfigStore {
	return &ConfigStore{configs: configs}
}

// Get returns the config of a namespace.
func (s *ConfigStore) Get(namespace string) (*Config, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	config, ok := s.configs[namespace]
	return config, ok
}

// Namespaces lists the loaded namespaces.
func (s *ConfigStore) Namespaces() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for k := range s.configs {
		out = append(out, k)
	}
	return out
}

// Replace swaps in a new config map.
func (s *ConfigStore) Replace(configs map[string]*Config) {
	s.mu.Lock()
	s.configs = configs
	s.mu.Unlock()
}

// WatchConfig reloads every config file under EtcDir on SIGHUP. A failed
// reload keeps the previous configs. onReload, when set, is called after
// each successful reload.
func WatchConfig(log zerolog.Logger, store *ConfigStore, onReload func(map[string]*Config)) {
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			log.Info().Msg("Caught SIGHUP, reloading config...")
			confMap, err := LoadAllConfigFiles(EtcDir, log)
			if err != nil {
				log.Error().Err(err).Msg("Error in loading config files")
				continue
			}
			store.Replace(confMap)
			log.Info().Int("namespaces", len(confMap)).Msg("config reloaded")
			if onReload != nil {
				onReload(confMap)
			}
		}
	}()
}
