package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/nci/gskywcs/utils"
)

type URLInfo struct {
	RawURL string            `json:"raw_url"`
	Host   string            `json:"host"`
	Path   string            `json:"path"`
	Query  map[string]string `json:"query"`
}

// WCSInfo describes the exchange behind a request.
type WCSInfo struct {
	Version   string   `json:"version"`
	Request   string   `json:"request"`
	Coverages []string `json:"coverages"`
	State     string   `json:"state"`
	Exception string   `json:"exception,omitempty"`
	Locator   string   `json:"locator,omitempty"`
	NumFiles  int      `json:"num_files"`
	BytesOut  int      `json:"bytes_out"`
}

type MetricsInfo struct {
	ReqTime     string        `json:"req_time"`
	ReqDuration time.Duration `json:"req_duration"`
	URL         URLInfo       `json:"url"`
	RemoteAddr  string        `json:"remote_addr"`
	RemoteHost  string        `json:"remote_host"`
	RemotePort  string        `json:"remote_port"`
	HTTPStatus  int           `json:"http_status"`
	WCS         *WCSInfo      `json:"wcs"`
}

type MetricsCollector struct {
	Info   *MetricsInfo
	logger Logger
}

func NewMetricsCollector(logger Logger) *MetricsCollector {
	return &MetricsCollector{
		Info: &MetricsInfo{
			WCS: &WCSInfo{},
		},
		logger: logger,
	}
}

func (m *MetricsCollector) Log() {
	if m.logger != nil {
		m.logger.Log(m.Info)
	}
}

func (i *MetricsInfo) ToJSON() (string, error) {
	i.normaliseNetworkAddr(i.RemoteAddr)
	if err := i.normaliseURL(&i.URL); err != nil {
		return "", fmt.Errorf("normaliseURL: %v", err)
	}

	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(i); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (i *MetricsInfo) normaliseNetworkAddr(addr string) {
	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		i.RemoteHost = host
		i.RemotePort = port
	} else {
		i.RemoteHost = addr
	}
}

func (i *MetricsInfo) normaliseURL(u *URLInfo) error {
	r, err := url.Parse(u.RawURL)
	if err != nil {
		return err
	}

	u.Host = r.Host
	u.Path = r.Path
	query, err := utils.ParseQuery(r.RawQuery)
	if err != nil {
		return err
	}

	if u.Query == nil {
		u.Query = make(map[string]string)
	}
	var multi map[string][]string
	for _, p := range query {
		if prev, ok := u.Query[p.Name]; ok {
			if multi == nil {
				multi = make(map[string][]string)
			}
			if _, seen := multi[p.Name]; !seen {
				multi[p.Name] = []string{prev}
			}
			multi[p.Name] = append(multi[p.Name], p.Value)
			continue
		}
		u.Query[p.Name] = p.Value
	}
	for k, v := range multi {
		u.Query[k] = fmt.Sprintf("%v", v)
	}
	return nil
}
