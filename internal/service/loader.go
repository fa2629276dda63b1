package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/prasenjit/go-modulus/internal/models"
)

// Files that classify a service directory
const (
	CodeEntryFile   = "index.yaml"
	ConfigEntryFile = "index.json"
	ProxyFile       = "proxy.yaml"
)

var validMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
	http.MethodPatch:   true,
	http.MethodOptions: true,
}

// Loader discovers mock services below a root directory
type Loader struct {
	catalog *Catalog
	prefix  string
	logger  *zap.Logger
}

// NewLoader creates a loader mounting services under prefix
func NewLoader(catalog *Catalog, prefix string, logger *zap.Logger) *Loader {
	if catalog == nil {
		catalog = NewCatalog()
	}
	return &Loader{
		catalog: catalog,
		prefix:  "/" + strings.Trim(prefix, "/"),
		logger:  logger,
	}
}

// Load scans the immediate subdirectories of rootDir in name order.
// A missing root yields an empty registry. Problems in one directory are
// recorded on the registry and never stop the others.
func (l *Loader) Load(rootDir string) (*Registry, error) {
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve mocks root: %w", err)
	}
	reg := newRegistry(abs)

	dirEntries, err := os.ReadDir(abs)
	if errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("mocks root does not exist, no services loaded", zap.String("root", abs))
		return reg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mocks root %s: %w", abs, err)
	}

	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		name := de.Name()
		dir := filepath.Join(abs, name)
		log := l.logger.With(zap.String("service", name))

		entry, err := l.loadDir(name, dir)
		if err != nil {
			kind := KindWarning
			if errors.Is(err, ErrConfig) {
				kind = KindConfig
				log.Error("service not loaded", zap.Error(err))
			} else {
				log.Warn("directory skipped", zap.Error(err))
			}
			reg.errors = append(reg.errors, &LoadError{Dir: name, Kind: kind, Message: err.Error(), err: err})
			continue
		}

		reg.add(name, entry)
		log.Info("service loaded",
			zap.String("kind", string(entry.Descriptor.Kind)),
			zap.String("mount", entry.Descriptor.MountPath),
			zap.String("default", entry.Descriptor.DefaultVariantID),
			zap.Int("variants", len(entry.Descriptor.Variants)),
		)
	}

	l.logger.Info("mock services loaded",
		zap.String("root", abs),
		zap.Int("services", reg.Len()),
		zap.Int("problems", len(reg.errors)),
	)
	return reg, nil
}

func (l *Loader) loadDir(name, dir string) (*Entry, error) {
	if fileExists(filepath.Join(dir, CodeEntryFile)) {
		return l.loadCode(name, dir)
	}
	if fileExists(filepath.Join(dir, ConfigEntryFile)) {
		return l.loadConfig(name, dir)
	}
	return nil, fmt.Errorf("neither %s nor %s found", CodeEntryFile, ConfigEntryFile)
}

func (l *Loader) mountPath(name string) string {
	return path.Join(l.prefix, name)
}

// loadCode handles a directory whose index.yaml names a registered code service.
// Entry point problems are warnings, metadata problems are config errors.
func (l *Loader) loadCode(name, dir string) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(dir, CodeEntryFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", CodeEntryFile, err)
	}

	var ep models.CodeEntryPoint
	if err := yaml.Unmarshal(data, &ep); err != nil {
		return nil, fmt.Errorf("malformed %s: %w", CodeEntryFile, err)
	}
	if ep.Handler == "" {
		return nil, fmt.Errorf("%s has no handler", CodeEntryFile)
	}

	svc, ok := l.catalog.Service(ep.Handler)
	if !ok {
		return nil, fmt.Errorf("no code service registered as %q", ep.Handler)
	}

	var meta Metadata
	if d, ok := svc.(Describer); ok {
		meta = d.Describe()
	}
	if ep.Name != "" {
		meta.Name = ep.Name
	}
	if ep.Desc != "" {
		meta.Description = ep.Desc
	}
	if ep.DefaultResponse != "" {
		meta.DefaultVariantID = ep.DefaultResponse
	}
	if len(ep.Responses) > 0 {
		meta.Variants = ep.Responses
	}
	if meta.Name == "" {
		meta.Name = name
	}

	desc := models.ServiceDescriptor{
		Name:             meta.Name,
		Description:      meta.Description,
		DefaultVariantID: meta.DefaultVariantID,
		Variants:         append([]models.VariantMeta(nil), meta.Variants...),
		Kind:             models.KindCode,
		MountPath:        l.mountPath(name),
	}

	// Code services answer on their own; a declared default must still be real
	if desc.DefaultVariantID != "" && !desc.HasVariant(desc.DefaultVariantID) {
		return nil, fmt.Errorf("%w: default response %q is not one of the declared responses", ErrConfig, desc.DefaultVariantID)
	}

	return &Entry{Descriptor: desc, Dir: dir, Code: svc}, nil
}

// loadConfig handles a declarative service: index.json plus one file per variant
func (l *Loader) loadConfig(name, dir string) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(dir, ConfigEntryFile))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrConfig, ConfigEntryFile, err)
	}

	var cfg models.ServiceConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: malformed %s: %v", ErrConfig, ConfigEntryFile, err)
	}

	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if !validMethods[method] {
		return nil, fmt.Errorf("%w: unsupported method %q", ErrConfig, cfg.Method)
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		return nil, fmt.Errorf("%w: path %q must start with /", ErrConfig, cfg.Path)
	}
	if cfg.DefaultResponse == "" {
		return nil, fmt.Errorf("%w: defaultResponse is required", ErrConfig)
	}
	if err := validateUniqueKey(cfg.UniqueKey); err != nil {
		return nil, err
	}

	variants, err := readVariants(dir)
	if err != nil {
		return nil, err
	}

	var proxy gin.HandlerFunc
	if fileExists(filepath.Join(dir, ProxyFile)) {
		proxy, err = l.loadProxy(dir, l.mountPath(name))
		if err != nil {
			return nil, err
		}
		variants = append(variants, models.VariantMeta{ID: models.ProxyVariantID, Name: "Proxy Pass"})
	}

	desc := models.ServiceDescriptor{
		Name:             cfg.Name,
		Description:      cfg.Desc,
		DefaultVariantID: cfg.DefaultResponse,
		UniqueKey:        cfg.UniqueKey,
		Variants:         variants,
		Kind:             models.KindConfig,
		Method:           method,
		Path:             cfg.Path,
		MountPath:        l.mountPath(name),
	}
	if desc.Name == "" {
		desc.Name = name
	}

	if !desc.HasVariant(desc.DefaultVariantID) {
		return nil, fmt.Errorf("%w: default response %q has no payload file", ErrConfig, desc.DefaultVariantID)
	}

	return &Entry{Descriptor: desc, Dir: dir, Proxy: proxy}, nil
}

func validateUniqueKey(uk *models.UniqueKeySpec) error {
	if uk == nil {
		return nil
	}
	valid := false
	for _, t := range models.ValidTargets() {
		if uk.Target == t {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: uniqueKey target %q must be one of %v", ErrConfig, uk.Target, models.ValidTargets())
	}
	if uk.Modifier == "" {
		return fmt.Errorf("%w: uniqueKey modifier is required", ErrConfig)
	}
	return nil
}

// readVariants returns one variant per sibling *.json file, in file name order
func readVariants(dir string) ([]models.VariantMeta, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list variants: %v", ErrConfig, err)
	}

	variants := make([]models.VariantMeta, 0, len(files))
	for _, f := range files {
		fileName := f.Name()
		if f.IsDir() || fileName == ConfigEntryFile || filepath.Ext(fileName) != ".json" {
			continue
		}
		id := strings.TrimSuffix(fileName, ".json")
		if id == models.ProxyVariantID {
			return nil, fmt.Errorf("%w: %s clashes with the proxy variant", ErrConfig, fileName)
		}

		data, err := os.ReadFile(filepath.Join(dir, fileName))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read variant %s: %v", ErrConfig, fileName, err)
		}

		var payload models.VariantPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("%w: malformed variant %s: %v", ErrConfig, fileName, err)
		}
		if !payload.Status.Valid() {
			return nil, fmt.Errorf("%w: variant %s has out of range status %d", ErrConfig, fileName, payload.Status)
		}

		label := payload.Name
		if label == "" {
			label = id
		}
		variants = append(variants, models.VariantMeta{ID: id, Name: label})
	}

	return variants, nil
}

// loadProxy builds the handler behind the proxy variant
func (l *Loader) loadProxy(dir, mountPath string) (gin.HandlerFunc, error) {
	data, err := os.ReadFile(filepath.Join(dir, ProxyFile))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrConfig, ProxyFile, err)
	}

	var pc models.ProxyConfig
	if err := yaml.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("%w: malformed %s: %v", ErrConfig, ProxyFile, err)
	}

	switch {
	case pc.Handler != "" && pc.Target != "":
		return nil, fmt.Errorf("%w: %s sets both handler and target", ErrConfig, ProxyFile)
	case pc.Handler != "":
		h, ok := l.catalog.Proxy(pc.Handler)
		if !ok {
			return nil, fmt.Errorf("%w: no proxy handler registered as %q", ErrConfig, pc.Handler)
		}
		return h, nil
	case pc.Target != "":
		target, err := url.Parse(pc.Target)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("%w: proxy target %q is not an absolute URL", ErrConfig, pc.Target)
		}
		return reverseProxy(target, mountPath, l.logger), nil
	default:
		return nil, fmt.Errorf("%w: %s needs a handler or a target", ErrConfig, ProxyFile)
	}
}

// reverseProxy forwards the request to target with the mount path stripped
func reverseProxy(target *url.URL, mountPath string, logger *zap.Logger) gin.HandlerFunc {
	rp := httputil.NewSingleHostReverseProxy(target)
	director := rp.Director
	rp.Director = func(req *http.Request) {
		req.URL.Path = strings.TrimPrefix(req.URL.Path, mountPath)
		req.URL.RawPath = ""
		director(req)
		req.Host = target.Host
	}
	rp.ErrorHandler = func(w http.ResponseWriter, req *http.Request, err error) {
		logger.Error("proxy pass failed", zap.String("target", target.String()), zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream unavailable"}`))
	}

	return func(c *gin.Context) {
		rp.ServeHTTP(c.Writer, c.Request)
	}
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
