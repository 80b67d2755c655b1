// Package scan builds the dependency graph of a JavaScript repository. Every
// source module becomes a systemModule under the repository's micro service;
// route modules contribute API components that depend on the controller
// functions they dispatch to, all other modules contribute their exported
// functions and fields.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/OFFIS-RIT/depgraph/pkg/common"
	"github.com/OFFIS-RIT/depgraph/pkg/loader"
	"github.com/OFFIS-RIT/depgraph/pkg/loader/jsast"
	"github.com/OFFIS-RIT/depgraph/pkg/logger"
	"github.com/OFFIS-RIT/depgraph/pkg/store"

	"golang.org/x/sync/errgroup"
)

const (
	TypeMono     = "mono"
	TypeClass    = "Class"
	TypeAPI      = "API"
	TypeFunction = "Function"
	TypeField    = "Field"
)

// DefaultRouteSuffix marks route modules.
const DefaultRouteSuffix = ".routes.js"

var sourceSuffixes = []string{".js", ".mjs", ".cjs"}

// Creator persists a vertex tree; *graph.Builder implements it.
type Creator interface {
	CreateVertex(ctx context.Context, v common.Vertex, session store.Session) ([]*common.VertexRecord, error)
}

// Describer summarises a function; *ai.Extractor implements it.
type Describer interface {
	FunctionDescription(ctx context.Context, code string) (string, error)
}

// Scanner walks one repository.
type Scanner struct {
	creator      Creator
	describer    Describer
	loader       loader.SourceLoader
	microService string
	description  string
	routeSuffix  string
	concurrency  int
}

// NewScannerParams configures a Scanner.
//
// Creator, Loader and MicroService are required. Without a Describer every
// function is described by its name.
type NewScannerParams struct {
	Creator      Creator
	Describer    Describer
	Loader       loader.SourceLoader
	MicroService string
	Description  string
	RouteSuffix  string
	Concurrency  int
}

func NewScanner(params NewScannerParams) (*Scanner, error) {
	if params.Creator == nil {
		return nil, errors.New("scan: creator is required")
	}
	if params.Loader == nil {
		return nil, errors.New("scan: source loader is required")
	}
	if params.MicroService == "" {
		return nil, errors.New("scan: micro service name is required")
	}
	s := &Scanner{
		creator:      params.Creator,
		describer:    params.Describer,
		loader:       params.Loader,
		microService: params.MicroService,
		description:  params.Description,
		routeSuffix:  params.RouteSuffix,
		concurrency:  params.Concurrency,
	}
	if s.description == "" {
		s.description = s.microService
	}
	if s.routeSuffix == "" {
		s.routeSuffix = DefaultRouteSuffix
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	return s, nil
}

// Result summarises a scan.
type Result struct {
	Modules    int `json:"modules"`
	Routes     int `json:"routes"`
	Components int `json:"components"`
	Vertices   int `json:"vertices"`
	// Unresolved lists route actions whose target module could not be found.
	Unresolved []string `json:"unresolved"`
	// Undescribed lists functions whose AI description failed.
	Undescribed []string `json:"undescribed"`
}

type parsedFile struct {
	file   loader.SourceFile
	module *jsast.Module
}

// Run scans the repository. Route modules are written before all other
// modules so that the functions they reference exist once their own module
// is scanned and merged.
func (s *Scanner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{Unresolved: []string{}, Undescribed: []string{}}

	root := s.microServiceVertex()
	records, err := s.creator.CreateVertex(ctx, root, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create micro service %s: %w", s.microService, err)
	}
	res.Vertices += len(records)

	files, err := loader.Walk(ctx, s.loader, loader.HasSuffix(sourceSuffixes...))
	if err != nil {
		return nil, fmt.Errorf("failed to list source files: %w", err)
	}
	known := make(map[string]bool, len(files))
	for _, f := range files {
		known[f.Path] = true
	}

	var routeFiles, otherFiles []parsedFile
	for _, f := range files {
		pf, err := s.parse(ctx, f)
		if err != nil {
			return nil, err
		}
		if strings.HasSuffix(f.Path, s.routeSuffix) {
			routeFiles = append(routeFiles, pf)
		} else {
			otherFiles = append(otherFiles, pf)
		}
	}
	logger.Info("[Scan] Parsed repository", "micro_service", s.microService, "route_modules", len(routeFiles), "modules", len(otherFiles))

	for _, pf := range routeFiles {
		if pf.module.Routes == nil {
			logger.Warn("[Scan] Route module has no route table, skipping", "path", pf.file.Path)
			continue
		}
		sm := s.routeModule(pf, known, res)
		if err := s.write(ctx, sm, res); err != nil {
			return nil, err
		}
	}

	for _, pf := range otherFiles {
		sm, err := s.sourceModule(ctx, pf, res)
		if err != nil {
			return nil, err
		}
		if err := s.write(ctx, sm, res); err != nil {
			return nil, err
		}
	}

	logger.Info("[Scan] Repository scanned",
		"micro_service", s.microService,
		"modules", res.Modules,
		"components", res.Components,
		"unresolved", len(res.Unresolved),
		"duration", time.Since(start))
	return res, nil
}

func (s *Scanner) parse(ctx context.Context, f loader.SourceFile) (parsedFile, error) {
	content, err := f.GetText(ctx)
	if err != nil {
		return parsedFile{}, fmt.Errorf("failed to read %s: %w", f.Path, err)
	}
	m, err := jsast.Parse(ctx, content)
	if err != nil {
		return parsedFile{}, fmt.Errorf("failed to parse %s: %w", f.Path, err)
	}
	return parsedFile{file: f, module: m}, nil
}

func (s *Scanner) microServiceVertex() *common.MicroService {
	return &common.MicroService{VertexBase: common.VertexBase{
		Name:        s.microService,
		Type:        TypeMono,
		Description: s.description,
	}}
}

// write stores one module tree rooted at the micro service, so that every
// module is linked to it.
func (s *Scanner) write(ctx context.Context, sm *common.SystemModule, res *Result) error {
	root := s.microServiceVertex()
	root.Dependencies = []common.Vertex{sm}

	records, err := s.creator.CreateVertex(ctx, root, "")
	if err != nil {
		return fmt.Errorf("failed to create system module %s: %w", sm.Name, err)
	}
	res.Modules++
	res.Components += len(sm.Dependencies)
	res.Vertices += len(records)
	logger.Debug("[Scan] Module written", "name", sm.Name, "vertices", len(records))
	return nil
}

// routeModule builds the systemModule of a route module. Every route becomes
// an API component depending on the controller functions named in its
// action list.
func (s *Scanner) routeModule(pf parsedFile, known map[string]bool, res *Result) *common.SystemModule {
	table := pf.module.Routes
	sm := &common.SystemModule{
		VertexBase: common.VertexBase{
			Name:        pf.file.Path,
			Type:        TypeClass,
			Description: table.Description,
		},
		MicroService: s.microService,
	}
	if sm.Description == "" {
		sm.Description = pf.file.Path
	}

	for _, route := range table.Routes {
		name := fmt.Sprintf("%s %s%s", strings.ToUpper(route.Method), table.BasePath, route.Path)
		api := &common.Component{
			VertexBase: common.VertexBase{
				Name:        name,
				Type:        TypeAPI,
				Description: route.Description,
			},
			SourceCode: route.Validators,
		}

		for _, action := range route.Actions {
			target, fn, ok := resolveAction(pf, action, known)
			if !ok {
				logger.Warn("[Scan] Missing dependency for route", "route", name, "action", action, "module", pf.file.Path)
				res.Unresolved = append(res.Unresolved, name+" -> "+action)
				continue
			}
			api.Dependencies = append(api.Dependencies, &common.Component{
				VertexBase: common.VertexBase{
					Name: fn,
					Type: TypeFunction,
				},
				SystemModule: target,
			})
		}

		res.Routes++
		sm.Dependencies = append(sm.Dependencies, api)
	}
	return sm
}

// resolveAction maps an action such as "edgeController.getEdge" onto the
// repository path of the module the controller is imported from and the
// function name.
func resolveAction(pf parsedFile, action string, known map[string]bool) (string, string, bool) {
	binding, fn, ok := strings.Cut(action, ".")
	if !ok || fn == "" {
		return "", "", false
	}
	imp, ok := pf.module.ImportOf(binding)
	if !ok {
		return "", "", false
	}
	if imp.Imported != "*" && imp.Imported != "default" {
		// a named import of a controller object: { edgeController } from './index.js'
		fn = strings.TrimPrefix(fn, imp.Imported+".")
	}
	resolved, ok := loader.Resolve(pf.file.Dir(), imp.Source)
	if !ok {
		return "", "", false
	}
	for _, candidate := range loader.ModuleCandidates(resolved) {
		if known[candidate] {
			return candidate, fn, true
		}
	}
	return "", "", false
}

// sourceModule builds the systemModule of a non-route module from its
// exports. Function descriptions are requested concurrently.
func (s *Scanner) sourceModule(ctx context.Context, pf parsedFile, res *Result) (*common.SystemModule, error) {
	sm := &common.SystemModule{
		VertexBase: common.VertexBase{
			Name:        pf.file.Path,
			Type:        TypeClass,
			Description: pf.module.Description,
		},
		MicroService: s.microService,
	}
	if sm.Description == "" {
		sm.Description = pf.file.Path
	}

	components := make([]*common.Component, len(pf.module.Exports))
	for i, e := range pf.module.Exports {
		c := &common.Component{
			VertexBase: common.VertexBase{
				Name:        e.Name,
				Type:        TypeField,
				Description: e.Name,
			},
			SourceCode: e.Source,
		}
		if e.Kind == jsast.ExportFunction {
			c.Type = TypeFunction
		}
		components[i] = c
	}

	failed, err := s.describe(ctx, components)
	if err != nil {
		return nil, err
	}
	for _, name := range failed {
		res.Undescribed = append(res.Undescribed, pf.file.Path+"#"+name)
	}

	for _, c := range components {
		sm.Dependencies = append(sm.Dependencies, c)
	}
	return sm, nil
}

// describe fills in AI descriptions of the function components. A failed
// description leaves the name in place and is reported back; only context
// cancellation aborts.
func (s *Scanner) describe(ctx context.Context, components []*common.Component) ([]string, error) {
	if s.describer == nil {
		return nil, nil
	}

	var (
		mu     sync.Mutex
		failed []string
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, c := range components {
		if c.Type != TypeFunction {
			continue
		}
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			desc, err := s.describer.FunctionDescription(gCtx, c.SourceCode)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if err != nil || desc == "" {
				logger.Warn("[Scan] Failed to describe function", "name", c.Name, "err", err)
				mu.Lock()
				failed = append(failed, c.Name)
				mu.Unlock()
				return nil
			}
			c.Description = desc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(failed)
	return failed, nil
}
