// Package extract turns the configuration of an API Management service into
// a bundle of deployment templates.
//
// A run reads every kind in dependency waves, restricts the entities to one
// API when asked, builds a template per kind, resolves cross-references into
// resourceId expressions and dependsOn edges, and optionally links the
// templates from a master template.
package extract

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rflorenc/apim-template-extractor/internal/logging"
	"github.com/rflorenc/apim-template-extractor/internal/models"
	"github.com/rflorenc/apim-template-extractor/internal/naming"
	"github.com/rflorenc/apim-template-extractor/internal/platform"
)

// DefaultWorkers bounds concurrent reads when Options.Workers is unset.
const DefaultWorkers = 4

// Source lists the entities of one kind. *platform.Source implements it.
type Source interface {
	List(ctx context.Context, kind models.Kind, opts platform.ReadOptions) ([]models.Entity, error)
}

// Options configures one extraction.
type Options struct {
	SourceService                 string `json:"sourceApimName" yaml:"sourceApimName"`
	DestinationService            string `json:"destinationApimName" yaml:"destinationApimName"`
	API                           string `json:"apiName,omitempty" yaml:"apiName"`
	LinkedTemplatesBaseURL        string `json:"linkedTemplatesBaseUrl,omitempty" yaml:"linkedTemplatesBaseUrl"`
	LinkedTemplatesURLQueryString string `json:"linkedTemplatesUrlQueryString,omitempty" yaml:"linkedTemplatesUrlQueryString"`
	PolicyXMLBaseURL              string `json:"policyXMLBaseUrl,omitempty" yaml:"policyXMLBaseUrl"`
	Workers                       int    `json:"workers,omitempty" yaml:"workers"`
}

// Validate checks the parameters every run needs.
func (o Options) Validate() error {
	if o.SourceService == "" {
		return models.MissingParameter("sourceApimName")
	}
	if o.DestinationService == "" {
		return models.MissingParameter("destinationApimName")
	}
	return nil
}

// Bundle is the result of a run, ready to be written.
type Bundle struct {
	Templates   []*models.Template // one per kind, in output order
	Parameters  *models.Template
	Master      *models.Template // nil unless linked templates were requested
	Flags       []models.Flag
	FileNames   naming.FileNames
	APIFileName string
	Entities    map[models.Kind][]string // extracted entity ids
}

// Template returns the template of a kind.
func (b *Bundle) Template(kind models.Kind) *models.Template {
	for _, t := range b.Templates {
		if t.Kind == kind {
			return t
		}
	}
	return nil
}

// ResourceCounts returns the number of resources per kind.
func (b *Bundle) ResourceCounts() map[models.Kind]int {
	out := make(map[models.Kind]int, len(b.Templates))
	for _, t := range b.Templates {
		out[t.Kind] = len(t.Resources)
	}
	return out
}

// Read fetches every kind from src. Kinds are read in dependency waves; the
// readers of one wave run concurrently, bounded by workers. When apiID is
// set only that API's children are fetched.
func Read(ctx context.Context, src Source, apiID string, workers int, logger *slog.Logger) (Universe, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	waves, err := Waves()
	if err != nil {
		return nil, err
	}

	u := make(Universe, len(handlers))
	var mu sync.Mutex
	opts := platform.ReadOptions{API: apiID}

	for i, wave := range waves {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		logger.Debug("reading wave", "stage", "read", "wave", i+1, "kinds", wave)
		for _, kind := range wave {
			kind := kind
			g.Go(func() error {
				list, err := src.List(gctx, kind, opts)
				if err != nil {
					return models.SourceUnavailable(kind, err)
				}
				for j := range list {
					list[j].Kind = kind
				}
				n := len(list)
				list = dedupe(list)
				if n != len(list) {
					logger.Warn("duplicate ids dropped", "stage", "read", "kind", kind, "count", n-len(list))
				}
				logger.Info("read kind", "stage", "read", "kind", kind, "count", len(list))

				mu.Lock()
				u[kind] = list
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Extract runs the whole pipeline against src.
func Extract(ctx context.Context, src Source, opts Options, logger *slog.Logger) (*Bundle, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	// 1. Read
	all, err := Read(ctx, src, opts.API, opts.Workers, logger)
	if err != nil {
		return nil, err
	}
	return Assemble(all, opts, logger)
}

// Assemble runs everything after the read barrier: scope, build, rewrite and
// master assembly. It never touches the source.
func Assemble(all Universe, opts Options, logger *slog.Logger) (*Bundle, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	files := naming.GenerateFileNames(opts.SourceService)
	apiFile := naming.APIFileName(opts.API, opts.SourceService)

	// 2. Scope
	u, err := Scope(all, opts.API, logger)
	if err != nil {
		return nil, err
	}
	if opts.API != "" {
		logger.Info("scoped extraction", "stage", "scope", "api", opts.API, "count", u.Count(), "of", all.Count())
	}

	// 3. Build
	b := &builder{policyBaseURL: opts.PolicyXMLBaseURL, logger: logger}
	templates, err := b.build(u, func(k models.Kind) string {
		if k == models.KindAPI {
			return apiFile
		}
		return files.ForKind(k)
	})
	if err != nil {
		return nil, err
	}

	// 4. Cross-references
	rw := newRewriter(u, all, templates, opts.API != "", logger)
	if err := rw.rewrite(templates); err != nil {
		return nil, err
	}
	if err := checkAcyclic(templates); err != nil {
		return nil, err
	}
	resources := 0
	for _, t := range templates {
		resources += len(t.Resources)
	}
	logger.Info("references resolved", "stage", "crossref", "count", resources, "flags", len(rw.flags))

	bundle := &Bundle{
		Templates:   templates,
		Parameters:  parametersTemplate(opts, files.Parameters),
		Flags:       rw.flags,
		FileNames:   files,
		APIFileName: apiFile,
		Entities:    u.IDs(),
	}

	// 5. Master
	if opts.LinkedTemplatesBaseURL != "" {
		bundle.Master, err = masterTemplate(opts, templates, files.LinkedMaster)
		if err != nil {
			return nil, err
		}
		logger.Info("master template assembled", "stage", "assemble", "count", len(bundle.Master.Resources))
	}
	return bundle, nil
}
