// Package resolution is the entry point for analyzing, merging and detecting duplicate entities
package resolution

import (
	"context"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/compatibility"
	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/storage"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const DefaultMinConfidence = 0.5

// MergeHook runs after a merge has committed. A failing hook is logged and never
// undoes the merge.
type MergeHook interface {
	Name() string
	AfterMerge(ctx context.Context, result *models.MergeResult) error
}

// RecordReader looks up saved merge records
type RecordReader interface {
	Get(ctx context.Context, id string) (*models.MergeRecord, error)
	Latest(ctx context.Context, targetID string) (*models.MergeRecord, error)
}

type Config struct {
	// DefaultMinScore is the raw score used when a scan does not pass one
	DefaultMinScore float64
	// DefaultMinConfidence is the confidence used when suggestions do not pass one
	DefaultMinConfidence float64
}

type Service struct {
	store       storage.Store
	coordinator *merging.Coordinator
	analyzer    *compatibility.Analyzer
	scorer      *matching.Scorer
	clusterer   *matching.Clusterer
	hooks       []MergeHook
	records     RecordReader
	config      Config
	logger      ectologger.Logger
}

type Option func(*Service)

func WithHooks(hooks ...MergeHook) Option {
	return func(s *Service) {
		s.hooks = append(s.hooks, hooks...)
	}
}

func WithRecords(records RecordReader) Option {
	return func(s *Service) {
		s.records = records
	}
}

func WithAnalyzer(analyzer *compatibility.Analyzer) Option {
	return func(s *Service) {
		s.analyzer = analyzer
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func NewService(store storage.Store, logger ectologger.Logger, opts ...Option) *Service {
	scorer := matching.NewScorer()
	s := &Service{
		store:       store,
		coordinator: merging.NewCoordinator(store, logger),
		scorer:      scorer,
		clusterer:   matching.NewClusterer(scorer),
		config: Config{
			DefaultMinScore:      matching.DefaultMinScore,
			DefaultMinConfidence: DefaultMinConfidence,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.analyzer == nil {
		s.analyzer = compatibility.NewAnalyzer(nil, scorer)
	}
	return s
}

// Analyze reports how merging sourceID into targetID would go. It never modifies anything.
func (s *Service) Analyze(ctx context.Context, sourceID, targetID string) (*models.CompatibilityReport, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Service.Analyze")
	defer span.End()

	if sourceID == "" || targetID == "" {
		return nil, ferrors.Validation("source and target ids are required")
	}
	if sourceID == targetID {
		return nil, ferrors.Validationf("entity %s cannot be compared with itself", sourceID).WithEntity(sourceID)
	}

	source, sourceEdges, err := s.loadWithEdges(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	target, targetEdges, err := s.loadWithEdges(ctx, targetID)
	if err != nil {
		return nil, err
	}

	report := s.analyzer.Analyze(source, target, sourceEdges, targetEdges)

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"source_id":  sourceID,
		"target_id":  targetID,
		"compatible": report.Compatible,
		"confidence": report.Confidence,
	}).Debug("Analyzed merge compatibility")

	return report, nil
}

func (s *Service) loadWithEdges(ctx context.Context, id string) (*models.Entity, []models.Relationship, error) {
	entity, err := s.store.GetEntity(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if entity == nil {
		return nil, nil, ferrors.NotFound("entity", id)
	}
	edges, err := s.store.ListRelationships(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return entity, edges, nil
}

// Merge folds sourceIDs into targetID atomically, then runs the post-merge hooks.
func (s *Service) Merge(ctx context.Context, targetID string, sourceIDs []string, opts models.MergeOptions) (*models.MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Service.Merge")
	defer span.End()

	start := time.Now()
	result, err := s.coordinator.Merge(ctx, targetID, sourceIDs, opts)
	metrics.ObserveMerge(result, err, time.Since(start))
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	s.runHooks(context.WithoutCancel(ctx), result)
	return result, nil
}

func (s *Service) runHooks(ctx context.Context, result *models.MergeResult) {
	for _, hook := range s.hooks {
		if err := hook.AfterMerge(ctx, result); err != nil {
			metrics.ObserveHookFailure(hook.Name())
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"hook":      hook.Name(),
				"target_id": result.Entity.ID,
			}).Warn("Post-merge hook failed")
		}
	}
}

// DetectDuplicates clusters the entities of folderID. A minScore of zero uses the configured default.
func (s *Service) DetectDuplicates(ctx context.Context, folderID string, minScore float64) ([]models.Cluster, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Service.DetectDuplicates")
	defer span.End()

	if folderID == "" {
		return nil, ferrors.Validation("folder id is required")
	}
	if minScore < 0 {
		return nil, ferrors.Validationf("min score must not be negative, got %v", minScore)
	}
	if minScore == 0 {
		minScore = s.config.DefaultMinScore
	}

	entities, err := s.store.ListEntities(ctx, folderID, models.EntityFilter{})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clusters := s.clusterer.Cluster(entities, minScore)
	metrics.ObserveScan(len(clusters))

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"folder_id":     folderID,
		"entity_count":  len(entities),
		"cluster_count": len(clusters),
		"min_score":     minScore,
	}).Info("Detected duplicate clusters")

	return clusters, nil
}

// Suggest proposes merging every cluster member into its anchor, keeping pairs whose
// confidence reaches minConfidence, best first.
func (s *Service) Suggest(ctx context.Context, folderID string, minConfidence float64) ([]models.Suggestion, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Service.Suggest")
	defer span.End()

	if minConfidence < 0 || minConfidence > 1 {
		return nil, ferrors.Validationf("min confidence must be between 0 and 1, got %v", minConfidence)
	}
	if minConfidence == 0 {
		minConfidence = s.config.DefaultMinConfidence
	}

	clusters, err := s.DetectDuplicates(ctx, folderID, 0)
	if err != nil {
		return nil, err
	}

	edges := map[string][]models.Relationship{}
	edgesOf := func(id string) ([]models.Relationship, error) {
		if e, ok := edges[id]; ok {
			return e, nil
		}
		e, err := s.store.ListRelationships(ctx, id)
		if err != nil {
			return nil, err
		}
		edges[id] = e
		return e, nil
	}

	suggestions := make([]models.Suggestion, 0)
	for _, cluster := range clusters {
		target := &cluster.Members[0]
		for i := 1; i < len(cluster.Members); i++ {
			source := &cluster.Members[i]

			confidence := s.scorer.Confidence(source, target)
			if confidence < minConfidence {
				continue
			}

			sourceEdges, err := edgesOf(source.ID)
			if err != nil {
				return nil, err
			}
			targetEdges, err := edgesOf(target.ID)
			if err != nil {
				return nil, err
			}

			suggestions = append(suggestions, models.Suggestion{
				SourceID:   source.ID,
				TargetID:   target.ID,
				RawScore:   s.scorer.RawScore(source, target),
				Confidence: confidence,
				Report:     s.analyzer.Analyze(source, target, sourceEdges, targetEdges),
			})
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})

	return suggestions, nil
}

// MergeRecord returns the merge record with id.
func (s *Service) MergeRecord(ctx context.Context, id string) (*models.MergeRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Service.MergeRecord")
	defer span.End()

	if s.records == nil {
		return nil, ferrors.NotFound("merge record", id)
	}
	return s.records.Get(ctx, id)
}

// LatestMerge returns the most recent merge record of entityID.
func (s *Service) LatestMerge(ctx context.Context, entityID string) (*models.MergeRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Service.LatestMerge")
	defer span.End()

	if s.records == nil {
		return nil, ferrors.NotFound("merge record for entity", entityID)
	}
	return s.records.Latest(ctx, entityID)
}
