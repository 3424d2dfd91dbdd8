package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"propvalue/internal/adapters/observability"
	"propvalue/internal/domain"
)

const (
	defaultProviderTimeout = 20 * time.Second
	unavailableAnalysis    = "Analysis is currently unavailable."
)

// ComparableSource resolves the stored listings sharing an outward code.
type ComparableSource interface {
	Comparables(ctx context.Context, outcode string) ([]domain.Property, error)
}

type ReportDeps struct {
	Comparables ComparableSource
	Stats       domain.AreaStats
	Text        domain.TextGenerator
	Reports     domain.ReportStore
	Notifier    domain.Notifier // optional
}

type ReportConfig struct {
	ProviderTimeout time.Duration
	Clock           func() time.Time
	NewID           func() string
}

type ReportService struct {
	deps     ReportDeps
	timeout  time.Duration
	now      func() time.Time
	newID    func() string
	validate *validator.Validate
	pending  sync.WaitGroup
}

func NewReportService(d ReportDeps, cfg ReportConfig) *ReportService {
	s := &ReportService{
		deps:     d,
		timeout:  cfg.ProviderTimeout,
		now:      cfg.Clock,
		newID:    cfg.NewID,
		validate: NewValidator(),
	}
	if s.timeout <= 0 {
		s.timeout = defaultProviderTimeout
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// GenerateReport builds, persists and announces one composite report. Only
// invalid input, an empty comparable set or a failed store call fail it;
// every other source degrades to a nil field.
func (s *ReportService) GenerateReport(ctx context.Context, q domain.ReportQuery, requesterID string) (domain.Report, error) {
	if err := s.validate.StructCtx(ctx, q); err != nil {
		return domain.Report{}, fmt.Errorf("%w: %s", domain.ErrValidation, describeValidation(err))
	}
	pc, ok := NormalizePostcode(q.Postcode)
	if !ok {
		return domain.Report{}, fmt.Errorf("%w: postcode %q is not a valid UK postcode", domain.ErrValidation, q.Postcode)
	}
	if utf8.RuneCountInString(requesterID) > domain.MaxIdentityLen {
		return domain.Report{}, fmt.Errorf("%w: requester id longer than %d characters", domain.ErrValidation, domain.MaxIdentityLen)
	}

	comps, err := s.deps.Comparables.Comparables(ctx, Outcode(pc))
	if err != nil {
		return domain.Report{}, fmt.Errorf("%w: comparables lookup: %v", domain.ErrPersistence, err)
	}
	if len(comps) == 0 {
		return domain.Report{}, fmt.Errorf("%w: no listings found near %s", domain.ErrInsufficientComparables, pc)
	}

	rep := domain.Report{
		ID:              s.newID(),
		OwnerID:         requesterID,
		Postcode:        pc,
		PropertyType:    q.PropertyType,
		Area:            q.Area,
		ComparableCount: len(comps),
		CreatedAt:       s.now(),
	}

	// Each task writes only its own field; Wait publishes them.
	var g errgroup.Group
	g.Go(func() error {
		rep.PropertyDetails = s.fetch(ctx, "property_details", pc, s.deps.Stats.PropertyDetails, nil)
		return nil
	})
	g.Go(func() error {
		rep.EPCData = s.fetch(ctx, "epc", pc, s.deps.Stats.EPC, nil)
		return nil
	})
	g.Go(func() error {
		rep.AIAnalysis = s.narrative(ctx, "benefits", benefitsPrompt(q, pc))
		return nil
	})
	g.Go(func() error {
		rep.PsychographicsAnalysis = s.narrative(ctx, "psychographics", psychographicsPrompt(q, pc))
		return nil
	})
	g.Go(func() error {
		rep.PredictedPrice = s.predict(q, comps)
		return nil
	})
	g.Go(func() error {
		rep.CrimeData = s.fetch(ctx, "crime", pc, s.deps.Stats.Crime, hasCrimeFigures)
		return nil
	})
	g.Go(func() error {
		rep.Article4Data = s.fetch(ctx, "article4", pc, s.deps.Stats.Article4, nil)
		return nil
	})
	g.Go(func() error {
		rep.BRMALHAData = s.fetch(ctx, "brma_lha", pc, s.deps.Stats.BRMALHA, namesBRMA)
		return nil
	})
	g.Go(func() error {
		rep.DemographicsData = s.fetch(ctx, "demographics", pc, s.deps.Stats.Demographics, nil)
		return nil
	})
	_ = g.Wait()

	if err := s.deps.Reports.SaveReport(ctx, rep); err != nil {
		return domain.Report{}, fmt.Errorf("%w: save report: %v", domain.ErrPersistence, err)
	}
	log.Info().Str("report", rep.ID).Str("postcode", pc).Int("comparables", rep.ComparableCount).Msg("report generated")

	s.notify(ctx, requesterID, rep.ID)
	return rep, nil
}

// Close waits for in-flight notifications.
func (s *ReportService) Close() { s.pending.Wait() }

type statsCall func(ctx context.Context, postcode string) (map[string]any, error)

// recovered logs a panic raised inside one source so the report degrades
// to that source being unavailable.
func recovered(provider string, r any) {
	log.Error().Str("provider", provider).Interface("panic", r).Str("stack", string(debug.Stack())).
		Msg("data source panicked")
	observability.ObserveProvider(provider, "unavailable")
}

func (s *ReportService) predict(q domain.ReportQuery, comps []domain.Property) (out *domain.PricePrediction) {
	defer func() {
		if r := recover(); r != nil {
			recovered("pricing", r)
			out = nil
		}
	}()
	out = Predict(domain.PricingTarget{Area: q.Area, PropertyType: q.PropertyType}, comps)
	outcome := "ok"
	if out == nil {
		outcome = "rejected"
	}
	observability.ObserveProvider("pricing", outcome)
	return out
}

func (s *ReportService) fetch(ctx context.Context, provider, pc string, call statsCall, accept func(map[string]any) bool) (out map[string]any) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			recovered(provider, r)
			out = nil
		}
	}()

	data, err := call(cctx, pc)
	if err != nil {
		ev := log.Warn()
		if errors.Is(err, domain.ErrNoData) {
			ev = log.Info()
		}
		ev.Err(err).Str("provider", provider).Str("err_type", observability.LabelErr(err)).Str("postcode", pc).
			Msg("data source unavailable")
		observability.ObserveProvider(provider, "unavailable")
		return nil
	}
	if len(data) == 0 || (accept != nil && !accept(data)) {
		log.Info().Str("provider", provider).Str("postcode", pc).Msg("data source result rejected")
		observability.ObserveProvider(provider, "rejected")
		return nil
	}
	observability.ObserveProvider(provider, "ok")
	return data
}

func unavailableNarrative() domain.NarrativeAnalysis {
	return domain.NarrativeAnalysis{Points: []domain.NarrativePoint{}, Summary: unavailableAnalysis}
}

func (s *ReportService) narrative(ctx context.Context, provider, prompt string) (out domain.NarrativeAnalysis) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			recovered(provider, r)
			out = unavailableNarrative()
		}
	}()

	text, err := s.deps.Text.Generate(cctx, analystSystemPrompt, prompt)
	if err != nil {
		log.Warn().Err(err).Str("provider", provider).Msg("text generation unavailable")
		observability.ObserveProvider(provider, "unavailable")
		return unavailableNarrative()
	}
	observability.ObserveProvider(provider, "ok")
	return ParseNarrative(text)
}

func (s *ReportService) notify(ctx context.Context, recipientID, reportID string) {
	if s.deps.Notifier == nil || recipientID == "" {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("report", reportID).Msg("notify panicked")
			}
		}()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		if err := s.deps.Notifier.Notify(nctx, recipientID, reportID); err != nil {
			log.Warn().Err(err).Str("report", reportID).Str("recipient", recipientID).Msg("notify failed")
		}
	}()
}

// crime figures are meaningless without a population to scale them by
func hasCrimeFigures(m map[string]any) bool {
	pop := coerceNumber(firstOf(m, "population", "total_population", "residents"), 0)
	crimes := coerceNumber(firstOf(m, "total_crimes", "crime_count", "crimes", "total"), 0)
	return pop > 0 && crimes > 0
}

func namesBRMA(m map[string]any) bool {
	return coerceString(firstOf(m, "brma", "brma_name", "BRMA"), "") != ""
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v := lookupAny(m, k); v != nil {
			return v
		}
	}
	return nil
}
