package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thelorax67/HackClub-Events-Radar/pkg/config"
	"github.com/thelorax67/HackClub-Events-Radar/pkg/database"
	"github.com/thelorax67/HackClub-Events-Radar/pkg/extract"
	"github.com/thelorax67/HackClub-Events-Radar/pkg/probe"
	"github.com/thelorax67/HackClub-Events-Radar/pkg/session"
	"github.com/thelorax67/HackClub-Events-Radar/pkg/sources"
)

var DebugLog func(string, ...interface{})

type Orchestrator struct {
	config        *config.Config
	configManager *config.Manager
	logger        *logrus.Logger
	db            *database.DB
}

type Engine struct {
	Sources []sources.Source
	Session *session.Session
	Logger  *logrus.Logger
}

type ScanOptions struct {
	Domain        string
	CandidateFile string
	JSONFormat    bool
	Stats         bool
	NoExtract     bool

	// Overrides for the configured ceilings; 0 keeps the config value.
	ProbeConcurrency   int
	ExtractConcurrency int

	OnProbeProgress   func(done, total int)
	OnExtractProgress func(done, total int)
}

type SourceStat struct {
	Name     string
	Duration time.Duration
	Results  int
	Errors   int
}

type ScanResult struct {
	Domain       string
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	Candidates   []probe.Candidate
	ProbeResults []probe.Result
	Successes    []probe.Result
	Records      []extract.Record
	Drops        []extract.Drop
	SourceStats  []SourceStat
}

type customFormatter struct{}

func (f *customFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var levelText string
	switch entry.Level {
	case logrus.InfoLevel:
		levelText = "[INF]"
	case logrus.WarnLevel:
		levelText = "[WARN]"
	case logrus.ErrorLevel:
		levelText = "[ERR]"
	case logrus.DebugLevel:
		levelText = "[DBG]"
	default:
		levelText = "[???]"
	}
	return []byte(fmt.Sprintf("%s %s\n", levelText, entry.Message)), nil
}

func NewOrchestrator(configPath string) (*Orchestrator, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&customFormatter{})

	configManager := config.NewManager(configPath)
	if err := configManager.LoadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg := configManager.GetConfig()

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Warnf("Database initialization failed: %v", err)
	}

	return &Orchestrator{
		config:        cfg,
		configManager: configManager,
		logger:        logger,
		db:            db,
	}, nil
}

func (o *Orchestrator) GetConfig() *config.Config {
	return o.config
}

func (o *Orchestrator) GetDB() *database.DB {
	return o.db
}

func (o *Orchestrator) Logger() *logrus.Logger {
	return o.logger
}

func NewEngine(s *session.Session, logger *logrus.Logger, candidateFile string) *Engine {
	sourceList := []sources.Source{
		&sources.DNSRegistry{},
	}

	if candidateFile != "" {
		sourceList = append(sourceList, &sources.FileList{Path: candidateFile})
	}

	return &Engine{
		Sources: sourceList,
		Session: s,
		Logger:  logger,
	}
}

type EnumerationResult struct {
	Result sources.Result
	Stats  map[string]*SourceStat
}

// RunEnumeration fans candidate collection out over all sources, one
// goroutine each, and streams their results into a single channel. Source
// errors are counted per source, never fatal here; the caller decides what
// an empty candidate set means.
func (e *Engine) RunEnumeration(ctx context.Context, domain string, collectStats bool) <-chan EnumerationResult {
	results := make(chan EnumerationResult)
	wg := &sync.WaitGroup{}

	stats := make(map[string]*SourceStat)
	statsMutex := &sync.Mutex{}

	for _, source := range e.Sources {
		wg.Add(1)
		go func(s sources.Source) {
			defer wg.Done()

			sourceName := s.Name()
			startTime := time.Now()
			resultCount := 0
			errorCount := 0

			sourceResults := s.Run(ctx, domain, e.Session)

			for result := range sourceResults {
				if result.Error != nil {
					errorCount++
					e.Logger.Warnf("source %s: %v", sourceName, result.Error)
					continue
				}
				resultCount++

				select {
				case results <- EnumerationResult{Result: result}:
				case <-ctx.Done():
					return
				}
			}

			if collectStats {
				duration := time.Since(startTime)
				statsMutex.Lock()
				stats[sourceName] = &SourceStat{
					Name:     sourceName,
					Duration: duration,
					Results:  resultCount,
					Errors:   errorCount,
				}
				statsMutex.Unlock()
			}
		}(source)
	}

	go func() {
		wg.Wait()
		if collectStats {
			results <- EnumerationResult{Stats: stats}
		}
		close(results)
	}()

	return results
}

// RunScan executes one full run: candidate enumeration, concurrent probing,
// then extraction over the successful bodies. Per-item failures stay inside
// the result set; only a missing credential or an empty candidate set aborts.
func (o *Orchestrator) RunScan(options ScanOptions) (*ScanResult, error) {
	startTime := time.Now()

	domain := options.Domain
	if domain == "" {
		domain = o.config.Registry.Domain
	}

	result := &ScanResult{
		Domain:    domain,
		StartTime: startTime,
	}

	extractionEnabled := o.config.Extraction.Enabled && !options.NoExtract

	// Fail before any probe work is spent, not after.
	if extractionEnabled && o.config.Extraction.APIKey == "" {
		return nil, fmt.Errorf("extraction is enabled but no API key is configured (set %s or extraction.api_key, or pass --no-extract)", config.APIKeyEnvVar)
	}

	sess, err := session.New(o.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	candidates, sourceStats, err := o.collectCandidates(sess, domain, options)
	if err != nil {
		return nil, err
	}
	result.Candidates = candidates
	result.SourceStats = sourceStats

	if DebugLog != nil {
		DebugLog("collected %d candidates for %s", len(candidates), domain)
	}

	result.ProbeResults = o.runProbing(sess, candidates, options)

	for _, pr := range result.ProbeResults {
		switch pr.Outcome.Kind {
		case probe.OutcomeSuccess:
			result.Successes = append(result.Successes, pr)
		case probe.OutcomeHTTPError, probe.OutcomeNetworkError:
			// Recorded in ProbeResults; nothing feeds extraction.
		}
	}

	if extractionEnabled {
		result.Records, result.Drops = o.runExtraction(sess, result.Successes, options)
	}

	endTime := time.Now()
	result.EndTime = endTime
	result.Duration = endTime.Sub(startTime)

	if o.db != nil && o.db.IsEnabled() {
		var live []string
		for _, pr := range result.Successes {
			live = append(live, pr.URL)
		}
		if err := o.db.TrackHosts(domain, live); err != nil {
			o.logger.Warnf("Failed to track hosts in database: %v", err)
		}
		if err := o.db.TrackEvents(domain, result.Records); err != nil {
			o.logger.Warnf("Failed to track events in database: %v", err)
		}
	}

	return result, nil
}

func (o *Orchestrator) collectCandidates(sess *session.Session, domain string, options ScanOptions) ([]probe.Candidate, []SourceStat, error) {
	engine := NewEngine(sess, o.logger, options.CandidateFile)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	enumResults := engine.RunEnumeration(ctx, domain, options.Stats)

	seen := make(map[string]struct{})
	var candidates []probe.Candidate
	var sourceStats []SourceStat

	for enumResult := range enumResults {
		if enumResult.Stats != nil {
			for _, stat := range enumResult.Stats {
				sourceStats = append(sourceStats, *stat)
			}
			continue
		}

		name := strings.ToLower(strings.TrimSpace(enumResult.Result.Value))
		if name == "" {
			continue
		}

		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		candidates = append(candidates, probe.Candidate{
			Name:   name,
			Source: enumResult.Result.Source,
		})

		if DebugLog != nil {
			DebugLog("candidate: %s [%s]", name, enumResult.Result.Source)
		}
	}

	// No candidates means no work is possible.
	if len(candidates) == 0 {
		return nil, nil, fmt.Errorf("no candidates collected for %s: candidate source unreachable or empty", domain)
	}

	return candidates, sourceStats, nil
}

func (o *Orchestrator) runProbing(sess *session.Session, candidates []probe.Candidate, options ScanOptions) []probe.Result {
	concurrency := o.config.Probe.Concurrency
	if options.ProbeConcurrency > 0 {
		concurrency = options.ProbeConcurrency
	}

	domain := o.config.Registry.Domain
	if options.Domain != "" {
		domain = options.Domain
	}

	prober := probe.NewProber(
		sess.Client,
		domain,
		o.config.Registry.Scheme,
		time.Duration(o.config.Probe.TimeoutSeconds)*time.Second,
	)

	coordinator := probe.NewCoordinator(prober, concurrency)
	coordinator.OnProgress = options.OnProbeProgress

	return coordinator.Run(context.Background(), candidates)
}

func (o *Orchestrator) runExtraction(sess *session.Session, successes []probe.Result, options ScanOptions) ([]extract.Record, []extract.Drop) {
	if len(successes) == 0 {
		return nil, nil
	}

	extractor, err := extract.NewExtractor(sess.Client, extract.Options{
		Endpoint:    o.config.Extraction.Endpoint,
		Model:       o.config.Extraction.Model,
		APIKey:      o.config.Extraction.APIKey,
		Temperature: o.config.Extraction.Temperature,
		MaxTokens:   o.config.Extraction.MaxTokens,
		CharBudget:  o.config.Extraction.CharBudget,
		Timeout:     time.Duration(o.config.Extraction.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		// Credential presence was checked before probing; anything else
		// here is a config value rejected by the extractor.
		o.logger.Errorf("extraction disabled: %v", err)
		return nil, nil
	}

	concurrency := o.config.Extraction.Concurrency
	if options.ExtractConcurrency > 0 {
		concurrency = options.ExtractConcurrency
	}

	requests := make([]extract.Request, 0, len(successes))
	for _, pr := range successes {
		requests = append(requests, extract.Request{
			URL:  pr.URL,
			HTML: pr.Outcome.Body,
		})
	}

	coordinator := extract.NewCoordinator(extractor, concurrency, o.config.Extraction.RateLimitPerMinute)
	coordinator.OnProgress = options.OnExtractProgress

	records, drops := coordinator.Run(context.Background(), requests)

	for _, drop := range drops {
		if DebugLog != nil {
			DebugLog("dropped %s: %s", drop.URL, drop.Reason)
		}
	}

	return records, drops
}
