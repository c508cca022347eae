package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"docanalyzer/internal/apperr"
	"docanalyzer/internal/config"
	"docanalyzer/internal/models"
)

// EmptyDocumentFeedback is returned when extraction succeeds but yields no
// text; the engine is not invoked for an empty document.
const EmptyDocumentFeedback = "The document appears to be empty or could not be read properly. No analysis performed."

// AnalyzerService runs the full analysis pipeline for one request: extract,
// resolve rubric, compose prompt, call the scoring engine, parse, aggregate.
type AnalyzerService interface {
	AnalyzeDocument(ctx context.Context, data []byte, filename, criteriaJSON string) (*models.AnalysisResult, error)
}

type analyzerService struct {
	extractor     ContentExtractor
	criteria      CriteriaValidator
	promptBuilder *PromptBuilder
	engine        ScoringEngine
	parser        ResponseParser
	aggregator    ScoreAggregator
	cfg           config.AnalyzerConfig
}

func NewAnalyzerService(engine ScoringEngine, cfg config.AnalyzerConfig) AnalyzerService {
	return &analyzerService{
		extractor:     NewContentExtractor(cfg.MaxContentChars),
		criteria:      NewCriteriaValidator(),
		promptBuilder: NewPromptBuilder(),
		engine:        engine,
		parser:        NewResponseParser(cfg.ScaleMax),
		aggregator:    NewScoreAggregator(cfg.ScorePrecision),
		cfg:           cfg,
	}
}

// AnalyzeDocument implements AnalyzerService. Every request is a straight
// line through the pipeline; extraction and criteria failures are terminal,
// engine failures map to the upstream error taxonomy, and malformed engine
// output is absorbed by the parser rather than failing the request.
func (s *analyzerService) AnalyzeDocument(ctx context.Context, data []byte, filename, criteriaJSON string) (*models.AnalysisResult, error) {
	analysisID := uuid.New()
	log.Printf("🔄 [%s] Starting analysis for file: %s (%d bytes)\n", analysisID, filename, len(data))

	content, err := s.extractor.Extract(data, filename)
	if err != nil {
		log.Printf("❌ [%s] Extraction failed: %v\n", analysisID, err)
		return nil, err
	}
	if content.Truncated {
		log.Printf("⚠️  [%s] Content truncated to %d chars\n", analysisID, s.cfg.MaxContentChars)
	}

	rubric, err := s.criteria.Resolve(criteriaJSON)
	if err != nil {
		log.Printf("❌ [%s] Criteria resolution failed: %v\n", analysisID, err)
		return nil, err
	}
	log.Printf("📋 [%s] Using criteria: %v\n", analysisID, rubric.Names())

	if content.Text == "" {
		log.Printf("⚠️  [%s] Document yielded no text, skipping engine call\n", analysisID)
		return s.emptyDocumentResult(rubric), nil
	}

	prompt := s.promptBuilder.BuildAnalysisPrompt(content.Text, rubric, content.Truncated, s.cfg.ScaleMax, s.cfg.ScorePrecision)
	log.Printf("📝 [%s] Prompt length: %d characters\n", analysisID, len(prompt))

	raw, err := s.callEngine(ctx, prompt)
	if err != nil {
		log.Printf("❌ [%s] Engine call failed: %v\n", analysisID, err)
		return nil, err
	}
	log.Printf("✅ [%s] Engine response received: %d characters\n", analysisID, len(raw))

	result := s.parser.Parse(raw, rubric)
	result.OverallScore = s.aggregator.Aggregate(result.Scores)
	result.ParsedContent = &content.Text

	log.Printf("✅ [%s] Analysis complete, overall score: %.2f\n", analysisID, result.OverallScore)
	return result, nil
}

// callEngine runs the scoring call under an explicit timeout, retrying a
// bounded number of times on transport failures. Timeouts and caller
// cancellation never retry: a timed-out engine is reported as such, and a
// disconnected caller abandons the pipeline entirely.
func (s *analyzerService) callEngine(ctx context.Context, prompt string) (string, error) {
	attempts := s.cfg.RetryMaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.EngineTimeout)
		raw, err := s.engine.Score(callCtx, prompt)
		cancel()

		if err == nil {
			return raw, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			// Caller went away; no envelope should be assembled.
			return "", fmt.Errorf("analysis cancelled: %w", ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", apperr.EngineTimeout(err)
		}

		if attempt < attempts {
			log.Printf("⚠️  Engine attempt %d failed: %v. Retrying...\n", attempt, err)
		}
	}

	return "", apperr.EngineUnavailable(lastErr)
}

func (s *analyzerService) emptyDocumentResult(rubric models.Rubric) *models.AnalysisResult {
	var scores models.ScoreSet
	for _, c := range rubric {
		scores.Set(c.Name, 0)
	}
	return &models.AnalysisResult{
		Feedback:     EmptyDocumentFeedback,
		Scores:       scores,
		OverallScore: 0,
	}
}
