package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"docanalyzer/internal/config"
	"docanalyzer/internal/models"
	"docanalyzer/internal/services"
)

type stubEngine struct {
	response string
	calls    int
}

func (s *stubEngine) Score(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.response, nil
}

func newTestApp(engine services.ScoringEngine) *fiber.App {
	cfg := config.AnalyzerConfig{
		MaxContentChars:  10000,
		ScaleMax:         10,
		ScorePrecision:   1,
		EngineTimeout:    time.Second,
		RetryMaxAttempts: 1,
	}

	app := fiber.New()
	handler := NewAnalyzeHandler(services.NewAnalyzerService(engine, cfg))
	app.Post("/v1/analyzer/document", handler.HandleAnalyze)
	return app
}

func multipartRequest(t *testing.T, filename string, fileData []byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(fileData); err != nil {
		t.Fatal(err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatal(err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/analyzer/document", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("response is not an envelope: %v\n%s", err, body)
	}
	return env
}

// Scenario: a well-formed text upload with default criteria produces the
// five default scores, their mean, and the normalized content.
func TestAnalyzeTextDocument(t *testing.T) {
	engine := &stubEngine{
		response: `{"feedback": "Clear and well organized.", "scores": {"Clarity": 9, "Correctness": 8, "Completeness": 8, "Structure": 9, "Engagement": 6}}`,
	}
	app := newTestApp(engine)

	req := multipartRequest(t, "essay.txt", []byte("A clear, well structured essay."), map[string]string{
		"filename": "essay.txt",
	})
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp)
	if env.Code != 200 || env.Message != "Success" {
		t.Errorf("envelope = %d %q", env.Code, env.Message)
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("data is not an AnalysisResult: %v", err)
	}
	if result.Scores.Len() != 5 {
		t.Errorf("expected 5 default scores, got %v", result.Scores.Names())
	}
	if result.OverallScore != 8.0 {
		t.Errorf("overall = %v, want 8.0", result.OverallScore)
	}
	if result.ParsedContent == nil || *result.ParsedContent != "A clear, well structured essay." {
		t.Errorf("parsed_content = %v", result.ParsedContent)
	}
}

// Scenario: a corrupt PDF is a client error; the envelope carries the parse
// failure and no scores.
func TestAnalyzeCorruptPDF(t *testing.T) {
	engine := &stubEngine{response: "unused"}
	app := newTestApp(engine)

	req := multipartRequest(t, "broken.pdf", []byte("definitely not a pdf"), map[string]string{
		"filename": "broken.pdf",
	})
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}

	env := decodeEnvelope(t, resp)
	if resp.StatusCode != 422 || env.Code != 422 {
		t.Fatalf("status/code = %d/%d, want 422", resp.StatusCode, env.Code)
	}
	if !strings.Contains(env.Message, "could not be parsed") {
		t.Errorf("message = %q", env.Message)
	}
	if strings.Contains(string(env.Data), "scores") {
		t.Errorf("error envelope must not carry scores, data = %s", env.Data)
	}
	if engine.calls != 0 {
		t.Errorf("engine must not run on extraction failure")
	}
}

// Scenario: the engine answers with free prose; the request still succeeds
// with the documented all-zero shape.
func TestAnalyzeUnparseableEngineOutput(t *testing.T) {
	engine := &stubEngine{response: "What a lovely document! I would rate it quite highly."}
	app := newTestApp(engine)

	req := multipartRequest(t, "doc.txt", []byte("document body"), map[string]string{
		"filename": "doc.txt",
	})
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp)
	if env.Code != 200 {
		t.Fatalf("code = %d, want 200", env.Code)
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatal(err)
	}
	if result.Scores.Len() != 5 {
		t.Fatalf("expected 5 scores, got %v", result.Scores.Names())
	}
	for _, name := range result.Scores.Names() {
		if score, _ := result.Scores.Get(name); score != 0 {
			t.Errorf("score %s = %v, want 0", name, score)
		}
	}
	if result.OverallScore != 0 {
		t.Errorf("overall = %v, want 0", result.OverallScore)
	}
	if !strings.HasPrefix(result.Feedback, services.FallbackFeedback) {
		t.Errorf("feedback = %q", result.Feedback)
	}
}

// Scenario: malformed criteria is rejected before the engine is ever
// invoked.
func TestAnalyzeMalformedCriteria(t *testing.T) {
	engine := &stubEngine{response: "unused"}
	app := newTestApp(engine)

	req := multipartRequest(t, "doc.txt", []byte("document body"), map[string]string{
		"filename": "doc.txt",
		"criteria": "{this is not json",
	})
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}

	env := decodeEnvelope(t, resp)
	if resp.StatusCode != 400 || env.Code != 400 {
		t.Fatalf("status/code = %d/%d, want 400", resp.StatusCode, env.Code)
	}
	if !strings.Contains(env.Message, "criteria") {
		t.Errorf("message = %q", env.Message)
	}
	if engine.calls != 0 {
		t.Errorf("engine called %d times, want 0", engine.calls)
	}
}

func TestAnalyzeCustomCriteriaExtendRubric(t *testing.T) {
	engine := &stubEngine{
		response: `{"feedback": "ok", "scores": {"Clarity": 5, "Correctness": 5, "Completeness": 5, "Structure": 5, "Engagement": 5, "Tone": 5}}`,
	}
	app := newTestApp(engine)

	req := multipartRequest(t, "doc.txt", []byte("document body"), map[string]string{
		"filename": "doc.txt",
		"criteria": `{"Tone": "Is the tone appropriate for the audience?"}`,
	})
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}

	env := decodeEnvelope(t, resp)
	if env.Code != 200 {
		t.Fatalf("code = %d, want 200", env.Code)
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatal(err)
	}
	if result.Scores.Len() != 6 {
		t.Errorf("expected 6 scores with Tone added, got %v", result.Scores.Names())
	}
	if _, ok := result.Scores.Get("Tone"); !ok {
		t.Error("Tone dimension missing from scores")
	}

	// The serialized scores follow rubric order: the five defaults in their
	// canonical sequence, then the appended custom dimension.
	payload := string(env.Data)
	last := -1
	for _, name := range []string{"Clarity", "Correctness", "Completeness", "Structure", "Engagement", "Tone"} {
		idx := strings.Index(payload, `"`+name+`"`)
		if idx == -1 || idx < last {
			t.Fatalf("key %q missing or out of order in %s", name, payload)
		}
		last = idx
	}
}

func TestAnalyzeMissingFile(t *testing.T) {
	app := newTestApp(&stubEngine{})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	writer.WriteField("filename", "doc.txt")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/analyzer/document", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	env := decodeEnvelope(t, resp)
	if resp.StatusCode != 400 || env.Code != 400 {
		t.Errorf("status/code = %d/%d, want 400", resp.StatusCode, env.Code)
	}
}

type cancelAwareEngine struct{}

func (e *cancelAwareEngine) Score(ctx context.Context, prompt string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

// Scenario: the caller disconnects mid-analysis; the handler writes no
// envelope at all rather than a 500.
func TestAnalyzeClientCancellation(t *testing.T) {
	cfg := config.AnalyzerConfig{
		MaxContentChars:  10000,
		ScaleMax:         10,
		ScorePrecision:   1,
		EngineTimeout:    time.Second,
		RetryMaxAttempts: 1,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.SetUserContext(ctx)
		return c.Next()
	})
	handler := NewAnalyzeHandler(services.NewAnalyzerService(&cancelAwareEngine{}, cfg))
	app.Post("/v1/analyzer/document", handler.HandleAnalyze)

	req := multipartRequest(t, "doc.txt", []byte("document body"), map[string]string{
		"filename": "doc.txt",
	})
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if len(body) != 0 {
		t.Errorf("no envelope should be written after cancellation, got %s", body)
	}
}

func TestAnalyzeFilenameFieldWinsOverUpload(t *testing.T) {
	engine := &stubEngine{response: `{"feedback": "ok", "scores": {"Clarity": 5}}`}
	app := newTestApp(engine)

	// The upload part claims .bin, but the form field declares .txt and wins.
	req := multipartRequest(t, "payload.bin", []byte("plain text content"), map[string]string{
		"filename": "notes.txt",
	})
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	env := decodeEnvelope(t, resp)
	if env.Code != 200 {
		t.Errorf("code = %d, want 200 (field filename should drive dispatch)", env.Code)
	}
}
