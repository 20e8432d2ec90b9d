// Package ai produces the automatic risk analysis attached to an ITVR
// assessment. Every failure degrades to a fixed fallback text.
package ai

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// Fallback is returned whenever no summary could be produced
const Fallback = "No fue posible generar el análisis de riesgo automático. Por favor realice el análisis manualmente."

const (
	DefaultModel     = "claude-3-5-haiku-latest"
	DefaultMinLength = 20
)

// CaseFacts are the case data sent alongside the narrative
type CaseFacts struct {
	MissionNumber string
	CaseRadicado  string
	Candidate     string
	MissionType   string
	Regional      string
	Total         string
	Tier          string
}

// Input is one summarization request
type Input struct {
	Narrative string
	Facts     CaseFacts
}

type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Summarizer wraps the Anthropic messages API
type Summarizer struct {
	client    messageCreator
	model     anthropic.Model
	minLength int
	prompt    *template.Template
	log       *zap.Logger
}

// NewSummarizer builds a summarizer. ANTHROPIC_API_KEY takes precedence over
// apiKey; without any key every call returns Fallback. Failed calls are not
// retried, the user asks again.
func NewSummarizer(apiKey, model string, minLength int, log *zap.Logger) *Summarizer {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	var client messageCreator
	if apiKey != "" {
		c := anthropic.NewClient(option.WithAPIKey(apiKey), option.WithMaxRetries(0))
		client = &c.Messages
	} else {
		log.Warn("No Anthropic API key configured, risk summaries will use the fallback text")
	}
	return newSummarizer(client, model, minLength, log)
}

func newSummarizer(client messageCreator, model string, minLength int, log *zap.Logger) *Summarizer {
	if model == "" {
		model = DefaultModel
	}
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	return &Summarizer{
		client:    client,
		model:     anthropic.Model(model),
		minLength: minLength,
		prompt:    template.Must(template.New("risk").Parse(riskPromptTemplate)),
		log:       log,
	}
}

// Summarize returns the model's risk analysis or Fallback. A narrative
// shorter than the minimum length is never sent.
func (s *Summarizer) Summarize(ctx context.Context, in Input) string {
	narrative := strings.TrimSpace(in.Narrative)
	if len([]rune(narrative)) < s.minLength {
		s.log.Debug("Narrative below minimum length, using fallback", zap.Int("length", len([]rune(narrative))))
		return Fallback
	}
	if s.client == nil {
		return Fallback
	}

	prompt, err := s.renderPrompt(in)
	if err != nil {
		s.log.Error("Failed to render risk prompt", zap.Error(err))
		return Fallback
	}

	text, err := s.call(ctx, prompt)
	if err != nil {
		s.log.Warn("Risk summary failed", zap.String("mission", in.Facts.MissionNumber), zap.Error(err))
		return Fallback
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Fallback
	}
	return text
}

func (s *Summarizer) renderPrompt(in Input) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Input
		Narrative string
	}{Input: in, Narrative: strings.TrimSpace(in.Narrative)}
	if err := s.prompt.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Summarizer) call(ctx context.Context, prompt string) (string, error) {
	message, err := s.client.New(ctx, anthropic.MessageNewParams{
		Model:     s.model,
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}
	for _, block := range message.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("unexpected response format: no text content")
}

const riskPromptTemplate = `Eres analista del Programa de Protección a Víctimas y Testigos. Con base en el relato y los datos del caso, redacta un análisis de riesgo breve (máximo tres párrafos) que identifique las amenazas, los factores de vulnerabilidad y las medidas de protección recomendadas. No inventes hechos que no estén en el relato.

Misión: {{.Facts.MissionNumber}}
Radicado: {{.Facts.CaseRadicado}}
Candidato: {{.Facts.Candidate}}
{{- if .Facts.MissionType}}
Tipo de misión: {{.Facts.MissionType}}{{end}}
{{- if .Facts.Regional}}
Regional: {{.Facts.Regional}}{{end}}
{{- if .Facts.Total}}
Puntaje ITVR: {{.Facts.Total}} ({{.Facts.Tier}}){{end}}

Relato:
{{.Narrative}}
`
