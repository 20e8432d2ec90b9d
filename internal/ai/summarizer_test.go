package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCreator struct {
	calls   int
	prompts []string
	reply   string
	err     error
}

func (f *fakeCreator) New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error) {
	f.calls++
	for _, m := range body.Messages {
		for _, c := range m.Content {
			if c.OfText != nil {
				f.prompts = append(f.prompts, c.OfText.Text)
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.Message{Content: []anthropic.ContentBlockUnion{{Type: "text", Text: f.reply}}}, nil
}

var sample = Input{
	Narrative: "El candidato recibió amenazas telefónicas reiteradas tras declarar en el proceso.",
	Facts: CaseFacts{
		MissionNumber: "MIS-2025-00001",
		CaseRadicado:  "RAD-2025-000001",
		Candidate:     "Ana Díaz",
		Total:         "55.00",
		Tier:          "Extraordinario",
	},
}

func TestSummarize_ReturnsModelText(t *testing.T) {
	fc := &fakeCreator{reply: "  Riesgo extraordinario por amenazas directas.  "}
	s := newSummarizer(fc, "", 0, zap.NewNop())

	out := s.Summarize(context.Background(), sample)
	assert.Equal(t, "Riesgo extraordinario por amenazas directas.", out)
	require.Len(t, fc.prompts, 1)
	assert.Contains(t, fc.prompts[0], "MIS-2025-00001")
	assert.Contains(t, fc.prompts[0], "Puntaje ITVR: 55.00 (Extraordinario)")
	assert.Contains(t, fc.prompts[0], sample.Narrative)
}

func TestSummarize_ShortNarrativeSkipsCall(t *testing.T) {
	fc := &fakeCreator{reply: "x"}
	s := newSummarizer(fc, "", 20, zap.NewNop())

	in := sample
	in.Narrative = "   amenaza   "
	assert.Equal(t, Fallback, s.Summarize(context.Background(), in))
	assert.Zero(t, fc.calls)
}

func TestSummarize_ErrorFallsBack(t *testing.T) {
	fc := &fakeCreator{err: errors.New("boom")}
	s := newSummarizer(fc, "", 0, zap.NewNop())

	assert.Equal(t, Fallback, s.Summarize(context.Background(), sample))
	assert.Equal(t, 1, fc.calls)
}

func TestSummarize_ServerErrorIsNotRetried(t *testing.T) {
	for _, status := range []int{429, 500, 503} {
		fc := &fakeCreator{err: &anthropic.Error{StatusCode: status}}
		s := newSummarizer(fc, "", 0, zap.NewNop())

		assert.Equal(t, Fallback, s.Summarize(context.Background(), sample))
		assert.Equal(t, 1, fc.calls, "status %d", status)
	}
}

func TestSummarize_EmptyReplyFallsBack(t *testing.T) {
	fc := &fakeCreator{reply: "   "}
	s := newSummarizer(fc, "", 0, zap.NewNop())
	assert.Equal(t, Fallback, s.Summarize(context.Background(), sample))
}

func TestSummarize_NoClient(t *testing.T) {
	s := newSummarizer(nil, "", 0, zap.NewNop())
	assert.Equal(t, Fallback, s.Summarize(context.Background(), sample))
}

func TestSummarize_CancelledContext(t *testing.T) {
	fc := &fakeCreator{err: context.Canceled}
	s := newSummarizer(fc, "", 0, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, Fallback, s.Summarize(ctx, sample))
}
