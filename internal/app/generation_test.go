package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luki-produkttexte/internal/catalog"
	"luki-produkttexte/internal/config"
	"luki-produkttexte/internal/llm"
	"luki-produkttexte/internal/prompt"
)

type fakeCompleter struct {
	calls []llm.Request
	fail  map[int]error
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (llm.Completion, error) {
	f.calls = append(f.calls, req)
	n := len(f.calls)
	if err := f.fail[n]; err != nil {
		return llm.Completion{}, err
	}
	return llm.Completion{
		Text:             fmt.Sprintf("Text %d", n),
		ID:               fmt.Sprintf("chatcmpl-%d", n),
		Created:          1760000000 + int64(n),
		Model:            "gpt-4.1-mini-2025-04-14",
		PromptTokens:     100,
		CompletionTokens: 50,
	}, nil
}

func pendingRows(modelNos ...string) []catalog.Row {
	rows := make([]catalog.Row, 0, len(modelNos))
	for i, m := range modelNos {
		rows = append(rows, catalog.NewRow(i, map[string]string{
			catalog.ColModelNo: m,
			catalog.ColGroup:   "MOVE " + m,
		}))
	}
	return rows
}

func baseOptions(client Completer, rows []catalog.Row) generationOptions {
	return generationOptions{
		Rows:        rows,
		Instruction: "Schreibe.",
		Provider:    "openai",
		ProviderCfg: config.ProviderConfig{BaseURL: "http://unused", Model: "gpt-4.1-mini", SystemPrompt: prompt.SystemMessage, Temperature: 0.5, MaxTokens: 1000},
		APIKey:      "k",
		RowErrors:   config.RowErrorsAbort,
		Client:      client,
	}
}

func TestGenerateBuildsOneRecordPerRow(t *testing.T) {
	fc := &fakeCompleter{}
	res, err := generate(context.Background(), baseOptions(fc, pendingRows("4711", "4712")))
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	require.Len(t, res.Table, 2)
	assert.Equal(t, "4711", res.Table[0].Model)
	assert.Equal(t, "Text 1", res.Table[0].Text)
	assert.Equal(t, "chatcmpl-1", res.Table[0].ResponseID)
	assert.Equal(t, int64(1760000001), res.Table[0].Created)
	assert.Equal(t, "gpt-4.1-mini-2025-04-14", res.Table[0].ServiceModel)
	assert.Equal(t, "4712", res.Table[1].Model)
	assert.Equal(t, 300, res.Tokens)

	require.Len(t, fc.calls, 2)
	req := fc.calls[0]
	assert.Equal(t, "gpt-4.1-mini", req.Model)
	assert.Equal(t, 0.5, req.Temperature)
	assert.Equal(t, 1000, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.Message{Role: "system", Content: prompt.SystemMessage}, req.Messages[0])
	assert.Equal(t, "user", req.Messages[1].Role)
	assert.True(t, strings.HasPrefix(req.Messages[1].Content, "Schreibe.\nGruppenbeschreibung::\n"))
	assert.Contains(t, req.Messages[1].Content, "Produktname: MOVE 4711")
}

func TestGenerateAbortsOnFirstFailure(t *testing.T) {
	boom := errors.New("HTTP 500: upstream")
	fc := &fakeCompleter{fail: map[int]error{2: boom}}
	res, err := generate(context.Background(), baseOptions(fc, pendingRows("1", "2", "3")))

	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, "2", rowErr.ModelNo)
	assert.Equal(t, 2, rowErr.Row)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateFailed, res.State)
	assert.Nil(t, res.Table)
	assert.Len(t, fc.calls, 2, "no calls after the failing row")
}

func TestGenerateContinueWritesFailureMarkers(t *testing.T) {
	fc := &fakeCompleter{fail: map[int]error{2: errors.New("HTTP 500")}}
	opts := baseOptions(fc, pendingRows("1", "2", "3"))
	opts.RowErrors = config.RowErrorsContinue
	res, err := generate(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Table, 3)
	assert.True(t, res.Table[1].Failed())
	assert.Equal(t, "2", res.Table[1].Model)
	assert.Empty(t, res.Table[1].Text)
	assert.Equal(t, "Text 3", res.Table[2].Text)
}

func TestGenerateRetriesWhenConfigured(t *testing.T) {
	stubSleep(t)
	fc := &fakeCompleter{fail: map[int]error{1: errors.New("HTTP 502")}}
	opts := baseOptions(fc, pendingRows("1"))
	opts.MaxRetries = 1
	res, err := generate(context.Background(), opts)
	require.NoError(t, err)
	assert.Len(t, fc.calls, 2)
	assert.Equal(t, "Text 2", res.Table[0].Text)
}

func TestGenerateStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fc := &fakeCompleter{}
	res, err := generate(ctx, baseOptions(fc, pendingRows("1")))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, res.State)
	assert.Empty(t, fc.calls)
}

func TestGenerateEmptySnapshot(t *testing.T) {
	res, err := generate(context.Background(), baseOptions(&fakeCompleter{}, nil))
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	assert.Empty(t, res.Table)
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, newLimiter(0))
	l := newLimiter(120)
	require.NotNil(t, l)
	assert.InDelta(t, 2.0, float64(l.Limit()), 0.0001)
}
