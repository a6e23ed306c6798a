package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"luki-produkttexte/internal/catalog"
	"luki-produkttexte/internal/config"
	"luki-produkttexte/internal/llm"
	"luki-produkttexte/internal/logging"
	"luki-produkttexte/internal/prompt"
	"luki-produkttexte/internal/session"
)

// Completer is the chat completion service used by the generation loop.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (llm.Completion, error)
}

// RowError reports the row whose completion request failed.
type RowError struct {
	Row     int
	ModelNo string
	Err     error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("Zeile %d (Modellnr %s): %v", e.Row, e.ModelNo, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

type generationOptions struct {
	Rows        []catalog.Row
	Instruction string
	Provider    string
	ProviderCfg config.ProviderConfig
	APIKey      string
	RowErrors   string
	MaxRetries  int
	Limiter     *rate.Limiter
	Client      Completer
	Logger      *logging.Logger
	RunID       string
}

type generationResult struct {
	State  RunState
	Table  session.Table
	Failed int
	Tokens int
}

// newLimiter paces requests to perMinute calls. Zero means unpaced.
func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

// generate walks the rows in order and calls the completion service once per
// row. With row_errors=abort the first failure ends the run without a table.
func generate(ctx context.Context, opts generationOptions) (generationResult, error) {
	res := generationResult{State: StateRunning, Table: make(session.Table, 0, len(opts.Rows))}
	for _, row := range opts.Rows {
		if err := ctx.Err(); err != nil {
			return generationResult{State: StateFailed}, err
		}
		rec, err := generateRow(ctx, opts, row)
		if err != nil {
			rowErr := &RowError{Row: row.Index + 1, ModelNo: row.ModelNo(), Err: err}
			opts.Logger.Emit(logging.Event{Level: "error", Event: "row_failed", RunID: opts.RunID, Row: rowErr.Row, ModelNo: rowErr.ModelNo, Error: err.Error()})
			if opts.RowErrors != config.RowErrorsContinue || ctx.Err() != nil {
				return generationResult{State: StateFailed}, rowErr
			}
			res.Failed++
			res.Table = append(res.Table, session.Record{Model: row.ModelNo(), Err: err.Error()})
			continue
		}
		res.Tokens += rec.PromptTokens + rec.CompletionTokens
		res.Table = append(res.Table, rec)
	}
	res.State = StateCompleted
	return res, nil
}

func generateRow(ctx context.Context, opts generationOptions, row catalog.Row) (session.Record, error) {
	req := llm.Request{
		Provider:    opts.Provider,
		BaseURL:     opts.ProviderCfg.BaseURL,
		Model:       opts.ProviderCfg.Model,
		APIKey:      opts.APIKey,
		Messages:    llm.PromptMessages(opts.ProviderCfg.SystemPrompt, prompt.Build(opts.Instruction, row)),
		Temperature: opts.ProviderCfg.Temperature,
		MaxTokens:   opts.ProviderCfg.MaxTokens,
	}
	rowNo := row.Index + 1
	modelNo := row.ModelNo()

	var out llm.Completion
	err := withExponentialBackoff(ctx, retryOptions{
		MaxRetries: opts.MaxRetries,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   8 * time.Second,
		Jitter:     0.25,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			opts.Logger.Emit(logging.Event{
				Level:   "warn",
				Event:   "retry_backoff",
				RunID:   opts.RunID,
				Row:     rowNo,
				ModelNo: modelNo,
				Attempt: attempt,
				WaitMS:  wait.Milliseconds(),
				Error:   err.Error(),
			})
		},
	}, func(attempt int) error {
		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				return err
			}
		}
		opts.Logger.Emit(logging.Event{Event: "api_request", RunID: opts.RunID, Row: rowNo, ModelNo: modelNo, Provider: opts.Provider, Model: req.Model, Attempt: attempt})
		resp, err := opts.Client.Complete(ctx, req)
		if err != nil {
			return err
		}
		out = resp
		return nil
	})
	if err != nil {
		return session.Record{}, err
	}
	opts.Logger.Emit(logging.Event{Event: "api_response", RunID: opts.RunID, Row: rowNo, ModelNo: modelNo, LatencyMS: out.LatencyMS, Tokens: out.PromptTokens + out.CompletionTokens})
	return session.Record{
		Model:            modelNo,
		Text:             out.Text,
		ResponseID:       out.ID,
		Created:          out.Created,
		ServiceModel:     out.Model,
		PromptTokens:     out.PromptTokens,
		CompletionTokens: out.CompletionTokens,
	}, nil
}
