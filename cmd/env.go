package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/wins-cli/internal/audit"
	"github.com/sells-group/wins-cli/internal/gate"
	"github.com/sells-group/wins-cli/internal/pipeline"
	"github.com/sells-group/wins-cli/internal/resilience"
	"github.com/sells-group/wins-cli/internal/rules"
	"github.com/sells-group/wins-cli/internal/store"
	"github.com/sells-group/wins-cli/pkg/llm"
)

// env bundles the wired collaborators a command needs.
type env struct {
	Store store.Store
	Rules *rules.RuleSet
	Audit *audit.Logger
	Gate  *gate.Gate
}

func (e *env) Close() {
	_ = e.Store.Close()
}

// initStore opens the configured backend and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// initEnv wires store, rules, audit, and gate. The rule file is loaded
// fail-fast: a malformed config aborts before any item is touched.
func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	rs, err := rules.Load(cfg.Rules.Path)
	if err != nil {
		st.Close()
		return nil, err
	}

	aud := audit.NewLogger(st)
	return &env{
		Store: st,
		Rules: rs,
		Audit: aud,
		Gate:  gate.New(st, rs, aud),
	}, nil
}

// initLLM builds the configured model client.
func initLLM() (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "anthropic":
		if cfg.LLM.APIKey == "" {
			return nil, eris.New("llm.api_key is required for the anthropic provider")
		}
		return llm.NewAnthropic(cfg.LLM.APIKey, cfg.LLM.Model), nil
	case "ollama", "":
		return llm.NewOllama(
			llm.WithBaseURL(cfg.LLM.BaseURL),
			llm.WithModel(cfg.LLM.Model),
			llm.WithTimeout(time.Duration(cfg.LLM.TimeoutSecs)*time.Second),
			llm.WithRateLimit(cfg.LLM.RequestsPerSecond, 1),
		), nil
	}
	return nil, eris.Errorf("unknown llm provider %q", cfg.LLM.Provider)
}

// initExtractor builds the guarded extractor from config.
func initExtractor() (*pipeline.Guard, error) {
	client, err := initLLM()
	if err != nil {
		return nil, err
	}

	tmpl, system, err := pipeline.LoadPromptTemplate(cfg.LLM.PromptPath)
	if err != nil {
		return nil, err
	}

	return &pipeline.Guard{
		Extractor: &pipeline.Extractor{
			Client:   client,
			Model:    cfg.LLM.Model,
			Template: tmpl,
			System:   system,
			Retry:    resilience.DefaultRetryConfig(),
		},
	}, nil
}

// printJSON writes v indented to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
