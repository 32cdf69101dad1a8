package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/laigent/internal/chunker"
	"github.com/felixgeelhaar/laigent/internal/events"
	"github.com/felixgeelhaar/laigent/internal/guard"
	"github.com/felixgeelhaar/laigent/internal/observe"
	"github.com/felixgeelhaar/laigent/internal/provider"
	"github.com/felixgeelhaar/laigent/internal/vectorstore"
	"github.com/felixgeelhaar/laigent/internal/vectorstore/vectortest"
)

func newTestAgent(t *testing.T, cfg Config, p provider.Provider, opts ...Option) (*Agent, *vectortest.Recorder) {
	t.Helper()

	mem, err := vectorstore.NewChromem("")
	if err != nil {
		t.Fatalf("NewChromem failed: %v", err)
	}
	rec := vectortest.NewRecorder(mem)

	base := []Option{
		WithProvider(p),
		WithVectorStore(rec),
		WithObserver(observe.NewJSON(&bytes.Buffer{}, true)),
		WithPalette(observe.NewPalette()),
	}
	a, err := New(cfg, SystemConfig{IndexName: "memories"}, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := a.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return a, rec
}

func TestResolveModel(t *testing.T) {
	testCases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"Explicit", Config{Model: "o1", Purpose: Reasoning}, "o1"},
		{"Reasoning", Config{Purpose: Reasoning}, ModelGPT4o},
		{"Answering", Config{Purpose: Answering}, ModelGPT4oMini},
		{"Coding", Config{Purpose: Coding}, ModelGPT4oMini},
		{"Default", Config{}, DefaultModel},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.ResolveModel(); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestModelFor(t *testing.T) {
	testCases := []struct {
		name     string
		cfg      Config
		provider string
		want     string
		wantErr  bool
	}{
		{"OpenAI Purpose", Config{Name: "a", Purpose: Reasoning}, "openai", ModelGPT4o, false},
		{"Default Provider", Config{Name: "a"}, "", DefaultModel, false},
		{"Stub Purpose", Config{Name: "a", Purpose: Coding}, "stub", ModelGPT4oMini, false},
		{"Anthropic Explicit", Config{Name: "a", Model: "claude-sonnet-4-5"}, "anthropic", "claude-sonnet-4-5", false},
		{"Anthropic Purpose", Config{Name: "a", Purpose: Reasoning}, "anthropic", "", true},
		{"Gemini Default", Config{Name: "a"}, "gemini", "", true},
		{"Ollama Purpose", Config{Name: "a", Purpose: Answering}, "ollama", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.cfg.ModelFor(tc.provider)
			if tc.wantErr {
				if !errors.Is(err, ErrModelRequired) {
					t.Errorf("expected ErrModelRequired, got %v", err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Errorf("expected %s, got %s (%v)", tc.want, got, err)
			}
		})
	}
}

func TestNew_ModelRequired(t *testing.T) {
	_, err := New(Config{Name: "a", Purpose: Reasoning}, SystemConfig{Provider: "ollama"},
		WithProvider(provider.NewStubProvider()), WithVectorStore(&failingStore{}))
	if !errors.Is(err, ErrModelRequired) {
		t.Errorf("expected ErrModelRequired, got %v", err)
	}
}

func TestRenderSystemPrompt(t *testing.T) {
	t.Run("Default Prompt", func(t *testing.T) {
		got, err := renderSystemPrompt(Config{Name: "a"})
		if err != nil || got != DefaultSystemPrompt {
			t.Errorf("expected default prompt, got %q (%v)", got, err)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		got, _ := renderSystemPrompt(Config{Name: "a", SystemPrompt: "Be terse.", Response: &ResponseFormat{Type: JSON}})
		if !strings.HasPrefix(got, "Be terse.\n\nIMPORTANT: You must provide your response in json format.") {
			t.Errorf("unexpected prompt: %q", got)
		}
		if !strings.Contains(got, "valid JSON") {
			t.Errorf("expected JSON instructions, got %q", got)
		}
	})

	t.Run("Code With Instructions", func(t *testing.T) {
		got, _ := renderSystemPrompt(Config{Name: "a", Response: &ResponseFormat{Type: Code, Language: "go", Instructions: "Use generics."}})
		if !strings.Contains(got, "Provide ONLY executable go code") {
			t.Errorf("expected code instructions, got %q", got)
		}
		if !strings.HasSuffix(got, "\n\nResponse Instructions: Use generics.") {
			t.Errorf("expected response instructions suffix, got %q", got)
		}
	})

	t.Run("Code Without Language", func(t *testing.T) {
		if _, err := renderSystemPrompt(Config{Name: "a", Response: &ResponseFormat{Type: Code}}); !errors.Is(err, ErrMissingLanguage) {
			t.Errorf("expected ErrMissingLanguage, got %v", err)
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"Valid", Config{Name: "a", Purpose: Coding, LogColor: observe.Teal}, true},
		{"Missing Name", Config{}, false},
		{"Bad Purpose", Config{Name: "a", Purpose: "dreaming"}, false},
		{"Bad Color", Config{Name: "a", LogColor: "magenta"}, false},
		{"Bad Response Type", Config{Name: "a", Response: &ResponseFormat{Type: "xml"}}, false},
		{"Negative Tokens", Config{Name: "a", Response: &ResponseFormat{Type: PlainText, MaxTokens: -1}}, false},
		{"Code Without Language", Config{Name: "a", Response: &ResponseFormat{Type: Code}}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNew_CodeWithoutLanguageFailsAtConstruction(t *testing.T) {
	p := provider.NewStubProvider()
	store, _ := vectorstore.NewChromem("")

	_, err := New(
		Config{Name: "coder", Response: &ResponseFormat{Type: Code}},
		SystemConfig{IndexName: "memories"},
		WithProvider(p), WithVectorStore(store),
	)
	if !errors.Is(err, ErrMissingLanguage) {
		t.Fatalf("expected ErrMissingLanguage, got %v", err)
	}
	if len(p.Requests) != 0 || p.EmbedCalls != 0 {
		t.Error("expected no provider calls")
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	store, _ := vectorstore.NewChromem("")
	if _, err := New(Config{Name: "a"}, SystemConfig{}, WithVectorStore(store)); err == nil {
		t.Error("expected error without provider")
	}
	if _, err := New(Config{Name: "a"}, SystemConfig{}, WithProvider(provider.NewStubProvider())); err == nil {
		t.Error("expected error without vector store")
	}
	if _, err := New(Config{Name: "a"}, SystemConfig{}, WithProvider(provider.NewStubProvider()), WithVectorStore(store), WithBatchSize(0)); err == nil {
		t.Error("expected error for zero batch size")
	}
}

func TestAgent_NotReady(t *testing.T) {
	store, _ := vectorstore.NewChromem("")
	a, err := New(Config{Name: "a"}, SystemConfig{IndexName: "memories"},
		WithProvider(provider.NewStubProvider()), WithVectorStore(store),
		WithObserver(observe.NewJSON(&bytes.Buffer{}, false)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	if _, err := a.Prompt(ctx, "hi"); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady from Prompt, got %v", err)
	}
	if _, err := a.SaveInMemory(ctx, "hi", chunker.Text, nil); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady from SaveInMemory, got %v", err)
	}
	if _, err := a.SearchMemory(ctx, "hi", 0, nil); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady from SearchMemory, got %v", err)
	}

	if err := a.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if !a.Ready() {
		t.Error("expected agent to be ready")
	}
}

func TestAgent_InitializeFailure(t *testing.T) {
	store, _ := vectorstore.NewChromem("")
	bus := events.NewBus()
	var failed bool
	bus.Subscribe(events.AgentFailed, func(events.Event) { failed = true })

	a, _ := New(Config{Name: "a"}, SystemConfig{},
		WithProvider(provider.NewStubProvider()), WithVectorStore(store),
		WithObserver(observe.NewJSON(&bytes.Buffer{}, false)), WithEventBus(bus))

	if err := a.Initialize(context.Background()); err == nil {
		t.Fatal("expected error for missing index name")
	}
	if a.Ready() || !failed {
		t.Error("expected agent to stay not ready and publish a failure event")
	}
}

func TestAgent_Accessors(t *testing.T) {
	a, _ := newTestAgent(t, Config{Name: "writer", Purpose: Reasoning, SystemPrompt: "Write.", LogColor: observe.Purple}, provider.NewStubProvider())

	if a.Name() != "writer" || a.Model() != ModelGPT4o || a.SystemPrompt() != "Write." {
		t.Errorf("unexpected accessors: %s %s %q", a.Name(), a.Model(), a.SystemPrompt())
	}
	if a.Color() != observe.Purple {
		t.Errorf("expected preferred color purple, got %s", a.Color())
	}
}

func TestAgent_Prompt(t *testing.T) {
	ctx := context.Background()

	t.Run("Plain Text", func(t *testing.T) {
		p := provider.NewStubProvider("  hello there  ")
		a, _ := newTestAgent(t, Config{Name: "a", Purpose: Answering}, p)

		reply, err := a.Prompt(ctx, "hi")
		if err != nil {
			t.Fatalf("Prompt failed: %v", err)
		}
		if reply.Text != "  hello there  " || reply.String() != reply.Text {
			t.Errorf("expected raw text, got %q", reply.Text)
		}

		req, _ := p.LastRequest()
		if req.System != DefaultSystemPrompt || req.User != "hi" || req.Model != ModelGPT4oMini || req.JSONMode {
			t.Errorf("unexpected request: %+v", req)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		p := provider.NewStubProvider(`{"a":1}`)
		a, _ := newTestAgent(t, Config{Name: "a", Response: &ResponseFormat{Type: JSON, MaxTokens: 50}}, p)

		reply, err := a.Prompt(ctx, "give json")
		if err != nil {
			t.Fatalf("Prompt failed: %v", err)
		}
		want := map[string]any{"a": float64(1)}
		if !reflect.DeepEqual(reply.JSON, want) {
			t.Errorf("expected %v, got %v", want, reply.JSON)
		}
		if reply.String() != "{\n  \"a\": 1\n}" {
			t.Errorf("expected indented JSON string, got %q", reply.String())
		}

		req, _ := p.LastRequest()
		if !req.JSONMode || req.MaxTokens != 50 {
			t.Errorf("expected JSON mode and max tokens, got %+v", req)
		}
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		a, _ := newTestAgent(t, Config{Name: "a", Response: &ResponseFormat{Type: JSON}}, provider.NewStubProvider("not json"))

		if _, err := a.Prompt(ctx, "give json"); !errors.Is(err, ErrInvalidContent) {
			t.Errorf("expected ErrInvalidContent, got %v", err)
		}
	})

	t.Run("JSON Decoded", func(t *testing.T) {
		a, _ := newTestAgent(t, Config{Name: "a", Response: &ResponseFormat{Type: JSON}}, provider.NewStubProvider(`{"steps":["a","b"]}`))

		reply, err := a.Prompt(ctx, "plan")
		if err != nil {
			t.Fatalf("Prompt failed: %v", err)
		}
		out, _ := reply.JSON.(map[string]any)
		steps, _ := out["steps"].([]any)
		if len(steps) != 2 || steps[1] != "b" {
			t.Errorf("unexpected decode: %+v", reply.JSON)
		}
	})

	t.Run("Code Fence Stripped", func(t *testing.T) {
		p := provider.NewStubProvider("```ts\nconst x = 1;\n```")
		a, _ := newTestAgent(t, Config{Name: "a", Response: &ResponseFormat{Type: Code, Language: "typescript"}}, p)

		reply, err := a.Prompt(ctx, "code")
		if err != nil {
			t.Fatalf("Prompt failed: %v", err)
		}
		if reply.Text != "const x = 1;" {
			t.Errorf("expected fence stripped, got %q", reply.Text)
		}
	})

	t.Run("Code Without Fence", func(t *testing.T) {
		p := provider.NewStubProvider(" x := 1 \n")
		a, _ := newTestAgent(t, Config{Name: "a", Response: &ResponseFormat{Type: Code, Language: "go"}}, p)

		reply, _ := a.Prompt(ctx, "code")
		if reply.Text != " x := 1 \n" {
			t.Errorf("expected raw text unmodified, got %q", reply.Text)
		}
	})

	t.Run("Provider Error", func(t *testing.T) {
		a, _ := newTestAgent(t, Config{Name: "a"}, provider.NewStubProvider())
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		if _, err := a.Prompt(canceled, "hi"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected wrapped context.Canceled, got %v", err)
		}
	})
}

func TestAgent_SaveAndSearch(t *testing.T) {
	ctx := context.Background()
	p := provider.NewStubProvider()
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 10_000_000, time.UTC)
	a, rec := newTestAgent(t, Config{Name: "librarian"}, p, WithClock(func() time.Time { return fixed }))

	original := "The quick brown fox jumps over the lazy dog."
	ids, err := a.SaveInMemory(ctx, original, chunker.Text, map[string]string{"source": "test", "agent": "spoof"})
	if err != nil {
		t.Fatalf("SaveInMemory failed: %v", err)
	}
	wantID := fmt.Sprintf("librarian-%d-0", fixed.UnixNano())
	if len(ids) != 1 || ids[0] != wantID {
		t.Fatalf("expected [%s], got %v", wantID, ids)
	}

	if _, err := a.SaveInMemory(ctx, "Completely unrelated notes about tax forms and invoices.", chunker.Text, nil); err != nil {
		t.Fatalf("SaveInMemory failed: %v", err)
	}

	memories, err := a.SearchMemory(ctx, original, 0, nil)
	if err != nil {
		t.Fatalf("SearchMemory failed: %v", err)
	}
	if len(memories) == 0 {
		t.Fatal("expected memories")
	}

	top := memories[0]
	if top.Text != original {
		t.Errorf("expected original content first, got %q", top.Text)
	}
	if top.Agent != "librarian" || top.ContentType != chunker.Text || top.ChunkIndex != 0 || top.TotalChunks != 1 {
		t.Errorf("unexpected memory fields: %+v", top)
	}
	if top.OriginalID != fmt.Sprintf("librarian-%d", fixed.UnixNano()) {
		t.Errorf("unexpected original id %s", top.OriginalID)
	}
	if top.Timestamp != "2024-05-06T07:08:09.010Z" {
		t.Errorf("unexpected timestamp %s", top.Timestamp)
	}
	if ts, err := top.Time(); err != nil || !ts.Equal(fixed.Truncate(time.Millisecond)) {
		t.Errorf("unexpected parsed time %v (%v)", ts, err)
	}
	if top.Metadata["source"] != "test" {
		t.Errorf("expected caller metadata, got %v", top.Metadata)
	}

	q := rec.Queries[len(rec.Queries)-1]
	if q.TopK != DefaultSearchLimit || q.Filter[KeyAgent] != "librarian" {
		t.Errorf("expected default limit and agent filter, got %+v", q)
	}
}

func TestAgent_SearchIsScopedToAgent(t *testing.T) {
	ctx := context.Background()
	shared, _ := vectorstore.NewChromem("")
	obs := observe.NewJSON(&bytes.Buffer{}, false)

	build := func(name string) *Agent {
		a, err := New(Config{Name: name}, SystemConfig{IndexName: "shared"},
			WithProvider(provider.NewStubProvider()), WithVectorStore(shared), WithObserver(obs))
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if err := a.Initialize(ctx); err != nil {
			t.Fatalf("Initialize failed: %v", err)
		}
		return a
	}
	alice, bob := build("alice"), build("bob")

	if _, err := alice.SaveInMemory(ctx, "alice likes green apples.", chunker.Text, nil); err != nil {
		t.Fatalf("SaveInMemory failed: %v", err)
	}
	if _, err := bob.SaveInMemory(ctx, "bob likes green apples.", chunker.Text, nil); err != nil {
		t.Fatalf("SaveInMemory failed: %v", err)
	}

	memories, err := bob.SearchMemory(ctx, "green apples", 10, map[string]string{KeyAgent: "alice"})
	if err != nil {
		t.Fatalf("SearchMemory failed: %v", err)
	}
	for _, m := range memories {
		if m.Agent != "bob" {
			t.Errorf("expected only bob's memories, got %+v", m)
		}
	}
}

func TestAgent_SaveInMemoryBatches(t *testing.T) {
	ctx := context.Background()
	p := provider.NewStubProvider()
	a, rec := newTestAgent(t, Config{Name: "bulk"}, p, WithBatchSize(2))

	var sentences []string
	for i := 0; i < 5; i++ {
		sentences = append(sentences, strings.TrimSpace(strings.Repeat(fmt.Sprintf("topic%d ", i), 600))+".")
	}
	content := strings.Join(sentences, " ")

	ids, err := a.SaveInMemory(ctx, content, chunker.Text, nil)
	if err != nil {
		t.Fatalf("SaveInMemory failed: %v", err)
	}
	if len(ids) != 5 {
		t.Fatalf("expected 5 chunks, got %d", len(ids))
	}

	if len(rec.Upserts) != 3 {
		t.Fatalf("expected 3 upsert calls, got %d", len(rec.Upserts))
	}
	for i, batch := range rec.Upserts {
		if len(batch) > 2 {
			t.Errorf("batch %d has %d vectors, cap is 2", i, len(batch))
		}
	}
	if !reflect.DeepEqual(p.BatchSizes, []int{2, 2, 1}) {
		t.Errorf("unexpected embed batch sizes %v", p.BatchSizes)
	}

	var upserted []string
	for _, batch := range rec.Upserts {
		for _, v := range batch {
			upserted = append(upserted, v.ID)
			if v.Metadata[KeyTotalChunks] != "5" {
				t.Errorf("expected totalChunks 5, got %s", v.Metadata[KeyTotalChunks])
			}
		}
	}
	if !reflect.DeepEqual(upserted, ids) {
		t.Errorf("expected returned ids in upsert order, got %v vs %v", ids, upserted)
	}
	for i, id := range ids {
		if !strings.HasSuffix(id, fmt.Sprintf("-%d", i)) {
			t.Errorf("expected id %d to end with its chunk index, got %s", i, id)
		}
	}
}

type failingStore struct {
	vectorstore.Store
	failAfter int
	upserts   int
}

func (f *failingStore) Upsert(ctx context.Context, vectors []vectorstore.Vector) error {
	f.upserts++
	if f.upserts > f.failAfter {
		return errors.New("index unavailable")
	}
	return f.Store.Upsert(ctx, vectors)
}

func TestAgent_SaveInMemoryPartialFailure(t *testing.T) {
	ctx := context.Background()
	inner, _ := vectorstore.NewChromem("")
	store := &failingStore{Store: inner, failAfter: 1}

	a, err := New(Config{Name: "flaky"}, SystemConfig{IndexName: "memories"},
		WithProvider(provider.NewStubProvider()), WithVectorStore(store),
		WithObserver(observe.NewJSON(&bytes.Buffer{}, false)), WithBatchSize(1))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	_ = a.Initialize(ctx)

	big := strings.TrimSpace(strings.Repeat("alpha ", 1000)) + ". " + strings.TrimSpace(strings.Repeat("beta ", 1000)) + "."
	ids, err := a.SaveInMemory(ctx, big, chunker.Text, nil)
	if err == nil {
		t.Fatal("expected error from second batch")
	}
	if len(ids) != 1 {
		t.Errorf("expected ids of the completed batch, got %v", ids)
	}
}

func TestAgent_SaveInMemoryEdgeCases(t *testing.T) {
	ctx := context.Background()
	p := provider.NewStubProvider()
	a, rec := newTestAgent(t, Config{Name: "edge"}, p)

	ids, err := a.SaveInMemory(ctx, "   ", chunker.Text, nil)
	if err != nil || len(ids) != 0 {
		t.Errorf("expected no ids for empty content, got %v (%v)", ids, err)
	}
	if len(rec.Upserts) != 0 || p.EmbedCalls != 0 {
		t.Error("expected no collaborator calls for empty content")
	}

	if _, err := a.SaveInMemory(ctx, "{broken", chunker.JSON, nil); !errors.Is(err, ErrInvalidContent) {
		t.Errorf("expected ErrInvalidContent, got %v", err)
	}

	if _, err := a.SaveInMemory(ctx, "# Title\n\nSome *markdown* text.", chunker.Markdown, nil); err != nil {
		t.Errorf("SaveInMemory markdown failed: %v", err)
	}
	last := rec.Upserts[len(rec.Upserts)-1][0]
	if last.Metadata[KeyContentType] != "markdown" || strings.Contains(last.Metadata[KeyText], "*") {
		t.Errorf("unexpected markdown record: %+v", last.Metadata)
	}
}

func TestAgent_ForgetMemories(t *testing.T) {
	ctx := context.Background()
	a, rec := newTestAgent(t, Config{Name: "forgetful"}, provider.NewStubProvider())

	ids, _ := a.SaveInMemory(ctx, "remember this.", chunker.Text, nil)
	if err := a.ForgetMemories(ctx, ids); err != nil {
		t.Fatalf("ForgetMemories failed: %v", err)
	}
	if len(rec.Deleted) != 1 || !reflect.DeepEqual(rec.Deleted[0], ids) {
		t.Errorf("expected delete of %v, got %v", ids, rec.Deleted)
	}

	memories, _ := a.SearchMemory(ctx, "remember this.", 5, nil)
	if len(memories) != 0 {
		t.Errorf("expected no memories after forget, got %d", len(memories))
	}
}

func TestAgent_Events(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus()
	var seen []events.Type
	bus.SubscribeAll(func(e events.Event) {
		if e.Agent != "evented" {
			t.Errorf("unexpected agent %s", e.Agent)
		}
		seen = append(seen, e.Type)
	})

	a, _ := newTestAgent(t, Config{Name: "evented"}, provider.NewStubProvider("ok"), WithEventBus(bus))
	_, _ = a.Prompt(ctx, "hi")
	_, _ = a.SaveInMemory(ctx, "a fact.", chunker.Text, nil)
	_, _ = a.SearchMemory(ctx, "fact", 1, nil)
	_, _ = a.ExecuteCommand(ctx, "echo hi")

	want := []events.Type{events.AgentReady, events.PromptStart, events.PromptEnd, events.MemoryStored, events.MemorySearched, events.CommandExecuted}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("expected %v, got %v", want, seen)
	}
}

func TestAgent_Actions(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAgent(t, Config{Name: "worker"}, provider.NewStubProvider())
	dir := filepath.Join(t.TempDir(), "out")

	if err := a.CreateDirectory(dir); err != nil {
		t.Fatalf("CreateDirectory failed: %v", err)
	}
	path := filepath.Join(dir, "reply.json")
	if err := a.WriteJSON(path, map[string]int{"n": 1}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if err := a.AppendFile(path, "\n"); err != nil {
		t.Fatalf("AppendFile failed: %v", err)
	}
	got, err := a.ReadFile(path)
	if err != nil || got != "{\n  \"n\": 1\n}\n" {
		t.Errorf("unexpected file content %q (%v)", got, err)
	}
	if !a.FileExists(path) || a.FileExists(filepath.Join(dir, "nope")) {
		t.Error("unexpected FileExists result")
	}

	if err := a.WriteFile(path, "plain"); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	out, err := a.ExecuteCommand(ctx, "printf 'x\\n'")
	if err != nil || out != "x" {
		t.Errorf("expected 'x', got %q (%v)", out, err)
	}
}

func TestAgent_Policy(t *testing.T) {
	store, _ := vectorstore.NewChromem("")
	a, err := New(Config{Name: "guarded"}, SystemConfig{IndexName: "memories", Policy: &guard.Policy{AllowedCommands: []string{"echo"}}},
		WithProvider(provider.NewStubProvider()), WithVectorStore(store),
		WithObserver(observe.NewJSON(&bytes.Buffer{}, false)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := a.ExecuteCommand(context.Background(), "ls"); err == nil {
		t.Error("expected policy violation")
	}
	if _, err := a.ExecuteCommand(context.Background(), "echo fine"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
