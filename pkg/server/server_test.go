package server

import (
	"bytes"
	"context"
	"encoding/json"
	"hash/fnv"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docent-ai/docent/pkg/agent"
	"github.com/docent-ai/docent/pkg/config"
	"github.com/docent-ai/docent/pkg/llms"
	"github.com/docent-ai/docent/pkg/orchestrator"
	"github.com/docent-ai/docent/pkg/rag"
	"github.com/docent-ai/docent/pkg/tools"
)

// ollamaStub fakes the model runtime: canned generation text, a
// configurable installed-model list, and togglable failure.
type ollamaStub struct {
	mu        sync.Mutex
	reply     string
	installed []string
	failAll   bool
	pullErr   bool
	pulled    []string
}

func (o *ollamaStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	reply, installed, failAll, pullErr := o.reply, o.installed, o.failAll, o.pullErr
	o.mu.Unlock()

	if failAll {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "runtime down"})
		return
	}

	switch r.URL.Path {
	case "/api/generate":
		var req struct {
			Stream bool `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		enc := json.NewEncoder(w)
		if req.Stream {
			_ = enc.Encode(map[string]interface{}{"response": reply, "done": false})
			_ = enc.Encode(map[string]interface{}{"done": true})
			return
		}
		_ = enc.Encode(map[string]interface{}{"response": reply, "done": true})

	case "/api/tags":
		models := make([]map[string]string, 0, len(installed))
		for _, name := range installed {
			models = append(models, map[string]string{"name": name})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"models": models})

	case "/api/pull":
		var req struct {
			Name string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		o.mu.Lock()
		o.pulled = append(o.pulled, req.Name)
		o.mu.Unlock()
		if pullErr {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "no space left"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "success"})

	default:
		http.NotFound(w, r)
	}
}

func (o *ollamaStub) setReply(s string) { o.mu.Lock(); o.reply = s; o.mu.Unlock() }

func (o *ollamaStub) setInstalled(names ...string) { o.mu.Lock(); o.installed = names; o.mu.Unlock() }

func (o *ollamaStub) setFailAll(v bool) { o.mu.Lock(); o.failAll = v; o.mu.Unlock() }

func (o *ollamaStub) setPullErr(v bool) { o.mu.Lock(); o.pullErr = v; o.mu.Unlock() }

func (o *ollamaStub) pulledModels() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.pulled...)
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return hashVec(text), nil
}

func (stubEmbedder) Model() string { return "stub-embed" }

func hashVec(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, 4)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(seed%1000)/1000 + 0.001
	}
	return vec
}

type fixture struct {
	server *Server
	ts     *httptest.Server
	ollama *ollamaStub
	cfg    *config.Config
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()

	stub := &ollamaStub{reply: "FINAL_ANSWER: ok"}
	runtime := httptest.NewServer(stub)
	t.Cleanup(runtime.Close)

	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.LLM.BaseURL = runtime.URL
	cfg.RAG.VectorStorePath = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}

	llm := llms.NewClient(&cfg.LLM)

	manual, err := rag.NewManualBackend(&cfg.RAG, stubEmbedder{})
	require.NoError(t, err)
	framework, err := rag.NewFrameworkBackend(&cfg.RAG, stubEmbedder{})
	require.NoError(t, err)
	ingestor := rag.NewIngestor(manual, framework, "")

	chatAgent := agent.New(llm, tools.NewDefaultRegistry(), cfg.LLM.GenerationModel, cfg.Agent.MaxSteps)
	orch := orchestrator.New(llm, ingestor, cfg)

	s := New(cfg, orch, ingestor, chatAgent, llm)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(s.Hub().Shutdown)

	return &fixture{server: s, ts: ts, ollama: stub, cfg: cfg}
}

func (fx *fixture) get(t *testing.T, path string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(fx.ts.URL + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func (fx *fixture) post(t *testing.T, path string, payload interface{}) (int, map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(fx.ts.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func (fx *fixture) upload(t *testing.T, path, filename string, content []byte) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(fx.ts.URL+path, mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHealth(t *testing.T) {
	fx := newFixture(t, nil)

	status, body := fx.get(t, "/health")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, fx.cfg.LLM.BaseURL, body["llm_base_url"])
	assert.Equal(t, "gemma:2b", body["generation_model"])
	assert.EqualValues(t, 120, body["timeout_seconds"])
	assert.Equal(t, true, body["rag_enabled"])
	assert.Equal(t, "nomic-embed-text", body["embedding_model"])
}

func TestListModels(t *testing.T) {
	fx := newFixture(t, nil)
	fx.ollama.setInstalled("phi3:latest", "nomic-embed-text")

	status, body := fx.get(t, "/api/models")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "gemma:2b", body["current_model"])

	models, ok := body["available_models"].([]interface{})
	require.True(t, ok)
	require.Len(t, models, len(llms.Catalog()))

	byName := map[string]bool{}
	for _, m := range models {
		entry := m.(map[string]interface{})
		byName[entry["name"].(string)] = entry["installed"].(bool)
	}
	assert.True(t, byName["phi3"])
	assert.False(t, byName["gemma:2b"])
}

func TestListModelsDegradesWhenRuntimeDown(t *testing.T) {
	fx := newFixture(t, nil)
	fx.ollama.setFailAll(true)

	status, body := fx.get(t, "/api/models")
	require.Equal(t, http.StatusOK, status)

	models := body["available_models"].([]interface{})
	require.Len(t, models, len(llms.Catalog()))
	for _, m := range models {
		assert.False(t, m.(map[string]interface{})["installed"].(bool))
	}
}

func TestLoadModel(t *testing.T) {
	fx := newFixture(t, nil)

	status, body := fx.post(t, "/api/models/load", map[string]string{"model": "phi3"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Model phi3 loaded successfully", body["message"])
	assert.Equal(t, "phi3", body["current_model"])
	assert.Equal(t, []string{"phi3"}, fx.ollama.pulledModels())

	_, health := fx.get(t, "/health")
	assert.Equal(t, "phi3", health["generation_model"])
}

func TestLoadModelUnknown(t *testing.T) {
	fx := newFixture(t, nil)

	_, body := fx.post(t, "/api/models/load", map[string]string{"model": "gpt-9"})
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "Invalid model. Available models:")
	assert.Empty(t, fx.ollama.pulledModels())

	_, health := fx.get(t, "/health")
	assert.Equal(t, "gemma:2b", health["generation_model"])
}

func TestLoadModelPullFailure(t *testing.T) {
	fx := newFixture(t, nil)
	fx.ollama.setPullErr(true)

	_, body := fx.post(t, "/api/models/load", map[string]string{"model": "phi3"})
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "Failed to load model:")

	_, health := fx.get(t, "/health")
	assert.Equal(t, "gemma:2b", health["generation_model"])
}

func TestSystemCurrentAndSwitch(t *testing.T) {
	fx := newFixture(t, nil)

	_, body := fx.get(t, "/api/system/current")
	assert.Equal(t, "manual", body["current_system"])
	assert.Equal(t, []interface{}{"manual", "framework"}, body["available_systems"])

	_, body = fx.post(t, "/api/system/switch", map[string]string{"system": "framework"})
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "framework", body["current_system"])
	assert.Equal(t, "Switched to framework system", body["message"])

	_, body = fx.get(t, "/api/system/current")
	assert.Equal(t, "framework", body["current_system"])
}

func TestSystemSwitchLangchainAlias(t *testing.T) {
	fx := newFixture(t, nil)

	_, body := fx.post(t, "/api/system/switch", map[string]string{"system": "langchain"})
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "framework", body["current_system"])
}

func TestSystemSwitchInvalid(t *testing.T) {
	fx := newFixture(t, nil)

	_, body := fx.post(t, "/api/system/switch", map[string]string{"system": "quantum"})
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "Invalid system")

	_, body = fx.get(t, "/api/system/current")
	assert.Equal(t, "manual", body["current_system"])
}

func TestSystemSwitchEmptyDefaultsToManual(t *testing.T) {
	fx := newFixture(t, nil)

	_, body := fx.post(t, "/api/system/switch", map[string]string{"system": "framework"})
	require.Equal(t, true, body["success"])

	_, body = fx.post(t, "/api/system/switch", map[string]string{})
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "manual", body["current_system"])
}

func TestUnifiedIngestTextAndStats(t *testing.T) {
	fx := newFixture(t, nil)

	_, body := fx.post(t, "/api/rag/ingest_text", map[string]string{
		"text":   "Docent routes chat turns through a retrieval pipeline.",
		"source": "notes.txt",
	})
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "notes.txt", body["source"])
	manualChunks := body["added_chunks"].(float64)
	frameworkChunks := body["added_chunks_framework"].(float64)
	assert.Greater(t, manualChunks, 0.0)
	assert.Greater(t, frameworkChunks, 0.0)

	status, stats := fx.get(t, "/api/rag/stats")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, stats["enabled"])

	manual := stats["manual"].(map[string]interface{})
	framework := stats["framework"].(map[string]interface{})
	assert.EqualValues(t, manualChunks, manual["chunks"])
	assert.EqualValues(t, frameworkChunks, framework["chunks"])
	assert.Equal(t, "manual", manual["system"])
	assert.Equal(t, "framework", framework["system"])
}

func TestUnifiedIngestTextEmpty(t *testing.T) {
	fx := newFixture(t, nil)

	_, body := fx.post(t, "/api/rag/ingest_text", map[string]string{"text": "   "})
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No text provided", body["message"])
}

func TestUnifiedIngestTextDefaultSource(t *testing.T) {
	fx := newFixture(t, nil)

	_, body := fx.post(t, "/api/rag/ingest_text", map[string]string{"text": "some facts"})
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "uploaded", body["source"])
}

func TestUnifiedIngestFile(t *testing.T) {
	fx := newFixture(t, nil)

	_, body := fx.upload(t, "/api/rag/ingest_file", "guide.md", []byte("# Guide\n\nUseful content about gateways."))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "guide.md", body["source"])
	assert.Greater(t, body["added_chunks"].(float64), 0.0)
	assert.Greater(t, body["added_chunks_framework"].(float64), 0.0)
}

func TestUnifiedIngestFileUnsupported(t *testing.T) {
	fx := newFixture(t, nil)

	_, body := fx.upload(t, "/api/rag/ingest_file", "photo.png", []byte{0x89, 0x50, 0x4e, 0x47})
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["message"])
	assert.NotEmpty(t, body["manual_error"])
	assert.NotEmpty(t, body["framework_error"])
}

func TestUnifiedIngestFileMissing(t *testing.T) {
	fx := newFixture(t, nil)

	resp, err := http.Post(fx.ts.URL+"/api/rag/ingest_file", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No file provided", body["message"])
}

func TestIngestRefusedWhenRAGDisabled(t *testing.T) {
	fx := newFixture(t, func(cfg *config.Config) {
		cfg.RAG.Enabled = config.BoolPtr(false)
	})

	_, body := fx.post(t, "/api/rag/ingest_text", map[string]string{"text": "nope"})
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "RAG is disabled", body["message"])

	_, body = fx.post(t, "/api/rag/manual/ingest_text", map[string]string{"text": "nope"})
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "RAG is disabled", body["message"])

	// Stats stay readable so operators can see the switch state.
	status, stats := fx.get(t, "/api/rag/stats")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, stats["enabled"])
}

func TestBackendIngestText(t *testing.T) {
	fx := newFixture(t, nil)

	_, body := fx.post(t, "/api/rag/manual/ingest_text", map[string]string{
		"text":   "Only the manual index gets this.",
		"source": "solo.txt",
	})
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "manual", body["system"])
	assert.Greater(t, body["added_chunks"].(float64), 0.0)

	_, manualStats := fx.get(t, "/api/rag/manual/stats")
	assert.Greater(t, manualStats["chunks"].(float64), 0.0)

	_, frameworkStats := fx.get(t, "/api/rag/framework/stats")
	assert.EqualValues(t, 0, frameworkStats["chunks"])
}

func TestBackendLangchainAlias(t *testing.T) {
	fx := newFixture(t, nil)

	_, body := fx.post(t, "/api/rag/langchain/ingest_text", map[string]string{
		"text": "Framework-only fact.",
	})
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "framework", body["system"])

	_, stats := fx.get(t, "/api/rag/langchain/stats")
	assert.Equal(t, "framework", stats["system"])
	assert.Greater(t, stats["chunks"].(float64), 0.0)
}

func TestBackendUnknown(t *testing.T) {
	fx := newFixture(t, nil)

	status, body := fx.get(t, "/api/rag/qdrant/stats")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Unknown backend: qdrant", body["message"])
}

func TestBackendIngestFile(t *testing.T) {
	fx := newFixture(t, nil)

	_, body := fx.upload(t, "/api/rag/manual/ingest_file", "readme.txt", []byte("Plain text document."))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "readme.txt", body["source"])
	assert.Equal(t, "manual", body["system"])
}

func TestPreview(t *testing.T) {
	fx := newFixture(t, nil)

	_, body := fx.post(t, "/api/rag/manual/ingest_text", map[string]string{
		"text":   "The gateway exposes a WebSocket chat endpoint.",
		"source": "arch.md",
	})
	require.Equal(t, true, body["success"])

	_, preview := fx.post(t, "/api/rag/manual/preview", map[string]interface{}{
		"query": "What does the gateway expose?",
	})
	assert.Equal(t, true, preview["success"])
	assert.Equal(t, "manual", preview["system"])
	assert.EqualValues(t, fx.cfg.RAG.TopK, preview["top_k"])
	assert.Contains(t, preview["context_preview"], "Source: arch.md")
	assert.Greater(t, preview["context_chars"].(float64), 0.0)
}

func TestPreviewNoQuery(t *testing.T) {
	fx := newFixture(t, nil)

	_, body := fx.post(t, "/api/rag/manual/preview", map[string]string{"query": "  "})
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No query provided", body["message"])
}

func TestPreviewTruncatesLongContext(t *testing.T) {
	fx := newFixture(t, nil)

	long := strings.Repeat("retrieval context budget words flow here ", 45)
	_, body := fx.post(t, "/api/rag/manual/ingest_text", map[string]string{
		"text":   long,
		"source": "big.txt",
	})
	require.Equal(t, true, body["success"])
	require.Greater(t, body["added_chunks"].(float64), 1.0)

	_, preview := fx.post(t, "/api/rag/manual/preview", map[string]interface{}{
		"query": "context budget words",
		"top_k": 8,
	})
	require.Equal(t, true, preview["success"])

	chars := preview["context_chars"].(float64)
	shown := preview["context_preview"].(string)
	require.Greater(t, chars, 1000.0)
	assert.Len(t, []rune(shown), 1000)
}

func TestUnifiedPreviewFollowsDefaultBackend(t *testing.T) {
	fx := newFixture(t, nil)

	_, body := fx.post(t, "/api/rag/framework/ingest_text", map[string]string{
		"text":   "Framework retrieval works.",
		"source": "fw.txt",
	})
	require.Equal(t, true, body["success"])

	_, sw := fx.post(t, "/api/system/switch", map[string]string{"system": "framework"})
	require.Equal(t, true, sw["success"])

	_, preview := fx.post(t, "/api/rag/preview", map[string]interface{}{
		"query": "Does framework retrieval work?",
	})
	assert.Equal(t, true, preview["success"])
	assert.Equal(t, "framework", preview["system"])
	assert.Contains(t, preview["context_preview"], "fw.txt")
}

func TestUnifiedReset(t *testing.T) {
	fx := newFixture(t, nil)

	_, body := fx.post(t, "/api/rag/ingest_text", map[string]string{"text": "wipe me"})
	require.Equal(t, true, body["success"])

	_, reset := fx.post(t, "/api/rag/reset", map[string]string{})
	assert.Equal(t, true, reset["success"])
	assert.Equal(t, "RAG indexes reset", reset["message"])

	_, stats := fx.get(t, "/api/rag/stats")
	assert.EqualValues(t, 0, stats["manual"].(map[string]interface{})["chunks"])
	assert.EqualValues(t, 0, stats["framework"].(map[string]interface{})["chunks"])
}

func TestBackendReset(t *testing.T) {
	fx := newFixture(t, nil)

	_, body := fx.post(t, "/api/rag/ingest_text", map[string]string{"text": "both backends hold this"})
	require.Equal(t, true, body["success"])

	_, reset := fx.post(t, "/api/rag/manual/reset", map[string]string{})
	assert.Equal(t, true, reset["success"])
	assert.Equal(t, "manual", reset["system"])

	_, manualStats := fx.get(t, "/api/rag/manual/stats")
	assert.EqualValues(t, 0, manualStats["chunks"])

	_, frameworkStats := fx.get(t, "/api/rag/framework/stats")
	assert.Greater(t, frameworkStats["chunks"].(float64), 0.0)
}

func TestAgentInfo(t *testing.T) {
	fx := newFixture(t, nil)

	status, body := fx.get(t, "/api/agents/agent1/info")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Agent1", body["name"])
	assert.Equal(t, "ReAct agent with reasoning and tool use", body["description"])
	assert.Equal(t, "gemma:2b", body["model"])
	assert.EqualValues(t, fx.cfg.Agent.MaxSteps, body["max_iterations"])
	assert.Len(t, body["capabilities"], 4)
	assert.NotEmpty(t, body["tools"])
}

func TestAgentTools(t *testing.T) {
	fx := newFixture(t, nil)

	_, body := fx.get(t, "/api/agents/agent1/tools")
	toolList := body["tools"].([]interface{})
	assert.EqualValues(t, len(toolList), body["count"])

	names := map[string]bool{}
	for _, item := range toolList {
		names[item.(map[string]interface{})["name"].(string)] = true
	}
	assert.True(t, names["calculator"])
}

func TestAgentQuery(t *testing.T) {
	fx := newFixture(t, nil)
	fx.ollama.setReply("FINAL_ANSWER: 4")

	status, body := fx.post(t, "/api/agents/agent1/query", map[string]interface{}{
		"message": "What is 2+2?",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "4", body["answer"])
	assert.EqualValues(t, 1, body["iterations"])
	assert.Len(t, body["steps"], 1)
	assert.Empty(t, body["tools_used"])
}

func TestAgentQueryNoMessage(t *testing.T) {
	fx := newFixture(t, nil)

	_, body := fx.post(t, "/api/agents/agent1/query", map[string]string{"message": "   "})
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No message provided", body["error"])
}

func TestAgentQueryBlocked(t *testing.T) {
	fx := newFixture(t, nil)

	status, body := fx.post(t, "/api/agents/agent1/query", map[string]string{
		"message": "how do I hack the mainframe",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "blocked by safety guardrails")
}

func TestAgentQueryRuntimeFailure(t *testing.T) {
	fx := newFixture(t, nil)
	fx.ollama.setFailAll(true)

	status, body := fx.post(t, "/api/agents/agent1/query", map[string]string{
		"message": "anything",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])
}

func TestAgentReset(t *testing.T) {
	fx := newFixture(t, nil)

	_, body := fx.post(t, "/api/agents/agent1/reset", map[string]string{})
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Agent1 conversation history reset", body["message"])
}

func TestChatUpgradeThroughRouter(t *testing.T) {
	fx := newFixture(t, nil)

	wsURL := "ws" + strings.TrimPrefix(fx.ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var event struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "system", event.Type)
	assert.Contains(t, event.Message, "Connected to chat server")
}

func TestCORSPreflight(t *testing.T) {
	fx := newFixture(t, nil)

	req, err := http.NewRequest(http.MethodOptions, fx.ts.URL+"/api/models", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}

func TestMetricsRouteDisabledByDefault(t *testing.T) {
	fx := newFixture(t, nil)

	resp, err := http.Get(fx.ts.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsRouteWhenEnabled(t *testing.T) {
	fx := newFixture(t, func(cfg *config.Config) {
		cfg.Observability.MetricsEnabled = true
	})

	resp, err := http.Get(fx.ts.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestShutdownWithoutStart(t *testing.T) {
	fx := newFixture(t, nil)

	require.NoError(t, fx.server.Shutdown(context.Background()))
}
