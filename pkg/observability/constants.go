package observability

const (
	AttrServiceName     = "service.name"
	AttrSessionID       = "session.id"
	AttrToolName        = "tool.name"
	AttrRAGBackend      = "rag.backend"
	AttrLLMModel        = "llm.model"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrErrorType       = "error.type"

	SpanLLMGenerate   = "llm.generate"
	SpanEmbed         = "llm.embed"
	SpanToolExecution = "tool.execute"
	SpanAgentRun      = "agent.run"
	SpanRetrieval     = "rag.retrieve"
	SpanIngest        = "rag.ingest"
	SpanChatTurn      = "chat.turn"

	DefaultServiceName = "docent"
)
