// Package docent provides a per-user document-aware chat gateway.
//
// Docent pairs a WebSocket chat endpoint with a retrieval-augmented
// generation (RAG) engine and a bounded ReAct agent, all served from a
// single process backed by a local Ollama runtime.
//
// # Quick Start
//
// Install docent:
//
//	go install github.com/docent-ai/docent/cmd/docent@latest
//
// Create a configuration:
//
//	llm:
//	  base_url: http://localhost:11434
//	  generation_model: gemma:2b
//	  embedding_model: nomic-embed-text
//	rag:
//	  backend_default: manual
//	  vectorstore: persistent
//
// Start the server:
//
//	docent serve --config config.yaml
//
// # Using as Go Library
//
// Import specific packages:
//
//	import (
//	    "github.com/docent-ai/docent/pkg/rag"
//	    "github.com/docent-ai/docent/pkg/orchestrator"
//	    "github.com/docent-ai/docent/pkg/session"
//	)
//
// # Key Features
//
//   - WebSocket chat with per-session conversation history
//   - Two interchangeable RAG backends: a transparent manual pipeline
//     and a framework pipeline over chromem/qdrant
//   - Unified ingestion that keeps both indexes in step
//   - Bounded ReAct agent with a fixed local tool set
//   - YAML + environment configuration with an admin HTTP API
//
// # Architecture
//
// Every chat turn flows through the same path:
//
//	WebSocket hub → orchestrator → RAG backend → Ollama
//	             → agent → tools (agent mode)
//
// All generation and embedding traffic goes to a local Ollama runtime;
// documents and conversations never leave the machine.
package docent
