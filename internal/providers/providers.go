// Package providers assembles the connector and AI-provider registries the
// binaries share. Each call returns a fresh registry.
package providers

import (
	"github.com/OFFIS-RIT/depgraph/pkg/ai"
	"github.com/OFFIS-RIT/depgraph/pkg/ai/dify"
	"github.com/OFFIS-RIT/depgraph/pkg/ai/ollama"
	"github.com/OFFIS-RIT/depgraph/pkg/ai/openai"
	"github.com/OFFIS-RIT/depgraph/pkg/store"
	"github.com/OFFIS-RIT/depgraph/pkg/store/arcadedb"
	"github.com/OFFIS-RIT/depgraph/pkg/store/memory"
	"github.com/OFFIS-RIT/depgraph/pkg/store/neo4j"
	"github.com/OFFIS-RIT/depgraph/pkg/store/pgx"
)

// Connectors returns a registry with ARCADEDB, NEO4J, POSTGRES and MEMORY.
func Connectors() *store.Registry {
	r := store.NewRegistry()
	r.Register("ARCADEDB", arcadedb.NewConnector)
	r.Register("NEO4J", neo4j.NewConnector)
	r.Register("POSTGRES", pgx.NewConnector)
	r.Register("MEMORY", memory.NewConnector)
	return r
}

// AIProviders returns a registry with OPENAI, MOONSHOT, BIGMODEL, OLLAMA and DIFY.
func AIProviders() *ai.Registry {
	r := ai.NewRegistry()
	r.Register("OPENAI", openai.NewOpenAI)
	r.Register("MOONSHOT", openai.NewMoonshot)
	r.Register("BIGMODEL", openai.NewBigModel)
	r.Register("OLLAMA", ollama.NewOllama)
	r.Register("DIFY", dify.NewDify)
	return r
}
