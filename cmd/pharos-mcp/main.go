// pharos-mcp is a standalone MCP server for the Pharos curation engine.
// It connects directly to the Pharos SQLite database, serving report and
// curation tools over JSON-RPC stdio so an agent can review, adjust, and
// approve reports conversationally.
package main

import (
	"flag"
	"log"

	pharos "github.com/pharos-research/pharos"
)

func main() {
	dbPath := flag.String("db", "./pharos.db", "path to pharos database")
	ollamaURL := flag.String("ollama", "http://localhost:11434", "Ollama base URL")
	flag.Parse()

	engine, err := pharos.NewEngine(pharos.EngineConfig{
		DBPath:        *dbPath,
		OllamaBaseURL: *ollamaURL,
	})
	if err != nil {
		log.Fatalf("create pharos engine: %v", err)
	}
	defer engine.Close()

	srv := newServer(engine)
	if err := srv.run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
