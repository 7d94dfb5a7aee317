// Command valuemap runs the value mapper on one query and prints every rewrite.
// Disambiguation prompts are answered on the terminal unless -answers is given.
//
//	valuemap -fixture values.yaml -query "MATCH (c:Company {name: 'bamboo hr'}) RETURN c"
//	valuemap -backend postgres -dialect sql -query "SELECT * FROM company c WHERE c.name = 'acme'"
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"ai-queryrefine-be/internal/config"
	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/internal/repository/memory"
	"ai-queryrefine-be/pkg/database"
	"ai-queryrefine-be/pkg/disambiguation"
	"ai-queryrefine-be/pkg/graphdb"
	"ai-queryrefine-be/pkg/querymap"
	"ai-queryrefine-be/pkg/resolutioncache"
	"ai-queryrefine-be/pkg/resolver"
	"ai-queryrefine-be/pkg/valuestore"

	"github.com/fatih/color"
)

func main() {
	query := flag.String("query", "", "query to map; read from stdin when empty")
	fixture := flag.String("fixture", "", "YAML file of stored values; uses an in-memory store instead of the backend")
	backend := flag.String("backend", "", "neo4j or postgres (default REFINEMENT_BACKEND)")
	dialect := flag.String("dialect", "", "cypher or sql (default from backend)")
	answers := flag.String("answers", "", "comma separated scripted answers; an empty item answers none")
	session := flag.String("session", "cli", "session id scoping cached resolutions")
	verbose := flag.Bool("v", false, "log every resolution step")
	flag.Parse()

	cfg := config.Load()
	if *backend == "" {
		*backend = cfg.Refinement.Backend
	}
	if *dialect == "" {
		*dialect = string(querymap.DialectCypher)
		if *backend == "postgres" {
			*dialect = string(querymap.DialectSQL)
		}
	}

	ctx := context.Background()

	// the terminal port owns stdin, so the query comes from the flag when prompting there
	var port resolver.Disambiguator
	if *answers != "" {
		port = disambiguation.ScriptFromValues(strings.Split(*answers, ","))
	}
	if *query == "" {
		if port == nil {
			log.Fatal("Error: -query is required unless -answers is set")
		}
		raw, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			log.Fatalf("Error: read stdin: %v", err)
		}
		*query = strings.TrimSpace(string(raw))
	}
	if port == nil {
		port = disambiguation.NewTerminalPort(os.Stdin, os.Stdout)
	}

	var sysLogger logger.ILogger = logger.NewNopLogger()
	if *verbose {
		sysLogger = logger.NewZapLogger(cfg.App.LogFilePath, false)
	}

	registry, err := valuestore.LoadIndexRegistry(cfg.Refinement.IndexFile)
	if err != nil {
		fatal(err)
	}

	store, closeStore := openStore(ctx, cfg, *fixture, *backend)
	defer closeStore()

	cache := resolutioncache.NewLayered(memory.NewResolutionRepository(time.Hour), nil)
	res := resolver.NewResolver(store, cache, registry, port, resolver.NewLogSink(sysLogger), sysLogger, resolver.Options{
		CandidateLimit:        cfg.Refinement.CandidateLimit,
		SimilarityFloor:       cfg.Refinement.SimilarityFloor,
		DisambiguationTimeout: cfg.Refinement.DisambiguationTimeout,
	})
	mapper := querymap.NewMapper(res, registry, querymap.Dialect(*dialect), sysLogger)

	result, err := mapper.MapDetailed(ctx, *query, *session, "cli")
	if err != nil {
		fatal(err)
	}
	printResult(result)
}

func openStore(ctx context.Context, cfg *config.Config, fixture, backend string) (resolver.ValueStore, func()) {
	if fixture != "" {
		store, err := valuestore.LoadMemoryStore(fixture)
		if err != nil {
			fatal(err)
		}
		return store, func() {}
	}

	switch backend {
	case "postgres":
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection, false)
		if err != nil {
			fatal(err)
		}
		store := valuestore.NewPostgresStore(db)
		store.TextSearchConfig = cfg.Refinement.TextSearchConfig
		return store, func() { database.Close(db) }
	case "neo4j":
		client, err := graphdb.Connect(ctx, graphdb.Neo4jConfig{
			URI:      cfg.Graph.URI,
			Username: cfg.Graph.Username,
			Password: cfg.Graph.Password,
			Database: cfg.Graph.Database,
		})
		if err != nil {
			fatal(err)
		}
		return valuestore.NewNeo4jStore(client), func() { client.Close(ctx) }
	}
	fatal(fmt.Errorf("unsupported backend %q", backend))
	return nil, nil
}

func printResult(result *querymap.Result) {
	header := color.New(color.FgCyan, color.Bold)
	changed := color.New(color.FgGreen)
	same := color.New(color.Faint)

	header.Println("Mappings")
	if len(result.Mappings) == 0 {
		same.Println("  (no literals bound to a known label)")
	}
	for _, m := range result.Mappings {
		line := fmt.Sprintf("  %s.%s  %q -> %q  [%s, %s]", m.Label, m.Property, m.RawValue, m.ResolvedValue, m.Method, m.MatchContext)
		if m.ResolvedValue != m.RawValue {
			changed.Println(line)
		} else {
			same.Println(line)
		}
	}

	header.Printf("\nQuery (%d rewritten)\n", result.Rewritten())
	fmt.Println(result.Query)
}

func fatal(err error) {
	color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
