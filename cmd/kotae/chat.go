package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retriever"
)

const exitCommand = "exit"

// answerer is the part of the pipeline the chat loop drives.
type answerer interface {
	Answer(ctx context.Context, query string) (*models.AskResponse, error)
}

// pipeline answers a query by retrieving context and generating from it.
type pipeline struct {
	app      *app
	template string
	topK     int
}

func (p *pipeline) Answer(ctx context.Context, query string) (*models.AskResponse, error) {
	results, err := p.app.retriever.Search(ctx, query, p.topK)
	if err != nil {
		return nil, explain(err)
	}
	answer, err := p.app.generator.Generate(ctx, query, documentsOf(results), p.template)
	if err != nil {
		return nil, err
	}
	name := p.template
	if name == "" {
		name = p.app.generator.DefaultTemplate()
	}
	return &models.AskResponse{Answer: answer, Template: name, Sources: results}, nil
}

func runChat(args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	dataDir := fs.String("data", "", "directory of .txt files (default: data_dir from config)")
	template := fs.String("template", "", "prompt template name (empty = configured default)")
	topK := fs.Int("top-k", 0, "number of context documents (0 = configured default)")
	reingest := fs.Bool("reingest", false, "ingest the data directory even if the index already has documents")
	_ = fs.Parse(args)

	ctx, cancel := signalContext()
	defer cancel()
	a := mustApp(ctx, *configPath, *debug)
	defer a.Close()

	dir := a.cfg.DataDir
	if *dataDir != "" {
		dir = *dataDir
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "Data directory %s not found\n", dir)
		a.Close()
		os.Exit(1)
	}
	if *reingest || a.retriever.State() == retriever.StateEmpty {
		fmt.Println("Loading documents...")
		n, err := a.retriever.LoadDocuments(ctx, dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load documents: %v\n", err)
			a.Close()
			os.Exit(1)
		}
		a.logger.Info("documents loaded", zap.Int("count", n), zap.String("dir", dir))
		fmt.Printf("Loaded %d documents from %s\n", n, dir)
	}

	p := &pipeline{app: a, template: *template, topK: *topK}
	if err := chatLoop(ctx, os.Stdin, os.Stdout, p); err != nil {
		fmt.Fprintf(os.Stderr, "Chat failed: %v\n", err)
	}
}

// chatLoop reads one query per line from in until "exit", EOF or ctx is done.
// A failed query is reported on out and the loop continues.
func chatLoop(ctx context.Context, in io.Reader, out io.Writer, a answerer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	fmt.Fprintf(out, "Ask a question (type %q to quit).\n", exitCommand)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if strings.EqualFold(query, exitCommand) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return nil
		}
		resp, err := a.Answer(ctx, query)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		if err := cli.WriteAnswer(out, resp, cli.OutputText); err != nil {
			return err
		}
	}
}
