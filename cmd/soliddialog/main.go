package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/spf13/cobra"
	"github.com/tbxark/soliddialog"
	"github.com/tbxark/soliddialog/agent"
	"github.com/tbxark/soliddialog/config"
	"github.com/tbxark/soliddialog/dialogue"
	"github.com/tbxark/soliddialog/types"
)

type options struct {
	configPath     string
	entity         string
	entityType     string
	background     string
	backgroundFile string
	intents        string
	question       string
	catalogPath    string
	format         string
	viaAgent       bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "soliddialog",
		Short:        "Generate an intent-labeled dialogue about an entity",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "path to YAML config file")
	f.StringVar(&opts.entity, "entity", "", "entity name")
	f.StringVar(&opts.entityType, "type", "", "entity type")
	f.StringVar(&opts.background, "background", "", "background document text")
	f.StringVar(&opts.backgroundFile, "background-file", "", "read the background document from a file")
	f.StringVar(&opts.intents, "intents", "OQ,RQ,FD_NF,PA", "comma-separated intent sequence")
	f.StringVarP(&opts.question, "question", "q", "", "opening question")
	f.StringVar(&opts.catalogPath, "catalog", "", "intent catalog file (yaml or json), overrides config")
	f.StringVarP(&opts.format, "format", "f", "table", "output format: table or json")
	f.BoolVar(&opts.viaAgent, "agent", false, "run through the ADK agent and print turns as they arrive")
	_ = cmd.MarkFlagRequired("entity")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}

func run(ctx context.Context, out io.Writer, opts *options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	slog.SetLogLoggerLevel(cfg.SlogLevel())
	if opts.catalogPath != "" {
		cfg.Catalog.Path = opts.catalogPath
	}

	req, err := buildRequest(opts)
	if err != nil {
		return err
	}
	gen, err := soliddialog.New(ctx, cfg)
	if err != nil {
		return err
	}

	var res *types.Result
	if opts.viaAgent {
		res, err = runAgent(ctx, out, gen, req)
	} else {
		res, err = gen.GenerateDialogue(ctx, req)
	}
	if err != nil {
		return err
	}
	return render(out, res, opts.format)
}

func buildRequest(opts *options) (*dialogue.Request, error) {
	background := opts.background
	if opts.backgroundFile != "" {
		data, err := os.ReadFile(opts.backgroundFile)
		if err != nil {
			return nil, fmt.Errorf("read background file: %w", err)
		}
		background = string(data)
	}
	var intents []string
	for _, code := range strings.Split(opts.intents, ",") {
		if code = strings.TrimSpace(code); code != "" {
			intents = append(intents, code)
		}
	}
	return &dialogue.Request{
		Entity: types.Entity{
			Name:       opts.entity,
			Type:       opts.entityType,
			Background: background,
		},
		Intents:         intents,
		OpeningQuestion: opts.question,
	}, nil
}

func runAgent(ctx context.Context, out io.Writer, gen *dialogue.Generator, req *dialogue.Request) (*types.Result, error) {
	job, err := sonic.MarshalString(req)
	if err != nil {
		return nil, err
	}
	runner := adk.NewRunner(ctx, adk.RunnerConfig{
		Agent: agent.NewAgent("SolidDialog", "Generates intent-labeled dialogues", gen),
	})
	iter := runner.Run(ctx, []adk.Message{schema.UserMessage(job)})
	var last *schema.Message
	for {
		event, ok := iter.Next()
		if !ok {
			break
		}
		if event.Err != nil {
			return nil, event.Err
		}
		msg, err := event.Output.MessageOutput.GetMessage()
		if err != nil {
			return nil, err
		}
		if msg.Name != "" {
			fmt.Fprintf(out, "[%v] %s: %s\n", msg.Extra["intent"], msg.Name, msg.Content)
		}
		last = msg
	}
	if last == nil {
		return nil, fmt.Errorf("agent produced no result")
	}
	var res types.Result
	if err := sonic.UnmarshalString(last.Content, &res); err != nil {
		return nil, fmt.Errorf("decode agent result: %w", err)
	}
	return &res, nil
}

func render(out io.Writer, res *types.Result, format string) error {
	switch format {
	case "json":
		body, err := sonic.ConfigStd.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(body))
		return err
	case "table", "":
		_, err := fmt.Fprint(out, types.FormatDialogueTable(&res.Dialogue))
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
