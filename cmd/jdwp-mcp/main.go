// Command jdwp-mcp bridges an LLM tool-calling host to a live JVM's JDWP
// debug port. It reads newline-delimited JSON-RPC requests on stdin, one
// debug.* tool call per line, and writes one JSON-RPC response per line to
// stdout; stderr carries structured logs so stdout stays a clean RPC stream.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/navicore/jdwp-mcp/internal/jdwpconfig"
	"github.com/navicore/jdwp-mcp/internal/jdwperrors"
	"github.com/navicore/jdwp-mcp/internal/jdwplog"
	"github.com/navicore/jdwp-mcp/internal/jdwpsession"
	"github.com/navicore/jdwp-mcp/internal/jdwptools"
)

const maxRequestLine = 1 << 20 // 1 MiB; a get_stack result with wide summarization can be large

func main() {
	configPath, logLevel, trace := cli()

	cfg, err := jdwpconfig.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jdwp-mcp: loading config %s: %v\n", configPath, err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if trace {
		cfg.Log.Trace = true
	}

	log := jdwplog.New(parseLevel(cfg.Log.Level), cfg.Log.Trace)

	dispatcher := jdwptools.New(jdwptools.Options{
		Log:         log,
		DialTimeout: cfg.Attach.DialTimeout,
		SummaryDefaults: jdwpsession.SummarizeOptions{
			MaxDepth:           cfg.Summarize.MaxDepth,
			MaxCollectionItems: cfg.Summarize.MaxCollectionItems,
			AutoExpandStrings:  cfg.Summarize.AutoExpandStrings,
			ExpandFields:       cfg.Summarize.ExpandFields,
		},
	})

	if err := serve(os.Stdin, os.Stdout, dispatcher, log); err != nil && err != io.EOF {
		log.Error("jdwp-mcp: serve loop exited", "err", err)
		os.Exit(1)
	}
}

func cli() (configPath, logLevel string, trace bool) {
	const usageText = `
%[1]s bridges an LLM tool-calling interface to a live JVM's JDWP debug port,
reading newline-delimited JSON-RPC debug.* tool calls on stdin and writing
one JSON-RPC response per line to stdout.

Usage of %[1]s:
`
	args := flag.NewFlagSet("", flag.ExitOnError)
	args.Usage = func() {
		fmt.Fprintf(args.Output(), usageText, os.Args[0])
		args.PrintDefaults()
	}
	args.StringVar(&configPath, "config", "", "path to a YAML config file (optional; built-in defaults apply if absent)")
	args.StringVar(&logLevel, "log-level", "", "override the configured log level: debug, info, warn, error")
	args.BoolVar(&trace, "trace", false, "enable per-packet JDWP wire tracing at debug level")
	args.Parse(os.Args[1:])
	return configPath, logLevel, trace
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// request is one line of the newline-delimited JSON-RPC stream.
type request struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params map[string]any  `json:"params"`
}

// response mirrors request.ID back unchanged so the host can correlate.
type response struct {
	ID     json.RawMessage `json:"id"`
	Result any             `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// serve runs the request/response loop until in is exhausted or a write
// fails. Each line is handled independently; a malformed line or a tool
// error is reported back as an RPC error without ending the loop.
func serve(in io.Reader, out io.Writer, dispatcher *jdwptools.Dispatcher, log *jdwplog.Logger) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRequestLine)
	w := bufio.NewWriter(out)
	defer w.Flush()

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			log.Warn("jdwp-mcp: malformed request line", "err", err)
			if err := writeResponse(w, response{Error: &rpcError{Code: -32700, Message: "parse error: " + err.Error()}}); err != nil {
				return err
			}
			continue
		}

		result, err := dispatcher.Handle(context.Background(), req.Method, req.Params)
		resp := response{ID: req.ID}
		if err != nil {
			resp.Error = toRPCError(err)
		} else {
			resp.Result = result
		}
		if err := writeResponse(w, resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func writeResponse(w *bufio.Writer, resp response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}

// toRPCError maps the typed jdwperrors taxonomy (spec §7) onto JSON-RPC
// error codes; anything unrecognized becomes a generic internal error.
func toRPCError(err error) *rpcError {
	switch {
	case isType[*jdwperrors.NotFound](err):
		return &rpcError{Code: -32001, Message: err.Error()}
	case isType[*jdwperrors.Unsupported](err):
		return &rpcError{Code: -32002, Message: err.Error()}
	case isType[*jdwperrors.ResolutionError](err):
		return &rpcError{Code: -32003, Message: err.Error()}
	case isType[*jdwperrors.AlreadyAttached](err):
		return &rpcError{Code: -32004, Message: err.Error()}
	case isType[*jdwperrors.Timeout](err):
		return &rpcError{Code: -32005, Message: err.Error()}
	case isType[*jdwperrors.Disconnected](err):
		return &rpcError{Code: -32006, Message: err.Error()}
	case isType[*jdwperrors.JdwpError](err):
		return &rpcError{Code: -32007, Message: err.Error()}
	default:
		return &rpcError{Code: -32603, Message: err.Error()}
	}
}

func isType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
