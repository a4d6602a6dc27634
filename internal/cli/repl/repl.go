package repl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/shlex"

	"ojcore/internal/cli/command"
	httpclient "ojcore/internal/cli/http"
	"ojcore/internal/cli/state"
	"ojcore/internal/judge/model"
	pkgerrors "ojcore/pkg/errors"
)

// Options tunes a Session.
type Options struct {
	StatePath     string
	PrettyJSON    bool
	WatchInterval time.Duration
	WatchTimeout  time.Duration
}

// Session holds REPL state.
type Session struct {
	client       *httpclient.Client
	commands     map[string]command.Command
	state        *state.SessionState
	opts         Options
	input        *bufio.Reader
	outputWriter *bufio.Writer
}

func New(client *httpclient.Client, commands map[string]command.Command, st *state.SessionState, opts Options, in io.Reader, out io.Writer) *Session {
	return &Session{
		client:       client,
		commands:     commands,
		state:        st,
		opts:         opts,
		input:        bufio.NewReader(in),
		outputWriter: bufio.NewWriter(out),
	}
}

// Run reads commands until EOF or exit.
func (s *Session) Run(ctx context.Context) {
	for {
		_, _ = s.outputWriter.WriteString("ojcore> ")
		_ = s.outputWriter.Flush()
		line, err := s.input.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				s.printLine("read input failed: %v", err)
			}
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			s.printLine("bye")
			return
		}
		if s.handleSystemCommand(line) {
			continue
		}
		if err := s.Exec(ctx, line); err != nil {
			s.printLine("error: %v", err)
		}
	}
}

func (s *Session) handleSystemCommand(line string) bool {
	if line == "help" {
		s.printHelp()
		return true
	}
	if strings.HasPrefix(line, "set ") {
		s.handleSet(strings.TrimSpace(strings.TrimPrefix(line, "set ")))
		return true
	}
	if line == "show config" || line == "show last" {
		s.printLine("statePath: %s", s.opts.StatePath)
		s.printLine("last submission: %s", s.state.LastSubmissionID)
		return true
	}
	return false
}

func (s *Session) handleSet(args string) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		s.printLine("usage: set base <url> | set timeout <duration>")
		return
	}
	switch parts[0] {
	case "base":
		s.client.SetBaseURL(parts[1])
		s.printLine("base set to %s", parts[1])
	case "timeout":
		dur, err := time.ParseDuration(parts[1])
		if err != nil {
			s.printLine("invalid duration: %v", err)
			return
		}
		s.client.SetTimeout(dur)
		s.printLine("timeout set to %s", dur)
	default:
		s.printLine("unknown set command")
	}
}

// Exec runs one "<service> <action> key=value ..." line.
func (s *Session) Exec(ctx context.Context, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) < 2 {
		return fmt.Errorf("invalid command, use: <service> <action> key=value ...")
	}
	cmd, ok := s.commands[tokens[0]+" "+tokens[1]]
	if !ok {
		return fmt.Errorf("unknown command: %s %s", tokens[0], tokens[1])
	}
	params, err := command.ParseParams(tokens[2:])
	if err != nil {
		return err
	}
	params.Canonicalize(cmd.Fields)

	s.applyParamShortcuts(cmd, params)
	if err := s.promptMissing(cmd, params); err != nil {
		return err
	}
	req, err := command.BuildRequest(cmd, params)
	if err != nil {
		return err
	}
	if cmd.Watch {
		return s.watch(ctx, req)
	}
	resp, err := s.client.Do(ctx, req.Method, req.Path, req.Headers, req.Body)
	if err != nil {
		return err
	}
	s.renderResponse(resp)
	s.rememberSubmission(cmd, resp.Body)
	return nil
}

func (s *Session) applyParamShortcuts(cmd command.Command, params command.Params) {
	if cmd.Service == "submit" && cmd.Action == "create" {
		if params.Get("source_file") != "" && params.Get("source_code") == "" {
			params.Set("source_code", "_file_")
		}
	}
	if (!params.Has("id") || params.Get("id") == "last") && s.state.LastSubmissionID != "" {
		for _, field := range cmd.Fields {
			if field.Name == "id" {
				params.Set("id", s.state.LastSubmissionID)
			}
		}
	}
}

func (s *Session) promptMissing(cmd command.Command, params command.Params) error {
	for _, field := range cmd.Fields {
		if !field.Required {
			continue
		}
		if params.Get(field.Name) != "" {
			continue
		}
		value, err := s.promptValue(field.Prompt)
		if err != nil {
			return err
		}
		params.Set(field.Name, value)
	}
	return nil
}

func (s *Session) promptValue(prompt string) (string, error) {
	s.printLine("%s:", prompt)
	line, err := s.input.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input failed: %w", err)
	}
	return strings.TrimSpace(line), nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// watch polls the status endpoint until the verdict is terminal.
func (s *Session) watch(ctx context.Context, req command.RequestSpec) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.WatchTimeout)
	defer cancel()
	ticker := time.NewTicker(s.opts.WatchInterval)
	defer ticker.Stop()

	last := ""
	for {
		resp, err := s.client.Do(ctx, req.Method, req.Path, req.Headers, req.Body)
		if err != nil {
			return err
		}
		var env envelope
		var st model.JudgeStatus
		if err := json.Unmarshal(resp.Body, &env); err == nil && env.Code == int(pkgerrors.Success) {
			_ = json.Unmarshal(env.Data, &st)
		}
		line := fmt.Sprintf("%s %d/%d", st.Verdict, st.Progress.DoneTests, st.Progress.TotalTests)
		if line != last {
			s.printLine("%s", line)
			last = line
		}
		if st.Verdict.Terminal() {
			s.printLine("final: %s score=%d", st.Verdict, st.Score)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("watch stopped: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *Session) renderResponse(resp httpclient.ResponseInfo) {
	s.printLine("HTTP %d (%s)", resp.StatusCode, resp.Duration)
	if len(resp.Body) == 0 {
		return
	}
	if s.opts.PrettyJSON {
		var raw interface{}
		if err := json.Unmarshal(resp.Body, &raw); err == nil {
			formatted, _ := json.MarshalIndent(raw, "", "  ")
			s.printLine("%s", string(formatted))
			return
		}
	}
	s.printLine("%s", string(resp.Body))
}

func (s *Session) rememberSubmission(cmd command.Command, body []byte) {
	if cmd.Service != "submit" || cmd.Action != "create" {
		return
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Code != int(pkgerrors.Success) {
		return
	}
	var data struct {
		SubmissionID string `json:"submission_id"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.SubmissionID == "" {
		return
	}
	s.state.LastSubmissionID = data.SubmissionID
	if s.opts.StatePath != "" {
		_ = state.Save(s.opts.StatePath, *s.state)
	}
}

func (s *Session) printHelp() {
	s.printLine("usage: <service> <action> key=value ...")
	s.printLine("system: help | exit | set base|timeout | show last")
	s.printLine("examples:")
	s.printLine("  submit create problem_id=1 user_id=2 lang=python file=./solution.py")
	s.printLine("  judge watch id=last")
	s.printLine("  submit get id=<submission_id>")
	s.printLine("  submit rejudge id=<submission_id>")
}

func (s *Session) printLine(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.outputWriter, format+"\n", args...)
	_ = s.outputWriter.Flush()
}
