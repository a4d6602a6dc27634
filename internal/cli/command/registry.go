package command

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

var submissionID = Field{Name: "id", Aliases: []string{"submission_id"}, Prompt: "submission_id", Type: FieldString, Required: true}

// Registry returns all CLI commands keyed by "service action".
func Registry() map[string]Command {
	commands := []Command{
		{
			Service:      "submit",
			Action:       "create",
			Method:       "POST",
			PathTemplate: "/api/v1/submissions",
			Fields: []Field{
				{Name: "problem_id", Prompt: "problem_id", Type: FieldInt64, Required: true},
				{Name: "user_id", Prompt: "user_id", Type: FieldInt64, Required: true},
				{Name: "language", Aliases: []string{"lang"}, Prompt: "language", Type: FieldString, Required: true},
				{Name: "source_code", Prompt: "source_code", Type: FieldString, Required: true},
				{Name: "source_file", Aliases: []string{"file"}, Prompt: "source_file", Type: FieldFile, Required: false},
				{Name: "idempotency_key", Prompt: "idempotency_key", Type: FieldString, Required: false},
			},
		},
		{
			Service:      "submit",
			Action:       "get",
			Method:       "GET",
			PathTemplate: "/api/v1/submissions/:id",
			Fields:       []Field{submissionID},
		},
		{
			Service:      "submit",
			Action:       "rejudge",
			Method:       "POST",
			PathTemplate: "/api/v1/submissions/:id/rejudge",
			Fields:       []Field{submissionID},
		},
		{
			Service:      "judge",
			Action:       "status",
			Method:       "GET",
			PathTemplate: "/api/v1/judge/status/:id",
			Fields:       []Field{submissionID},
		},
		{
			Service:      "judge",
			Action:       "watch",
			Method:       "GET",
			PathTemplate: "/api/v1/judge/status/:id",
			Fields:       []Field{submissionID},
			Watch:        true,
		},
	}

	out := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		out[cmd.Key()] = cmd
	}
	return out
}

// BuildRequest creates HTTP request spec based on command.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)
	path, err := buildPath(cmd.PathTemplate, params)
	if err != nil {
		return RequestSpec{}, err
	}

	headers := map[string]string{}
	if cmd.Service == "submit" && cmd.Action == "create" {
		headers["Idempotency-Key"] = params.Get("idempotency_key")
	}

	var body []byte
	if cmd.Method != "GET" && cmd.Method != "DELETE" {
		payload, err := buildPayload(cmd, params)
		if err != nil {
			return RequestSpec{}, err
		}
		if payload != nil {
			body, err = json.Marshal(payload)
			if err != nil {
				return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
			}
		}
	}

	return RequestSpec{
		Method:  cmd.Method,
		Path:    path,
		Headers: headers,
		Body:    body,
	}, nil
}

// buildPath fills ":name" segments from params.
func buildPath(template string, params Params) (string, error) {
	segments := strings.Split(template, "/")
	for i, seg := range segments {
		name, ok := strings.CutPrefix(seg, ":")
		if !ok {
			continue
		}
		value := params.Get(name)
		if value == "" {
			return "", fmt.Errorf("missing path parameter: %s", name)
		}
		segments[i] = url.PathEscape(value)
	}
	return strings.Join(segments, "/"), nil
}

func buildPayload(cmd Command, params Params) (interface{}, error) {
	if cmd.Service == "submit" && cmd.Action == "create" {
		return buildSubmitCreatePayload(params)
	}
	return nil, nil
}

func buildSubmitCreatePayload(params Params) (interface{}, error) {
	problemID, err := params.Int64("problem_id")
	if err != nil {
		return nil, err
	}
	userID, err := params.Int64("user_id")
	if err != nil {
		return nil, err
	}

	sourceCode := params.Get("source_code")
	if (sourceCode == "" || sourceCode == "_file_") && params.Get("source_file") != "" {
		sourceCode, err = params.FileContents("source_file")
		if err != nil {
			return nil, err
		}
	}
	if sourceCode == "" {
		return nil, fmt.Errorf("source_code is required")
	}

	return map[string]interface{}{
		"problem_id":  problemID,
		"user_id":     userID,
		"language":    params.Get("language"),
		"source_code": sourceCode,
	}, nil
}
