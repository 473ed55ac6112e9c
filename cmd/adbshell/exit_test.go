package main

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestExitErrHandler_NilError(_ *testing.T) {
	// Should not panic or exit on nil error
	exitErrHandler(nil, nil)
}

func TestReportExit(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOut  string
	}{
		{
			name:     "exit code 0 no message",
			err:      cli.Exit("", 0),
			wantCode: 0,
			wantOut:  "",
		},
		{
			name:     "command failed",
			err:      cli.Exit("not_found: sh: foo: not found", 1),
			wantCode: 1,
			wantOut:  "not_found: sh: foo: not found\n",
		},
		{
			name:     "decode error",
			err:      cli.Exit("decode failed", 2),
			wantCode: 2,
			wantOut:  "decode failed\n",
		},
		{
			name:     "empty message prints nothing",
			err:      cli.Exit("", 4),
			wantCode: 4,
			wantOut:  "",
		},
		{
			name:     "wrapped exit coder",
			err:      errors.Join(errors.New("context"), cli.Exit("inner error", 42)),
			wantCode: 42,
			wantOut:  "inner error\n",
		},
		{
			name:     "wrapped with fmt",
			err:      fmt.Errorf("frame: %w", cli.Exit("invalid receiver", 3)),
			wantCode: 3,
			wantOut:  "invalid receiver\n",
		},
		{
			name:     "regular error",
			err:      errors.New("write output: broken pipe"),
			wantCode: 1,
			wantOut:  "Error: write output: broken pipe\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			code := reportExit(&buf, tt.err)
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d", code, tt.wantCode)
			}
			if buf.String() != tt.wantOut {
				t.Errorf("output = %q, want %q", buf.String(), tt.wantOut)
			}
		})
	}
}
