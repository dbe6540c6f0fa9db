package server

import (
	"fmt"
	"strings"

	"dxdrive/internal/backend"
	"dxdrive/internal/diag"
	"dxdrive/internal/diagfmt"
	"dxdrive/internal/driver"
	"dxdrive/internal/project"
	"dxdrive/internal/request"
)

// CompileRequest is the JSON body of POST /api/compile and of each websocket
// message.
type CompileRequest struct {
	// Name labels diagnostics; "input.hlsl" when empty.
	Name     string   `json:"name,omitempty"`
	Source   string   `json:"source"`
	Encoding string   `json:"encoding,omitempty"`
	Entry    string   `json:"entry"`
	Profile  string   `json:"profile"`
	Defines  []string `json:"defines,omitempty"`
	Flags    []string `json:"flags,omitempty"`
	Extras   []string `json:"extras,omitempty"`
}

// CompileResponse reports one compilation. Byte fields are base64 in JSON.
type CompileResponse struct {
	RequestID     string                    `json:"request_id"`
	CallID        string                    `json:"call_id,omitempty"`
	Status        string                    `json:"status"`
	BackendCode   string                    `json:"backend_code,omitempty"`
	Error         string                    `json:"error,omitempty"`
	Object        []byte                    `json:"object,omitempty"`
	RootSignature []byte                    `json:"root_signature,omitempty"`
	Extras        map[string][]byte         `json:"extras,omitempty"`
	Diagnostics   diagfmt.DiagnosticsOutput `json:"diagnostics"`
	Timings       map[string]float64        `json:"timings_ms,omitempty"`
}

type errorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
}

// toRequest converts the wire form. Errors here are the caller's fault.
func (c *CompileRequest) toRequest() (*request.CompilationRequest, error) {
	enc, err := backend.ParseEncoding(strings.TrimSpace(c.Encoding))
	if err != nil {
		return nil, err
	}
	req := &request.CompilationRequest{
		Source:     []byte(c.Source),
		Encoding:   enc,
		EntryPoint: strings.TrimSpace(c.Entry),
		Profile:    strings.TrimSpace(c.Profile),
	}
	for _, name := range c.Flags {
		f, err := request.ParseFlag(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		req.Flags = req.Flags.With(f)
	}
	for _, d := range c.Defines {
		req.Defines = append(req.Defines, project.ParseDefine(d))
	}
	for _, name := range c.Extras {
		kind, err := backend.ParseKind(name)
		if err != nil {
			return nil, err
		}
		if kind == backend.KindObject || kind == backend.KindRootSignature || kind == backend.KindErrors {
			return nil, fmt.Errorf("%s is always returned", kind)
		}
		req.Extras = append(req.Extras, kind)
	}
	return req, nil
}

func (s *Server) respond(requestID string, c *CompileRequest, out *driver.Outcome) CompileResponse {
	resp := CompileResponse{
		RequestID: requestID,
		CallID:    out.CallID,
		Status:    out.Status.String(),
		Timings:   make(map[string]float64, len(out.Timings.Phases)),
	}
	if out.Status == driver.StatusInvocationFailed {
		resp.BackendCode = fmt.Sprintf("0x%08x", uint32(out.BackendCode))
	}
	if err := out.Err(); err != nil {
		resp.Error = err.Error()
	}
	resp.Object = clone(out.Object.Bytes())
	resp.RootSignature = clone(out.RootSignature.Bytes())
	if len(out.Extras) > 0 {
		resp.Extras = make(map[string][]byte, len(out.Extras))
		for kind, buf := range out.Extras {
			resp.Extras[kind.String()] = clone(buf.Bytes())
		}
	}

	name := strings.TrimSpace(c.Name)
	bag := diag.Parse(out.Diagnostics.String(), s.maxDiagnostics)
	if name != "" {
		bag.MapFiles(func(file string) string {
			if file == "" || file == "input.hlsl" {
				return name
			}
			return file
		})
	}
	resp.Diagnostics = diagfmt.BuildDiagnosticsOutput(bag, diagfmt.JSONOpts{IncludeNotes: true, IncludeContext: true})
	for _, p := range out.Timings.Phases {
		resp.Timings[p.Name] = p.DurationMS
	}
	return resp
}

func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}
