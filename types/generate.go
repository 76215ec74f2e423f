package types

import "encoding/json"

// GenerateRequest is a single-shot generation request sent to the model server.
type GenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`

	Extensible
}

// Kind implements Record.
func (r *GenerateRequest) Kind() RecordKind { return KindGenerateRequest }

// Clone returns a deep copy.
func (r *GenerateRequest) Clone() *GenerateRequest {
	out := *r
	out.Options = cloneMap(r.Options)
	out.Extensions = r.Extensions.Clone()
	return &out
}

// SetOption sets a model option, allocating Options when needed.
func (r *GenerateRequest) SetOption(name string, value any) {
	if r.Options == nil {
		r.Options = make(map[string]any)
	}
	r.Options[name] = value
}

// MarshalJSON inlines extension fields next to the base fields.
func (r GenerateRequest) MarshalJSON() ([]byte, error) {
	type alias GenerateRequest
	return marshalRecord(KindGenerateRequest, alias(r), r.Extensions)
}

// UnmarshalJSON keeps unknown fields as extensions.
func (r *GenerateRequest) UnmarshalJSON(data []byte) error {
	type alias GenerateRequest
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	ext, err := unmarshalExtensions(KindGenerateRequest, data)
	if err != nil {
		return err
	}
	*r = GenerateRequest(a)
	r.Extensions = ext
	return nil
}

// GenerateResponse is the model server's answer to a GenerateRequest.
type GenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	TotalDuration   int64  `json:"total_duration,omitempty"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`

	Extensible
}

// Kind implements Record.
func (r *GenerateResponse) Kind() RecordKind { return KindGenerateResponse }

// Clone returns a deep copy.
func (r *GenerateResponse) Clone() *GenerateResponse {
	out := *r
	out.Extensions = r.Extensions.Clone()
	return &out
}

// MarshalJSON inlines extension fields next to the base fields.
func (r GenerateResponse) MarshalJSON() ([]byte, error) {
	type alias GenerateResponse
	return marshalRecord(KindGenerateResponse, alias(r), r.Extensions)
}

// UnmarshalJSON keeps unknown fields as extensions.
func (r *GenerateResponse) UnmarshalJSON(data []byte) error {
	type alias GenerateResponse
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	ext, err := unmarshalExtensions(KindGenerateResponse, data)
	if err != nil {
		return err
	}
	*r = GenerateResponse(a)
	r.Extensions = ext
	return nil
}
