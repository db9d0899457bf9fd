package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ActionName is one client request type.
type ActionName string

const (
	ActionHeadlinesKeyword  ActionName = "headlines_keyword"
	ActionHeadlinesCategory ActionName = "headlines_category"
	ActionHeadlinesCountry  ActionName = "headlines_country"
	ActionHeadlinesAll      ActionName = "headlines_all"
	ActionHeadlinesDetail   ActionName = "headlines_detail"
	ActionSourcesCategory   ActionName = "sources_category"
	ActionSourcesCountry    ActionName = "sources_country"
	ActionSourcesLanguage   ActionName = "sources_language"
	ActionSourcesAll        ActionName = "sources_all"
	ActionSourcesDetail     ActionName = "sources_detail"
	ActionQuit              ActionName = "quit"

	PrefixHeadlines = "headlines_"
	PrefixSources   = "sources_"

	// ParamIndex selects a cached item in detail requests.
	ParamIndex = "index"
)

// Actions lists every action a client may send.
var Actions = []ActionName{
	ActionHeadlinesKeyword,
	ActionHeadlinesCategory,
	ActionHeadlinesCountry,
	ActionHeadlinesAll,
	ActionHeadlinesDetail,
	ActionSourcesCategory,
	ActionSourcesCountry,
	ActionSourcesLanguage,
	ActionSourcesAll,
	ActionSourcesDetail,
	ActionQuit,
}

func (a ActionName) IsHeadlines() bool {
	return strings.HasPrefix(string(a), PrefixHeadlines)
}

func (a ActionName) IsSources() bool {
	return strings.HasPrefix(string(a), PrefixSources)
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ResultType tags the payload of an ok response.
type ResultType string

const (
	TypeHeadlines      ResultType = "headlines"
	TypeSources        ResultType = "sources"
	TypeHeadlineDetail ResultType = "headline_detail"
	TypeSourceDetail   ResultType = "source_detail"
)

// Request is one client->server message after the username line.
type Request struct {
	Action ActionName        `json:"action"`
	Params map[string]string `json:"params"`

	err error
}

// UnmarshalJSON accepts any JSON value. String params are kept as is and a
// numeric index keeps its literal text. A message whose fields have the
// wrong shape still decodes; Err reports what was wrong with it.
func (r *Request) UnmarshalJSON(data []byte) error {
	*r = Request{}
	trimmed := bytes.TrimSpace(data)
	if isNull(trimmed) {
		return nil
	}
	if trimmed[0] != '{' {
		r.err = &RequestError{}
		return nil
	}

	var wire struct {
		Action json.RawMessage `json:"action"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return err
	}
	if !isNull(wire.Action) {
		var action string
		if err := json.Unmarshal(wire.Action, &action); err != nil {
			r.err = &RequestError{}
			return nil
		}
		r.Action = ActionName(action)
	}
	if isNull(wire.Params) {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(wire.Params, &fields); err != nil {
		r.err = &RequestError{}
		return nil
	}

	r.Params = make(map[string]string, len(fields))
	var invalid []string
	for key, raw := range fields {
		if isNull(raw) {
			continue
		}
		if text, ok := paramText(key, raw); ok {
			r.Params[key] = text
			continue
		}
		invalid = append(invalid, key)
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		r.err = &RequestError{Param: invalid[0]}
	}
	return nil
}

// Err reports a decoded request whose fields had the wrong shape.
func (r Request) Err() error {
	return r.err
}

func paramText(key string, raw json.RawMessage) (string, bool) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, true
	}
	if key != ParamIndex {
		return "", false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false
	}
	return n.String(), true
}

func isNull(raw []byte) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Param returns a request parameter and whether it was set.
func (r Request) Param(key string) (string, bool) {
	if r.Params == nil {
		return "", false
	}
	v, ok := r.Params[key]
	return v, ok
}

// Response is the server->client envelope. Items and Detail stay raw so a
// response survives a decode/encode pass byte for byte.
type Response struct {
	Status  string          `json:"status"`
	Type    ResultType      `json:"type,omitempty"`
	Message string          `json:"message,omitempty"`
	Items   json.RawMessage `json:"items,omitempty"`
	Total   *int            `json:"total,omitempty"`
	Detail  json.RawMessage `json:"detail,omitempty"`
}

func (r Response) OK() bool {
	return r.Status == StatusOK
}

// HeadlineItem is one entry of a headlines list.
type HeadlineItem struct {
	Index  int     `json:"index"`
	Source *string `json:"source"`
	Author *string `json:"author"`
	Title  *string `json:"title"`
}

// SourceItem is one entry of a sources list.
type SourceItem struct {
	Index int     `json:"index"`
	Name  *string `json:"name"`
}

// HeadlineDetail is the full record behind one headline index.
type HeadlineDetail struct {
	Source      *string `json:"source"`
	Author      *string `json:"author"`
	Title       *string `json:"title"`
	URL         *string `json:"url"`
	Description *string `json:"description"`
	PublishedAt *string `json:"published_at"`
}

// SourceDetail is the full record behind one source index.
type SourceDetail struct {
	Name        *string `json:"name"`
	Country     *string `json:"country"`
	Description *string `json:"description"`
	URL         *string `json:"url"`
	Category    *string `json:"category"`
	Language    *string `json:"language"`
}

func ErrorResponse(message string) Response {
	return Response{Status: StatusError, Message: message}
}

func Errorf(format string, args ...any) Response {
	return ErrorResponse(fmt.Sprintf(format, args...))
}

func ClosedResponse() Response {
	return Response{Status: StatusOK, Message: MsgConnectionClosed}
}

func HeadlinesResponse(items []HeadlineItem) (Response, error) {
	if items == nil {
		items = []HeadlineItem{}
	}
	return listResponse(TypeHeadlines, items, len(items))
}

func SourcesResponse(items []SourceItem) (Response, error) {
	if items == nil {
		items = []SourceItem{}
	}
	return listResponse(TypeSources, items, len(items))
}

func HeadlineDetailResponse(d HeadlineDetail) (Response, error) {
	return detailResponse(TypeHeadlineDetail, d)
}

func SourceDetailResponse(d SourceDetail) (Response, error) {
	return detailResponse(TypeSourceDetail, d)
}

func listResponse(kind ResultType, items any, total int) (Response, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return Response{}, err
	}
	return Response{Status: StatusOK, Type: kind, Items: raw, Total: &total}, nil
}

func detailResponse(kind ResultType, detail any) (Response, error) {
	raw, err := json.Marshal(detail)
	if err != nil {
		return Response{}, err
	}
	return Response{Status: StatusOK, Type: kind, Detail: raw}, nil
}

func (r Response) HeadlineItems() ([]HeadlineItem, error) {
	var out []HeadlineItem
	if err := r.decodeItems(TypeHeadlines, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r Response) SourceItems() ([]SourceItem, error) {
	var out []SourceItem
	if err := r.decodeItems(TypeSources, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r Response) HeadlineDetail() (HeadlineDetail, error) {
	var out HeadlineDetail
	if err := r.decodeDetail(TypeHeadlineDetail, &out); err != nil {
		return HeadlineDetail{}, err
	}
	return out, nil
}

func (r Response) SourceDetail() (SourceDetail, error) {
	var out SourceDetail
	if err := r.decodeDetail(TypeSourceDetail, &out); err != nil {
		return SourceDetail{}, err
	}
	return out, nil
}

func (r Response) decodeItems(kind ResultType, out any) error {
	if r.Type != kind {
		return fmt.Errorf("%w: got %q want %q", ErrUnexpectedType, r.Type, kind)
	}
	if len(r.Items) == 0 {
		return ErrNotList
	}
	return json.Unmarshal(r.Items, out)
}

func (r Response) decodeDetail(kind ResultType, out any) error {
	if r.Type != kind {
		return fmt.Errorf("%w: got %q want %q", ErrUnexpectedType, r.Type, kind)
	}
	if len(r.Detail) == 0 {
		return ErrNotDetail
	}
	return json.Unmarshal(r.Detail, out)
}
