package realtime

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonrepair"
)

// repairUnmarshal unmarshals JSON data into v, attempting to repair
// malformed JSON. If the initial unmarshal fails with a syntax error, the
// data is run through jsonrepair and retried. Model-produced argument
// strings are occasionally truncated or lightly malformed; this mirrors
// how callers actually consume them.
func repairUnmarshal(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, rerr := jsonrepair.JSONRepair(string(data))
		if rerr != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}

// contentKey addresses one streamed content part.
type contentKey struct {
	itemID string
	index  int
}

// contentAccum is the running value for one (item, content index) pair.
// Deltas append in arrival order; a done event's full value is
// authoritative and supersedes the concatenation.
type contentAccum struct {
	text       strings.Builder
	audio      bytes.Buffer
	transcript strings.Builder

	finalText       string
	finalTranscript string
	textDone        bool
	audioDone       bool
	transcriptDone  bool
}

// Text returns the assembled text: the done value if one arrived, else
// the concatenation of deltas so far.
func (c *contentAccum) Text() string {
	if c.textDone {
		return c.finalText
	}
	return c.text.String()
}

// Audio returns the concatenated audio bytes.
func (c *contentAccum) Audio() []byte {
	return c.audio.Bytes()
}

// Transcript returns the assembled audio transcript.
func (c *contentAccum) Transcript() string {
	if c.transcriptDone {
		return c.finalTranscript
	}
	return c.transcript.String()
}

// FunctionCallAccum is the running state of one streamed function call,
// keyed by output index. Arguments accumulate as a string; parsing is
// deferred until the value is requested, since a partial delta is not
// valid JSON.
type FunctionCallAccum struct {
	OutputIndex int

	mu     sync.Mutex
	itemID string
	callID string
	name   string
	args   strings.Builder
	full   string
	done   bool
}

// ItemID returns the conversation item ID carrying the call.
func (f *FunctionCallAccum) ItemID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.itemID
}

// CallID returns the server-assigned call ID.
func (f *FunctionCallAccum) CallID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callID
}

// Name returns the called function's name.
func (f *FunctionCallAccum) Name() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.name
}

// Arguments returns the raw accumulated argument string. After the done
// event this is the server's authoritative full value.
func (f *FunctionCallAccum) Arguments() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return f.full
	}
	return f.args.String()
}

// Done reports whether the arguments stream has finished.
func (f *FunctionCallAccum) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// UnmarshalArguments parses the accumulated arguments into v. Parse
// failures surface here, when the value is consumed, never during
// accumulation.
func (f *FunctionCallAccum) UnmarshalArguments(v any) error {
	return repairUnmarshal([]byte(f.Arguments()), v)
}

// ResponseAccumulator turns streamed partial events into final values per
// (item id, content index) and per output index. One lock guards all
// tables; Feed and the read accessors may race freely with dispatch.
type ResponseAccumulator struct {
	mu       sync.Mutex
	contents map[contentKey]*contentAccum
	calls    map[int]*FunctionCallAccum
	items    map[string][]int // itemID -> content indices seen
	response *ResponseResource
	done     bool
}

// NewResponseAccumulator creates an empty accumulator.
func NewResponseAccumulator() *ResponseAccumulator {
	return &ResponseAccumulator{
		contents: make(map[contentKey]*contentAccum),
		calls:    make(map[int]*FunctionCallAccum),
		items:    make(map[string][]int),
	}
}

func (a *ResponseAccumulator) content(itemID string, index int) *contentAccum {
	key := contentKey{itemID: itemID, index: index}
	c, ok := a.contents[key]
	if !ok {
		c = &contentAccum{}
		a.contents[key] = c
		a.items[itemID] = append(a.items[itemID], index)
	}
	return c
}

// Feed applies one server event to the running state. Events that carry
// no streamed payload are ignored, so the whole event stream can be piped
// through unfiltered.
func (a *ResponseAccumulator) Feed(ev *ServerEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch ev.family {
	case familyTextDelta:
		c := a.content(ev.ItemID, ev.ContentIndex)
		if ev.IsDelta() {
			c.text.WriteString(ev.Delta)
		} else {
			c.textDone = true
			c.finalText = ev.Text
		}

	case familyAudioDelta:
		c := a.content(ev.ItemID, ev.ContentIndex)
		if ev.IsDelta() {
			c.audio.Write(ev.Audio)
		} else {
			c.audioDone = true
		}

	case familyAudioTranscript:
		c := a.content(ev.ItemID, ev.ContentIndex)
		if ev.IsDelta() {
			c.transcript.WriteString(ev.Delta)
		} else {
			c.transcriptDone = true
			c.finalTranscript = ev.Transcript
		}

	case familyOutputItem:
		if ev.Item != nil && ev.Item.Type == ItemTypeFunctionCall {
			f := a.call(ev.OutputIndex)
			f.mu.Lock()
			f.itemID = ev.Item.ID
			f.callID = ev.Item.CallID
			f.name = ev.Item.Name
			f.mu.Unlock()
		}

	case familyFunctionCallArgs:
		f := a.call(ev.OutputIndex)
		f.mu.Lock()
		if f.itemID == "" {
			f.itemID = ev.ItemID
		}
		if f.callID == "" {
			f.callID = ev.CallID
		}
		if ev.IsDelta() {
			f.args.WriteString(ev.Delta)
		} else {
			f.done = true
			f.full = ev.Arguments
		}
		f.mu.Unlock()

	case familyResponse:
		if ev.Type == EventTypeResponseDone && ev.Response != nil && isTerminalStatus(ev.Response.Status) {
			a.response = ev.Response
			a.done = true
		}
	}
}

func (a *ResponseAccumulator) call(outputIndex int) *FunctionCallAccum {
	f, ok := a.calls[outputIndex]
	if !ok {
		f = &FunctionCallAccum{OutputIndex: outputIndex}
		a.calls[outputIndex] = f
	}
	return f
}

// Text returns the assembled text for one (item, content index).
func (a *ResponseAccumulator) Text(itemID string, contentIndex int) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.contents[contentKey{itemID, contentIndex}]; ok {
		return c.Text()
	}
	return ""
}

// Audio returns the concatenated audio for one (item, content index).
func (a *ResponseAccumulator) Audio(itemID string, contentIndex int) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.contents[contentKey{itemID, contentIndex}]; ok {
		return c.Audio()
	}
	return nil
}

// Transcript returns the assembled audio transcript for one
// (item, content index).
func (a *ResponseAccumulator) Transcript(itemID string, contentIndex int) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.contents[contentKey{itemID, contentIndex}]; ok {
		return c.Transcript()
	}
	return ""
}

// ItemText flattens the content of one item into ordered text. Indices
// may have arrived out of order or sparsely; a gap in the middle of the
// sequence is a caller-visible inconsistency, never silently skipped.
func (a *ResponseAccumulator) ItemText(itemID string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	indices := append([]int(nil), a.items[itemID]...)
	if len(indices) == 0 {
		return "", nil
	}
	sort.Ints(indices)

	var missing []int
	for want := indices[0]; want <= indices[len(indices)-1]; want++ {
		if _, ok := a.contents[contentKey{itemID, want}]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return "", &IncompleteStreamError{ItemID: itemID, Missing: missing}
	}

	var sb strings.Builder
	for _, i := range indices {
		c := a.contents[contentKey{itemID, i}]
		if t := c.Text(); t != "" {
			sb.WriteString(t)
		} else {
			sb.WriteString(c.Transcript())
		}
	}
	return sb.String(), nil
}

// FunctionCall returns the accumulated call at outputIndex.
func (a *ResponseAccumulator) FunctionCall(outputIndex int) (*FunctionCallAccum, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, ok := a.calls[outputIndex]
	return f, ok
}

// FunctionCalls returns all accumulated calls ordered by output index,
// or an IncompleteStreamError if indices are missing from the middle of
// the sequence after the response reached a terminal state.
func (a *ResponseAccumulator) FunctionCalls() ([]*FunctionCallAccum, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.calls) == 0 {
		return nil, nil
	}
	indices := make([]int, 0, len(a.calls))
	for i := range a.calls {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	if a.done {
		var missing []int
		for want := indices[0]; want <= indices[len(indices)-1]; want++ {
			if _, ok := a.calls[want]; !ok {
				missing = append(missing, want)
			}
		}
		if len(missing) > 0 {
			return nil, &IncompleteStreamError{Missing: missing}
		}
	}

	out := make([]*FunctionCallAccum, 0, len(indices))
	for _, i := range indices {
		out = append(out, a.calls[i])
	}
	return out, nil
}

// Response returns the terminal response resource, or nil while the
// response is still streaming.
func (a *ResponseAccumulator) Response() *ResponseResource {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.response
}

// Done reports whether the tracked response reached a terminal state.
func (a *ResponseAccumulator) Done() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}
