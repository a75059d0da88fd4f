package webmet

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/yosuke-furukawa/json5/encoding/json5"
	"golang.org/x/net/html/charset"
)

// The archive answers with an XML wrapper whose text node is a JavaScript
// call intended for the AcademaPUJS browser runtime:
//
//	<data>AcademaPUJS.set({points:{_1639:{name:'LENDAVA', ...}}})</data>
//
// The object literal uses unquoted keys and single-quoted strings, and
// sometimes omits a value entirely (":,"), so it is patched into JSON5
// before decoding.
const pujsPrefix = "AcademaPUJS.set("

// document is the language-neutral intermediate form of an archive
// response: field names mapped to raw values, nothing interpreted yet.
type document struct {
	Params map[string]map[string]any `json:"params"`
	Points map[string]map[string]any `json:"points"`
}

func parseDocument(body []byte) (*document, error) {
	var wrapper struct {
		Text string `xml:",chardata"`
	}
	dec := xml.NewDecoder(strings.NewReader(string(body)))
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&wrapper); err != nil {
		return nil, fmt.Errorf("decode xml wrapper: %w", err)
	}

	js := strings.TrimSpace(wrapper.Text)
	if !strings.HasPrefix(js, pujsPrefix) || !strings.HasSuffix(js, ")") {
		return nil, errors.New("payload is not an AcademaPUJS.set call")
	}
	js = js[len(pujsPrefix) : len(js)-1]
	js = strings.ReplaceAll(js, ":,", ":'',")

	var doc document
	if err := json5.Unmarshal([]byte(js), &doc); err != nil {
		return nil, fmt.Errorf("decode pujs object: %w", err)
	}
	return &doc, nil
}

// asFloat coerces a payload value: the archive mixes bare numbers and
// quoted numerics, and serves empty strings for missing fields.
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// asString returns the field as a string, or "" when it is absent or not
// textual. Stringifying other types would leak artifacts like "<nil>" into
// station names.
func asString(v any) string {
	s, _ := v.(string)
	return s
}
