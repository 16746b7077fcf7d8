// Package format implements the "line -> JSON object" codecs driven by a
// Map's configured format (spec.md §4.4). Each format is a tagged variant
// dispatched by name -- never by open polymorphism (spec.md §9 "Dynamic
// dispatch on map type").
package format

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/miquels/webnis/pkg/entry"
	"github.com/miquels/webnis/pkg/wnerrors"
)

// Format names a line->JSON codec.
type Format string

const (
	Passwd              Format = "passwd"
	Group               Format = "group"
	Adjunct             Format = "adjunct"
	KeyValue            Format = "key-value"
	ColonSeparated      Format = "colon-separated"
	WhitespaceSeparated Format = "whitespace-separated"
	TabSeparated        Format = "tab-separated"
	Line                Format = "line"
	JSON                Format = "json"
)

// Valid reports whether f is one of the recognized format names.
func (f Format) Valid() bool {
	switch f {
	case Passwd, Group, Adjunct, KeyValue, ColonSeparated, WhitespaceSeparated, TabSeparated, Line, JSON:
		return true
	}
	return false
}

func separatorFor(f Format) byte {
	switch f {
	case ColonSeparated:
		return ':'
	case TabSeparated:
		return '\t'
	default:
		return 0 // whitespace
	}
}

// Decode parses line according to format, using output as the optional
// field-name -> template map for key-value and separator formats
// (spec.md §4.4).
func Decode(format Format, line string, output map[string]string) (any, error) {
	switch format {
	case Passwd:
		return entry.PasswdFromLine(line)
	case Group:
		return entry.GroupFromLine(line)
	case Adjunct:
		return decodeAdjunct(line)
	case KeyValue:
		return decodeKeyValue(line, output)
	case ColonSeparated, WhitespaceSeparated, TabSeparated:
		return decodeSeparated(separatorFor(format), line, output)
	case Line:
		return line, nil
	case JSON:
		return decodeJSON(line)
	default:
		return nil, wnerrors.New(wnerrors.Unavailable, fmt.Sprintf("unknown map format %q", format))
	}
}

func decodeAdjunct(line string) (map[string]any, error) {
	fields := strings.Split(line, ":")
	if len(fields) < 2 {
		return nil, wnerrors.New(wnerrors.Unavailable, "adjunct line must have at least 2 fields")
	}
	return map[string]any{
		"name":   fields[0],
		"passwd": fields[1],
	}, nil
}

func decodeJSON(line string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(line), &v); err != nil {
		return nil, wnerrors.Wrap(wnerrors.Unavailable, "value is not valid JSON", err)
	}
	return v, nil
}

// decodeKeyValue splits on whitespace; each token is split once on '=';
// integer tokens become JSON numbers, everything else stays a string.
func decodeKeyValue(line string, output map[string]string) (any, error) {
	fields := strings.Fields(line)
	values := make(map[string]any, len(fields))
	ordered := make([]string, 0, len(fields))
	for _, tok := range fields {
		k, v, _ := strings.Cut(tok, "=")
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			values[k] = n
		} else {
			values[k] = v
		}
		ordered = append(ordered, k)
	}
	if len(output) == 0 {
		return values, nil
	}
	return applyOutputTemplates(output, ordered, values)
}

// decodeSeparated splits on sep (0 means "whitespace"). With no output
// template, produces {"1": f1, "2": f2, ...}; with output, produces
// {outkey: template(fields)} (spec.md §4.4).
func decodeSeparated(sep byte, line string, output map[string]string) (any, error) {
	var fields []string
	if sep == 0 {
		fields = strings.Fields(line)
	} else {
		fields = strings.Split(line, string(sep))
	}

	if len(output) == 0 {
		values := make(map[string]any, len(fields))
		for i, f := range fields {
			values[strconv.Itoa(i+1)] = f
		}
		return values, nil
	}

	values := make(map[string]any, len(fields))
	for i, f := range fields {
		values[strconv.Itoa(i+1)] = f
	}
	return applyOutputTemplatesIndexed(output, fields, values)
}

// applyOutputTemplates interpolates {fieldname}/{index} placeholders in
// each output template against a name->value map (key-value format).
func applyOutputTemplates(output map[string]string, fieldNames []string, values map[string]any) (map[string]any, error) {
	byName := make(map[string]string, len(fieldNames))
	for i, name := range fieldNames {
		byName[name] = fmt.Sprintf("%v", values[name])
		byName[strconv.Itoa(i+1)] = byName[name]
	}
	result := make(map[string]any, len(output))
	for outkey, tmpl := range output {
		result[outkey] = interpolate(tmpl, byName)
	}
	return result, nil
}

// applyOutputTemplatesIndexed interpolates {index} placeholders (and
// {fieldname} if present via the "1"/"2"... synthetic names) for the
// separator formats, which have no field names of their own.
func applyOutputTemplatesIndexed(output map[string]string, fields []string, values map[string]any) (map[string]any, error) {
	byIndex := make(map[string]string, len(fields))
	for i, f := range fields {
		byIndex[strconv.Itoa(i+1)] = f
	}
	result := make(map[string]any, len(output))
	for outkey, tmpl := range output {
		result[outkey] = interpolate(tmpl, byIndex)
	}
	return result, nil
}

// interpolate replaces every "{name}" occurrence found in vars; unresolved
// placeholders are dropped entirely (spec.md §4.4).
func interpolate(tmpl string, vars map[string]string) string {
	var b strings.Builder
	i := 0
	for i < len(tmpl) {
		if tmpl[i] == '{' {
			end := strings.IndexByte(tmpl[i:], '}')
			if end >= 0 {
				key := tmpl[i+1 : i+end]
				if v, ok := vars[key]; ok {
					b.WriteString(v)
				}
				i += end + 1
				continue
			}
		}
		b.WriteByte(tmpl[i])
		i++
	}
	return b.String()
}
