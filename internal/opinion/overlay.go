package opinion

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/straja-ai/adaware/internal/evidence"
	"github.com/straja-ai/adaware/internal/risk"
)

// ErrMalformed marks a payload that is not a JSON object at all.
var ErrMalformed = errors.New("opinion payload malformed")

// ConsistencyOpinion is the model's own image-text consistency judgement.
type ConsistencyOpinion struct {
	Overall   string   `json:"overall_consistency,omitempty"`
	Score     *float64 `json:"consistency_score,omitempty"`
	Reasoning string   `json:"reasoning,omitempty"`
}

// Overlay is a validated external opinion. Every field is optional; fields
// that failed validation are absent and listed in Issues.
type Overlay struct {
	Label            string              `json:"label,omitempty"`
	Credibility      *float64            `json:"credibility,omitempty"`
	RiskLevel        risk.Level          `json:"risk_level,omitempty"`
	RiskSignalsExtra []string            `json:"risk_signals_extra,omitempty"`
	EvidenceSpans    []evidence.Span     `json:"evidence_spans,omitempty"`
	SubLabels        []string            `json:"sub_labels,omitempty"`
	ProductInfo      map[string]string   `json:"product_info_updates,omitempty"`
	Consistency      *ConsistencyOpinion `json:"fusion_reasoning,omitempty"`
	Bullets          []string            `json:"bullets,omitempty"`
	Takeaway         string              `json:"short_takeaway,omitempty"`
	Summary          string              `json:"summary,omitempty"`
	Issues           []string            `json:"issues,omitempty"`
}

// Empty reports whether the overlay carries nothing the merger can use.
func (o *Overlay) Empty() bool {
	if o == nil {
		return true
	}
	return strings.TrimSpace(o.Label) == "" && o.Credibility == nil && o.RiskLevel == "" &&
		len(o.RiskSignalsExtra) == 0 && len(o.EvidenceSpans) == 0 && len(o.ProductInfo) == 0
}

// Decode validates a raw payload field by field. Only a payload that is not a
// JSON object is rejected; a bad field is dropped and noted in Issues.
func Decode(raw []byte) (*Overlay, error) {
	body := stripCodeFences(strings.TrimSpace(string(raw)))
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	o := &Overlay{}
	d := decoder{fields: fields, out: o}

	if s, ok := d.str("label_llm", "label"); ok {
		o.Label = s
	}
	if v, ok := d.num("credibility_llm", "credibility"); ok {
		if v < 0 || v > 100 {
			d.issue("credibility", "out of range")
		} else {
			o.Credibility = &v
		}
	}
	if s, ok := d.str("risk_level"); ok && s != "" {
		if lvl, valid := risk.ParseLevel(s); valid {
			o.RiskLevel = lvl
		} else {
			d.issue("risk_level", "unknown level")
		}
	}
	o.RiskSignalsExtra = d.strList("risk_signals_extra")
	o.SubLabels = d.strList("sub_labels")
	o.EvidenceSpans = d.spans("evidence_spans")
	o.ProductInfo = d.strMap("product_info_updates")
	o.Consistency = d.consistency("fusion_reasoning")
	if s, ok := d.str("summary"); ok {
		o.Summary = s
	}

	if raw, ok := fields["explanation_refined"]; ok {
		var refined map[string]json.RawMessage
		if err := json.Unmarshal(raw, &refined); err != nil {
			d.issue("explanation_refined", "not an object")
		} else {
			sub := decoder{fields: refined, out: o}
			o.Bullets = sub.strList("bullets")
			if s, ok := sub.str("short_takeaway"); ok {
				o.Takeaway = s
			}
		}
	}
	return o, nil
}

type decoder struct {
	fields map[string]json.RawMessage
	out    *Overlay
}

func (d decoder) issue(field, msg string) {
	d.out.Issues = append(d.out.Issues, field+": "+msg)
}

func (d decoder) lookup(keys ...string) (string, json.RawMessage, bool) {
	for _, k := range keys {
		if raw, ok := d.fields[k]; ok && string(raw) != "null" {
			return k, raw, true
		}
	}
	return "", nil, false
}

func (d decoder) str(keys ...string) (string, bool) {
	k, raw, ok := d.lookup(keys...)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		d.issue(k, "not a string")
		return "", false
	}
	return strings.TrimSpace(s), true
}

func (d decoder) num(keys ...string) (float64, bool) {
	k, raw, ok := d.lookup(keys...)
	if !ok {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		d.issue(k, "not a number")
		return 0, false
	}
	return v, true
}

func (d decoder) strList(key string) []string {
	_, raw, ok := d.lookup(key)
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		d.issue(key, "not a list")
		return nil
	}
	var out []string
	for _, it := range items {
		var s string
		if err := json.Unmarshal(it, &s); err != nil {
			d.issue(key, "non-string item dropped")
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (d decoder) strMap(key string) map[string]string {
	_, raw, ok := d.lookup(key)
	if !ok {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		d.issue(key, "not an object")
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out[k] = s
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (d decoder) spans(key string) []evidence.Span {
	_, raw, ok := d.lookup(key)
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		d.issue(key, "not a list")
		return nil
	}
	var out []evidence.Span
	for _, it := range items {
		var sp struct {
			Kind     string `json:"kind"`
			Text     string `json:"text"`
			Reason   string `json:"reason"`
			Category string `json:"category"`
		}
		if err := json.Unmarshal(it, &sp); err != nil || strings.TrimSpace(sp.Text) == "" {
			d.issue(key, "invalid span dropped")
			continue
		}
		out = append(out, evidence.Span{
			Kind:     evidence.ParseKind(sp.Kind),
			Text:     strings.TrimSpace(sp.Text),
			Start:    -1,
			End:      -1,
			Reason:   strings.TrimSpace(sp.Reason),
			Category: strings.TrimSpace(sp.Category),
		})
	}
	return out
}

func (d decoder) consistency(key string) *ConsistencyOpinion {
	_, raw, ok := d.lookup(key)
	if !ok {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		d.issue(key, "not an object")
		return nil
	}
	sub := decoder{fields: m, out: d.out}
	c := &ConsistencyOpinion{}
	if s, ok := sub.str("overall_consistency"); ok && s != "" {
		switch v := strings.ToLower(strings.TrimSpace(s)); v {
		case "consistent", "partially_consistent", "inconsistent":
			c.Overall = v
		default:
			d.issue("overall_consistency", "unknown value")
		}
	}
	if v, ok := sub.num("consistency_score"); ok {
		if v < 0 || v > 1 {
			d.issue("consistency_score", "out of range")
		} else {
			c.Score = &v
		}
	}
	if s, ok := sub.str("reasoning"); ok {
		c.Reasoning = s
	}
	return c
}

func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
