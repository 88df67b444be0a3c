package core

import (
	"encoding/json"
	"fmt"
)

// legacyAttributes is the attribute shape written before tags replaced the
// boolean flags.
type legacyAttributes struct {
	Type        string   `json:"type"`
	ContentType string   `json:"contentType"`
	ContentTags []string `json:"contentTags"`
	SystemTags  []string `json:"systemTags"`
	ZIndex      int      `json:"zIndex"`

	Readonly  *bool    `json:"readonly"`
	Visible   *bool    `json:"visible"`
	Hardcoded *bool    `json:"hardcoded"`
	Template  *bool    `json:"template"`
	Tags      []string `json:"tags"`
}

type legacyEntry struct {
	Value      json.RawMessage  `json:"value"`
	Attributes legacyAttributes `json:"attributes"`
}

// UpgradeSnapshot decodes a JSON snapshot, migrating legacy boolean flags to
// the tag model:
//
//	visible   -> SystemPrompt
//	!readonly -> LLMWrite
//	hardcoded -> protected
//	template  -> ApplyTemplate
//	tags      -> contentTags
//
// Explicit systemTags win over legacy flags. Reserved keys are dropped.
func UpgradeSnapshot(data []byte) (Snapshot, error) {
	var raw map[string]legacyEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: snapshot: %v", ErrInvalidValue, err)
	}
	snap := make(Snapshot, len(raw))
	for key, le := range raw {
		if IsReserved(key) {
			continue
		}
		value, err := decodeValue(le.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %q: %v", ErrInvalidValue, key, err)
		}
		attrs, err := upgradeAttributes(le.Attributes)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", key, err)
		}
		snap[key] = Entry{Value: value, Attributes: attrs}
	}
	return snap, nil
}

// decodeValue accepts string values and, for old json-typed entries, inline
// JSON documents which are re-encoded as text.
func decodeValue(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func upgradeAttributes(la legacyAttributes) (Attributes, error) {
	attrs := DefaultAttributes()
	if la.Type != "" {
		t, err := ParseType(la.Type)
		if err != nil {
			return attrs, err
		}
		attrs.Type = t
	}
	attrs.ContentType = la.ContentType
	attrs.ZIndex = la.ZIndex

	contentTags := la.ContentTags
	if contentTags == nil {
		contentTags = la.Tags
	}
	attrs.ContentTags = UniqueStrings(contentTags)

	if la.SystemTags != nil {
		tags := make([]SystemTag, 0, len(la.SystemTags))
		for _, s := range la.SystemTags {
			t, err := ParseSystemTag(normalizeLegacyTag(s))
			if err != nil {
				return attrs, err
			}
			tags = append(tags, t)
		}
		attrs.SystemTags = UniqueSystemTags(tags)
		return attrs, nil
	}

	var tags []SystemTag
	if la.Visible != nil && *la.Visible {
		tags = append(tags, TagSystemPrompt)
	}
	if la.Readonly != nil && !*la.Readonly {
		tags = append(tags, TagLLMWrite)
	}
	if la.Hardcoded != nil && *la.Hardcoded {
		tags = append(tags, TagProtected)
	}
	if la.Template != nil && *la.Template {
		tags = append(tags, TagApplyTemplate)
	}
	attrs.SystemTags = UniqueSystemTags(tags)
	return attrs, nil
}

// normalizeLegacyTag maps spellings seen in older exports onto the vocabulary.
func normalizeLegacyTag(s string) string {
	switch s {
	case "prompt", "systemPrompt":
		return string(TagSystemPrompt)
	case "readable", "llmRead":
		return string(TagLLMRead)
	case "writable", "llmWrite":
		return string(TagLLMWrite)
	case "Protected", "hardcoded":
		return string(TagProtected)
	case "template", "applyTemplate":
		return string(TagApplyTemplate)
	}
	return s
}
