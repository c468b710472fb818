// Package settings holds the app settings document of a knowledge base and the
// merge that layers the onboarding landing defaults onto it.
package settings

import (
	"encoding/json"
	"fmt"
)

// Wire keys used by the wiki backend for the app settings document.
const (
	KeyFooterSettings = "footer_settings"
	KeyLandingConfigs = "web_app_landing_configs"
	KeyLandingTheme   = "web_app_landing_theme"

	KeyCorpName  = "corp_name"
	KeyICP       = "icp"
	KeyBlockType = "type"
	KeyNodeIDs   = "node_ids"

	BlockBasicDoc = "basic_doc"
)

// Document is a nested, partially specified settings document. Unknown keys
// are carried through untouched.
type Document map[string]interface{}

// App is the backend's view of an app bound to a knowledge base.
type App struct {
	Id       string   `json:"id"`
	KbId     string   `json:"kb_id"`
	Type     int      `json:"type"`
	Settings Document `json:"settings"`
}

// Parse decodes a JSON object into a Document.
func Parse(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse settings document: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneMap(d)
}

// Footer returns the footer object, or nil when absent or not an object.
func (d Document) Footer() map[string]interface{} {
	return asMap(d[KeyFooterSettings])
}

// LandingBlocks returns the landing config blocks that are objects.
func (d Document) LandingBlocks() []map[string]interface{} {
	items, ok := d[KeyLandingConfigs].([]interface{})
	if !ok {
		return nil
	}
	blocks := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if m := asMap(item); m != nil {
			blocks = append(blocks, m)
		}
	}
	return blocks
}

func asMap(v interface{}) map[string]interface{} {
	switch m := v.(type) {
	case map[string]interface{}:
		return m
	case Document:
		return m
	}
	return nil
}

func cloneMap(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = cloneValue(v)
	}
	return dst
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneMap(t)
	case Document:
		return cloneMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return t
	}
}
