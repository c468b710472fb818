package settings

// Merge layers overrides onto base and returns a new document.
//
// Top-level override fields replace base fields, except footer_settings which
// is merged per field: a non-empty override value wins, otherwise the base
// value is kept, otherwise the field becomes "". Every basic_doc landing block
// in the result gets node_ids set to nodeIDs. Neither input is modified.
func Merge(base, overrides Document, nodeIDs []string) Document {
	out := Document{}
	if base != nil {
		out = base.Clone()
	}

	for k, v := range overrides {
		if k == KeyFooterSettings {
			continue
		}
		out[k] = cloneValue(v)
	}

	if footer := overrides.Footer(); footer != nil {
		out[KeyFooterSettings] = mergeFooter(base.Footer(), footer)
	}

	if items, ok := out[KeyLandingConfigs].([]interface{}); ok {
		out[KeyLandingConfigs] = rewriteBasicDoc(items, nodeIDs)
	}

	return out
}

func mergeFooter(base, override map[string]interface{}) map[string]interface{} {
	footer := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		footer[k] = cloneValue(v)
	}
	for k, v := range override {
		switch {
		case !isEmpty(v):
			footer[k] = cloneValue(v)
		case !isEmpty(base[k]):
			footer[k] = cloneValue(base[k])
		default:
			footer[k] = ""
		}
	}
	return footer
}

// rewriteBasicDoc expects items to already be owned by the caller.
func rewriteBasicDoc(items []interface{}, nodeIDs []string) []interface{} {
	ids := make([]interface{}, len(nodeIDs))
	for i, id := range nodeIDs {
		ids[i] = id
	}

	for i, item := range items {
		block := asMap(item)
		if block == nil {
			continue
		}
		if t, _ := block[KeyBlockType].(string); t != BlockBasicDoc {
			continue
		}
		rewritten := make(map[string]interface{}, len(block)+1)
		for k, v := range block {
			rewritten[k] = v
		}
		blockIDs := make([]interface{}, len(ids))
		copy(blockIDs, ids)
		rewritten[KeyNodeIDs] = blockIDs
		items[i] = rewritten
	}
	return items
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	}
	return false
}
