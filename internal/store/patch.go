package store

import (
	"encoding/json"
	"fmt"
)

// mergePatch applies a shallow JSON-merge patch to an entity by round-tripping
// through its JSON representation. Fields present in the patch overwrite,
// nested objects follow the same rule recursively, arrays are replaced
// wholesale. The merged document must still unmarshal into V; a patch that
// breaks the entity's shape (e.g. a string where an object belongs) fails.
func mergePatch[V any](current V, patch map[string]interface{}) (V, error) {
	var zero V

	raw, err := json.Marshal(current)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal stored entity: %w", err)
	}

	base := make(map[string]interface{})
	if err := json.Unmarshal(raw, &base); err != nil {
		return zero, fmt.Errorf("failed to decode stored entity: %w", err)
	}

	mergeMaps(base, patch)

	merged, err := json.Marshal(base)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal merged entity: %w", err)
	}

	var out V
	if err := json.Unmarshal(merged, &out); err != nil {
		return zero, fmt.Errorf("patch does not fit entity shape: %w", err)
	}

	return out, nil
}

// mergeMaps merges patch into dst in place, recursing into nested objects.
func mergeMaps(dst, patch map[string]interface{}) {
	for k, v := range patch {
		pv, patchIsObject := v.(map[string]interface{})
		dv, dstIsObject := dst[k].(map[string]interface{})
		if patchIsObject && dstIsObject {
			mergeMaps(dv, pv)
			continue
		}
		dst[k] = v
	}
}

// statusOnlyPatch reports whether the patch touches nothing besides status
// and last_updated. The hierarchy uses this to classify EVSE and Connector
// patches: pure status updates emit a status-changed event instead of a
// generic changed event.
func statusOnlyPatch(patch map[string]interface{}) bool {
	if _, ok := patch["status"]; !ok {
		return false
	}
	for k := range patch {
		if k != "status" && k != "last_updated" {
			return false
		}
	}
	return true
}
