package catalog

import (
	"fmt"

	"github.com/bytedance/sonic"
	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Merge applies an RFC 7386 merge patch to base and returns the new catalog.
// A null value removes an intent or a fragment; base is left untouched.
func Merge(base Catalog, patch []byte) (Catalog, error) {
	if len(patch) == 0 {
		return base.Clone(), nil
	}
	original, err := sonic.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("marshal catalog: %w", err)
	}
	merged, err := jsonpatch.MergePatch(original, patch)
	if err != nil {
		return nil, fmt.Errorf("apply catalog patch: %w", err)
	}
	var out Catalog
	if err := sonic.Unmarshal(merged, &out); err != nil {
		return nil, fmt.Errorf("unmarshal patched catalog: %w", err)
	}
	if out == nil {
		out = Catalog{}
	}
	return out, nil
}
