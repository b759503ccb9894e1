package injector

import "fmt"

// tmpVarName names the local variable a materialised condition term
// is held in. Term ids are dense and method-scoped
// (collector interns per method), so the name is stable across runs of
// the same input without needing a side table.
func tmpVarName(id int) string {
	return fmt.Sprintf("$tmp_%d", id)
}

const (
	fieldsVarName      = "$fields"
	counterVarName     = "$counter"
	dynamicFieldsParam = "$dynamic_fields"
	staticFieldsParam  = "$static_fields"
	dynamicOutParam    = "$dynamic_out"
)

// ctx carries the per-Inject-call side tables threading and allocation
// bookkeeping share: the runtime stub methods, a stable field-index
// table per struct, and a counter for minting call-site scratch
// variable names that can't collide with each other or with the
// condition-term temporaries.
type ctx struct {
	rt      *runtime
	fields  map[string]map[string]int // struct name -> field name -> index
	nFields map[string]int            // struct name -> total field count
	scratch int
}

func (c *ctx) freshVar(prefix string) string {
	c.scratch++
	return fmt.Sprintf("$%s_%d", prefix, c.scratch)
}

func (c *ctx) fieldIndex(structName, field string) int {
	byField, ok := c.fields[structName]
	if !ok {
		// Dereference-rooted accessibility (the synthetic "*" field) and
		// predicate accessibility carry no struct name and share one slot:
		// one past the widest struct's last field, so it never coincides
		// with a real field index.
		n := 0
		for _, k := range c.nFields {
			if k > n {
				n = k
			}
		}

		return n
	}

	if idx, ok := byField[field]; ok {
		return idx
	}

	// A field the struct's layout does not name gets the slot one past
	// its last real field.
	return len(byField)
}
