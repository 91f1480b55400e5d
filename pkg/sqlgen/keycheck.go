package sqlgen

import (
	"fmt"
	"strings"

	"github.com/systemsbiology/sbeams-core/pkg/registry"
)

// KeyCheckQuery returns a query selecting rows of physical that match the
// table's is_key_field group, and the key column names in bind order. A
// non-empty result means an insert would duplicate an existing row.
func KeyCheckQuery(physical string, t registry.TableDescriptor, cols []registry.ColumnDescriptor, d Dialect) (string, []string, error) {
	var keys []string
	var conds []Expr
	for _, c := range cols {
		if !c.KeyField {
			continue
		}
		keys = append(keys, c.Name)
		conds = append(conds, Eq{Left: Ident{Dialect: d, Name: c.Name}, Right: Placeholder{}})
	}
	if len(keys) == 0 {
		return "", nil, fmt.Errorf("%w: %s", ErrNoKeyColumns, t.Name)
	}

	sel := "1"
	if t.PKColumn != "" {
		sel = d.QuoteIdent(t.PKColumn)
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s", sel, d.QuoteTable(physical), And(conds...).SQL())
	return d.Rebind(q), keys, nil
}

// KeyCheckArgs orders values by the key columns returned from KeyCheckQuery.
// Missing values bind as empty strings.
func KeyCheckArgs(keys []string, values map[string]any) []any {
	args := make([]any, len(keys))
	for i, k := range keys {
		v, ok := values[k]
		if !ok {
			v, ok = values[strings.ToLower(k)]
		}
		if !ok {
			v = ""
		}
		args[i] = v
	}
	return args
}
