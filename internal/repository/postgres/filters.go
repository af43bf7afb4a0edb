package postgres

import (
	"fmt"
	"strings"

	"github.com/andresuchdata/shelfwise/internal/repository"
)

// buildProductFilterClause constructs the AND clauses of a product listing
func buildProductFilterClause(filter repository.ProductFilter, alias string, startIndex int) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	idx := startIndex
	prefix := normalizeAlias(alias)

	if filter.Category != nil {
		clauses = append(clauses, fmt.Sprintf("%scategory = $%d", prefix, idx))
		args = append(args, *filter.Category)
		idx++
	}

	if filter.Perishable != nil {
		clauses = append(clauses, fmt.Sprintf("%sis_perishable = $%d", prefix, idx))
		args = append(args, *filter.Perishable)
		idx++
	}

	if len(filter.IDs) > 0 {
		clause, idArgs := inClause(prefix+"id", filter.IDs, idx)
		clauses = append(clauses, clause)
		args = append(args, idArgs...)
	}

	if len(clauses) == 0 {
		return "", nil
	}

	return " AND " + strings.Join(clauses, " AND "), args
}

// inClause renders column IN ($n, $n+1, ...) for a list of ids
func inClause(column string, ids []string, startIndex int) (string, []interface{}) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", startIndex+i)
		args[i] = id
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ",")), args
}

func normalizeAlias(alias string) string {
	if alias == "" {
		return ""
	}
	if !strings.HasSuffix(alias, ".") {
		return alias + "."
	}
	return alias
}
