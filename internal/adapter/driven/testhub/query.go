package testhub

import (
	"net/url"
	"strconv"
	"strings"
)

// The API filters collections with a query language passed as
// query="<cond>||<cond>", where a condition compares a field against a
// single-quoted literal. Only the operators used here are implemented:
// = for equality and ^ for prefix match.

func quoteLiteral(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func eqAny(field string, values []string) string {
	conds := make([]string, 0, len(values))
	for _, v := range values {
		conds = append(conds, field+"="+quoteLiteral(v))
	}
	return strings.Join(conds, "||")
}

func prefixAny(field string, values []string) string {
	conds := make([]string, 0, len(values))
	for _, v := range values {
		conds = append(conds, field+"^"+quoteLiteral(v))
	}
	return strings.Join(conds, "||")
}

// listQuery builds the query-string values for one page of a filtered list.
func listQuery(query, fields string, offset int) url.Values {
	v := url.Values{}
	if query != "" {
		v.Set("query", `"`+query+`"`)
	}
	if fields != "" {
		v.Set("fields", fields)
	}
	v.Set("limit", strconv.Itoa(pageLimit))
	v.Set("offset", strconv.Itoa(offset))
	return v
}
