package clickhouse

import (
	"fmt"

	"github.com/leapstack-labs/etlite/pkg/core"
	"github.com/leapstack-labs/etlite/pkg/engines/generic"
)

// Replace truncates table and loads query into it.
func Replace(table, query string, p core.Params) (*core.LoadPlan, error) {
	var none struct{}
	if err := p.Decode(&none); err != nil {
		return nil, err
	}
	return generic.LoadAll(table, query, "TRUNCATE TABLE IF EXISTS "+table), nil
}

// Incremental loads the rows of query newer than max(column) of table. A
// window is removed with a synchronous mutation before loading, e.g.
// window: 3 DAY.
func Incremental(table, query string, p core.Params) (*core.LoadPlan, error) {
	ip, err := generic.DecodeIncremental(p)
	if err != nil {
		return nil, err
	}

	var prepare []string
	if ip.Window != "" {
		prepare = append(prepare, fmt.Sprintf(
			"ALTER TABLE %[1]s DELETE WHERE %[2]s > (SELECT max(%[2]s) FROM %[1]s) - INTERVAL %[3]s SETTINGS mutations_sync = 2",
			table, ip.Column, ip.Window))
	}
	return generic.LoadNewer(table, query, ip, "(SELECT count() FROM "+table+") = 0", prepare...), nil
}
