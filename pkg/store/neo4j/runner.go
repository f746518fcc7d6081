package neo4j

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/graphrag/pkg/common"

	neo4jv5 "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Row is one result record keyed by column name.
type Row map[string]any

// Runner executes one Cypher statement and collects its records.
type Runner interface {
	Run(ctx context.Context, op string, cypher string, params map[string]any, write bool) ([]Row, error)
}

// driverRunner opens a fresh session per statement.
type driverRunner struct {
	driver   neo4jv5.DriverWithContext
	database string
}

func (r *driverRunner) Run(ctx context.Context, op string, cypher string, params map[string]any, write bool) ([]Row, error) {
	mode := neo4jv5.AccessModeRead
	if write {
		mode = neo4jv5.AccessModeWrite
	}
	session := r.driver.NewSession(ctx, neo4jv5.SessionConfig{
		AccessMode:   mode,
		DatabaseName: r.database,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, classify(op, err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, classify(op, err)
	}

	rows := make([]Row, 0, len(records))
	for _, record := range records {
		rows = append(rows, Row(record.AsMap()))
	}
	return rows, nil
}

func classify(op string, err error) error {
	if neo4jv5.IsConnectivityError(err) || errors.Is(err, context.DeadlineExceeded) {
		return common.NewConnectivityError(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func getString(row Row, key string) string {
	val, ok := row[key]
	if !ok || val == nil {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

func getInt(row Row, key string) int {
	val, ok := row[key]
	if !ok || val == nil {
		return 0
	}
	switch v := val.(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func getFloat(row Row, key string) float64 {
	val, ok := row[key]
	if !ok || val == nil {
		return 0
	}
	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func getBool(row Row, key string) bool {
	val, ok := row[key]
	if !ok || val == nil {
		return false
	}
	b, _ := val.(bool)
	return b
}

func getStrings(row Row, key string) []string {
	val, ok := row[key]
	if !ok || val == nil {
		return nil
	}
	switch v := val.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
