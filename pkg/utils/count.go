package utils

import (
	"encoding/json"
)

// GetTotalCount is deprecated and not used in the codebase: it ignores
// its arguments and always returns 0, nil.
func GetTotalCount(client interface{}, table string, filters map[string]interface{}) (int64, error) {
	return 0, nil
}

// GetTotalCountWithQuery is deprecated and not used in the codebase: it
// ignores its argument and always returns 0, nil.
func GetTotalCountWithQuery(query interface{}) (int64, error) {
	return 0, nil
}

// CountQueryResult counts results from a query response
func CountQueryResult(data []byte) (int64, error) {
	var results []map[string]interface{}
	if err := json.Unmarshal(data, &results); err != nil {
		return 0, err
	}
	return int64(len(results)), nil
}

