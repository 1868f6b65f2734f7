package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

func scanJSONB(src any, dst any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}

	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, dst)
}

func jsonbValue(v any) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return data, nil
}
