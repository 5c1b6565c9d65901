package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/hembot/hembot/src/dialog"
)

// JSONState stores a dialogue state as a JSON column.
type JSONState struct {
	dialog.State
}

// Scan implements the sql.Scanner interface for JSONState.
func (j *JSONState) Scan(value interface{}) error {
	if value == nil {
		j.State = dialog.NewState()
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("cannot scan type %T into JSONState", value)
	}
	if len(data) == 0 || string(data) == "{}" {
		j.State = dialog.NewState()
		return nil
	}
	return json.Unmarshal(data, &j.State)
}

// Value implements the driver.Valuer interface for JSONState.
func (j JSONState) Value() (driver.Value, error) {
	return json.Marshal(j.State)
}
