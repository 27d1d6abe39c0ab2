package geo

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hdx-tools/pcode-detector/internal/table"
)

// cellOf renders a decoded attribute value as table text.
func cellOf(v any) table.Cell {
	switch x := v.(type) {
	case nil:
		return table.Null
	case string:
		return textCell(x)
	case []byte:
		return textCell(string(x))
	case float64:
		return table.Str(strconv.FormatFloat(x, 'f', -1, 64))
	case float32:
		return table.Str(strconv.FormatFloat(float64(x), 'f', -1, 32))
	case int64:
		return table.Str(strconv.FormatInt(x, 10))
	case int:
		return table.Str(strconv.Itoa(x))
	case bool:
		return table.Str(strconv.FormatBool(x))
	case time.Time:
		return table.Str(x.Format(time.RFC3339))
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return table.Null
		}
		return table.Str(string(b))
	}
	return table.Str(fmt.Sprint(v))
}

func textCell(s string) table.Cell {
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	if s == "" {
		return table.Null
	}
	return table.Str(s)
}
