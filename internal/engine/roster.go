package engine

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseRosterCSV reads "name,category,basePrice" rows. Category and base
// price are optional; blank lines and rows without a name are skipped. A
// leading header row ("name,...") is ignored.
func ParseRosterCSV(text string) ([]PlayerInput, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var out []PlayerInput
	for row := 1; ; row++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: roster row %d: %v", ErrInvalidSettings, row, err)
		}
		if len(rec) == 0 {
			continue
		}
		name := strings.TrimSpace(rec[0])
		if name == "" || (row == 1 && strings.EqualFold(name, "name")) {
			continue
		}
		p := PlayerInput{Name: name}
		if len(rec) > 1 {
			p.Category = strings.TrimSpace(rec[1])
		}
		if len(rec) > 2 && strings.TrimSpace(rec[2]) != "" {
			price, err := strconv.Atoi(strings.TrimSpace(rec[2]))
			if err != nil || price < 0 {
				return nil, fmt.Errorf("%w: roster row %d: bad base price %q", ErrInvalidSettings, row, rec[2])
			}
			p.BasePrice = price
		}
		out = append(out, p)
	}
	return out, nil
}
