package tsheets

import (
	"bytes"
	"encoding/json"
	"strconv"
)

type User struct {
	ID             int64            `json:"id"`
	FirstName      string           `json:"first_name"`
	LastName       string           `json:"last_name"`
	Active         bool             `json:"active"`
	EmployeeNumber int              `json:"employee_number"`
	Email          string           `json:"email"`
	PTOBalances    map[string]int64 `json:"pto_balances"`
}

type Jobcode struct {
	ID          int64  `json:"id"`
	ParentID    int64  `json:"parent_id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Billable    bool   `json:"billable"`
	Active      bool   `json:"active"`
	HasChildren bool   `json:"has_children"`
}

type Timesheet struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	JobcodeID int64  `json:"jobcode_id"`
	Duration  int64  `json:"duration"`
	Date      string `json:"date"`
	State     string `json:"state"`
}

// keyed decodes the API's id-keyed result objects. An empty result set is
// sent as [] rather than {}, so arrays are accepted too.
type keyed[T any] map[string]T

func (k *keyed[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		m := make(keyed[T], len(items))
		for i, item := range items {
			m[strconv.Itoa(i)] = item
		}
		*k = m
		return nil
	}

	var m map[string]T
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*k = m
	return nil
}

func (k keyed[T]) values() []T {
	out := make([]T, 0, len(k))
	for _, v := range k {
		out = append(out, v)
	}
	return out
}

type usersResponse struct {
	Results struct {
		Users keyed[User] `json:"users"`
	} `json:"results"`
	More             bool `json:"more"`
	SupplementalData struct {
		Jobcodes keyed[Jobcode] `json:"jobcodes"`
	} `json:"supplemental_data"`
}

type jobcodesResponse struct {
	Results struct {
		Jobcodes keyed[Jobcode] `json:"jobcodes"`
	} `json:"results"`
	More bool `json:"more"`
}

type timesheetsResponse struct {
	Results struct {
		Timesheets keyed[Timesheet] `json:"timesheets"`
	} `json:"results"`
	More bool `json:"more"`
}
