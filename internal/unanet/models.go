package unanet

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// number decodes JSON numbers that Unanet sometimes sends as strings.
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*n = number(f)
	return nil
}

type named struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type person struct {
	Key json.Number `json:"key"`
}

type peopleResponse struct {
	Items []person `json:"items"`
}

// TimeSummary is a time search result: one timesheet without its slips.
type TimeSummary struct {
	Key    json.Number `json:"key"`
	Status string      `json:"status"`
}

type timeSearchResponse struct {
	Items []TimeSummary `json:"items"`
}

// Timeslip is the hours for one project and task on one day.
type Timeslip struct {
	WorkDate    string `json:"workDate"`
	HoursWorked number `json:"hoursWorked"`
	Project     *named `json:"project"`
	Task        *named `json:"task"`
	ProjectType named  `json:"projectType"`
}

// Timesheet is a timesheet with its slips.
type Timesheet struct {
	Key       json.Number `json:"key"`
	Status    string      `json:"status"`
	Timeslips []Timeslip  `json:"timeslips"`
}

// LeaveItem is one leave project's budget and actuals in a date range.
type LeaveItem struct {
	Project   named  `json:"project"`
	BeginDate string `json:"beginDate"`
	EndDate   string `json:"endDate"`
	Budget    number `json:"budget"`
	Actuals   number `json:"actuals"`
}

type leaveResponse struct {
	Items []LeaveItem `json:"items"`
}
