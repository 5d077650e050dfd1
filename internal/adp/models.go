package adp

type codeValue struct {
	CodeValue string `json:"codeValue"`
	ShortName string `json:"shortName"`
}

// TimeCard is one ADP pay-period time card.
type TimeCard struct {
	TimeCardID           string            `json:"timeCardID"`
	HomeLaborAllocations []laborAllocation `json:"homeLaborAllocations"`
	DailyTotals          []DailyTotal      `json:"dailyTotals"`
	TimePeriod           *timePeriod       `json:"timePeriod,omitempty"`
}

type laborAllocation struct {
	AllocationCode codeValue `json:"allocationCode"`
}

type timePeriod struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// DailyTotal is one day's hours under one pay code.
type DailyTotal struct {
	EntryDate    string    `json:"entryDate"`
	PayCode      codeValue `json:"payCode"`
	TimeDuration string    `json:"timeDuration"`
}

type timeCardsResponse struct {
	TimeCards []TimeCard `json:"timeCards"`
}

type timeOffBalancesResponse struct {
	TimeOffBalances []struct {
		TimeOffPolicyBalances []struct {
			TimeOffPolicyCode codeValue `json:"timeOffPolicyCode"`
			PolicyBalances    []struct {
				TotalQuantity *struct {
					QuantityValue float64 `json:"quantityValue"`
				} `json:"totalQuantity"`
			} `json:"policyBalances"`
		} `json:"timeOffPolicyBalances"`
	} `json:"timeOffBalances"`
}

// Worker is the subset of an ADP worker record used to match employees.
type Worker struct {
	AssociateOID string `json:"associateOID"`
	WorkerStatus struct {
		StatusCode codeValue `json:"statusCode"`
	} `json:"workerStatus"`
	CustomFieldGroup struct {
		StringFields []struct {
			NameCode    codeValue `json:"nameCode"`
			StringValue string    `json:"stringValue"`
		} `json:"stringFields"`
	} `json:"customFieldGroup"`
}

// Active reports whether the worker's status code is Active.
func (w Worker) Active() bool {
	return w.WorkerStatus.StatusCode.CodeValue == "Active"
}

// StringField returns the custom string field with the given short name.
func (w Worker) StringField(name string) (string, bool) {
	for _, f := range w.CustomFieldGroup.StringFields {
		if f.NameCode.ShortName == name {
			return f.StringValue, true
		}
	}
	return "", false
}

type workersResponse struct {
	Workers []Worker `json:"workers"`
}
