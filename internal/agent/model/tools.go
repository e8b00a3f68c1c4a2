package model

// LoanApplication is the view of an application exposed to tools.
type LoanApplication struct {
	ID            string   `json:"id"`
	BorrowerID    string   `json:"borrower_id"`
	Status        string   `json:"status"`
	Amount        float64  `json:"amount"`
	Balance       float64  `json:"balance"`
	Conditions    []string `json:"conditions,omitempty"`
	Decision      string   `json:"decision,omitempty"`
	DecisionNotes string   `json:"decision_notes,omitempty"`
}
