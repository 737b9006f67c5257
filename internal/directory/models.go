// Package directory talks to the external government directory (the shared
// registry of operators and citizen custody) and caches its operator list.
package directory

import "errors"

// OperatorRecord is one entry of the external directory's operator list.
type OperatorRecord struct {
	ID             string   `json:"_id"`
	OperatorName   string   `json:"operatorName"`
	Participants   []string `json:"participants"`
	TransferAPIURL string   `json:"transferAPIURL"`
}

// RegisterOperatorRequest registers this process as an operator.
type RegisterOperatorRequest struct {
	Name         string   `json:"operatorName"`
	Address      string   `json:"address"`
	Contact      string   `json:"contactMail"`
	Participants []string `json:"participants"`
}

// ErrOperatorNotFound means the directory has no operator with that id.
var ErrOperatorNotFound = errors.New("operator not found in directory")
