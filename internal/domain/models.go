package domain

import "errors"

// DefaultPct is the VAT percentage recorded when the form leaves it empty
// or unparseable.
const DefaultPct = 20

// InvalidFileFormatMessage is shown next to the file input whenever the
// attachment is missing or of a rejected type.
const InvalidFileFormatMessage = "Le format du fichier est invalide"

// AttachmentPrefix is the storage folder receipts are uploaded under.
const AttachmentPrefix = "justificatifs"

// ErrNoSession is returned by session readers when no user is logged in.
var ErrNoSession = errors.New("no session user")

// Status is the workflow state of a bill. Only StatusPending is ever set by
// the employee screens; the others are written by the admin workflow.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRefused  Status = "refused"
)

// Label returns the French display label for a status, or the raw value
// for statuses this code does not know about.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "En attente"
	case StatusAccepted:
		return "Accepté"
	case StatusRefused:
		return "Refusé"
	}
	return string(s)
}

// Bill is an expense bill as persisted in the remote store.
type Bill struct {
	ID           string `firestore:"-" json:"id"`
	Email        string `firestore:"email" json:"email"`
	Type         string `firestore:"type" json:"type"`
	Name         string `firestore:"name" json:"name"`
	Amount       int    `firestore:"amount" json:"amount"`
	Date         string `firestore:"date" json:"date"` // ISO "2006-01-02"
	VAT          string `firestore:"vat" json:"vat"`
	Pct          int    `firestore:"pct" json:"pct"`
	Commentary   string `firestore:"commentary" json:"commentary"`
	FileURL      string `firestore:"fileUrl" json:"fileUrl"`
	FileName     string `firestore:"fileName" json:"fileName"`
	Status       Status `firestore:"status" json:"status"`
	CommentAdmin string `firestore:"commentAdmin,omitempty" json:"commentAdmin,omitempty"`
}

// User is the logged-in session user. Type is the role ("Employee", "Admin").
type User struct {
	Type  string `json:"type"`
	Email string `json:"email"`
}

// ExpenseTypes lists the categories offered by the new-bill form.
var ExpenseTypes = []string{
	"Transports",
	"Restaurants et bars",
	"Hôtel et logement",
	"Services en ligne",
	"IT et électronique",
	"Equipement et matériel",
	"Fournitures de bureau",
}

// Route paths shared by controllers and handlers.
const (
	RouteLogin   = "/"
	RouteBills   = "/bills"
	RouteNewBill = "/bills/new"
)
