package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"

	"github.com/google/uuid"

	"github.com/csg33k/billed/internal/domain"
	"github.com/csg33k/billed/internal/logging"
)

// Inline messages shown by the form besides InvalidFileFormatMessage.
const (
	UploadFailedMessage = "Le téléchargement du fichier a échoué"
	WriteFailedMessage  = "L'enregistrement de la note de frais a échoué"
	NoSessionMessage    = "Votre session a expiré, veuillez vous reconnecter"
)

// ErrInvalidFileFormat reports a selection whose content type is not an
// accepted image type.
var ErrInvalidFileFormat = errors.New(domain.InvalidFileFormatMessage)

// acceptedContentTypes are the declared types a receipt may have.
var acceptedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// CheckContentType returns an error wrapping ErrInvalidFileFormat unless the
// declared content type may be uploaded.
func CheckContentType(contentType string) error {
	if !acceptedContentTypes[contentType] {
		return fmt.Errorf("%w: %q", ErrInvalidFileFormat, contentType)
	}
	return nil
}

// FormState is the state of one new-bill form.
type FormState int

const (
	StateNoFile FormState = iota
	StateUploading
	StateFileReady
	StateInvalid
	StateSubmitted
)

func (s FormState) String() string {
	switch s {
	case StateNoFile:
		return "no-file"
	case StateUploading:
		return "uploading"
	case StateFileReady:
		return "file-ready"
	case StateInvalid:
		return "invalid"
	case StateSubmitted:
		return "submitted"
	}
	return fmt.Sprintf("FormState(%d)", int(s))
}

// FileSelection is a file picked in the form's file input.
type FileSelection struct {
	// Path is the input value, e.g. `C:\fakepath\receipt.png`.
	Path        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// BillForm holds the raw field values of the new-bill form.
type BillForm struct {
	Type       string
	Name       string
	Amount     string
	Date       string
	VAT        string
	Pct        string
	Commentary string
}

// FormView is a snapshot of the form for rendering.
type FormView struct {
	State    FormState
	FileName string
	FileURL  string
	Error    string
}

// NewBillController drives one instance of the new-bill form.
type NewBillController struct {
	cfg Config

	mu           sync.Mutex
	state        FormState
	fileURL      string
	fileName     string
	currentError string
	// token increases on every file selection; an upload only commits its
	// result while its token is still the latest.
	token uint64

	writes sync.WaitGroup
}

// NewNewBillController returns a form controller in StateNoFile.
func NewNewBillController(cfg Config) (*NewBillController, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("new bill controller: %w", err)
	}
	if cfg.Storage == nil {
		return nil, errors.New("new bill controller: file storage is required")
	}
	return &NewBillController{cfg: cfg.withDefaults()}, nil
}

// View returns the current form state.
func (c *NewBillController) View() FormView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *NewBillController) viewLocked() FormView {
	return FormView{
		State:    c.state,
		FileName: c.fileName,
		FileURL:  c.fileURL,
		Error:    c.currentError,
	}
}

// HandleChangeFile validates the selected file and uploads it. An invalid
// type clears any recorded file and sets the inline error. A valid one is
// uploaded under the attachment prefix; the returned URL and file name are
// recorded unless a later selection superseded this one meanwhile.
func (c *NewBillController) HandleChangeFile(ctx context.Context, sel FileSelection) FormView {
	log := logging.FromContext(ctx)

	c.mu.Lock()
	c.currentError = ""
	c.token++
	token := c.token
	c.fileURL, c.fileName = "", ""

	if err := CheckContentType(sel.ContentType); err != nil {
		c.state = StateInvalid
		c.currentError = domain.InvalidFileFormatMessage
		v := c.viewLocked()
		c.mu.Unlock()
		c.cfg.Metrics.Upload("rejected")
		log.Info("attachment rejected", "error", err)
		return v
	}

	fileName := domain.FileNameFromPath(sel.Path)
	c.state = StateUploading
	c.mu.Unlock()

	key := path.Join(domain.AttachmentPrefix, uuid.NewString(), fileName)
	url, err := c.cfg.Storage.Put(ctx, key, sel.Body, sel.Size, sel.ContentType)

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.token {
		c.cfg.Metrics.Upload("superseded")
		log.Debug("discarding superseded upload", "file", fileName)
		return c.viewLocked()
	}
	if err != nil {
		c.state = StateNoFile
		c.currentError = UploadFailedMessage
		c.cfg.Metrics.Upload("failed")
		log.Error("attachment upload failed", "file", fileName, "error", err)
		return c.viewLocked()
	}
	c.state = StateFileReady
	c.currentError = ""
	c.fileURL = url
	c.fileName = fileName
	c.cfg.Metrics.Upload("stored")
	log.Info("attachment stored", "file", fileName, "key", key)
	return c.viewLocked()
}

// HandleSubmit assembles the bill from form and the recorded attachment and
// requests its creation. Without a recorded attachment the form turns
// invalid and nothing is written. In optimistic mode navigation to the
// listing happens without waiting for the write.
func (c *NewBillController) HandleSubmit(ctx context.Context, form BillForm) FormView {
	log := logging.FromContext(ctx)

	c.mu.Lock()
	c.currentError = ""
	if c.state != StateFileReady || c.fileURL == "" {
		c.state = StateInvalid
		c.fileURL, c.fileName = "", ""
		c.currentError = domain.InvalidFileFormatMessage
		v := c.viewLocked()
		c.mu.Unlock()
		return v
	}

	user, err := c.cfg.Session.CurrentUser(ctx)
	if err != nil {
		c.currentError = NoSessionMessage
		v := c.viewLocked()
		c.mu.Unlock()
		log.Warn("submit without session", "error", err)
		return v
	}

	log.Debug("bill date selected", "date", form.Date)
	bill := &domain.Bill{
		Email:      user.Email,
		Type:       form.Type,
		Name:       form.Name,
		Amount:     domain.ParseAmount(form.Amount),
		Date:       form.Date,
		VAT:        form.VAT,
		Pct:        domain.ParsePct(form.Pct),
		Commentary: form.Commentary,
		FileURL:    c.fileURL,
		FileName:   c.fileName,
		Status:     domain.StatusPending,
	}
	c.state = StateSubmitted
	v := c.viewLocked()
	c.mu.Unlock()

	if c.cfg.SubmitMode == SubmitConsistent {
		if err := c.createBill(ctx, bill); err != nil {
			c.mu.Lock()
			c.state = StateFileReady
			c.currentError = WriteFailedMessage
			v = c.viewLocked()
			c.mu.Unlock()
			return v
		}
		c.cfg.Navigator.Navigate(ctx, domain.RouteBills)
		return v
	}

	c.writes.Add(1)
	go func() {
		defer c.writes.Done()
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.WriteTimeout)
		defer cancel()
		_ = c.createBill(wctx, bill)
	}()
	c.cfg.Navigator.Navigate(ctx, domain.RouteBills)
	return v
}

func (c *NewBillController) createBill(ctx context.Context, bill *domain.Bill) error {
	log := logging.FromContext(ctx)
	if err := c.cfg.Bills.Add(ctx, bill); err != nil {
		c.cfg.Metrics.BillWrite("error")
		log.Error("bill creation failed", "name", bill.Name, "error", err)
		return err
	}
	c.cfg.Metrics.BillWrite("ok")
	log.Info("bill created", "id", bill.ID, "name", bill.Name)
	return nil
}

// Wait blocks until background bill writes started by HandleSubmit finish.
func (c *NewBillController) Wait() {
	c.writes.Wait()
}
