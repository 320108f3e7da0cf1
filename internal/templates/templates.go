// Package templates renders the employee pages and the htmx fragments they
// swap in. Every exported function returns a templ.Component so handlers
// render pages and fragments the same way.
package templates

import (
	"context"
	"html/template"
	"io"
	"net/url"

	"github.com/a-h/templ"

	"github.com/csg33k/billed/internal/controllers"
	"github.com/csg33k/billed/internal/domain"
)

// Active icon names of the vertical layout.
const (
	NavBills   = "bills"
	NavNewBill = "new-bill"
)

// Nav is the vertical layout state shared by the logged-in pages.
type Nav struct {
	Active string
	User   domain.User
}

// LoginData fills the login page.
type LoginData struct {
	Email string
	Error string
}

// BillsData fills the listing page. Page is usually the loading state;
// the rows then arrive through htmx.
type BillsData struct {
	Nav
	Page controllers.BillsPage
}

// NewBillData fills the new-bill page and its form fragment.
type NewBillData struct {
	Nav
	FormID       string
	Form         controllers.BillForm
	View         controllers.FormView
	ExpenseTypes []string
}

// FileStatusData fills the fragment under the file input.
type FileStatusData struct {
	FormID string
	View   controllers.FormView
}

var funcs = template.FuncMap{
	"attachmentURL": func(fileURL string) string {
		return "/bills/attachment?url=" + url.QueryEscape(fileURL)
	},
	"formAction": func(formID string) string {
		return domain.RouteNewBill + "/" + url.PathEscape(formID)
	},
	"selected": func(a, b string) bool { return a == b },
}

// fragments are shared by the pages and rendered alone for htmx swaps.
const fragments = `
{{define "bill-rows"}}
{{if .Error}}
<div class="content" id="bills-content">
  <div class="content-header"><div class="content-title">Erreur</div></div>
  <div data-testid="error-message">{{.Error}}</div>
</div>
{{else}}
<div class="card" id="bills-content" style="padding:0;">
  <table id="example" class="table" data-testid="bills-table">
    <thead>
      <tr><th>Type</th><th>Nom</th><th>Date</th><th>Montant</th><th>Statut</th><th>Actions</th></tr>
    </thead>
    <tbody data-testid="tbody">
    {{range .Bills}}
      <tr>
        <td>{{.Type}}</td>
        <td>{{.Name}}</td>
        <td class="mono" data-testid="bill-date">{{.Date}}</td>
        <td class="mono">{{.Amount}} €</td>
        <td>{{.StatusLabel}}</td>
        <td>
          <div class="icon-actions">
            <div id="eye" data-testid="icon-eye" data-bill-url="{{.FileURL}}"
              hx-get="{{attachmentURL .FileURL}}" hx-target="#modaleFile" hx-swap="outerHTML">&#128065;</div>
          </div>
        </td>
      </tr>
    {{end}}
    </tbody>
  </table>
</div>
{{end}}
{{end}}

{{define "attachment-modal"}}
<div class="modal" id="{{.ID}}" data-testid="{{.ID}}" role="dialog">
  <div class="modal-dialog">
    <div class="modal-header">
      <h5 class="modal-title">{{.Label}}</h5>
      <button type="button" class="btn" onclick="this.closest('.modal').classList.remove('show')">&times;</button>
    </div>
    <div class="modal-body">
      <div style="text-align:center;" class="bill-proof-container">
        <img width="{{.ImageWidth}}" src="{{.ImageURL}}" alt="Bill">
      </div>
    </div>
  </div>
</div>
{{end}}

{{define "file-status"}}
<div id="file-status">
  {{if .View.Error}}<div class="error-message" data-testid="invalid-format">{{.View.Error}}</div>{{end}}
  {{if .View.FileName}}<div class="mono" data-testid="file-name">{{.View.FileName}}</div>{{end}}
</div>
{{end}}

{{define "new-bill-form"}}
<form data-testid="form-new-bill" class="card" style="padding:24px;"
  method="post" action="{{formAction .FormID}}"
  hx-post="{{formAction .FormID}}" hx-target="this" hx-swap="outerHTML">
  <input type="hidden" name="form" value="{{.FormID}}">
  <div class="form-grid">
    <div>
      <label for="expense-type" class="field-label">Type de dépense</label>
      <select required id="expense-type" name="type" data-testid="expense-type">
        {{$type := .Form.Type}}
        {{range .ExpenseTypes}}<option{{if selected . $type}} selected{{end}}>{{.}}</option>{{end}}
      </select>
    </div>
    <div>
      <label for="expense-name" class="field-label">Nom de la dépense</label>
      <input type="text" id="expense-name" name="name" data-testid="expense-name" placeholder="Vol Paris Londres" value="{{.Form.Name}}">
    </div>
    <div>
      <label for="datepicker" class="field-label">Date</label>
      <input required type="date" id="datepicker" name="date" data-testid="datepicker" value="{{.Form.Date}}">
    </div>
    <div>
      <label for="amount" class="field-label">Montant TTC</label>
      <input required type="number" id="amount" name="amount" data-testid="amount" placeholder="348" value="{{.Form.Amount}}">
    </div>
    <div class="vat-grid">
      <div>
        <label for="vat" class="field-label">TVA</label>
        <input type="number" id="vat" name="vat" data-testid="vat" placeholder="70" value="{{.Form.VAT}}">
      </div>
      <div>
        <label for="pct" class="field-label">%</label>
        <input required type="number" id="pct" name="pct" data-testid="pct" placeholder="20" value="{{.Form.Pct}}">
      </div>
    </div>
    <div style="grid-column:1/-1;">
      <label for="commentary" class="field-label">Commentaire</label>
      <textarea id="commentary" name="commentary" data-testid="commentary" rows="3">{{.Form.Commentary}}</textarea>
    </div>
    <div style="grid-column:1/-1;">
      <label for="file" class="field-label">Justificatif</label>
      <input{{if not .View.FileURL}} required{{end}} type="file" id="file" name="file" data-testid="file" accept="image/png,image/jpeg"
        hx-post="{{formAction .FormID}}/file" hx-encoding="multipart/form-data"
        hx-trigger="change" hx-target="#file-status" hx-swap="outerHTML" hx-include="this">
      {{template "file-status" .}}
    </div>
  </div>
  <div style="margin-top:16px;">
    <button type="submit" id="btn-send-bill" class="btn btn-primary">Envoyer</button>
  </div>
</form>
{{end}}
`

const baseLayout = `{{define "base"}}<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Billed</title>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
<link rel="preconnect" href="https://fonts.googleapis.com">
<link rel="preconnect" href="https://fonts.gstatic.com" crossorigin>
<link href="https://fonts.googleapis.com/css2?family=IBM+Plex+Mono:wght@400;500;600&family=IBM+Plex+Sans:wght@300;400;500;600&display=swap" rel="stylesheet">
<style>
  :root {
    --ink: #0d1117;
    --paper: #f5f0e8;
    --ledger: #e8e0cc;
    --accent: #c0392b;
    --accent2: #2c6e49;
    --muted: #6b5e4e;
    --rule: #b8a898;
  }
  * { box-sizing: border-box; }
  body {
    margin: 0;
    background: var(--paper);
    color: var(--ink);
    font-family: 'IBM Plex Sans', sans-serif;
    min-height: 100vh;
  }
  .mono { font-family: 'IBM Plex Mono', monospace; }
  .layout { display: flex; min-height: 100vh; }
  .vertical-navbar {
    width: 72px;
    background: var(--ink);
    display: flex;
    flex-direction: column;
    align-items: center;
    gap: 24px;
    padding-top: 32px;
  }
  .vertical-navbar a, .vertical-navbar button {
    color: var(--rule);
    font-size: 1.4rem;
    text-decoration: none;
    background: none;
    border: none;
    cursor: pointer;
  }
  .vertical-navbar .active-icon { color: white; border-left: 3px solid var(--accent); padding-left: 6px; }
  .content { flex: 1; padding: 32px 24px; max-width: 1100px; }
  .content-header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 24px; }
  .content-title {
    font-family: 'IBM Plex Mono', monospace;
    font-size: 1.4rem;
    font-weight: 600;
    letter-spacing: -0.02em;
  }
  .card {
    background: rgba(255,255,255,0.7);
    border: 1px solid var(--ledger);
    border-left: 4px solid var(--ink);
  }
  .field-label {
    font-family: 'IBM Plex Mono', monospace;
    font-size: 0.6rem;
    font-weight: 600;
    letter-spacing: 0.1em;
    text-transform: uppercase;
    color: var(--muted);
    display: block;
    margin-bottom: 2px;
  }
  input, select, textarea {
    background: white;
    border: 1px solid var(--rule);
    border-bottom: 2px solid var(--ink);
    padding: 6px 8px;
    font-family: 'IBM Plex Mono', monospace;
    font-size: 0.85rem;
    width: 100%;
    outline: none;
  }
  input:focus, select:focus { border-bottom-color: var(--accent); }
  .form-grid { display: grid; grid-template-columns: 1fr 1fr; gap: 12px; }
  .vat-grid { display: grid; grid-template-columns: 2fr 1fr; gap: 8px; }
  .btn {
    font-family: 'IBM Plex Mono', monospace;
    font-weight: 600;
    font-size: 0.8rem;
    letter-spacing: 0.08em;
    padding: 8px 18px;
    border: 2px solid var(--ink);
    cursor: pointer;
    text-transform: uppercase;
    background: white;
  }
  .btn-primary { background: var(--ink); color: white; }
  .btn-primary:hover { background: var(--accent); border-color: var(--accent); }
  .error-message { color: var(--accent); font-size: 0.8rem; margin-top: 4px; }
  .table { width: 100%; border-collapse: collapse; font-size: 0.85rem; }
  .table th {
    font-family: 'IBM Plex Mono', monospace;
    font-size: 0.65rem;
    letter-spacing: 0.12em;
    text-transform: uppercase;
    text-align: left;
    color: var(--muted);
    border-bottom: 2px solid var(--ink);
    padding: 8px;
  }
  .table td { border-bottom: 1px solid var(--ledger); padding: 8px; }
  .icon-actions div { cursor: pointer; }
  .modal { display: none; position: fixed; inset: 0; background: rgba(13,17,23,0.5); z-index: 10; }
  .modal.show { display: flex; align-items: center; justify-content: center; }
  .modal-dialog { background: var(--paper); border-left: 4px solid var(--ink); padding: 16px; min-width: 320px; }
  .modal-header { display: flex; justify-content: space-between; align-items: center; }
</style>
</head>
<body>
<div class="layout">
  {{if .User.Email}}
  <div class="vertical-navbar">
    <a href="/bills" id="layout-icon1" data-testid="icon-window"{{if eq .Active "bills"}} class="active-icon"{{end}} title="Mes notes de frais">&#128452;</a>
    <a href="/bills/new" id="layout-icon2" data-testid="icon-mail"{{if eq .Active "new-bill"}} class="active-icon"{{end}} title="Nouvelle note de frais">&#9993;</a>
    <a href="/bills/report.pdf" data-testid="icon-report" title="Rapport PDF">&#128196;</a>
    <form method="post" action="/logout" hx-post="/logout">
      <button type="submit" id="layout-disconnect" data-testid="layout-disconnect" title="Se déconnecter">&#9211;</button>
    </form>
  </div>
  {{end}}
  <div class="content">
    {{template "content" .}}
  </div>
</div>
<script>
  document.body.addEventListener("htmx:beforeSwap", function (e) {
    if (e.detail.xhr.status === 422) {
      e.detail.shouldSwap = true;
      e.detail.isError = false;
    }
  });
  document.body.addEventListener("show-modal", function (e) {
    var el = document.getElementById((e.detail && e.detail.value) || "modaleFile");
    if (el) { el.classList.add("show"); }
  });
</script>
</body>
</html>{{end}}`

var baseTmpl = template.Must(template.Must(template.New("base").Funcs(funcs).Parse(baseLayout)).Parse(fragments))

var loginTmpl = template.Must(template.Must(baseTmpl.Clone()).Parse(`
{{define "content"}}
<div class="card" style="padding:24px;max-width:420px;margin:64px auto;">
  <div class="content-title" style="margin-bottom:16px;">Employé</div>
  <form data-testid="form-employee" method="post" action="/login">
    <label for="employee-email-input" class="field-label">Votre email</label>
    <input required type="email" id="employee-email-input" name="email" data-testid="employee-email-input" placeholder="johndoe@email.com" value="{{.Email}}">
    <label for="employee-password-input" class="field-label" style="margin-top:12px;">Mot de passe</label>
    <input required type="password" id="employee-password-input" name="password" data-testid="employee-password-input" placeholder="******">
    {{if .Error}}<div class="error-message" data-testid="login-error">{{.Error}}</div>{{end}}
    <div style="margin-top:16px;"><button type="submit" id="btn-employee" class="btn btn-primary" data-testid="employee-login-button">Se connecter</button></div>
  </form>
</div>
{{end}}`))

var billsTmpl = template.Must(template.Must(baseTmpl.Clone()).Parse(`
{{define "content"}}
<div class="content-header">
  <div class="content-title">Mes notes de frais</div>
  <button type="button" data-testid="btn-new-bill" class="btn btn-primary"
    hx-post="/bills/actions/new">Nouvelle note de frais</button>
</div>
{{if .Page.Loading}}
<div id="loading" data-testid="loading" hx-get="/bills/rows" hx-trigger="load" hx-swap="outerHTML">Loading...</div>
{{else}}
{{template "bill-rows" .Page}}
{{end}}
<div class="modal" id="modaleFile" data-testid="modaleFile" role="dialog"></div>
{{end}}`))

var newBillTmpl = template.Must(template.Must(baseTmpl.Clone()).Parse(`
{{define "content"}}
<div class="content-header">
  <div class="content-title">Envoyer une note de frais</div>
</div>
{{template "new-bill-form" .}}
{{end}}`))

func component(t *template.Template, name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return t.ExecuteTemplate(w, name, data)
	})
}

// loginPage carries an empty Nav so the layout hides the navbar.
type loginPage struct {
	Nav
	LoginData
}

// Login renders the employee login page.
func Login(d LoginData) templ.Component {
	return component(loginTmpl, "base", loginPage{LoginData: d})
}

// Bills renders the listing page.
func Bills(d BillsData) templ.Component {
	d.Active = NavBills
	return component(billsTmpl, "base", d)
}

// BillRows renders the listing table or the error page.
func BillRows(p controllers.BillsPage) templ.Component {
	return component(baseTmpl, "bill-rows", p)
}

// AttachmentModal renders the receipt preview modal.
func AttachmentModal(m controllers.AttachmentModal) templ.Component {
	return component(baseTmpl, "attachment-modal", m)
}

// NewBill renders the full new-bill page.
func NewBill(d NewBillData) templ.Component {
	d.Active = NavNewBill
	return component(newBillTmpl, "base", d)
}

// NewBillForm renders only the form, for htmx re-renders after a failed
// submit.
func NewBillForm(d NewBillData) templ.Component {
	return component(baseTmpl, "new-bill-form", d)
}

// FileStatus renders the status line under the file input.
func FileStatus(d FileStatusData) templ.Component {
	return component(baseTmpl, "file-status", d)
}
